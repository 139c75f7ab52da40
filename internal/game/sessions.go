package game

import (
	"sort"
	"sync"

	"github.com/scythe504/drawpool-backend/internal"
)

// Sessions is the connection registry: which live clients exist and which
// rooms each one has joined. It is the only place room membership lives in
// process.
type Sessions struct {
	mu      sync.RWMutex
	clients map[string]internal.Client
	joined  map[string]map[string]struct{}
	members map[string]map[string]internal.Client
}

func NewSessions() *Sessions {
	return &Sessions{
		clients: make(map[string]internal.Client),
		joined:  make(map[string]map[string]struct{}),
		members: make(map[string]map[string]internal.Client),
	}
}

func (s *Sessions) Register(c internal.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c.SessionId()] = c
}

// Subscribe binds c to roomId so it receives the room's broadcasts. It
// reports whether c was not already a member.
func (s *Sessions) Subscribe(roomId string, c internal.Client) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sid := c.SessionId()
	s.clients[sid] = c

	rooms, ok := s.joined[sid]
	if !ok {
		rooms = make(map[string]struct{})
		s.joined[sid] = rooms
	}
	if _, already := rooms[roomId]; already {
		return false
	}
	rooms[roomId] = struct{}{}

	members, ok := s.members[roomId]
	if !ok {
		members = make(map[string]internal.Client)
		s.members[roomId] = members
	}
	members[sid] = c
	return true
}

func (s *Sessions) IsMember(roomId, sessionId string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.members[roomId][sessionId]
	return ok
}

// Rooms lists the rooms sessionId has joined, sorted.
func (s *Sessions) Rooms(sessionId string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.joined[sessionId])
}

// Members snapshots the clients joined to roomId, ordered by session id.
func (s *Sessions) Members(roomId string) []internal.Client {
	s.mu.RLock()
	defer s.mu.RUnlock()

	members := make([]internal.Client, 0, len(s.members[roomId]))
	for _, c := range s.members[roomId] {
		members = append(members, c)
	}
	sort.Slice(members, func(i, j int) bool {
		return members[i].SessionId() < members[j].SessionId()
	})
	return members
}

// Remove forgets sessionId and returns the rooms it had joined.
func (s *Sessions) Remove(sessionId string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	rooms := sortedKeys(s.joined[sessionId])
	for _, roomId := range rooms {
		delete(s.members[roomId], sessionId)
		if len(s.members[roomId]) == 0 {
			delete(s.members, roomId)
		}
	}
	delete(s.joined, sessionId)
	delete(s.clients, sessionId)
	return rooms
}

// Clients snapshots every registered client.
func (s *Sessions) Clients() []internal.Client {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clients := make([]internal.Client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	return clients
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
