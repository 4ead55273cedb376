// Package presence tracks which users hold a live realtime connection and
// relays message and presence frames between them.
package presence

import (
	"ms-booking/internal/models"
	"sort"
	"sync"
)

// Conn is one live realtime connection.
type Conn interface {
	ID() string
	// Send queues frame for delivery and reports whether it was accepted.
	Send(frame models.OutboundFrame) bool
}

// Registry maps each user to at most one live connection. It is created at
// process start and shared by every session.
type Registry struct {
	mu         sync.RWMutex
	conns      map[string]Conn   // connID -> conn, identified or not
	byUser     map[string]Conn   // userID -> current conn
	userByConn map[string]string // connID -> userID it identified as
}

func NewRegistry() *Registry {
	return &Registry{
		conns:      make(map[string]Conn),
		byUser:     make(map[string]Conn),
		userByConn: make(map[string]string),
	}
}

func (r *Registry) Add(c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[c.ID()] = c
}

// Identify records c as userID's connection, replacing any earlier one. It
// returns the replaced connection, if any.
func (r *Registry) Identify(userID string, c Conn) Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.conns[c.ID()] = c
	if prevUser, ok := r.userByConn[c.ID()]; ok && prevUser != userID {
		if cur, ok := r.byUser[prevUser]; ok && cur.ID() == c.ID() {
			delete(r.byUser, prevUser)
		}
	}

	prev, hadPrev := r.byUser[userID]
	r.byUser[userID] = c
	r.userByConn[c.ID()] = userID
	if hadPrev && prev.ID() != c.ID() {
		return prev
	}
	return nil
}

// Remove forgets c. The user's entry is dropped only if c is still the
// user's current connection, so a stale close cannot evict a reconnect.
// It reports the user c had identified as and whether that user went offline.
func (r *Registry) Remove(c Conn) (userID string, wentOffline bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.conns, c.ID())
	userID, identified := r.userByConn[c.ID()]
	delete(r.userByConn, c.ID())
	if !identified {
		return "", false
	}

	if cur, ok := r.byUser[userID]; ok && cur.ID() == c.ID() {
		delete(r.byUser, userID)
		return userID, true
	}
	return userID, false
}

func (r *Registry) Lookup(userID string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byUser[userID]
	return c, ok
}

// OnlineUsers returns the identified user ids, sorted.
func (r *Registry) OnlineUsers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]string, 0, len(r.byUser))
	for id := range r.byUser {
		users = append(users, id)
	}
	sort.Strings(users)
	return users
}

// Peers returns every live connection, identified or not.
func (r *Registry) Peers() []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	peers := make([]Conn, 0, len(r.conns))
	for _, c := range r.conns {
		peers = append(peers, c)
	}
	return peers
}
