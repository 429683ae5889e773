package server

import (
	"fmt"
	"sync"
)

// onlineUser is one roster entry carried in UserListUpdate broadcasts
// and in the AuthOk login response.
type onlineUser struct {
	UserID   string `json:"user_id"`
	Nickname string `json:"nickname"`
}

// sessionRegistry maps logged-in users to their connections. A user may
// hold at most one live session; a second login for the same user id on
// a different connection is rejected.
//
// The registry is the only cross-goroutine view of who is online. Each
// Connection also keeps its own userID/nickname copies, but those are
// touched exclusively by the connection's reader goroutine.
type sessionRegistry struct {
	mu     sync.RWMutex
	byConn map[*Connection]*session
	byUser map[string]*Connection
}

type session struct {
	userID   string
	nickname string
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{
		byConn: make(map[*Connection]*session),
		byUser: make(map[string]*Connection),
	}
}

// login binds a user to a connection. Fails when the user id is already
// bound to a different live connection. Logging in again on the same
// connection (as the same or a different user) replaces the old binding.
func (r *sessionRegistry) login(c *Connection, userID, nickname string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byUser[userID]; ok && existing != c {
		return fmt.Errorf("user already online")
	}
	if old, ok := r.byConn[c]; ok && old.userID != userID {
		delete(r.byUser, old.userID)
	}
	r.byConn[c] = &session{userID: userID, nickname: nickname}
	r.byUser[userID] = c
	return nil
}

// remove drops the connection's session, if any. Returns whether the
// connection was logged in, so the caller knows to re-broadcast the
// roster. Safe to call for connections that never logged in.
func (r *sessionRegistry) remove(c *Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.byConn[c]
	if !ok {
		return false
	}
	delete(r.byConn, c)
	if r.byUser[sess.userID] == c {
		delete(r.byUser, sess.userID)
	}
	return true
}

// lookup returns the live connection for a user id, or nil when the
// user is offline.
func (r *sessionRegistry) lookup(userID string) *Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byUser[userID]
}

// onlineUsers snapshots the current roster.
func (r *sessionRegistry) onlineUsers() []onlineUser {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]onlineUser, 0, len(r.byUser))
	for userID, c := range r.byUser {
		sess, ok := r.byConn[c]
		if !ok {
			continue
		}
		users = append(users, onlineUser{UserID: userID, Nickname: sess.nickname})
	}
	return users
}

// loggedInConns snapshots every connection with a bound user, for
// roster broadcasts.
func (r *sessionRegistry) loggedInConns() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]*Connection, 0, len(r.byConn))
	for c := range r.byConn {
		conns = append(conns, c)
	}
	return conns
}

// count returns the number of logged-in users.
func (r *sessionRegistry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}
