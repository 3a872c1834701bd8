// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: client/registry.go
// Summary: Client Registry (spec.md §2 component F): connected clients, their
// attachment sets, and the driver slots they hold.

package client

import "sync"

// Client is one connected, registered client of the mux protocol endpoint.
type Client struct {
	ID uint32

	mu       sync.Mutex
	attached map[uint32]bool // session ids this client is a subscriber of
	driving  map[uint32]bool // session ids this client currently drives
	ready    bool            // true once workspace_snapshot has been sent
}

// Attached reports the set of session ids this client currently subscribes
// to.
func (c *Client) Attached() []uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]uint32, 0, len(c.attached))
	for id := range c.attached {
		ids = append(ids, id)
	}
	return ids
}

// Ready reports whether this client has received its workspace_snapshot
// handshake (spec.md §4.G: "until received, the client is not ready").
func (c *Client) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

// Registry owns the set of connected clients and their presence state.
type Registry struct {
	mu      sync.Mutex
	clients map[uint32]*Client
	nextID  uint32
}

// NewRegistry constructs an empty client registry.
func NewRegistry() *Registry {
	return &Registry{clients: make(map[uint32]*Client)}
}

// Register allocates a fresh client id and adds it to the registry, not yet
// marked ready.
func (r *Registry) Register() *Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	c := &Client{
		ID:       r.nextID,
		attached: make(map[uint32]bool),
		driving:  make(map[uint32]bool),
	}
	r.clients[c.ID] = c
	return c
}

// MarkReady records that a client's workspace_snapshot handshake has
// completed.
func (r *Registry) MarkReady(clientID uint32) {
	r.mu.Lock()
	c := r.clients[clientID]
	r.mu.Unlock()
	if c == nil {
		return
	}
	c.mu.Lock()
	c.ready = true
	c.mu.Unlock()
}

// IsReady reports whether clientID is registered and has completed its
// handshake. Unknown clients report false.
func (r *Registry) IsReady(clientID uint32) bool {
	r.mu.Lock()
	c := r.clients[clientID]
	r.mu.Unlock()
	if c == nil {
		return false
	}
	return c.Ready()
}

// ReadyClients returns every currently-ready client other than exclude.
func (r *Registry) ReadyClients(exclude uint32) []*Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Client, 0, len(r.clients))
	for id, c := range r.clients {
		if id == exclude {
			continue
		}
		if c.Ready() {
			out = append(out, c)
		}
	}
	return out
}

// MarkAttached records that clientID subscribed to sessionID.
func (r *Registry) MarkAttached(clientID, sessionID uint32) {
	r.mu.Lock()
	c := r.clients[clientID]
	r.mu.Unlock()
	if c == nil {
		return
	}
	c.mu.Lock()
	c.attached[sessionID] = true
	c.mu.Unlock()
}

// MarkDetached records that clientID left sessionID's subscriber set.
func (r *Registry) MarkDetached(clientID, sessionID uint32) {
	r.mu.Lock()
	c := r.clients[clientID]
	r.mu.Unlock()
	if c == nil {
		return
	}
	c.mu.Lock()
	delete(c.attached, sessionID)
	delete(c.driving, sessionID)
	c.mu.Unlock()
}

// MarkDriver records that clientID holds the driver role for sessionID.
func (r *Registry) MarkDriver(clientID, sessionID uint32) {
	r.mu.Lock()
	c := r.clients[clientID]
	r.mu.Unlock()
	if c == nil {
		return
	}
	c.mu.Lock()
	c.driving[sessionID] = true
	c.mu.Unlock()
}

// ClearDriver records that clientID no longer holds the driver role for
// sessionID.
func (r *Registry) ClearDriver(clientID, sessionID uint32) {
	r.mu.Lock()
	c := r.clients[clientID]
	r.mu.Unlock()
	if c == nil {
		return
	}
	c.mu.Lock()
	delete(c.driving, sessionID)
	c.mu.Unlock()
}

// Unregister removes clientID from the registry, returning the set of
// session ids it was still attached to (and, among those, the ones it was
// driving) so the caller can tear down session-side state before finishing
// disconnection.
func (r *Registry) Unregister(clientID uint32) (attached []uint32, driving []uint32) {
	r.mu.Lock()
	c := r.clients[clientID]
	delete(r.clients, clientID)
	r.mu.Unlock()
	if c == nil {
		return nil, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for id := range c.attached {
		attached = append(attached, id)
	}
	for id := range c.driving {
		driving = append(driving, id)
	}
	return attached, driving
}
