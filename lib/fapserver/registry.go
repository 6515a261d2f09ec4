// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fapserver

import (
	"fmt"
	"sync"
	"time"

	"github.com/bureau-foundation/fap/lib/geo"
)

// PositionRecord is the last accepted position of one associated
// client.
type PositionRecord struct {
	// Slot is the session slot the record belongs to.
	Slot int

	// UserID is the id the client associated with.
	UserID int

	// Position is the client's NED position. Its Timestamp is the
	// client-reported fix time.
	Position geo.NedCoordinates

	// LastUpdate is when the server accepted the update.
	LastUpdate time.Time
}

// Registry is the fixed-capacity table of session slots and the shared
// count of associated users. All methods are safe for concurrent use.
type Registry struct {
	maxAssociated int

	mu          sync.Mutex
	activeUsers int
	slots       []registrySlot
	inUse       int
	closed      bool
}

type registrySlot struct {
	session  *Session
	position *PositionRecord
}

// NewRegistry returns a registry with maxAssociated+maxRejected slots.
func NewRegistry(maxAssociated, maxRejected int) *Registry {
	if maxAssociated < 1 || maxRejected < 0 {
		panic(fmt.Sprintf("fapserver: invalid registry capacity %d+%d", maxAssociated, maxRejected))
	}
	return &Registry{
		maxAssociated: maxAssociated,
		slots:         make([]registrySlot, maxAssociated+maxRejected),
	}
}

// Capacity returns the number of slots.
func (r *Registry) Capacity() int {
	return len(r.slots)
}

// Admit claims the lowest free slot and stores the session build
// returns for it. build runs under the registry lock, so anything it
// does is ordered before a concurrent Close returns: a caller that
// registers the session with a WaitGroup inside build can rely on Close
// followed by Wait observing it. build must not call back into the
// registry.
func (r *Registry) Admit(build func(slot int) *Session) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrRegistryClosed
	}
	for index := range r.slots {
		if r.slots[index].session != nil {
			continue
		}
		session := build(index)
		if session == nil {
			panic("fapserver: Registry.Admit build returned nil")
		}
		r.slots[index] = registrySlot{session: session}
		r.inUse++
		return session, nil
	}
	return nil, ErrNoFreeSlot
}

// Free returns slot to the pool and drops its position record. Freeing
// a slot that is not in use panics.
func (r *Registry) Free(slot int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if slot < 0 || slot >= len(r.slots) || r.slots[slot].session == nil {
		panic(fmt.Sprintf("fapserver: free of unused session slot %d", slot))
	}
	r.slots[slot] = registrySlot{}
	r.inUse--
}

// TryAssociate increments the associated-user count if it is below the
// cap and reports whether it did.
func (r *Registry) TryAssociate() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.activeUsers >= r.maxAssociated {
		return false
	}
	r.activeUsers++
	return true
}

// Release decrements the associated-user count when wasAssociated is
// true. Releasing below zero panics.
func (r *Registry) Release(wasAssociated bool) {
	if !wasAssociated {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.activeUsers <= 0 {
		panic(fmt.Sprintf("fapserver: associated user count would drop below zero (currently %d)", r.activeUsers))
	}
	r.activeUsers--
}

// ActiveUsers returns the associated-user count.
func (r *Registry) ActiveUsers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activeUsers
}

// Sessions returns the number of slots in use.
func (r *Registry) Sessions() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inUse
}

// StorePosition replaces the position record of slot. The slot must be
// in use.
func (r *Registry) StorePosition(slot int, record PositionRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.slots[slot].session == nil {
		panic(fmt.Sprintf("fapserver: position stored for unused session slot %d", slot))
	}
	record.Slot = slot
	r.slots[slot].position = &record
}

// ClearPosition drops the position record of slot, if any.
func (r *Registry) ClearPosition(slot int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slots[slot].position = nil
}

// Positions returns a copy of every position record, in slot order.
func (r *Registry) Positions() []PositionRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	records := make([]PositionRecord, 0, len(r.slots))
	for _, slot := range r.slots {
		if slot.position != nil {
			records = append(records, *slot.position)
		}
	}
	return records
}

// Close refuses further Admit calls and returns the sessions currently
// holding slots. Slots stay in use until their sessions Free them.
func (r *Registry) Close() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	sessions := make([]*Session, 0, r.inUse)
	for _, slot := range r.slots {
		if slot.session != nil {
			sessions = append(sessions, slot.session)
		}
	}
	return sessions
}
