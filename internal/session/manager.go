// Package session manages UploadSession records: creation, per-chunk
// tracking, and deletion. Ported from original_source/upload.rs's session
// helpers (create_session/get_session/update_session/mark_chunk_received).
package session

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/ThanhGoodBoy/splitvault/internal/state"
)

// Manager is a thin CRUD layer over the sessions document in the state
// store. It does not know about in-memory sender entries — Resume takes
// the sender-liveness check as a callback from the caller, which has
// access to the sender registry.
type Manager struct {
	store    *state.Store
	filename string
}

func NewManager(store *state.Store, filename string) *Manager {
	return &Manager{store: store, filename: filename}
}

// NewSessionID derives a 12-hex-digit session id from
// md5(filename || createdAtMillis).
func NewSessionID(filename string, createdAtMillis int64) string {
	h := md5.Sum([]byte(fmt.Sprintf("%s%d", filename, createdAtMillis)))
	return hex.EncodeToString(h[:])[:12]
}

// Create writes a fresh session record in status "uploading" and returns
// its id.
func (m *Manager) Create(filename string, fileSize int64, totalChunks int, folderID, message string) string {
	now := time.Now().UTC()
	sessionID := NewSessionID(filename, now.UnixMilli())

	sessions := m.store.LoadSessions(m.filename)
	sessions[sessionID] = state.UploadSession{
		SessionID:      sessionID,
		Filename:       filename,
		FileSize:       fileSize,
		TotalChunks:    totalChunks,
		ReceivedChunks: []int{},
		FolderID:       folderID,
		Message:        message,
		Status:         state.SessionStatusUploading,
		CreatedAt:      now.Format(time.RFC3339),
	}
	if err := m.store.SaveSessions(m.filename, sessions); err != nil {
		// State-store write failures are logged here; Create's contract
		// only returns an id, so the failure otherwise shows up as Get
		// returning "not found" on the next read.
		log.Printf("[STATE] saving new session %s: %v", sessionID, err)
	}
	return sessionID
}

// Get returns the session for id, or (zero, false) if absent.
func (m *Manager) Get(id string) (state.UploadSession, bool) {
	sessions := m.store.LoadSessions(m.filename)
	s, ok := sessions[id]
	return s, ok
}

// Update applies mutate to the session for id, if it exists, and persists
// the result.
func (m *Manager) Update(id string, mutate func(*state.UploadSession)) error {
	sessions := m.store.LoadSessions(m.filename)
	s, ok := sessions[id]
	if !ok {
		return nil
	}
	mutate(&s)
	sessions[id] = s
	return m.store.SaveSessions(m.filename, sessions)
}

// MarkChunkReceived idempotently records chunk idx as received: no
// duplicates, and received_chunks stays sorted.
func (m *Manager) MarkChunkReceived(id string, idx int) error {
	return m.Update(id, func(s *state.UploadSession) {
		for _, existing := range s.ReceivedChunks {
			if existing == idx {
				return
			}
		}
		s.ReceivedChunks = append(s.ReceivedChunks, idx)
		sort.Ints(s.ReceivedChunks)
	})
}

// Resume reports whether session id can be picked back up by a
// reconnecting client: it must exist, have status "uploading", and have a
// live in-memory sender entry, checked via isLive. When any of those fail,
// the stale persisted row (if any) is deleted so init_upload can mint a
// fresh session instead.
func (m *Manager) Resume(id string, isLive func(id string) bool) (receivedChunks []int, ok bool) {
	sess, exists := m.Get(id)
	if !exists || sess.Status != state.SessionStatusUploading || !isLive(id) {
		_ = m.Delete(id)
		return nil, false
	}
	return sess.ReceivedChunks, true
}

// Delete removes the session record for id.
func (m *Manager) Delete(id string) error {
	sessions := m.store.LoadSessions(m.filename)
	if _, ok := sessions[id]; !ok {
		return nil
	}
	delete(sessions, id)
	return m.store.SaveSessions(m.filename, sessions)
}

// ExpireStale removes every "uploading" session older than ttl and returns
// their ids. Used by the GC loop (spec.md §4.7).
func (m *Manager) ExpireStale(ttl time.Duration, now time.Time) ([]string, error) {
	sessions := m.store.LoadSessions(m.filename)
	var expired []string
	for id, s := range sessions {
		if s.Status != state.SessionStatusUploading {
			continue
		}
		created, err := time.Parse(time.RFC3339, s.CreatedAt)
		if err != nil {
			continue
		}
		if now.Sub(created) > ttl {
			expired = append(expired, id)
		}
	}
	if len(expired) == 0 {
		return nil, nil
	}
	for _, id := range expired {
		delete(sessions, id)
	}
	if err := m.store.SaveSessions(m.filename, sessions); err != nil {
		return nil, err
	}
	return expired, nil
}
