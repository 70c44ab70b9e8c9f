package session

import (
	"testing"
	"time"

	"github.com/ThanhGoodBoy/splitvault/internal/state"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	store := state.New(t.TempDir())
	return NewManager(store, "upload_sessions.json")
}

func TestCreateGet(t *testing.T) {
	m := newTestManager(t)
	id := m.Create("file.bin", 1000, 3, "", "hello")
	require.Len(t, id, 12)

	s, ok := m.Get(id)
	require.True(t, ok)
	require.Equal(t, "file.bin", s.Filename)
	require.Equal(t, state.SessionStatusUploading, s.Status)
	require.Empty(t, s.ReceivedChunks)
}

func TestMarkChunkReceivedIdempotentAndSorted(t *testing.T) {
	m := newTestManager(t)
	id := m.Create("file.bin", 1000, 3, "", "")

	require.NoError(t, m.MarkChunkReceived(id, 2))
	require.NoError(t, m.MarkChunkReceived(id, 0))
	require.NoError(t, m.MarkChunkReceived(id, 2))
	require.NoError(t, m.MarkChunkReceived(id, 1))

	s, _ := m.Get(id)
	require.Equal(t, []int{0, 1, 2}, s.ReceivedChunks)
}

func TestUpdateDelete(t *testing.T) {
	m := newTestManager(t)
	id := m.Create("file.bin", 1000, 1, "", "")

	require.NoError(t, m.Update(id, func(s *state.UploadSession) {
		s.Status = state.SessionStatusSending
	}))
	s, ok := m.Get(id)
	require.True(t, ok)
	require.Equal(t, state.SessionStatusSending, s.Status)

	require.NoError(t, m.Delete(id))
	_, ok = m.Get(id)
	require.False(t, ok)
}

func TestResumeSucceedsWhenUploadingAndLive(t *testing.T) {
	m := newTestManager(t)
	id := m.Create("file.bin", 1000, 3, "", "")
	require.NoError(t, m.MarkChunkReceived(id, 0))

	received, ok := m.Resume(id, func(string) bool { return true })
	require.True(t, ok)
	require.Equal(t, []int{0}, received)

	_, stillThere := m.Get(id)
	require.True(t, stillThere)
}

func TestResumeDeletesSessionWhenNoLiveEntry(t *testing.T) {
	m := newTestManager(t)
	id := m.Create("file.bin", 1000, 3, "", "")

	_, ok := m.Resume(id, func(string) bool { return false })
	require.False(t, ok)

	_, stillThere := m.Get(id)
	require.False(t, stillThere)
}

func TestResumeDeletesSessionWhenNotUploading(t *testing.T) {
	m := newTestManager(t)
	id := m.Create("file.bin", 1000, 3, "", "")
	require.NoError(t, m.Update(id, func(s *state.UploadSession) {
		s.Status = state.SessionStatusSending
	}))

	_, ok := m.Resume(id, func(string) bool { return true })
	require.False(t, ok)

	_, stillThere := m.Get(id)
	require.False(t, stillThere)
}

func TestResumeUnknownSessionIsNotResumable(t *testing.T) {
	m := newTestManager(t)
	_, ok := m.Resume("does-not-exist", func(string) bool { return true })
	require.False(t, ok)
}

func TestExpireStaleRemovesOnlyOldUploadingSessions(t *testing.T) {
	m := newTestManager(t)
	oldID := m.Create("old.bin", 1, 1, "", "")
	require.NoError(t, m.Update(oldID, func(s *state.UploadSession) {
		s.CreatedAt = time.Now().UTC().Add(-2 * time.Hour).Format(time.RFC3339)
	}))

	freshID := m.Create("fresh.bin", 1, 1, "", "")

	sendingID := m.Create("sending.bin", 1, 1, "", "")
	require.NoError(t, m.Update(sendingID, func(s *state.UploadSession) {
		s.CreatedAt = time.Now().UTC().Add(-2 * time.Hour).Format(time.RFC3339)
		s.Status = state.SessionStatusSending
	}))

	expired, err := m.ExpireStale(1*time.Hour, time.Now().UTC())
	require.NoError(t, err)
	require.ElementsMatch(t, []string{oldID}, expired)

	_, ok := m.Get(oldID)
	require.False(t, ok)
	_, ok = m.Get(freshID)
	require.True(t, ok)
	_, ok = m.Get(sendingID)
	require.True(t, ok)
}
