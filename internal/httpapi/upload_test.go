package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ThanhGoodBoy/splitvault/internal/apierr"
	"github.com/ThanhGoodBoy/splitvault/internal/config"
	"github.com/ThanhGoodBoy/splitvault/internal/sender"
	"github.com/ThanhGoodBoy/splitvault/internal/session"
	"github.com/ThanhGoodBoy/splitvault/internal/state"
)

func newTestState(t *testing.T) *State {
	t.Helper()
	dir := t.TempDir()
	store := state.New(dir)
	cfg := &config.Config{
		FoldersFile:      "folders.json",
		HistoryFile:      "history.json",
		SessionsFile:     "sessions.json",
		ClientChunkBytes: 4 * 1024 * 1024,
	}
	return &State{
		Cfg:      cfg,
		Store:    store,
		BaseDir:  dir,
		Sessions: session.NewManager(store, cfg.SessionsFile),
		Senders:  sender.NewRegistry(),
	}
}

func TestResolveContainerEmptyFolderIDReturnsRoot(t *testing.T) {
	s := newTestState(t)
	containerID, folderName, err := s.resolveContainer("")
	require.NoError(t, err)
	require.Empty(t, containerID)
	require.Nil(t, folderName)
}

func TestResolveContainerFindsFolder(t *testing.T) {
	s := newTestState(t)
	require.NoError(t, s.Store.SaveFolders(s.Cfg.FoldersFile, []state.Folder{
		{ID: 7, Name: "docs", ContainerID: 999},
	}))

	containerID, folderName, err := s.resolveContainer("7")
	require.NoError(t, err)
	require.Equal(t, "999", containerID)
	require.NotNil(t, folderName)
	require.Equal(t, "docs", *folderName)
}

func TestResolveContainerUnknownFolderIsBadRequest(t *testing.T) {
	s := newTestState(t)
	_, _, err := s.resolveContainer("404")
	require.Error(t, err)
	require.Equal(t, apierr.KindBadRequest, apierr.KindOf(err))
}

func TestHandleInitUploadResumesLiveSessionWithoutTouchingBackends(t *testing.T) {
	s := newTestState(t)
	sessionID := s.Sessions.Create("resume.bin", 100, 3, "", "")
	require.NoError(t, s.Sessions.MarkChunkReceived(sessionID, 0))
	require.NoError(t, s.Sessions.MarkChunkReceived(sessionID, 1))
	s.Senders.Store(sessionID, &sender.Entry{
		ChunkTx:  make(chan sender.Chunk, 1),
		ResultCh: make(chan sender.Result, 1),
	})

	body, _ := json.Marshal(initUploadRequest{Filename: "resume.bin", TotalChunks: 3, SessionID: sessionID})
	req := httptest.NewRequest(http.MethodPost, "/api/upload/init", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.handleInitUpload(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, sessionID, resp["session_id"])
	require.Equal(t, []any{float64(0), float64(1)}, resp["received_chunks"])
	require.Equal(t, float64(s.Cfg.ClientChunkBytes), resp["chunk_size"])

	sess, ok := s.Sessions.Get(sessionID)
	require.True(t, ok)
	require.Equal(t, []int{0, 1}, sess.ReceivedChunks)
}
