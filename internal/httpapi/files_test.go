package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"github.com/ThanhGoodBoy/splitvault/internal/state"
)

func withVars(r *http.Request, vars map[string]string) *http.Request {
	return mux.SetURLVars(r, vars)
}

func TestHandleListFilesFiltersByFolderID(t *testing.T) {
	s := newTestState(t)
	require.NoError(t, s.Store.SaveHistory(s.Cfg.HistoryFile, []state.FileRecord{
		{ID: 1, Filename: "a.bin", FolderID: json.RawMessage(`"7"`)},
		{ID: 2, Filename: "b.bin"},
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/files?folder_id=7", nil)
	rec := httptest.NewRecorder()
	s.handleListFiles(rec, req)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	files := body["files"].([]any)
	require.Len(t, files, 1)
}

func TestHandleListFilesRootMatchesUnsetFolderID(t *testing.T) {
	s := newTestState(t)
	require.NoError(t, s.Store.SaveHistory(s.Cfg.HistoryFile, []state.FileRecord{
		{ID: 1, Filename: "a.bin", FolderID: json.RawMessage(`"7"`)},
		{ID: 2, Filename: "b.bin"},
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/files?folder_id=", nil)
	rec := httptest.NewRecorder()
	s.handleListFiles(rec, req)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	files := body["files"].([]any)
	require.Len(t, files, 1)
}

func TestHandleRenameFileUpdatesFilename(t *testing.T) {
	s := newTestState(t)
	require.NoError(t, s.Store.SaveHistory(s.Cfg.HistoryFile, []state.FileRecord{{ID: 5, Filename: "old.bin"}}))

	body, _ := json.Marshal(map[string]string{"filename": "new.bin"})
	req := withVars(httptest.NewRequest(http.MethodPatch, "/api/files/5", bytes.NewReader(body)), map[string]string{"id": "5"})
	rec := httptest.NewRecorder()
	s.handleRenameFile(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	records := s.Store.LoadHistory(s.Cfg.HistoryFile)
	require.Equal(t, "new.bin", records[0].Filename)
}

func TestHandleRenameFileMissingIDIs404(t *testing.T) {
	s := newTestState(t)
	body, _ := json.Marshal(map[string]string{"filename": "new.bin"})
	req := withVars(httptest.NewRequest(http.MethodPatch, "/api/files/999", bytes.NewReader(body)), map[string]string{"id": "999"})
	rec := httptest.NewRecorder()
	s.handleRenameFile(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleDeleteFileWithoutChannelDeletion(t *testing.T) {
	s := newTestState(t)
	require.NoError(t, s.Store.SaveHistory(s.Cfg.HistoryFile, []state.FileRecord{{ID: 1}, {ID: 2}}))

	req := withVars(httptest.NewRequest(http.MethodDelete, "/api/files/1", nil), map[string]string{"id": "1"})
	rec := httptest.NewRecorder()
	s.handleDeleteFile(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	records := s.Store.LoadHistory(s.Cfg.HistoryFile)
	require.Len(t, records, 1)
	require.Equal(t, int64(2), records[0].ID)
}

func TestHandleMoveFileToRootClearsFolder(t *testing.T) {
	s := newTestState(t)
	name := "docs"
	require.NoError(t, s.Store.SaveHistory(s.Cfg.HistoryFile, []state.FileRecord{
		{ID: 1, FolderID: json.RawMessage(`"7"`), FolderName: &name},
	}))

	req := withVars(httptest.NewRequest(http.MethodPost, "/api/files/1/move", bytes.NewReader([]byte(`{}`))), map[string]string{"id": "1"})
	rec := httptest.NewRecorder()
	s.handleMoveFile(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	records := s.Store.LoadHistory(s.Cfg.HistoryFile)
	require.Empty(t, normalizeFolderID(records[0].FolderID))
	require.Nil(t, records[0].FolderName)
}

func TestHandleMoveFileUnknownFolderIsBadRequest(t *testing.T) {
	s := newTestState(t)
	require.NoError(t, s.Store.SaveHistory(s.Cfg.HistoryFile, []state.FileRecord{{ID: 1}}))

	body, _ := json.Marshal(map[string]any{"folder_id": "404"})
	req := withVars(httptest.NewRequest(http.MethodPost, "/api/files/1/move", bytes.NewReader(body)), map[string]string{"id": "1"})
	rec := httptest.NewRecorder()
	s.handleMoveFile(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}
