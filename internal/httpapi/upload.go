package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/ThanhGoodBoy/splitvault/internal/apierr"
	"github.com/ThanhGoodBoy/splitvault/internal/sender"
	"github.com/ThanhGoodBoy/splitvault/internal/state"
)

type initUploadRequest struct {
	Filename    string `json:"filename"`
	FileSize    int64  `json:"file_size"`
	TotalChunks int    `json:"total_chunks"`
	FolderID    string `json:"folder_id"`
	Message     string `json:"message"`
	SessionID   string `json:"session_id"`
}

// resolveContainer looks up a folder's Discord container id by its id
// string, returning "" (guild root) when folderID is empty.
func (s *State) resolveContainer(folderID string) (containerID string, folderName *string, err error) {
	if folderID == "" {
		return "", nil, nil
	}
	folders := s.Store.LoadFolders(s.Cfg.FoldersFile)
	for _, f := range folders {
		if strconv.FormatInt(f.ID, 10) == folderID {
			name := f.Name
			return strconv.FormatInt(f.ContainerID, 10), &name, nil
		}
	}
	return "", nil, apierr.BadRequest("folder %s not found", folderID)
}

// handleInitUpload creates the per-file Discord channel, a session
// record, and spawns the streaming sender, all before any chunk data has
// arrived. If the client supplies a prior session_id, it is reused when a
// live sender entry for it still exists and its status is "uploading";
// otherwise the stale row is purged and a fresh session is minted.
func (s *State) handleInitUpload(w http.ResponseWriter, r *http.Request) {
	var req initUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Filename == "" || req.TotalChunks <= 0 {
		badRequest(w, "filename and total_chunks are required")
		return
	}

	if req.SessionID != "" {
		received, ok := s.Sessions.Resume(req.SessionID, func(id string) bool {
			_, live := s.Senders.Get(id)
			return live
		})
		if ok {
			writeJSON(w, http.StatusOK, map[string]any{
				"session_id":      req.SessionID,
				"received_chunks": received,
				"chunk_size":      s.Cfg.ClientChunkBytes,
			})
			return
		}
	}

	containerID, folderName, err := s.resolveContainer(req.FolderID)
	if err != nil {
		writeError(w, err)
		return
	}

	ch, err := s.Discord.EnsureChannel(req.Filename, containerID)
	if err != nil {
		writeError(w, err)
		return
	}

	sessionID := s.Sessions.Create(req.Filename, req.FileSize, req.TotalChunks, req.FolderID, req.Message)
	_ = s.Sessions.Update(sessionID, func(sess *state.UploadSession) {
		channelID := ch.ID
		channelName := ch.Name
		sess.ChannelID = &channelID
		sess.ChannelName = &channelName
		sess.FolderName = folderName
	})

	entry := sender.Spawn(context.Background(), sessionID, req.Filename, req.FileSize,
		ch.ID, ch.Name, req.Message, s.senderConfig(), s.senderDeps())
	s.Senders.Store(sessionID, entry)

	writeJSON(w, http.StatusOK, map[string]any{
		"session_id":      sessionID,
		"channel_id":      ch.ID,
		"channel_name":    ch.Name,
		"received_chunks": []int{},
		"chunk_size":      s.Cfg.ClientChunkBytes,
	})
}

// handleUploadChunk pushes one chunk's raw bytes into the live sender
// entry for session id, keyed by the :idx route segment.
func (s *State) handleUploadChunk(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	sessionID := vars["sid"]
	idx, err := strconv.Atoi(vars["idx"])
	if err != nil {
		badRequest(w, "invalid chunk index %q", vars["idx"])
		return
	}

	entry, ok := s.Senders.Get(sessionID)
	if !ok {
		writeError(w, apierr.NotFound("upload session %s has no active sender", sessionID))
		return
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, apierr.BadRequest("reading chunk body: %v", err))
		return
	}

	select {
	case entry.ChunkTx <- sender.Chunk{Index: idx, Data: data}:
	case <-r.Context().Done():
		writeError(w, apierr.Internal(r.Context().Err(), "httpapi: chunk upload cancelled"))
		return
	}

	if err := s.Sessions.MarkChunkReceived(sessionID, idx); err != nil {
		writeError(w, apierr.Internal(err, "httpapi: mark chunk received"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleGetUploadSession reports a session's progress and whether it is
// still resumable (a live sender entry is registered for it).
func (s *State) handleGetUploadSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sid"]
	sess, ok := s.Sessions.Get(sessionID)
	if !ok {
		writeError(w, apierr.NotFound("upload session %s not found", sessionID))
		return
	}
	_, resumable := s.Senders.Get(sessionID)

	writeJSON(w, http.StatusOK, map[string]any{
		"session":   sess,
		"resumable": resumable,
	})
}

// handleCancelUpload aborts a live sender (if any) and removes the
// session record.
func (s *State) handleCancelUpload(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sid"]

	if entry, ok := s.Senders.Get(sessionID); ok {
		entry.Abort()
		s.Senders.Delete(sessionID)
	}
	if err := s.Sessions.Delete(sessionID); err != nil {
		writeError(w, apierr.Internal(err, "httpapi: delete session"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleCompleteUpload is the one place a race would corrupt an upload:
// it must confirm every chunk has actually arrived before closing the
// sender's input channel, since closing early would finalize the file on
// a truncated buffer.
func (s *State) handleCompleteUpload(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sid"]

	sess, ok := s.Sessions.Get(sessionID)
	if !ok {
		writeError(w, apierr.NotFound("upload session %s not found", sessionID))
		return
	}
	entry, ok := s.Senders.Get(sessionID)
	if !ok {
		writeError(w, apierr.NotFound("upload session %s has no active sender", sessionID))
		return
	}
	if len(sess.ReceivedChunks) != sess.TotalChunks {
		badRequest(w, "received %d/%d chunks, cannot complete yet", len(sess.ReceivedChunks), sess.TotalChunks)
		return
	}

	close(entry.ChunkTx)

	var result sender.Result
	select {
	case result = <-entry.ResultCh:
	case <-time.After(s.httpTimeout()):
		writeError(w, apierr.Internal(nil, "httpapi: timed out waiting for upload to finish sending"))
		return
	}
	s.Senders.Delete(sessionID)

	if result.Err != nil {
		writeError(w, result.Err)
		return
	}

	record := result.Record
	record.ID = time.Now().UnixMilli()
	if sess.FolderID != "" {
		encoded, _ := json.Marshal(sess.FolderID)
		record.FolderID = json.RawMessage(encoded)
		record.FolderName = sess.FolderName
	}

	records := s.Store.LoadHistory(s.Cfg.HistoryFile)
	records = append([]state.FileRecord{record}, records...)
	if err := s.Store.SaveHistory(s.Cfg.HistoryFile, records); err != nil {
		writeError(w, apierr.Internal(err, "httpapi: save history"))
		return
	}
	if err := s.Sessions.Delete(sessionID); err != nil {
		writeError(w, apierr.Internal(err, "httpapi: delete session"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "file": record})
}
