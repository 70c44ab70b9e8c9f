package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/ThanhGoodBoy/splitvault/internal/apierr"
	"github.com/ThanhGoodBoy/splitvault/internal/state"
)

// normalizeFolderID extracts a comparable string from a FileRecord's
// folder_id field, which may be a JSON string, a JSON number (legacy
// records), null, or absent.
func normalizeFolderID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString
	}
	var asNumber json.Number
	if err := json.Unmarshal(raw, &asNumber); err == nil {
		return asNumber.String()
	}
	return ""
}

func findFileIndex(records []state.FileRecord, id int64) int {
	for i, r := range records {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// handleListFiles returns the file history, optionally filtered by
// folder_id. Without a folder_id query every record is returned; an empty
// folder_id query matches root-level files (those with no folder_id set).
func (s *State) handleListFiles(w http.ResponseWriter, r *http.Request) {
	records := s.Store.LoadHistory(s.Cfg.HistoryFile)

	if q, ok := r.URL.Query()["folder_id"]; ok {
		want := strings.TrimSpace(q[0])
		filtered := make([]state.FileRecord, 0, len(records))
		for _, rec := range records {
			if normalizeFolderID(rec.FolderID) == want {
				filtered = append(filtered, rec)
			}
		}
		records = filtered
	}

	writeJSON(w, http.StatusOK, map[string]any{"files": records})
}

func parseFileID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	idStr := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		badRequest(w, "invalid file id %q", idStr)
		return 0, false
	}
	return id, true
}

// handleDeleteFile removes a file record. When ?delete_channel=true the
// backing Discord channel (and all its parts) is deleted too.
func (s *State) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	id, ok := parseFileID(w, r)
	if !ok {
		return
	}

	records := s.Store.LoadHistory(s.Cfg.HistoryFile)
	idx := findFileIndex(records, id)
	if idx == -1 {
		writeError(w, apierr.NotFound("file %d not found", id))
		return
	}

	deleteChannel := r.URL.Query().Get("delete_channel") == "true"
	if deleteChannel && records[idx].ChannelID != "" {
		if err := s.Discord.DeleteChannel(records[idx].ChannelID); err != nil {
			writeError(w, err)
			return
		}
	}

	records = append(records[:idx], records[idx+1:]...)
	if err := s.Store.SaveHistory(s.Cfg.HistoryFile, records); err != nil {
		writeError(w, apierr.Internal(err, "httpapi: save history"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type renameFileRequest struct {
	Filename string `json:"filename"`
}

// handleRenameFile updates a record's display filename only — the
// backend channel/attachment names are left untouched, matching
// original_source/api.rs's rename handler.
func (s *State) handleRenameFile(w http.ResponseWriter, r *http.Request) {
	id, ok := parseFileID(w, r)
	if !ok {
		return
	}

	var req renameFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Filename) == "" {
		badRequest(w, "filename is required")
		return
	}

	records := s.Store.LoadHistory(s.Cfg.HistoryFile)
	idx := findFileIndex(records, id)
	if idx == -1 {
		writeError(w, apierr.NotFound("file %d not found", id))
		return
	}

	records[idx].Filename = req.Filename
	if err := s.Store.SaveHistory(s.Cfg.HistoryFile, records); err != nil {
		writeError(w, apierr.Internal(err, "httpapi: save history"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "file": records[idx]})
}

type moveFileRequest struct {
	FolderID json.RawMessage `json:"folder_id"`
}

// handleMoveFile reassigns a file to a folder (or to the root, when
// folder_id is null/absent/empty) and reparents its Discord channel to
// match.
func (s *State) handleMoveFile(w http.ResponseWriter, r *http.Request) {
	id, ok := parseFileID(w, r)
	if !ok {
		return
	}

	var req moveFileRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	wantFolderID := normalizeFolderID(req.FolderID)

	records := s.Store.LoadHistory(s.Cfg.HistoryFile)
	idx := findFileIndex(records, id)
	if idx == -1 {
		writeError(w, apierr.NotFound("file %d not found", id))
		return
	}

	var containerID string
	var folderName *string
	if wantFolderID != "" {
		folders := s.Store.LoadFolders(s.Cfg.FoldersFile)
		found := false
		for _, f := range folders {
			if strconv.FormatInt(f.ID, 10) == wantFolderID {
				containerID = strconv.FormatInt(f.ContainerID, 10)
				name := f.Name
				folderName = &name
				found = true
				break
			}
		}
		if !found {
			badRequest(w, "folder %s not found", wantFolderID)
			return
		}
		encoded, _ := json.Marshal(wantFolderID)
		records[idx].FolderID = json.RawMessage(encoded)
	} else {
		records[idx].FolderID = nil
	}
	records[idx].FolderName = folderName

	if records[idx].ChannelID != "" {
		if err := s.Discord.MoveChannel(records[idx].ChannelID, containerID); err != nil {
			writeError(w, err)
			return
		}
	}

	if err := s.Store.SaveHistory(s.Cfg.HistoryFile, records); err != nil {
		writeError(w, apierr.Internal(err, "httpapi: save history"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "file": records[idx]})
}
