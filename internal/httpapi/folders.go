package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/ThanhGoodBoy/splitvault/internal/apierr"
	"github.com/ThanhGoodBoy/splitvault/internal/state"
)

func (s *State) handleListFolders(w http.ResponseWriter, r *http.Request) {
	folders := s.Store.LoadFolders(s.Cfg.FoldersFile)
	writeJSON(w, http.StatusOK, map[string]any{"folders": folders})
}

type createFolderRequest struct {
	Name string `json:"name"`
}

func (s *State) handleCreateFolder(w http.ResponseWriter, r *http.Request) {
	var req createFolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		badRequest(w, "folder name is required")
		return
	}

	ch, err := s.Discord.EnsureContainer(req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	containerID, err := strconv.ParseInt(ch.ID, 10, 64)
	if err != nil {
		writeError(w, apierr.Internal(err, "httpapi: parse container id"))
		return
	}

	folders := s.Store.LoadFolders(s.Cfg.FoldersFile)
	folder := state.Folder{
		ID:          time.Now().UnixMilli(),
		Name:        req.Name,
		ContainerID: containerID,
		CreatedAt:   time.Now().UTC().Format("01/02/2006 15:04"),
	}
	folders = append([]state.Folder{folder}, folders...)
	if err := s.Store.SaveFolders(s.Cfg.FoldersFile, folders); err != nil {
		writeError(w, apierr.Internal(err, "httpapi: save folders"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "folder": folder})
}

func (s *State) handleDeleteFolder(w http.ResponseWriter, r *http.Request) {
	idStr := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		badRequest(w, "invalid folder id %q", idStr)
		return
	}

	folders := s.Store.LoadFolders(s.Cfg.FoldersFile)
	idx := -1
	for i, f := range folders {
		if f.ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		writeError(w, apierr.NotFound("folder %d not found", id))
		return
	}

	if delErr := s.Discord.DeleteContainer(strconv.FormatInt(folders[idx].ContainerID, 10)); delErr != nil {
		writeError(w, delErr)
		return
	}

	folders = append(folders[:idx], folders[idx+1:]...)
	if err := s.Store.SaveFolders(s.Cfg.FoldersFile, folders); err != nil {
		writeError(w, apierr.Internal(err, "httpapi: save folders"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
