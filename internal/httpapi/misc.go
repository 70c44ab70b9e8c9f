package httpapi

import (
	"bufio"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/ThanhGoodBoy/splitvault/internal/apierr"
)

func (s *State) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSearchFiles does a case-insensitive substring match over the file
// history's filenames.
func (s *State) handleSearchFiles(w http.ResponseWriter, r *http.Request) {
	query := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q")))
	if query == "" {
		writeJSON(w, http.StatusOK, map[string]any{"files": []any{}})
		return
	}

	records := s.Store.LoadHistory(s.Cfg.HistoryFile)
	matched := make([]any, 0, len(records))
	for _, rec := range records {
		if strings.Contains(strings.ToLower(rec.Filename), query) {
			matched = append(matched, rec)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": matched})
}

func (s *State) handleStats(w http.ResponseWriter, r *http.Request) {
	history := s.Store.LoadHistory(s.Cfg.HistoryFile)
	folders := s.Store.LoadFolders(s.Cfg.FoldersFile)

	var totalMB float64
	for _, rec := range history {
		totalMB += rec.SizeMB
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"total_files":       len(history),
		"total_folders":     len(folders),
		"total_mb":          math.Round(totalMB*100) / 100,
		"total_size_human":  humanize.Bytes(uint64(totalMB * 1024 * 1024)),
	})
}

// handleGetSettings returns config.json's raw contents alongside bot.env
// parsed into a flat key/value map, mirroring the teacher-adjacent
// passthrough original_source/api.rs::get_settings uses.
func (s *State) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	cfgData, err := os.ReadFile(filepath.Join(s.BaseDir, "config.json"))
	var cfgJSON json.RawMessage
	if err == nil {
		cfgJSON = cfgData
	} else {
		cfgJSON = json.RawMessage("{}")
	}

	env := parseEnvFile(filepath.Join(s.BaseDir, "bot.env"))

	writeJSON(w, http.StatusOK, map[string]any{"config": cfgJSON, "env": env})
}

type saveSettingsRequest struct {
	Config json.RawMessage  `json:"config"`
	Env    map[string]string `json:"env"`
}

// handleSaveSettings writes config.json and/or bot.env verbatim from the
// request body. Neither file is re-validated here — config.LoadConfig
// clamps invalid values to defaults the next time the process starts,
// matching the "restart to apply" note this endpoint returns.
func (s *State) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	var req saveSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid settings payload: %v", err)
		return
	}

	var errs []string
	if len(req.Config) > 0 {
		pretty, err := prettyJSON(req.Config)
		if err != nil {
			errs = append(errs, fmt.Sprintf("config.json: %v", err))
		} else if err := os.WriteFile(filepath.Join(s.BaseDir, "config.json"), pretty, 0o644); err != nil {
			errs = append(errs, fmt.Sprintf("config.json: %v", err))
		}
	}
	if req.Env != nil {
		var b strings.Builder
		for k, v := range req.Env {
			fmt.Fprintf(&b, "%s=%s\n", k, v)
		}
		if err := os.WriteFile(filepath.Join(s.BaseDir, "bot.env"), []byte(b.String()), 0o600); err != nil {
			errs = append(errs, fmt.Sprintf("bot.env: %v", err))
		}
	}

	if len(errs) > 0 {
		writeError(w, apierr.Internal(nil, "%s", strings.Join(errs, "; ")))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Saved. Restart the process to apply.",
	})
}

func prettyJSON(raw json.RawMessage) ([]byte, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return json.MarshalIndent(v, "", "  ")
}

func parseEnvFile(path string) map[string]string {
	env := map[string]string{}
	f, err := os.Open(path)
	if err != nil {
		return env
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		env[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return env
}
