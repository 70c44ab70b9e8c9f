package config

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
)

// Config is the validated, clamped form of config.json. Every numeric
// field except MaxUploadRAMBytes and Port has been range-checked
// (LargeFileThresholdMB only against its minimum of 50); those two are
// taken from config.json unchecked.
type Config struct {
	// Upload
	ClientChunkBytes     int64
	ParallelChunks       int
	DiscordSafeRatio     float64
	ZipCompressLevel     int
	DiscordParallelSends int
	TGParallelSends      int
	DiscordSendRetries   int
	DiscordRetryBaseS    int

	// Download
	HTTPTimeoutS         int
	DownloadRetry        int
	DownloadRetryBaseS   int
	PartDelayMS          int
	ReadBufferBytes      int
	LargeFileThresholdMB int64

	// RAM
	MaxUploadRAMBytes int64
	SessionTTLS       int64
	GCIntervalS       int64

	// Server
	Host            string
	Port            int
	LogLevel        string
	KeepAliveS      int
	MaxConcurrency  int

	// Data files
	HistoryFile  string
	FoldersFile  string
	SessionsFile string

	// Telegram
	TGFileLimitBytes int64
}

// rawConfig mirrors config.json's nested shape with every field optional,
// exactly like original_source/config.rs's RawConfig.
type rawConfig struct {
	Upload struct {
		ClientChunkMB           *int64   `json:"client_chunk_mb"`
		ParallelChunks          *int     `json:"parallel_chunks"`
		DiscordSafeRatio        *float64 `json:"discord_safe_ratio"`
		ZipCompressLevel        *int     `json:"zip_compress_level"`
		DiscordParallelSends    *int     `json:"discord_parallel_sends"`
		TGParallelSends         *int     `json:"tg_parallel_sends"`
		DiscordSendRetries      *int     `json:"discord_send_retries"`
		DiscordRetryBaseDelayS  *int     `json:"discord_retry_base_delay_s"`
	} `json:"upload"`
	Download struct {
		HTTPTimeoutS         *int   `json:"http_timeout_s"`
		RetryCount           *int   `json:"retry_count"`
		RetryBaseDelayS      *int   `json:"retry_base_delay_s"`
		PartDelayMS          *int   `json:"part_delay_ms"`
		StreamBufferKB       *int   `json:"stream_buffer_kb"`
		LargeFileThresholdMB *int64 `json:"large_file_threshold_mb"`
	} `json:"download"`
	RAM struct {
		MaxTotalUploadMB   *int64 `json:"max_total_upload_mb"`
		SessionTTLMinutes  *int64 `json:"session_ttl_minutes"`
		GCIntervalMinutes  *int64 `json:"gc_interval_minutes"`
	} `json:"ram"`
	Server struct {
		Host           *string `json:"host"`
		Port           *int    `json:"port"`
		LogLevel       *string `json:"log_level"`
		KeepAliveS     *int    `json:"keep_alive_s"`
		MaxConcurrency *int    `json:"max_concurrency"`
	} `json:"server"`
	Data struct {
		HistoryFile  *string `json:"history_file"`
		FoldersFile  *string `json:"folders_file"`
		SessionsFile *string `json:"sessions_file"`
	} `json:"data"`
	Telegram struct {
		FileLimitMB *int64 `json:"file_limit_mb"`
	} `json:"telegram"`
}

// LoadConfig reads baseDir/config.json, strips "_"-prefixed comment keys,
// clamps the range-checked fields (see Config), and returns a ready-to-use
// Config. A missing file or parse error logs a warning and falls back to
// defaults entirely — it never fails the process.
func LoadConfig(baseDir string) *Config {
	path := filepath.Join(baseDir, "config.json")

	var raw rawConfig
	data, err := os.ReadFile(path)
	switch {
	case err != nil:
		log.Printf("[CONFIG] config.json not found at %s, using defaults", path)
	default:
		var generic map[string]any
		if jerr := json.Unmarshal(data, &generic); jerr != nil {
			log.Printf("[CONFIG] config.json parse error: %v, using defaults", jerr)
			break
		}
		stripCommentKeys(generic)
		stripped, _ := json.Marshal(generic)
		if jerr := json.Unmarshal(stripped, &raw); jerr != nil {
			log.Printf("[CONFIG] config.json shape error: %v, using defaults", jerr)
		}
	}

	return fromRaw(&raw)
}

func stripCommentKeys(v any) {
	m, ok := v.(map[string]any)
	if !ok {
		return
	}
	for k, child := range m {
		if len(k) > 0 && k[0] == '_' {
			delete(m, k)
			continue
		}
		stripCommentKeys(child)
	}
}

func clampInt(name string, val *int, def, lo, hi int) int {
	v := def
	if val != nil {
		v = *val
	}
	if v < lo || v > hi {
		log.Printf("[CONFIG] %s=%d out of range [%d,%d], using default %d", name, v, lo, hi, def)
		return def
	}
	return v
}

func clampInt64(name string, val *int64, def, lo, hi int64) int64 {
	v := def
	if val != nil {
		v = *val
	}
	if v < lo || v > hi {
		log.Printf("[CONFIG] %s=%d out of range [%d,%d], using default %d", name, v, lo, hi, def)
		return def
	}
	return v
}

func clampFloat(name string, val *float64, def, lo, hi float64) float64 {
	v := def
	if val != nil {
		v = *val
	}
	if v < lo || v > hi {
		log.Printf("[CONFIG] %s=%.2f out of range [%.2f,%.2f], using default %.2f", name, v, lo, hi, def)
		return def
	}
	return v
}

func strOr(val *string, def string) string {
	if val != nil && *val != "" {
		return *val
	}
	return def
}

func fromRaw(r *rawConfig) *Config {
	u, d, m, s, dt, tg := &r.Upload, &r.Download, &r.RAM, &r.Server, &r.Data, &r.Telegram

	clientChunkMB := clampInt64("upload.client_chunk_mb", u.ClientChunkMB, 4, 1, 50)
	largeFileThresholdMB := int64(500)
	if d.LargeFileThresholdMB != nil {
		largeFileThresholdMB = *d.LargeFileThresholdMB
		if largeFileThresholdMB < 50 {
			log.Printf("[CONFIG] download.large_file_threshold_mb=%d below minimum 50, using default 500", largeFileThresholdMB)
			largeFileThresholdMB = 500
		}
	}

	logLevel := strOr(s.LogLevel, "info")
	switch logLevel {
	case "debug", "info", "warning", "error", "critical":
	default:
		log.Printf("[CONFIG] server.log_level=%q invalid, using default info", logLevel)
		logLevel = "info"
	}

	maxUploadMB := int64(512)
	if m.MaxTotalUploadMB != nil {
		maxUploadMB = *m.MaxTotalUploadMB
	}

	sessionTTLMin := clampInt64("ram.session_ttl_minutes", m.SessionTTLMinutes, 60, 5, 1440)
	gcIntervalMin := clampInt64("ram.gc_interval_minutes", m.GCIntervalMinutes, 10, 1, 120)

	streamBufferKB := clampInt("download.stream_buffer_kb", d.StreamBufferKB, 64, 8, 4096)

	tgFileLimitMB := clampInt64("telegram.file_limit_mb", tg.FileLimitMB, 50, 10, 4000)

	port := 8000
	if s.Port != nil {
		port = *s.Port
	}

	return &Config{
		ClientChunkBytes:     clientChunkMB * 1024 * 1024,
		ParallelChunks:       clampInt("upload.parallel_chunks", u.ParallelChunks, 4, 1, 16),
		DiscordSafeRatio:     clampFloat("upload.discord_safe_ratio", u.DiscordSafeRatio, 0.85, 0.5, 0.99),
		ZipCompressLevel:     clampInt("upload.zip_compress_level", u.ZipCompressLevel, 0, 0, 9),
		DiscordParallelSends: clampInt("upload.discord_parallel_sends", u.DiscordParallelSends, 3, 1, 5),
		TGParallelSends:      clampInt("upload.tg_parallel_sends", u.TGParallelSends, 3, 1, 5),
		DiscordSendRetries:   clampInt("upload.discord_send_retries", u.DiscordSendRetries, 3, 1, 10),
		DiscordRetryBaseS:    clampInt("upload.discord_retry_base_delay_s", u.DiscordRetryBaseDelayS, 2, 1, 30),

		HTTPTimeoutS:         clampInt("download.http_timeout_s", d.HTTPTimeoutS, 600, 30, 3600),
		DownloadRetry:        clampInt("download.retry_count", d.RetryCount, 3, 1, 10),
		DownloadRetryBaseS:   clampInt("download.retry_base_delay_s", d.RetryBaseDelayS, 2, 1, 30),
		PartDelayMS:          clampInt("download.part_delay_ms", d.PartDelayMS, 150, 0, 5000),
		ReadBufferBytes:      streamBufferKB * 1024,
		LargeFileThresholdMB: largeFileThresholdMB,

		MaxUploadRAMBytes: maxUploadMB * 1024 * 1024,
		SessionTTLS:       sessionTTLMin * 60,
		GCIntervalS:       gcIntervalMin * 60,

		Host:           strOr(s.Host, "0.0.0.0"),
		Port:           port,
		LogLevel:       logLevel,
		KeepAliveS:     clampInt("server.keep_alive_s", s.KeepAliveS, 600, 10, 3600),
		MaxConcurrency: clampInt("server.max_concurrency", s.MaxConcurrency, 5, 1, 100),

		HistoryFile:  strOr(dt.HistoryFile, "file_history.json"),
		FoldersFile:  strOr(dt.FoldersFile, "folders.json"),
		SessionsFile: strOr(dt.SessionsFile, "upload_sessions.json"),

		TGFileLimitBytes: tgFileLimitMB * 1024 * 1024,
	}
}
