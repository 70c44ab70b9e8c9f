// Package httpapi implements the external HTTP surface: folder CRUD, file
// listing/rename/move/delete, streamed merge/preview/thumbnail, the
// upload lifecycle, search/stats, and settings passthrough. Routed with
// gorilla/mux the way the teacher's internal/server/server.go builds its
// router.
package httpapi

import (
	"net/http"
	"time"

	"github.com/ThanhGoodBoy/splitvault/internal/config"
	"github.com/ThanhGoodBoy/splitvault/internal/discordbackend"
	"github.com/ThanhGoodBoy/splitvault/internal/reassemble"
	"github.com/ThanhGoodBoy/splitvault/internal/sender"
	"github.com/ThanhGoodBoy/splitvault/internal/session"
	"github.com/ThanhGoodBoy/splitvault/internal/state"
	"github.com/ThanhGoodBoy/splitvault/internal/telegrambackend"
)

// State bundles every dependency an HTTP handler needs. A single instance
// is constructed in main and closed over by every route.
type State struct {
	Cfg *config.Config
	Env *config.Env

	Store    *state.Store
	Sessions *session.Manager
	Senders  *sender.Registry

	Discord  *discordbackend.Backend
	Telegram *telegrambackend.Backend

	BaseDir      string
	ThumbnailDir string

	HTTPClient *http.Client
}

func (s *State) senderDeps() sender.Deps {
	d := sender.Deps{
		Discord:         s.Discord,
		TelegramEnabled: s.Env.TelegramEnabled(),
	}
	if d.TelegramEnabled {
		d.Telegram = s.Telegram
	}
	return d
}

func (s *State) senderConfig() sender.Config {
	return sender.Config{
		ZipCompressLevel:       s.Cfg.ZipCompressLevel,
		DiscordSafeRatio:       s.Cfg.DiscordSafeRatio,
		DiscordParallelSends:   s.Cfg.DiscordParallelSends,
		TgParallelSends:        s.Cfg.TGParallelSends,
		DiscordSendRetries:     s.Cfg.DiscordSendRetries,
		DiscordRetryBaseDelayS: s.Cfg.DiscordRetryBaseS,
		TgFileLimitBytes:       s.Cfg.TGFileLimitBytes,
	}
}

func (s *State) reassembleDeps() reassemble.Deps {
	d := reassemble.Deps{Discord: s.Discord}
	if s.Env.TelegramEnabled() {
		d.Telegram = s.Telegram
	}
	return d
}

func (s *State) reassembleConfig() reassemble.Config {
	return reassemble.Config{
		ReadBufferBytes:    s.Cfg.ReadBufferBytes,
		PartDelayMs:        s.Cfg.PartDelayMS,
		DownloadRetry:      s.Cfg.DownloadRetry,
		DownloadRetryBaseS: s.Cfg.DownloadRetryBaseS,
	}
}

func (s *State) httpTimeout() time.Duration {
	return time.Duration(s.Cfg.HTTPTimeoutS) * time.Second
}
