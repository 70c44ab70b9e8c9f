// Package config loads splitvault's two configuration surfaces: bot.env
// (backend credentials) and config.json (tunables), following the
// teacher's env-loading idiom (godotenv, a plain struct, fatal on missing
// required keys) generalized to a second backend.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// Env holds the backend credentials loaded from bot.env / the process
// environment.
type Env struct {
	DiscordToken   string
	DiscordGuildID string
	TelegramToken  string
	TelegramChatID string
}

// TelegramEnabled reports whether Backend B is configured.
func (e *Env) TelegramEnabled() bool {
	return e.TelegramToken != "" && e.TelegramChatID != ""
}

// LoadEnv loads bot.env from baseDir (falling back to the process
// environment if the file is absent) and validates required keys.
func LoadEnv(baseDir string) (*Env, error) {
	envPath := filepath.Join(baseDir, "bot.env")
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			return nil, fmt.Errorf("config: loading %s: %w", envPath, err)
		}
	} else {
		// No bot.env — fall back to whatever is already in the process
		// environment, same tolerance as the teacher's main.go.
	}

	token := os.Getenv("DISCORD_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("config: DISCORD_TOKEN not set")
	}
	guildID := os.Getenv("DISCORD_GUILD_ID")
	if guildID == "" {
		return nil, fmt.Errorf("config: DISCORD_GUILD_ID not set")
	}

	return &Env{
		DiscordToken:   token,
		DiscordGuildID: guildID,
		TelegramToken:  os.Getenv("TELEGRAM_TOKEN"),
		TelegramChatID: os.Getenv("TELEGRAM_CHAT_ID"),
	}, nil
}
