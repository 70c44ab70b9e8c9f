package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ThanhGoodBoy/splitvault/internal/config"
	"github.com/ThanhGoodBoy/splitvault/internal/discordbackend"
	"github.com/ThanhGoodBoy/splitvault/internal/gc"
	"github.com/ThanhGoodBoy/splitvault/internal/httpapi"
	"github.com/ThanhGoodBoy/splitvault/internal/sender"
	"github.com/ThanhGoodBoy/splitvault/internal/session"
	"github.com/ThanhGoodBoy/splitvault/internal/state"
	"github.com/ThanhGoodBoy/splitvault/internal/telegrambackend"
)

func main() {
	baseDir := os.Getenv("SPLITVAULT_HOME")
	if baseDir == "" {
		baseDir = "."
	}

	env, err := config.LoadEnv(baseDir)
	if err != nil {
		log.Fatalf("[CRITICAL] Config load failed: %v", err)
	}
	cfg := config.LoadConfig(baseDir)

	httpTimeout := time.Duration(cfg.HTTPTimeoutS) * time.Second

	discord, err := discordbackend.New(env.DiscordToken, env.DiscordGuildID, httpTimeout)
	if err != nil {
		log.Fatalf("[CRITICAL] Discord backend init failed: %v", err)
	}
	if err := discord.Open(); err != nil {
		log.Fatalf("[CRITICAL] Discord gateway connect failed: %v", err)
	}
	defer discord.Close()

	var telegram *telegrambackend.Backend
	if env.TelegramEnabled() {
		telegram = telegrambackend.New(env.TelegramToken, env.TelegramChatID, httpTimeout)
	} else {
		log.Println("[CONFIG] Telegram not configured, Backend B disabled")
	}

	store := state.New(baseDir)
	sessions := session.NewManager(store, cfg.SessionsFile)

	apiState := &httpapi.State{
		Cfg:          cfg,
		Env:          env,
		Store:        store,
		Sessions:     sessions,
		Senders:      sender.NewRegistry(),
		Discord:      discord,
		Telegram:     telegram,
		BaseDir:      baseDir,
		ThumbnailDir: filepath.Join(baseDir, "thumbnails_cache"),
		HTTPClient:   &http.Client{Timeout: httpTimeout},
	}
	apiState.RegisterGatewayReconciliation()

	gcCtx, stopGC := context.WithCancel(context.Background())
	go gc.Run(gcCtx, sessions, time.Duration(cfg.GCIntervalS)*time.Second, time.Duration(cfg.SessionTTLS)*time.Second)

	staticDir := filepath.Join(baseDir, "web")
	router := apiState.NewRouter(staticDir)
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      router,
		ReadTimeout:  0,
		WriteTimeout: 0,
	}

	go func() {
		log.Printf("[SERVER] splitvault listening at http://%s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[CRITICAL] Server failed: %v", err)
		}
	}()

	log.Println("splitvault is fully operational.")

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM)
	<-sc

	log.Println("Shutting down gracefully...")
	stopGC()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[SERVER] shutdown error: %v", err)
	}
}
