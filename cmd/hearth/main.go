package main

import (
	"context"
	"log"
	"os"

	hearth "github.com/Desarso/hearth"
	"github.com/Desarso/hearth/audio"
	"github.com/Desarso/hearth/hass"
	"github.com/Desarso/hearth/memory"
	"github.com/Desarso/hearth/models/gemini"
	"github.com/Desarso/hearth/models/ollama"
	"github.com/Desarso/hearth/server"
	"github.com/Desarso/hearth/stores"
	"github.com/Desarso/hearth/tools"
)

func main() {
	cfg := hearth.LoadConfig()

	store, err := stores.NewStore(stores.NewStoreConfig(cfg.StoreType, cfg.StorePath))
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	mem := memory.NewSystem(store, memory.NewOllamaEmbedder(cfg.OllamaBaseURL, cfg.EmbeddingModel))

	home := hass.NewClient(cfg.HassURL, cfg.HassToken)
	if cfg.HassToken != "" {
		watcher := hass.NewStateWatcher(cfg.HassURL, cfg.HassToken)
		if err := watcher.Start(context.Background()); err != nil {
			log.Printf("State watcher unavailable, dashboard reads stay on REST: %v", err)
		} else {
			home.SetWatcher(watcher)
			defer watcher.Stop()
		}
	}

	var search tools.SearchFunc
	if cfg.SearchEnabled && os.Getenv("BRAVE_API_KEY") != "" {
		search = tools.Brave_Search
	}

	registry := tools.NewRegistry(home, mem, search, store, cfg.RequireSearchConfirm)

	local := &ollama.Ollama_Model{Model: cfg.OllamaModel, BaseURL: cfg.OllamaBaseURL}
	cloud := &gemini.Gemini_Model{Model: cfg.GeminiModel, APIKeyEnv: cfg.CloudKeyEnv}

	var transcriber hearth.Transcriber
	if cfg.WhisperURL != "" {
		transcriber = audio.NewWhisperClient(cfg.WhisperURL)
	}

	orchestrator, err := hearth.New_Orchestrator(cfg, local, cloud,
		registry, mem, transcriber, hearth.NewAuditLog(cfg.AuditLogPath))
	if err != nil {
		log.Fatalf("Failed to start orchestrator: %v", err)
	}

	srv := server.New(orchestrator, cfg.AllowedUserIDs, store, home)
	srv.SetReady(true)

	log.Printf("Hearth listening on %s", cfg.ListenAddr)
	if err := srv.Run(cfg.ListenAddr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
