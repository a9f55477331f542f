// Package initialization wires configuration, storage, tools and the agent
// together for the command line entry points.
package initialization

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"

	"agentloop/internal"
	"agentloop/internal/ai"
	"agentloop/internal/ai/tools"
	"agentloop/internal/config"
	"agentloop/internal/logger"
	"agentloop/internal/store"
)

// App is a fully wired agent together with the resources it owns.
type App struct {
	Config *config.Config
	Store  *store.DB
	Agent  *ai.Agent
}

// LoadConfig reads .env (optional) and the TOML configuration. An explicit
// path overrides CONFIG_PATH.
func LoadConfig(path string) (*config.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	if path == "" {
		path = config.GetConfigPath(internal.DEFAULT_CONFIG_PATH)
	}
	logger.Infof("Loading configuration from %s", path)
	return config.LoadConfig(path)
}

// Initialize builds the App described by cfg. The caller must Close it.
// Without needsLLM a missing API key is tolerated and the agent fails only
// when asked to complete.
func Initialize(ctx context.Context, cfg *config.Config, needsLLM bool) (*App, error) {
	var client ai.ChatClient
	openaiClient, err := ai.NewClientFromEnv()
	switch {
	case err == nil:
		client = openaiClient
	case needsLLM:
		return nil, err
	default:
		client = ai.OfflineClient{Err: err}
	}

	if err := logger.Setup(cfg.DataDir); err != nil {
		return nil, err
	}
	logger.SetTranscriptDir(cfg.LogsDir)

	storePath := cfg.Store.Path
	if storePath == "" {
		storePath = internal.DEFAULT_STORE_PATH
	}
	db, err := store.Open(ctx, storePath)
	if err != nil {
		return nil, err
	}
	logger.Successf("Opened store at %s", storePath)

	registry, err := tools.NewDefaultRegistry(tools.Options{
		Notes:            db,
		SearchBaseURL:    cfg.Search.BaseURL,
		SearchMaxResults: cfg.Search.MaxResults,
		CacheSize:        cfg.Cache.Size,
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	agent := ai.NewAgent(client, registry, ai.ConfigFromFile(cfg),
		ai.WithPersister(ai.NewStorePersister(db)),
		ai.WithNotes(db),
	)

	return &App{Config: cfg, Store: db, Agent: agent}, nil
}

// Close releases the store and flushes every log file.
func (a *App) Close() {
	if err := a.Store.Close(); err != nil {
		logger.Errorf("Error closing store: %v", err)
	}
	logger.CloseAllChatLogs()
	logger.CloseLogFile()
}

// CallerName identifies the local user for note ownership.
func CallerName() string {
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	return "local"
}
