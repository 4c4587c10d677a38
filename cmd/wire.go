package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/bnema/nexus-cli/internal/adapters/completion/openai"
	boltkv "github.com/bnema/nexus-cli/internal/adapters/kv/bolt"
	sqlitekv "github.com/bnema/nexus-cli/internal/adapters/kv/sqlite"
	tomlkv "github.com/bnema/nexus-cli/internal/adapters/kv/toml"
	"github.com/bnema/nexus-cli/internal/adapters/render/transcript"
	chainstore "github.com/bnema/nexus-cli/internal/adapters/secrets/chain"
	"github.com/bnema/nexus-cli/internal/adapters/tui/chat"
	"github.com/bnema/nexus-cli/internal/application"
	"github.com/bnema/nexus-cli/internal/config"
	"github.com/bnema/nexus-cli/internal/domain"
	"github.com/bnema/nexus-cli/internal/logging"
	"github.com/bnema/nexus-cli/internal/ports"
	"github.com/bnema/nexus-cli/internal/version"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type app struct {
	config             config.Config
	logger             *zap.Logger
	secretStore        ports.SecretStore
	kv                 ports.KVStore
	history            *application.ConversationStore
	session            *application.Session
	model              string
	transcriptRenderer func([]domain.Turn, transcript.RenderOptions) (string, error)
	runChat            func(context.Context, chat.Session, chat.Options) error

	startOnce sync.Once
}

func wireApp() (*app, error) {
	if err := config.LoadDotEnv(".env"); err != nil {
		return nil, err
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}

	cfg, err := config.Load(viper.New(), homeDir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(logging.Config{Path: cfg.Log.Path, Level: cfg.Log.Level})
	if err != nil {
		return nil, fmt.Errorf("wire logger: %w", err)
	}

	secretStore, err := chainstore.New(cfg.Secrets.Backend, cfg.Secrets.Dir)
	if err != nil {
		return nil, fmt.Errorf("wire secret store: %w", err)
	}

	kv, err := openHistoryStore(cfg, filepath.Join(homeDir, config.DirName))
	if err != nil {
		return nil, fmt.Errorf("wire history store: %w", err)
	}

	client := openai.NewClient(openai.Config{
		Endpoint:         cfg.Endpoint,
		Model:            cfg.Model,
		ReasoningEffort:  cfg.Reasoning.Effort,
		ReasoningSummary: cfg.Reasoning.Summary,
		UserAgent:        "nexus/" + version.Version,
		HTTPClient:       http.DefaultClient,
	})

	history := application.NewConversationStore(kv, application.HistoryKey, logger.Named("history"))
	session := application.NewSession(history, secretStore, client, ports.SystemClock{}, application.SessionConfig{
		Instructions:  cfg.Instructions,
		CredentialKey: cfg.Secrets.Key,
		Logger:        logger.Named("session"),
	})

	logger.Debug("app wired",
		zap.String("model", client.Model()),
		zap.String("history_backend", cfg.History.Backend),
		zap.String("secrets_backend", cfg.Secrets.Backend),
	)

	return &app{
		config:             cfg,
		logger:             logger,
		secretStore:        secretStore,
		kv:                 kv,
		history:            history,
		session:            session,
		model:              client.Model(),
		transcriptRenderer: transcript.Render,
		runChat:            chat.Run,
	}, nil
}

func openHistoryStore(cfg config.Config, baseDir string) (ports.KVStore, error) {
	path := cfg.HistoryFile(baseDir)

	switch cfg.History.Backend {
	case config.HistoryBackendSQLite:
		return sqlitekv.NewStore(path)
	case config.HistoryBackendTOML:
		return tomlkv.NewStore(path)
	case config.HistoryBackendBolt:
		return boltkv.NewStore(path)
	default:
		return nil, fmt.Errorf("unsupported history backend %q", cfg.History.Backend)
	}
}

// start restores the credential and the conversation once per process.
func (a *app) start(ctx context.Context) {
	a.startOnce.Do(func() {
		a.session.Start(ctx)
	})
}

// close flushes pending history writes before releasing the stores.
func (a *app) close() error {
	err := errors.Join(a.session.Close(), a.kv.Close())
	_ = a.logger.Sync()
	return err
}
