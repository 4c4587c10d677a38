package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

const (
	DirName    = ".nexus"
	EnvPrefix  = "NEXUS"
	configName = "config"
	configType = "toml"
)

const (
	KeyModel            = "model"
	KeyEndpoint         = "endpoint"
	KeyInstructions     = "instructions"
	KeyInstructionsFile = "instructions_file"
	KeyReasoningEffort  = "reasoning.effort"
	KeyReasoningSummary = "reasoning.summary"
	KeyHistoryBackend   = "history.backend"
	KeyHistoryPath      = "history.path"
	KeySecretsBackend   = "secrets.backend"
	KeySecretsDir       = "secrets.dir"
	KeySecretsKey       = "secrets.key"
	KeyLogPath          = "log.path"
	KeyLogLevel         = "log.level"
)

const (
	HistoryBackendBolt   = "bolt"
	HistoryBackendSQLite = "sqlite"
	HistoryBackendTOML   = "toml"
)

const (
	DefaultModel            = "o4-mini"
	DefaultEndpoint         = "https://api.openai.com/v1/responses"
	DefaultReasoningEffort  = "medium"
	DefaultReasoningSummary = "auto"
	DefaultCredentialKey    = "nexus/openai_api_key"
	DefaultLogLevel         = "info"
)

const DefaultInstructions = `You are NEXUS, a personal high-performance intelligence system.
Act as a strategic partner across every domain the user brings up: technology, business, psychology, relationships and life planning.

Core directives:
1. Prioritize depth, synthesis and insight over surface-level explanations. Skip fluff.
2. When relevant, summarize reasoning steps, assumptions, alternatives and trade-offs concisely.
3. Merge insights from multiple fields instead of answering in silos.
4. When useful, answer in tiers: Quick Takeaway, Deep Dive, Beyond the Curtain.
5. If a question is underspecified, state the most useful interpretation and answer it.
`

var (
	historyBackends = []string{HistoryBackendBolt, HistoryBackendSQLite, HistoryBackendTOML}
	secretBackends  = []string{"chain", "pass", "file"}
)

type Config struct {
	Model            string          `toml:"model"`
	Endpoint         string          `toml:"endpoint"`
	Instructions     string          `toml:"instructions,multiline"`
	InstructionsFile string          `toml:"instructions_file,omitempty"`
	Reasoning        ReasoningConfig `toml:"reasoning"`
	History          HistoryConfig   `toml:"history"`
	Secrets          SecretsConfig   `toml:"secrets"`
	Log              LogConfig       `toml:"log"`
}

type ReasoningConfig struct {
	Effort  string `toml:"effort"`
	Summary string `toml:"summary"`
}

type HistoryConfig struct {
	Backend string `toml:"backend"`
	Path    string `toml:"path"`
}

type SecretsConfig struct {
	Backend string `toml:"backend"`
	Dir     string `toml:"dir"`
	Key     string `toml:"key"`
}

type LogConfig struct {
	Path  string `toml:"path"`
	Level string `toml:"level"`
}

// Load resolves the configuration from defaults, ~/.nexus/config.toml and
// NEXUS_* environment variables, in increasing precedence. A missing config
// file is not an error.
func Load(cfg *viper.Viper, homeDir string) (Config, error) {
	if cfg == nil {
		cfg = viper.New()
	}
	if homeDir == "" {
		return Config{}, errors.New("home directory is empty")
	}

	baseDir := filepath.Join(homeDir, DirName)

	cfg.SetConfigName(configName)
	cfg.SetConfigType(configType)
	cfg.AddConfigPath(baseDir)
	cfg.SetEnvPrefix(EnvPrefix)
	cfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	cfg.AutomaticEnv()
	setDefaults(cfg, baseDir)

	if err := cfg.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	out := Config{
		Model:            strings.TrimSpace(cfg.GetString(KeyModel)),
		Endpoint:         strings.TrimSpace(cfg.GetString(KeyEndpoint)),
		Instructions:     cfg.GetString(KeyInstructions),
		InstructionsFile: expandHome(cfg.GetString(KeyInstructionsFile), homeDir),
		Reasoning: ReasoningConfig{
			Effort:  strings.TrimSpace(cfg.GetString(KeyReasoningEffort)),
			Summary: strings.TrimSpace(cfg.GetString(KeyReasoningSummary)),
		},
		History: HistoryConfig{
			Backend: strings.ToLower(strings.TrimSpace(cfg.GetString(KeyHistoryBackend))),
			Path:    expandHome(cfg.GetString(KeyHistoryPath), homeDir),
		},
		Secrets: SecretsConfig{
			Backend: strings.ToLower(strings.TrimSpace(cfg.GetString(KeySecretsBackend))),
			Dir:     expandHome(cfg.GetString(KeySecretsDir), homeDir),
			Key:     strings.TrimSpace(cfg.GetString(KeySecretsKey)),
		},
		Log: LogConfig{
			Path:  expandHome(cfg.GetString(KeyLogPath), homeDir),
			Level: strings.TrimSpace(cfg.GetString(KeyLogLevel)),
		},
	}

	if out.InstructionsFile != "" {
		data, err := os.ReadFile(out.InstructionsFile)
		if err != nil {
			return Config{}, fmt.Errorf("read instructions file: %w", err)
		}
		out.Instructions = string(data)
	}
	out.Instructions = strings.TrimSpace(out.Instructions)

	if err := out.Validate(); err != nil {
		return Config{}, err
	}

	return out, nil
}

func setDefaults(cfg *viper.Viper, baseDir string) {
	cfg.SetDefault(KeyModel, DefaultModel)
	cfg.SetDefault(KeyEndpoint, DefaultEndpoint)
	cfg.SetDefault(KeyInstructions, DefaultInstructions)
	cfg.SetDefault(KeyInstructionsFile, "")
	cfg.SetDefault(KeyReasoningEffort, DefaultReasoningEffort)
	cfg.SetDefault(KeyReasoningSummary, DefaultReasoningSummary)
	cfg.SetDefault(KeyHistoryBackend, HistoryBackendBolt)
	cfg.SetDefault(KeyHistoryPath, "")
	cfg.SetDefault(KeySecretsBackend, "chain")
	cfg.SetDefault(KeySecretsDir, filepath.Join(baseDir, "secrets"))
	cfg.SetDefault(KeySecretsKey, DefaultCredentialKey)
	cfg.SetDefault(KeyLogPath, filepath.Join(baseDir, "nexus.log"))
	cfg.SetDefault(KeyLogLevel, DefaultLogLevel)
}

func (c Config) Validate() error {
	if c.Model == "" {
		return errors.New("model is empty")
	}
	if err := validateEndpoint(c.Endpoint); err != nil {
		return err
	}
	if c.Instructions == "" {
		return errors.New("instructions are empty")
	}
	if !contains(historyBackends, c.History.Backend) {
		return fmt.Errorf("unsupported history backend %q (want one of %s)", c.History.Backend, strings.Join(historyBackends, ", "))
	}
	if !contains(secretBackends, c.Secrets.Backend) {
		return fmt.Errorf("unsupported secrets backend %q (want one of %s)", c.Secrets.Backend, strings.Join(secretBackends, ", "))
	}
	if c.Secrets.Key == "" {
		return errors.New("secrets key is empty")
	}

	return nil
}

// HistoryFile returns the configured history path, or the backend's default
// file under dir.
func (c Config) HistoryFile(dir string) string {
	if c.History.Path != "" {
		return c.History.Path
	}

	switch c.History.Backend {
	case HistoryBackendSQLite:
		return filepath.Join(dir, "history.sqlite")
	case HistoryBackendTOML:
		return filepath.Join(dir, "history.toml")
	default:
		return filepath.Join(dir, "history.db")
	}
}

// Encode renders c as TOML, the format of config.toml.
func Encode(c Config) ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}

	return data, nil
}

// LoadDotEnv loads path into the process environment without overriding
// variables that are already set. A missing file is ignored.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}

	return nil
}

func validateEndpoint(raw string) error {
	if raw == "" {
		return errors.New("endpoint is empty")
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse endpoint: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("endpoint %q must use http or https", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("endpoint %q has no host", raw)
	}

	return nil
}

func expandHome(path string, homeDir string) string {
	path = strings.TrimSpace(path)
	if path == "~" {
		return homeDir
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir, path[2:])
	}

	return path
}

func contains(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}
