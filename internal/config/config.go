package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// StoreConfig selects and configures the blob store holding documents and the API key.
type StoreConfig struct {
	Type          string       `yaml:"type" validate:"oneof=bolt badger redis memory"`
	Path          string       `yaml:"path"`
	DocumentsKey  string       `yaml:"documents_key" validate:"required"`
	CredentialKey string       `yaml:"credential_key" validate:"required"`
	ExportDir     string       `yaml:"export_dir"`
	Redis         *RedisConfig `yaml:"redis,omitempty"`
}

// RedisConfig contains connection details for a Redis blob store.
type RedisConfig struct {
	Addr     string `yaml:"addr" validate:"required,hostname_port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// RetrievalConfig controls ranking and prompt context size.
type RetrievalConfig struct {
	TopK            int `yaml:"top_k" validate:"gte=1"`
	MaxContextChars int `yaml:"max_context_chars" validate:"gte=1"`
}

// PromptConfig selects the instruction template.
type PromptConfig struct {
	Language string `yaml:"language" validate:"oneof=ja en"`
}

// ModelsConfig describes the model backends and routing rules.
type ModelsConfig struct {
	Default             string   `yaml:"default" validate:"required"`
	Cloud               []string `yaml:"cloud"`
	LocalEndpoint       string   `yaml:"local_endpoint" validate:"required,url"`
	CloudBaseURL        string   `yaml:"cloud_base_url" validate:"required,url"`
	Temperature         float32  `yaml:"temperature" validate:"gte=0,lte=2"`
	LargeContextMarkers []string `yaml:"large_context_markers"`
	LargeContext        int      `yaml:"large_context" validate:"gte=1"`
	DefaultContext      int      `yaml:"default_context" validate:"gte=1"`
}

// HTTPConfig configures the model transport.
type HTTPConfig struct {
	RetryMax    int `yaml:"retry_max" validate:"gte=0"`
	TimeoutSecs int `yaml:"timeout_secs" validate:"gte=0"`
}

// OCRConfig selects and configures the OCR capability.
type OCRConfig struct {
	Type        string `yaml:"type" validate:"oneof=tesseract gemini"`
	Binary      string `yaml:"binary"`
	Languages   string `yaml:"languages"`
	GeminiModel string `yaml:"gemini_model"`
}

// UploadConfig limits uploaded files.
type UploadConfig struct {
	MaxFileBytes int64 `yaml:"max_file_bytes" validate:"gte=1"`
}

// ProxyConfig configures the Gemini proxy server.
type ProxyConfig struct {
	Addr string `yaml:"addr" validate:"required,hostname_port"`
	// KeyEnv names the environment variable holding the server's API key.
	KeyEnv string `yaml:"key_env" validate:"required"`
}

// LogConfig configures the rotating log file.
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Store     StoreConfig     `yaml:"store"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Prompt    PromptConfig    `yaml:"prompt"`
	Models    ModelsConfig    `yaml:"models"`
	HTTP      HTTPConfig      `yaml:"http"`
	OCR       OCRConfig       `yaml:"ocr"`
	Upload    UploadConfig    `yaml:"upload"`
	Proxy     ProxyConfig     `yaml:"proxy"`
	Log       LogConfig       `yaml:"log"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := defaultConfig()
			applyEnv(cfg)
			return cfg, nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if err := applyConfigDefaults(&cfg); err != nil {
		return nil, err
	}
	applyEnv(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/plower/config.yaml.
// If neither exists, it writes defaults to ~/.config/plower/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	applyEnv(cfg)
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks field constraints of a loaded config.
func Validate(cfg *AppConfig) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Store.Type == "redis" && cfg.Store.Redis == nil {
		return errors.New("invalid config: store.redis is required for the redis store")
	}
	return nil
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "plower", "config.yaml"), nil
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "share", "plower")
}

func defaultConfig() *AppConfig {
	dataDir := defaultDataDir()
	return &AppConfig{
		Store: StoreConfig{
			Type:          "bolt",
			Path:          filepath.Join(dataDir, "plower.db"),
			DocumentsKey:  "ragDocs",
			CredentialKey: "geminiApiKey",
		},
		Retrieval: RetrievalConfig{TopK: 3, MaxContextChars: 5000},
		Prompt:    PromptConfig{Language: "ja"},
		Models: ModelsConfig{
			Default:             "llama3",
			Cloud:               []string{"gemini-1.5-flash", "gemini-1.5-pro"},
			LocalEndpoint:       "http://localhost:11434/api/generate",
			CloudBaseURL:        "https://generativelanguage.googleapis.com/v1beta/models",
			Temperature:         0.1,
			LargeContextMarkers: []string{"20b", "12b", "120b"},
			LargeContext:        8192,
			DefaultContext:      4096,
		},
		HTTP: HTTPConfig{RetryMax: 2},
		OCR: OCRConfig{
			Type:        "tesseract",
			Binary:      "tesseract",
			Languages:   "jpn+eng",
			GeminiModel: "gemini-1.5-flash",
		},
		Upload: UploadConfig{MaxFileBytes: 10 * 1024 * 1024},
		Proxy:  ProxyConfig{Addr: "localhost:8001", KeyEnv: "GEMINI_API_KEY"},
		Log: LogConfig{
			Level:      "info",
			File:       filepath.Join(dataDir, "plower.log"),
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

func applyConfigDefaults(cfg *AppConfig) error {
	return mergo.Merge(cfg, defaultConfig())
}

func applyEnv(cfg *AppConfig) {
	if v := os.Getenv("PLOWER_MODEL"); v != "" {
		cfg.Models.Default = v
	}
	if v := os.Getenv("PLOWER_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}
