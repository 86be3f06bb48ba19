// Package config loads process settings from .env, the environment and an optional
// typemyaudio.toml file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/akiwumi/typemyaudio/internal/logger"
)

const (
	configName = "typemyaudio"
	configType = "toml"

	// ConfigFileEnv points at an explicit config file and overrides the search path.
	ConfigFileEnv = "CONFIG_FILE"
)

const (
	KeyPort              = "port"
	KeyEnvironment       = "environment"
	KeyLogLevel          = "log_level"
	KeyStatePath         = "state_path"
	KeyStorageRoot       = "storage_root"
	KeyScratchDir        = "scratch_dir"
	KeyOpenAIAPIKey      = "openai_api_key"
	KeyOpenAIBaseURL     = "openai_base_url"
	KeySTTModel          = "stt_model"
	KeyLLMModel          = "llm_model"
	KeyRabbitMQURL       = "rabbitmq_url"
	KeyQueueName         = "queue_name"
	KeyWorkerConcurrency = "worker_concurrency"
	KeyHTTPTimeout       = "http_timeout"
	KeyMaxRetryElapsed   = "max_retry_elapsed"
	KeyUseMockTranscribe = "use_mock_transcribe"
	KeyUseMockLLM        = "use_mock_llm"
)

type Config struct {
	Port              string
	Environment       string
	LogLevel          string
	StatePath         string
	StorageRoot       string
	ScratchDir        string
	OpenAIAPIKey      string
	OpenAIBaseURL     string
	STTModel          string
	LLMModel          string
	RabbitMQURL       string
	QueueName         string
	WorkerConcurrency int
	HTTPTimeout       time.Duration
	MaxRetryElapsed   time.Duration
	UseMockTranscribe bool
	UseMockLLM        bool
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault(KeyPort, "8080")
	v.SetDefault(KeyEnvironment, "local")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyStatePath, "data/state.toml")
	v.SetDefault(KeyStorageRoot, "data/media")
	v.SetDefault(KeyScratchDir, os.TempDir())
	v.SetDefault(KeyOpenAIBaseURL, "https://api.openai.com/v1")
	v.SetDefault(KeySTTModel, "whisper-1")
	v.SetDefault(KeyLLMModel, "gpt-4o")
	v.SetDefault(KeyRabbitMQURL, "")
	v.SetDefault(KeyQueueName, "transcription")
	v.SetDefault(KeyWorkerConcurrency, 2)
	v.SetDefault(KeyHTTPTimeout, "120s")
	v.SetDefault(KeyMaxRetryElapsed, "30s")
	v.SetDefault(KeyUseMockTranscribe, false)
	v.SetDefault(KeyUseMockLLM, false)
}

// Load reads .env (when present), binds the environment and reads the optional config
// file into v. A nil v gets a fresh viper instance. Environment variables win over the file.
func Load(v *viper.Viper) (Config, *viper.Viper, error) {
	_ = godotenv.Load()

	if v == nil {
		v = viper.New()
	}
	applyDefaults(v)
	v.AutomaticEnv()

	if path := os.Getenv(ConfigFileEnv); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName(configName)
		v.SetConfigType(configType)
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var configNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configNotFound) {
				return Config{}, nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, v, nil
}

func decode(v *viper.Viper) (Config, error) {
	cfg := Config{
		Port:              v.GetString(KeyPort),
		Environment:       v.GetString(KeyEnvironment),
		LogLevel:          v.GetString(KeyLogLevel),
		StatePath:         v.GetString(KeyStatePath),
		StorageRoot:       v.GetString(KeyStorageRoot),
		ScratchDir:        v.GetString(KeyScratchDir),
		OpenAIAPIKey:      v.GetString(KeyOpenAIAPIKey),
		OpenAIBaseURL:     v.GetString(KeyOpenAIBaseURL),
		STTModel:          v.GetString(KeySTTModel),
		LLMModel:          v.GetString(KeyLLMModel),
		RabbitMQURL:       v.GetString(KeyRabbitMQURL),
		QueueName:         v.GetString(KeyQueueName),
		WorkerConcurrency: v.GetInt(KeyWorkerConcurrency),
		HTTPTimeout:       v.GetDuration(KeyHTTPTimeout),
		MaxRetryElapsed:   v.GetDuration(KeyMaxRetryElapsed),
		UseMockTranscribe: v.GetBool(KeyUseMockTranscribe),
		UseMockLLM:        v.GetBool(KeyUseMockLLM),
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Port == "" {
		return errors.New("port is empty")
	}
	if c.StatePath == "" {
		return errors.New("state path is empty")
	}
	if c.WorkerConcurrency < 1 {
		return fmt.Errorf("worker concurrency must be at least 1, got %d", c.WorkerConcurrency)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http timeout must be positive, got %s", c.HTTPTimeout)
	}
	if !c.UseMockTranscribe || !c.UseMockLLM {
		if c.OpenAIAPIKey == "" {
			return errors.New("OPENAI_API_KEY is required unless both USE_MOCK_TRANSCRIBE and USE_MOCK_LLM are set")
		}
	}
	return nil
}

// Watch re-reads the config file on change, applies the new log level to log and hands
// the decoded config to onChange. Invalid edits are logged and ignored.
func Watch(v *viper.Viper, log *logger.Logger, onChange func(Config)) {
	v.OnConfigChange(func(e fsnotify.Event) {
		if e.Op&(fsnotify.Write|fsnotify.Create) == 0 {
			return
		}
		cfg, err := decode(v)
		if err != nil {
			log.WithError(err).WithField("file", e.Name).Warn("ignoring invalid config change")
			return
		}
		log.SetLevel(cfg.LogLevel)
		log.WithField("file", e.Name).WithField("log_level", cfg.LogLevel).Info("config reloaded")
		if onChange != nil {
			onChange(cfg)
		}
	})
	v.WatchConfig()
}
