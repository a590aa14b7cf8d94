// Copyright © 2026 ソニーレベル <C7kali3@gmail.com>
// Application configuration loaded from environment / .env

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// StorageConfig holds object-storage settings for the data bridge.
type StorageConfig struct {
	Endpoint           string // host:port, no scheme
	AccessKey          string
	SecretKey          string
	UseSSL             bool
	Bucket             string
	RemoteSharedPrefix string // scanner exports land here
	RemoteOutputPrefix string // run outputs are uploaded here
	LocalDownloadDir   string // where shared exports are downloaded
	LocalFactorsDir    string // where discovered factors are kept locally
}

// LLMConfig holds credentials and limits for the agent's LLM backend.
// Chat inference and embeddings use different providers, so each carries
// its own key and base URL.
type LLMConfig struct {
	ChatModel             string
	EmbeddingModel        string
	ChatAPIKey            string
	ChatBaseURL           string
	EmbeddingAPIKey       string
	EmbeddingBaseURL      string
	MaxConcurrentRequests int
	RequestTimeout        int // seconds
}

// AgentConfig holds settings for the RD-Agent subprocess.
type AgentConfig struct {
	CondaEnvName  string
	WorkspaceDir  string // base directory for per-run workspaces
	QlibDataPath  string // qlib binary data directory
	MaxIterations int
	Scenario      string
}

// Config is the immutable configuration snapshot for one invocation.
type Config struct {
	Storage  StorageConfig
	LLM      LLMConfig
	Agent    AgentConfig
	LogLevel string
}

// Load reads configuration from the environment, first merging in a .env
// file if one exists at envFile (empty means "./.env").
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	cfg := &Config{
		Storage: StorageConfig{
			Endpoint:           getString("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey:          getString("MINIO_ACCESS_KEY", ""),
			SecretKey:          getString("MINIO_SECRET_KEY", ""),
			UseSSL:             getBool("MINIO_USE_SSL", false),
			Bucket:             getString("MINIO_BUCKET", "qlib-shared"),
			RemoteSharedPrefix: getString("REMOTE_SHARED_PREFIX", "qlib_shared"),
			RemoteOutputPrefix: getString("REMOTE_OUTPUT_PREFIX", "qlib_shared/rdagent_outputs"),
			LocalDownloadDir:   getString("LOCAL_DOWNLOAD_DIR", "data/shared_import"),
			LocalFactorsDir:    getString("LOCAL_FACTORS_DIR", "data/factors"),
		},
		LLM: LLMConfig{
			ChatModel:             getString("CHAT_MODEL", "volcengine/glm-4.7"),
			EmbeddingModel:        getString("EMBEDDING_MODEL", "aihubmix/text-embedding-3-small"),
			ChatAPIKey:            getString("VOLCENGINE_API_KEY", ""),
			ChatBaseURL:           getString("VOLCENGINE_BASE_URL", "https://ark.cn-beijing.volces.com/api/coding/v3"),
			EmbeddingAPIKey:       getString("AIHUBMIX_API_KEY", ""),
			EmbeddingBaseURL:      getString("AIHUBMIX_BASE_URL", "https://aihubmix.com/v1"),
			MaxConcurrentRequests: getInt("MAX_CONCURRENT_REQUESTS", 3),
			RequestTimeout:        getInt("REQUEST_TIMEOUT", 120),
		},
		Agent: AgentConfig{
			CondaEnvName:  getString("CONDA_ENV_NAME", "rdagent4qlib"),
			WorkspaceDir:  getString("RDAGENT_WORKSPACE", "workspace"),
			QlibDataPath:  getString("QLIB_DATA_PATH", "data/qlib"),
			MaxIterations: getInt("MAX_ITERATIONS", 10),
			Scenario:      getString("SCENARIO", "qlib"),
		},
		LogLevel: getString("LOG_LEVEL", "info"),
	}

	return cfg, nil
}

// ResolvedDataPath returns the qlib data path with ~ expanded and made absolute.
func (c *Config) ResolvedDataPath() string {
	return ResolvePath(c.Agent.QlibDataPath)
}

// ResolvePath expands a leading ~ to the user's home directory and makes the
// result absolute. Unresolvable paths are returned as-is.
func ResolvePath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}

// MaskSecret shortens a secret for logging: first 4 chars + "***".
func MaskSecret(value string) string {
	if value == "" || len(value) <= 4 {
		return "***"
	}
	return value[:4] + "***"
}

// LogSummary logs the loaded configuration with secrets masked.
func (c *Config) LogSummary(log *zap.Logger) {
	log.Info("configuration loaded",
		zap.String("storage.endpoint", c.Storage.Endpoint),
		zap.String("storage.access_key", MaskSecret(c.Storage.AccessKey)),
		zap.String("storage.bucket", c.Storage.Bucket),
		zap.String("storage.remote_shared_prefix", c.Storage.RemoteSharedPrefix),
		zap.String("storage.remote_output_prefix", c.Storage.RemoteOutputPrefix),
		zap.String("llm.chat_model", c.LLM.ChatModel),
		zap.String("llm.embedding_model", c.LLM.EmbeddingModel),
		zap.String("llm.chat_api_key", MaskSecret(c.LLM.ChatAPIKey)),
		zap.String("llm.chat_base_url", c.LLM.ChatBaseURL),
		zap.String("llm.embedding_api_key", MaskSecret(c.LLM.EmbeddingAPIKey)),
		zap.String("llm.embedding_base_url", c.LLM.EmbeddingBaseURL),
		zap.Int("llm.max_concurrent_requests", c.LLM.MaxConcurrentRequests),
		zap.Int("llm.request_timeout", c.LLM.RequestTimeout),
		zap.String("agent.conda_env", c.Agent.CondaEnvName),
		zap.String("agent.workspace_dir", c.Agent.WorkspaceDir),
		zap.String("agent.qlib_data_path", c.Agent.QlibDataPath),
		zap.Int("agent.max_iterations", c.Agent.MaxIterations),
		zap.String("agent.scenario", c.Agent.Scenario),
		zap.String("log_level", c.LogLevel),
	)
}

func getString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return n
}

func getBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return b
}
