// Copyright © 2026 ソニーレベル <C7kali3@gmail.com>
// Tests for the environment overlay

package tests

import (
	"sort"
	"testing"

	"github.com/quantfold/rdagent-runner/internal/config"
	"github.com/quantfold/rdagent-runner/internal/overlay"
)

func testConfig() *config.Config {
	return &config.Config{
		LLM: config.LLMConfig{
			ChatModel:             "volcengine/glm-4.7",
			EmbeddingModel:        "aihubmix/text-embedding-3-small",
			ChatAPIKey:            "chat-key",
			ChatBaseURL:           "https://chat.example/v3",
			EmbeddingAPIKey:       "embed-key",
			EmbeddingBaseURL:      "https://embed.example/v1",
			MaxConcurrentRequests: 3,
			RequestTimeout:        120,
		},
		Agent: config.AgentConfig{
			CondaEnvName:  "rdagent4qlib",
			QlibDataPath:  "/data/qlib",
			MaxIterations: 10,
		},
	}
}

func TestBuildCoreVariables(t *testing.T) {
	env := overlay.Build(testConfig(), nil)

	expected := map[string]string{
		"PYTHONUNBUFFERED":        "1",
		"BACKEND":                 overlay.Backend,
		"OPENAI_API_KEY":          "chat-key",
		"OPENAI_BASE_URL":         "https://chat.example/v3",
		"OPENAI_API_BASE":         "https://chat.example/v3",
		"VOLCENGINE_API_KEY":      "chat-key",
		"VOLCENGINE_API_BASE":     "https://chat.example/v3",
		"CHAT_MODEL":              "openai/glm-4.7",
		"EMBEDDING_MODEL":         "litellm_proxy/text-embedding-3-small",
		"LITELLM_PROXY_API_KEY":   "embed-key",
		"LITELLM_PROXY_API_BASE":  "https://embed.example/v1",
		"MAX_CONCURRENT_REQUESTS": "3",
		"REQUEST_TIMEOUT":         "120",
		"MAX_ITERATIONS":          "10",
		"MODEL_COSTEER_ENV_TYPE":  "conda",
	}

	for key, want := range expected {
		if got, ok := env[key]; !ok {
			t.Errorf("missing key %s", key)
		} else if got != want {
			t.Errorf("%s = %q, want %q", key, got, want)
		}
	}

	if env["QLIB_DATA_PATH"] == "" {
		t.Error("QLIB_DATA_PATH should be set")
	}
}

func TestBuildStripsProxyVariables(t *testing.T) {
	base := map[string]string{
		"HOME":        "/home/user",
		"HTTP_PROXY":  "http://proxy:8080",
		"http_proxy":  "http://proxy:8080",
		"HTTPS_PROXY": "http://proxy:8080",
		"All_Proxy":   "socks5://proxy:1080",
		"NO_PROXY":    "localhost",
	}

	env := overlay.Build(testConfig(), base)

	for _, key := range []string{"HTTP_PROXY", "http_proxy", "HTTPS_PROXY", "All_Proxy", "NO_PROXY"} {
		if _, ok := env[key]; ok {
			t.Errorf("proxy variable %s should have been removed", key)
		}
	}

	if env["HOME"] != "/home/user" {
		t.Error("non-proxy base variables should pass through")
	}
}

func TestBuildDoesNotMutateBase(t *testing.T) {
	base := map[string]string{
		"HTTP_PROXY": "http://proxy:8080",
		"CHAT_MODEL": "original",
	}

	overlay.Build(testConfig(), base)

	if base["HTTP_PROXY"] != "http://proxy:8080" {
		t.Error("base map must not be mutated")
	}
	if base["CHAT_MODEL"] != "original" {
		t.Error("base map must not be mutated")
	}
}

func TestBuildEmptyCredentialsPreserved(t *testing.T) {
	cfg := testConfig()
	cfg.LLM.ChatAPIKey = ""
	cfg.LLM.EmbeddingAPIKey = ""

	env := overlay.Build(cfg, nil)

	if v, ok := env["OPENAI_API_KEY"]; !ok || v != "" {
		t.Errorf("OPENAI_API_KEY should be present and empty, got %q (present=%v)", v, ok)
	}
	if v, ok := env["LITELLM_PROXY_API_KEY"]; !ok || v != "" {
		t.Errorf("LITELLM_PROXY_API_KEY should be present and empty, got %q (present=%v)", v, ok)
	}
}

func TestChatModelPrefixRewrite(t *testing.T) {
	tests := []struct {
		model string
		want  string
	}{
		{"volcengine/glm-4.7", "openai/glm-4.7"},
		{"openai/gpt-4o", "openai/gpt-4o"},
		{"deepseek/deepseek-chat", "openai/deepseek-chat"},
		{"plain-model", "openai/plain-model"},
	}

	for _, tt := range tests {
		cfg := testConfig()
		cfg.LLM.ChatModel = tt.model
		env := overlay.Build(cfg, nil)
		if env["CHAT_MODEL"] != tt.want {
			t.Errorf("CHAT_MODEL for %q = %q, want %q", tt.model, env["CHAT_MODEL"], tt.want)
		}
	}
}

func TestEmbeddingModelPrefixRewrite(t *testing.T) {
	tests := []struct {
		model string
		want  string
	}{
		{"aihubmix/text-embedding-3-small", "litellm_proxy/text-embedding-3-small"},
		{"litellm_proxy/already", "litellm_proxy/already"},
		{"openai/text-embedding-3-large", "openai/text-embedding-3-large"},
	}

	for _, tt := range tests {
		cfg := testConfig()
		cfg.LLM.EmbeddingModel = tt.model
		env := overlay.Build(cfg, nil)
		if env["EMBEDDING_MODEL"] != tt.want {
			t.Errorf("EMBEDDING_MODEL for %q = %q, want %q", tt.model, env["EMBEDDING_MODEL"], tt.want)
		}
	}
}

func TestFromEnviron(t *testing.T) {
	env := overlay.FromEnviron([]string{
		"A=1",
		"B=x=y",
		"malformed",
		"C=",
	})

	if env["A"] != "1" {
		t.Errorf("A = %q", env["A"])
	}
	if env["B"] != "x=y" {
		t.Error("value may itself contain =")
	}
	if _, ok := env["malformed"]; ok {
		t.Error("entries without = should be dropped")
	}
	if v, ok := env["C"]; !ok || v != "" {
		t.Error("empty values should be kept")
	}
}

func TestToEnvironSorted(t *testing.T) {
	pairs := overlay.ToEnviron(map[string]string{"ZED": "1", "ALPHA": "2", "MID": "3"})

	if len(pairs) != 3 {
		t.Fatalf("expected 3 pairs, got %d", len(pairs))
	}
	if !sort.StringsAreSorted(pairs) {
		t.Errorf("pairs should be sorted: %v", pairs)
	}
	if pairs[0] != "ALPHA=2" {
		t.Errorf("first pair = %q", pairs[0])
	}
}
