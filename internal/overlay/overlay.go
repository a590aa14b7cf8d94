// Copyright © 2026 ソニーレベル <C7kali3@gmail.com>
// Environment overlay for the agent subprocess

package overlay

import (
	"sort"
	"strconv"
	"strings"

	"github.com/quantfold/rdagent-runner/internal/config"
)

// Backend is the LLM backend implementation the agent is told to use.
const Backend = "rdagent.oai.backend.LiteLLMAPIBackend"

// proxyKeys are removed from every overlay, case-insensitively. The LiteLLM
// backend fails closed when any of these is merely present.
var proxyKeys = map[string]bool{
	"http_proxy":  true,
	"https_proxy": true,
	"all_proxy":   true,
	"no_proxy":    true,
}

// Build derives the subprocess environment overlay from cfg layered on top
// of base. It is a pure function: neither cfg, base, nor the process
// environment is mutated. Later rules overwrite earlier ones by key.
func Build(cfg *config.Config, base map[string]string) map[string]string {
	env := make(map[string]string, len(base)+16)
	for k, v := range base {
		env[k] = v
	}

	// Force unbuffered output so progress is visible while the agent runs
	// with piped or redirected streams.
	env["PYTHONUNBUFFERED"] = "1"

	// Backend selection.
	env["BACKEND"] = Backend

	// Chat credentials under the generic provider names LiteLLM expects,
	// plus provider-specific aliases and the legacy base-URL alias.
	env["OPENAI_API_KEY"] = cfg.LLM.ChatAPIKey
	env["OPENAI_BASE_URL"] = cfg.LLM.ChatBaseURL
	env["OPENAI_API_BASE"] = cfg.LLM.ChatBaseURL
	env["VOLCENGINE_API_KEY"] = cfg.LLM.ChatAPIKey
	env["VOLCENGINE_API_BASE"] = cfg.LLM.ChatBaseURL

	// The chat model masquerades under the generic openai/ prefix so LiteLLM
	// skips its provider-specific endpoint checks.
	env["CHAT_MODEL"] = genericChatModel(cfg.LLM.ChatModel)

	// Embedding model and proxy-style credentials. The aihubmix/ prefix is
	// rewritten to the litellm_proxy/ prefix the backend recognizes.
	env["EMBEDDING_MODEL"] = normalizeEmbeddingModel(cfg.LLM.EmbeddingModel)
	env["LITELLM_PROXY_API_KEY"] = cfg.LLM.EmbeddingAPIKey
	env["LITELLM_PROXY_API_BASE"] = cfg.LLM.EmbeddingBaseURL

	// Concurrency and timeout, forwarded opaquely as strings.
	env["MAX_CONCURRENT_REQUESTS"] = strconv.Itoa(cfg.LLM.MaxConcurrentRequests)
	env["REQUEST_TIMEOUT"] = strconv.Itoa(cfg.LLM.RequestTimeout)

	// Data path and iteration cap.
	env["QLIB_DATA_PATH"] = cfg.ResolvedDataPath()
	env["MAX_ITERATIONS"] = strconv.Itoa(cfg.Agent.MaxIterations)

	// Local execution for the agent's internal code sandbox, not Docker.
	env["MODEL_COSTEER_ENV_TYPE"] = "conda"

	// Strip every proxy-related key, whatever its casing, even if base or a
	// rule above introduced one.
	for key := range env {
		if proxyKeys[strings.ToLower(key)] {
			delete(env, key)
		}
	}

	return env
}

// genericChatModel rewrites the configured chat model's provider prefix to
// the generic openai/ prefix.
func genericChatModel(model string) string {
	if idx := strings.Index(model, "/"); idx >= 0 {
		return "openai/" + model[idx+1:]
	}
	return "openai/" + model
}

// normalizeEmbeddingModel rewrites the aihubmix/ provider prefix to the
// litellm_proxy/ prefix; everything else passes through unchanged.
func normalizeEmbeddingModel(model string) string {
	if strings.HasPrefix(model, "aihubmix/") {
		return "litellm_proxy/" + strings.TrimPrefix(model, "aihubmix/")
	}
	return model
}

// FromEnviron converts os.Environ-style "KEY=value" pairs into a map.
func FromEnviron(pairs []string) map[string]string {
	env := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		if idx := strings.Index(pair, "="); idx >= 0 {
			env[pair[:idx]] = pair[idx+1:]
		}
	}
	return env
}

// ToEnviron converts an overlay map into sorted "KEY=value" pairs suitable
// for exec.Cmd.Env.
func ToEnviron(env map[string]string) []string {
	pairs := make([]string, 0, len(env))
	for k, v := range env {
		pairs = append(pairs, k+"="+v)
	}
	sort.Strings(pairs)
	return pairs
}
