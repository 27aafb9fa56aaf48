package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	ExecutionInline   = "inline"
	ExecutionTemporal = "temporal"

	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

type Config struct {
	Port                  string
	PublicURL             string
	ExecutionMode         string
	TemporalAddress       string
	TemporalTaskQueue     string
	TurnTimeout           time.Duration
	CheckpointStore       string
	PostgresURL           string
	SQLitePath            string
	LLMMode               string
	UseOllama             bool
	LLMProvider           string
	LLMModel              string
	LLMBaseURL            string
	VisionModel           string
	OpenAIAPIKey          string
	OpenRouterAPIKey      string
	OllamaModel           string
	OllamaBaseURL         string
	OllamaTemperature     float64
	PageHTMLPath          string
	PageCSSPath           string
	PageJSPath            string
	AssetsDir             string
	ScreenshotDir         string
	HomeHTMLPath          string
	ChatHTMLPath          string
	ConversationsHTMLPath string
	AgentsManifest        string
	DefaultAgent          string
	DefaultThreadID       string
	MaxAgentSteps         int
	PromptsDir            string
	CORSAllowedOrigins    []string
	LogLevel              string
	LogFormat             string
	BrowserHeadless       bool
	BrowserBin            string
	BrowserTimeout        time.Duration
}

func Load() Config {
	port := getEnv("LLAMABOT_PORT", "8000")
	postgresURL := getEnv("POSTGRES_URL", "")
	if postgresURL == "" {
		postgresURL = buildPostgresURL()
	}
	llmMode := getEnv("LLM_MODE", "remote")
	useOllama := getEnvBool("USE_OLLAMA", true)
	ollamaModel := getEnv("OLLAMA_MODEL", "qwen2.5:latest")
	defaultProvider, defaultModel := "openai", "o4-mini"
	// Local mode always talks to Ollama, so its model is the default too.
	if useOllama || llmMode == "local" {
		defaultProvider, defaultModel = "ollama", ollamaModel
	}
	assetsDir := getEnv("ASSETS_DIR", "assets")
	return Config{
		Port:                  port,
		PublicURL:             getEnv("LLAMABOT_URL", "http://localhost:"+port),
		ExecutionMode:         strings.ToLower(getEnv("EXECUTION_MODE", ExecutionInline)),
		TemporalAddress:       getEnv("TEMPORAL_ADDRESS", "localhost:7233"),
		TemporalTaskQueue:     getEnv("TEMPORAL_TASK_QUEUE", "llamabot-turns"),
		TurnTimeout:           time.Duration(getEnvInt("TURN_TIMEOUT_SECONDS", 600)) * time.Second,
		CheckpointStore:       strings.ToLower(getEnv("CHECKPOINT_STORE", StoreMemory)),
		PostgresURL:           postgresURL,
		SQLitePath:            getEnv("SQLITE_PATH", "llamabot.db"),
		LLMMode:               llmMode,
		UseOllama:             useOllama,
		LLMProvider:           getEnv("LLM_PROVIDER", defaultProvider),
		LLMModel:              getEnv("LLM_MODEL", defaultModel),
		LLMBaseURL:            getEnv("LLM_BASE_URL", ""),
		VisionModel:           getEnv("VISION_MODEL", ""),
		OpenAIAPIKey:          getEnv("OPENAI_API_KEY", ""),
		OpenRouterAPIKey:      getEnv("OPENROUTER_API_KEY", ""),
		OllamaModel:           ollamaModel,
		OllamaBaseURL:         getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
		OllamaTemperature:     getEnvFloat("OLLAMA_TEMPERATURE", 0.7),
		PageHTMLPath:          getEnv("PAGE_HTML_PATH", "page.html"),
		PageCSSPath:           getEnv("PAGE_CSS_PATH", assetsDir+"/page.css"),
		PageJSPath:            getEnv("PAGE_JS_PATH", assetsDir+"/page.js"),
		AssetsDir:             assetsDir,
		ScreenshotDir:         getEnv("SCREENSHOT_DIR", ""),
		HomeHTMLPath:          getEnv("HOME_HTML_PATH", "home.html"),
		ChatHTMLPath:          getEnv("CHAT_HTML_PATH", "chat.html"),
		ConversationsHTMLPath: getEnv("CONVERSATIONS_HTML_PATH", "conversations.html"),
		AgentsManifest:        getEnv("AGENTS_MANIFEST", "langgraph.json"),
		DefaultAgent:          getEnv("DEFAULT_AGENT", "write_html_agent"),
		DefaultThreadID:       getEnv("DEFAULT_THREAD_ID", "5"),
		MaxAgentSteps:         getEnvInt("MAX_AGENT_STEPS", 25),
		PromptsDir:            getEnv("PROMPTS_DIR", ""),
		CORSAllowedOrigins:    getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3001", "http://127.0.0.1:3001"}),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		LogFormat:             getEnv("LOG_FORMAT", "json"),
		BrowserHeadless:       getEnvBool("BROWSER_HEADLESS", true),
		BrowserBin:            getEnv("BROWSER_BIN", ""),
		BrowserTimeout:        time.Duration(getEnvInt("BROWSER_TIMEOUT_MS", 30000)) * time.Millisecond,
	}
}

// OllamaEnabled reports whether LLM traffic goes to the Ollama server.
func (c Config) OllamaEnabled() bool {
	return c.LLMMode == "local" || strings.EqualFold(c.LLMProvider, "ollama")
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(strings.TrimSpace(value))
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	items := make([]string, 0)
	for _, item := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	if len(items) == 0 {
		return fallback
	}
	return items
}

func buildPostgresURL() string {
	user := getEnv("POSTGRES_USER", "llamabot")
	password := getEnv("POSTGRES_PASSWORD", "llamabot")
	host := getEnv("POSTGRES_HOST", "localhost")
	port := getEnv("POSTGRES_PORT", "5432")
	database := getEnv("POSTGRES_DB", "llamabot")
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, password, host, port, database)
}
