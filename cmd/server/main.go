package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/zxq-mioya/jp-tutor-ai/internal/httpapi"
	"github.com/zxq-mioya/jp-tutor-ai/internal/kb"
	"github.com/zxq-mioya/jp-tutor-ai/internal/llm"
	"github.com/zxq-mioya/jp-tutor-ai/internal/model"
	"github.com/zxq-mioya/jp-tutor-ai/internal/service"
	"github.com/zxq-mioya/jp-tutor-ai/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("load .env failed: %v", err)
	}

	addr := resolveListenAddr()
	storeEngine := strings.ToLower(envOrDefault("KAIWA_STORE", store.EngineSQLite))
	dataFile := envOrDefault("KAIWA_DATA_FILE", defaultDataFile(storeEngine))

	st, err := store.NewByEngine(storeEngine, dataFile)
	if err != nil {
		log.Fatalf("init store failed: %v", err)
	}
	if closer, ok := st.(io.Closer); ok {
		defer func() {
			if err := closer.Close(); err != nil {
				log.Printf("store close failed: %v", err)
			}
		}()
	}

	entries := loadKnowledgeBase(envOrDefault("KAIWA_KB_FILE", "grammar_kb.md"))
	log.Printf("knowledge base loaded: %d entries", len(entries))

	svc := service.New(st, entries)
	if llmClient := initLLMClientFromEnv(); llmClient != nil {
		svc.SetLLMClient(llmClient)
		log.Printf("llm integration enabled")
	} else {
		log.Printf("llm integration disabled, exchange endpoint will return 503")
	}
	handler := httpapi.NewHandler(svc)
	router := httpapi.NewRouter(handler)

	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Printf("kaiwa tutor backend listening on %s", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server failed: %v", err)
	}
}

// loadKnowledgeBase reads the grammar note file; when the file is missing or
// yields no entries the built-in notes are used instead.
func loadKnowledgeBase(path string) []model.KbEntry {
	document, err := kb.LoadFile(path)
	if err != nil {
		log.Printf("load kb file %s failed: %v, falling back to built-in notes", path, err)
		document = ""
	}
	entries := kb.Parse(document)
	if len(entries) == 0 {
		entries = kb.Parse(kb.BaseDocument)
	}
	return entries
}

func resolveListenAddr() string {
	defaultHost, defaultPort := parseListenAddr(envOrDefault("KAIWA_ADDR", ":8080"))
	if defaultPort <= 0 {
		defaultPort = 8080
	}

	defaultHost = strings.TrimSpace(envOrDefault("KAIWA_HOST", defaultHost))
	defaultPort = parseEnvInt("KAIWA_PORT", defaultPort)

	host := flag.String("host", defaultHost, "server listen host, e.g. 0.0.0.0")
	port := flag.Int("port", defaultPort, "server listen port, e.g. 8080")
	flag.Parse()

	return joinListenAddr(strings.TrimSpace(*host), *port)
}

func parseListenAddr(addr string) (string, int) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return "", 0
	}
	if strings.HasPrefix(addr, ":") {
		return "", parseEnvIntValue(strings.TrimPrefix(addr, ":"), 0)
	}
	if host, port, err := net.SplitHostPort(addr); err == nil {
		return host, parseEnvIntValue(port, 0)
	}
	if portOnly := parseEnvIntValue(addr, 0); portOnly > 0 {
		return "", portOnly
	}
	return addr, 0
}

func joinListenAddr(host string, port int) string {
	if port <= 0 {
		port = 8080
	}
	if host == "" {
		return fmt.Sprintf(":%d", port)
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

func defaultDataFile(storeEngine string) string {
	switch storeEngine {
	case store.EngineJSON:
		return "data/kaiwa.json"
	default:
		return "data/kaiwa.db"
	}
}

func envOrDefault(key string, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func initLLMClientFromEnv() *llm.Client {
	apiKey := strings.TrimSpace(os.Getenv("KAIWA_OPENAI_API_KEY"))
	if apiKey == "" {
		log.Printf("llm key missing: KAIWA_OPENAI_API_KEY is empty")
		return nil
	}

	cfg := llm.Config{
		BaseURL: envOrDefault("KAIWA_LLM_BASE_URL", ""),
		APIKey:  apiKey,
		Model:   envOrDefault("KAIWA_LLM_MODEL", ""),
		Timeout: time.Duration(parseEnvInt("KAIWA_LLM_TIMEOUT_SECONDS", 60)) * time.Second,
	}

	client, err := llm.NewClient(cfg)
	if err != nil {
		log.Printf("init llm client failed: %v", err)
		return nil
	}
	return client
}

func parseEnvInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	return parseEnvIntValue(raw, fallback)
}

func parseEnvIntValue(raw string, fallback int) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	return value
}
