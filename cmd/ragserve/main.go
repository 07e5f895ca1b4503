// Package main is the ragserve CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hoanvu/ragserve/internal/config"
	"github.com/hoanvu/ragserve/internal/embedding"
	"github.com/hoanvu/ragserve/internal/extract"
	"github.com/hoanvu/ragserve/internal/fileid"
	"github.com/hoanvu/ragserve/internal/ingest"
	"github.com/hoanvu/ragserve/internal/llm"
	"github.com/hoanvu/ragserve/internal/models"
	"github.com/hoanvu/ragserve/internal/registry"
	"github.com/hoanvu/ragserve/internal/server"
	"github.com/hoanvu/ragserve/internal/session"
	"github.com/hoanvu/ragserve/internal/vectorstore"
	"github.com/hoanvu/ragserve/internal/watcher"
	"github.com/hoanvu/ragserve/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/ragserve/config.yaml"

// loadConfig loads config from path. When path is the default, a config.yaml
// in the current directory wins so development runs use the project's config.
// A missing file is not an error: defaults anchored at the working directory
// apply instead.
func loadConfig(path string) (*config.Config, error) {
	if path == defaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				return config.Load(fallback)
			}
		}
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			cwd, _ := os.Getwd()
			return config.Default(cwd), nil
		}
		return nil, err
	}
	return config.Load(path)
}

func main() {
	// Secrets come from the environment; .env is a development convenience.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "server":
		runServer()
	case "ingest":
		runIngest()
	case "ask":
		runAsk()
	case "sessions":
		runSessions()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("ragserve version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	mock := fs.Bool("mock", false, "use mock embedder and generator (no API calls)")
	_ = fs.Parse(os.Args[2:])

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, *mock)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	var watch *watcher.Watcher
	if cfg.Watch.Enabled && cfg.Watch.Directory != "" {
		ing := components.Ingestor
		watch = watcher.New(
			cfg.Watch.Directory,
			cfg.Watch.Extensions,
			func(path string) {
				if _, err := ing.IngestFile(context.Background(), path, ""); err != nil {
					logger.Warn("watch ingest failed", zap.String("path", path), zap.Error(err))
				}
			},
			func(path string) {
				abs, _ := filepath.Abs(path)
				if _, err := ing.DeleteDocument(context.Background(), fileid.FileDocID(abs)); err != nil {
					logger.Warn("watch delete failed", zap.String("path", path), zap.Error(err))
				}
			},
			watcher.WithLogger(logger),
		)
		if err := watch.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		go watch.SyncExisting()
	}

	srv := server.NewServer(
		components.Store,
		components.Sessions,
		components.Ingestor,
		components.Registry,
		components.Generator,
		cfg,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	if watch != nil {
		watch.Stop()
	}
	watchCancel()
	if err := components.Store.Persist(); err != nil {
		logger.Warn("final persist failed", zap.Error(err))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	category := fs.String("category", "", "document category (default: parent directory name)")
	mock := fs.Bool("mock", false, "use mock embedder (no API calls)")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: ragserve ingest [flags] <file-or-directory>")
		os.Exit(1)
	}
	path := fs.Arg(0)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, *mock)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	ctx := context.Background()
	info, err := os.Stat(path)
	if err != nil {
		fmt.Printf("Failed to stat path: %v\n", err)
		os.Exit(1)
	}
	if info.IsDir() {
		n, err := components.Ingestor.IngestDir(ctx, path)
		if err != nil {
			fmt.Printf("Ingesting directory failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Ingested %d file(s) from %s\n", n, path)
		return
	}
	res, err := components.Ingestor.IngestFile(ctx, path, *category)
	if err != nil {
		fmt.Printf("Ingesting failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Document ingested: %s (%d chunks)\n", res.DocumentID, res.ChunkCount)
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	sessionID := fs.String("session", "", "session id to continue a conversation")
	topK := fs.Int("top-k", 0, "number of chunks to retrieve (0 = server default)")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: ragserve ask [flags] <question>")
		os.Exit(1)
	}
	question := strings.TrimSpace(strings.Join(fs.Args(), " "))

	req := models.ChatRequest{Question: question, SessionID: *sessionID, TopK: *topK}
	body, _ := json.Marshal(req)
	resp, err := http.Post(*serverURL+"/api/v1/chat", "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Server returned %d: %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	var chat models.ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		fmt.Fprintf(os.Stderr, "Decode response failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(chat.Response)
	if len(chat.Sources) > 0 {
		fmt.Println()
		for i, src := range chat.Sources {
			fmt.Printf("[%d] %s (đoạn %d, điểm %.3f)\n", i+1, src.Filename, src.Ordinal+1, src.SimilarityScore)
		}
	}
	if chat.SessionID != "" {
		fmt.Printf("\nsession: %s\n", chat.SessionID)
	}
}

func runSessions() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: ragserve sessions <list|show|delete|clear> [id]")
		os.Exit(1)
	}
	sub := os.Args[2]
	fs := flag.NewFlagSet("sessions", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	_ = fs.Parse(os.Args[3:])

	switch sub {
	case "list":
		resp, err := http.Get(*serverURL + "/api/v1/sessions")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		var out struct {
			Sessions []models.Session `json:"sessions"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			fmt.Fprintf(os.Stderr, "Decode failed: %v\n", err)
			os.Exit(1)
		}
		for _, sess := range out.Sessions {
			fmt.Printf("%s  %-50s  %d messages  %s\n",
				sess.SessionID, sess.Title, sess.MessageCount(), sess.UpdatedAt.Format(time.RFC3339))
		}
	case "show":
		if fs.NArg() < 1 {
			fmt.Println("Usage: ragserve sessions show <id>")
			os.Exit(1)
		}
		resp, err := http.Get(*serverURL + "/api/v1/sessions/" + fs.Arg(0))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Fprintf(os.Stderr, "Server returned %d: %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		var sess models.Session
		if err := json.NewDecoder(resp.Body).Decode(&sess); err != nil {
			fmt.Fprintf(os.Stderr, "Decode failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%s — %s\n\n", sess.SessionID, sess.Title)
		for _, msg := range sess.Messages {
			fmt.Printf("[%s] %s\n", msg.Role, msg.Content)
		}
	case "delete":
		if fs.NArg() < 1 {
			fmt.Println("Usage: ragserve sessions delete <id>")
			os.Exit(1)
		}
		doDelete(*serverURL + "/api/v1/sessions/" + fs.Arg(0))
	case "clear":
		doDelete(*serverURL + "/api/v1/sessions")
	default:
		fmt.Printf("Unknown sessions subcommand: %s\n", sub)
		os.Exit(1)
	}
}

func doDelete(url string) {
	req, _ := http.NewRequest(http.MethodDelete, url, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Server returned %d: %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	fmt.Println("OK")
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	_ = fs.Parse(os.Args[2:])

	resp, err := http.Get(*serverURL + "/api/v1/status")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Server returned %d: %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	var status map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		fmt.Fprintf(os.Stderr, "Decode failed: %v\n", err)
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(status)
}

// Components holds initialized services.
type Components struct {
	Store     *vectorstore.Store
	Sessions  *session.Store
	Registry  *registry.Registry
	Ingestor  *ingest.Ingestor
	Generator llm.Generator
	Embedder  embedding.Embedder
}

func (c *Components) Close() {
	if c.Registry != nil {
		_ = c.Registry.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, mock bool) (*Components, error) {
	var embedder embedding.Embedder
	var generator llm.Generator
	if mock {
		embedder = embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
		generator = llm.NewMockGenerator("(chế độ thử nghiệm, không có mô hình ngôn ngữ)")
	} else {
		var err error
		embedder, err = embedding.NewOpenAIEmbedder(
			os.Getenv(cfg.Embedding.APIKeyEnv),
			cfg.Embedding.BaseURL,
			cfg.Embedding.Model,
			cfg.Embedding.Dimensions,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize embedder: %w", err)
		}
		generator = llm.NewOpenAIGenerator(llm.Config{
			APIKey:      os.Getenv(cfg.LLM.APIKeyEnv),
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			MaxTokens:   cfg.LLM.MaxTokens,
			Temperature: cfg.LLM.Temperature,
		})
	}
	if cfg.Embedding.CacheSize > 0 {
		embedder = embedding.NewCachedEmbedder(embedder, cfg.Embedding.CacheSize)
	}

	store, err := vectorstore.NewStore(embedder, vectorstore.Paths{
		Index:           cfg.Storage.IndexPath,
		ChunkCatalog:    cfg.Storage.ChunkCatalogPath,
		DocumentCatalog: cfg.Storage.DocumentCatalogPath,
	}, vectorstore.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector store: %w", err)
	}
	if err := store.Load(); err != nil {
		return nil, fmt.Errorf("failed to load vector store: %w", err)
	}

	sessions, err := session.NewStore(cfg.Storage.SessionsPath, session.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize session store: %w", err)
	}

	reg, err := registry.Open(cfg.Storage.RegistryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open document registry: %w", err)
	}

	ingestor := ingest.NewIngestor(
		extract.NewExtractor(),
		ingest.NewChunker(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap),
		store,
		reg,
		ingest.WithLogger(logger),
	)

	return &Components{
		Store:     store,
		Sessions:  sessions,
		Registry:  reg,
		Ingestor:  ingestor,
		Generator: generator,
		Embedder:  embedder,
	}, nil
}

func printUsage() {
	fmt.Println(`ragserve - retrieval-augmented chat over a local document corpus

Usage:
  ragserve server [flags]               Start the HTTP server
  ragserve ingest [flags] <path>        Ingest a file or directory
  ragserve ask [flags] <question>       Ask a question via a running server
  ragserve sessions <list|show|delete|clear> [id]
  ragserve status [flags]               Show server status
  ragserve version                      Show version
  ragserve help                         Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/ragserve/config.yaml)
  --debug            Enable debug logging
  --mock             Use mock embedder and generator (no API calls)

Ingest Flags:
  --config string    Config file path
  --category string  Document category (default: parent directory name)
  --mock             Use mock embedder (no API calls)

Ask Flags:
  --server string    Server URL (default: http://localhost:8080)
  --session string   Session id to continue a conversation
  --top-k int        Number of chunks to retrieve

Examples:
  ragserve server --debug
  ragserve ingest ./corpus
  ragserve ask "Luật an toàn thông tin quy định gì về mã hóa?"
  ragserve ask --session 6f1c... "Còn về chữ ký số?"
  ragserve sessions list
  ragserve status`)
}
