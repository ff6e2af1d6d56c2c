package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/perbu/videoqa/pkg/answer"
	"github.com/perbu/videoqa/pkg/config"
	"github.com/perbu/videoqa/pkg/embedder"
	"github.com/perbu/videoqa/pkg/media"
	"github.com/perbu/videoqa/pkg/retrieval"
	"github.com/perbu/videoqa/pkg/server"
	"github.com/perbu/videoqa/pkg/transcribe"
	"github.com/perbu/videoqa/pkg/youtube"
)

func main() {
	configPath := flag.String("config", "", "optional YAML config file")
	envFile := flag.String("env", ".env", "dotenv file with API keys")
	offline := flag.Bool("offline", false, "use the hashing embedder and extractive answers instead of an LLM provider")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := run(ctx, *configPath, *envFile, *offline); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, envFile string, offline bool) error {
	cfg, err := config.Load(configPath, envFile)
	if err != nil {
		return err
	}
	logger := log.New(os.Stderr, "videoqa: ", log.LstdFlags)

	emb, gen, err := providers(cfg, offline)
	if err != nil {
		return err
	}
	emb, closeCache, err := withCache(ctx, cfg, emb, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	pipeline := retrieval.NewPipeline(emb, gen, retrieval.NewStore(), cfg.Options())
	pipeline.SetLogger(logger)

	srv := &server.Server{
		Pipeline:   pipeline,
		MaxResults: cfg.YouTube.MaxResults,
		Logger:     logger,
	}
	if cfg.YouTube.APIKey != "" {
		yt, err := youtube.NewClient(cfg.YouTube.APIKey, cfg.YouTube.BaseURL, &http.Client{Timeout: cfg.Provider.Timeout})
		if err != nil {
			return err
		}
		srv.Searcher = yt
	} else {
		logger.Printf("YOUTUBE_API_KEY not set, /search disabled")
	}
	if cfg.AssemblyAI.APIKey != "" {
		ytdlp := media.NewYtDlp(cfg.YtDlp.Path, cfg.WorkDir)
		if err := ytdlp.CheckBinary(); err != nil {
			logger.Printf("%v, /transcript disabled", err)
		} else {
			tc, err := transcribe.NewClient(transcribe.Config{
				APIKey:          cfg.AssemblyAI.APIKey,
				BaseURL:         cfg.AssemblyAI.BaseURL,
				PollInterval:    cfg.AssemblyAI.PollInterval,
				MaxPollInterval: cfg.AssemblyAI.MaxPollInterval,
				PollTimeout:     cfg.AssemblyAI.PollTimeout,
				Retry:           cfg.RetryPolicy(),
			}, &http.Client{Timeout: 10 * time.Minute})
			if err != nil {
				return err
			}
			srv.Downloader = ytdlp
			srv.Transcriber = tc
		}
	} else {
		logger.Printf("ASSEMBLYAI_API_KEY not set, /transcript disabled")
	}

	httpSrv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Printf("listening on %s", cfg.Listen)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http listen and serve: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("shutdown server: %v", err)
	}
	return nil
}

func providers(cfg *config.Config, offline bool) (embedder.Embedder, answer.Generator, error) {
	if offline {
		return embedder.NewHashEmbedder(512), answer.Extractive{}, nil
	}
	if cfg.OpenAI.APIKey == "" {
		return nil, nil, errors.New("OPENAI_API_KEY (or GEMINI_API_KEY) not set; set it in .env or run with -offline")
	}
	emb, err := embedder.NewOpenAIEmbedder(embedder.OpenAIConfig{
		APIKey:  cfg.OpenAI.APIKey,
		BaseURL: cfg.OpenAI.BaseURL,
		Model:   cfg.OpenAI.EmbeddingModel,
		Timeout: cfg.Provider.Timeout,
		Retry:   cfg.RetryPolicy(),
	})
	if err != nil {
		return nil, nil, err
	}
	gen, err := answer.NewOpenAIGenerator(answer.OpenAIConfig{
		APIKey:      cfg.OpenAI.APIKey,
		BaseURL:     cfg.OpenAI.BaseURL,
		Model:       cfg.OpenAI.ChatModel,
		Temperature: cfg.OpenAI.Temperature,
		Timeout:     cfg.Provider.Timeout,
		Retry:       cfg.RetryPolicy(),
	})
	if err != nil {
		return nil, nil, err
	}
	return emb, gen, nil
}

// withCache wraps emb in the configured embedding cache. The returned func
// releases the cache.
func withCache(ctx context.Context, cfg *config.Config, emb embedder.Embedder, logger *log.Logger) (embedder.Embedder, func(), error) {
	if cfg.Cache.RedisAddr == "" {
		return embedder.NewCachedEmbedder(emb, embedder.NewMemoryCache(cfg.Cache.MemoryEntries)), func() {}, nil
	}
	rc, err := embedder.ConnectRedisCache(ctx, cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB, cfg.Cache.TTL)
	if err != nil {
		return nil, nil, err
	}
	logger.Printf("embedding cache: redis at %s", cfg.Cache.RedisAddr)
	return embedder.NewCachedEmbedder(emb, rc), func() {
		if err := rc.Close(); err != nil {
			logger.Printf("closing redis: %v", err)
		}
	}, nil
}
