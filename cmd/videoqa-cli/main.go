package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/perbu/videoqa/pkg/answer"
	"github.com/perbu/videoqa/pkg/config"
	"github.com/perbu/videoqa/pkg/embedder"
	"github.com/perbu/videoqa/pkg/retrieval"
	"github.com/perbu/videoqa/pkg/transcript"
)

func main() {
	wordsPath := flag.String("words", "", "JSON file with timed words (array or AssemblyAI transcript)")
	configPath := flag.String("config", "", "optional YAML config file")
	envFile := flag.String("env", ".env", "dotenv file with API keys")
	offline := flag.Bool("offline", false, "use the hashing embedder and extractive answers (no API key needed)")
	top := flag.Int("top", 0, "number of segments to retrieve (0 uses the config)")
	full := flag.Bool("full", false, "show the best matching segment")
	verbose := flag.Bool("verbose", false, "enable verbose output for debugging")
	flag.Parse()

	if *wordsPath == "" {
		fmt.Fprintf(os.Stderr, "Usage: videoqa-cli -words <file> [options] [question]\n\n")
		fmt.Fprintf(os.Stderr, "Without a question, questions are read from stdin, one per line.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	opts := cfg.Options()
	if *top > 0 {
		opts.TopK = *top
	}

	// Step 1: Read the transcript
	f, err := os.Open(*wordsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening words file: %v\n", err)
		os.Exit(1)
	}
	words, err := transcript.ReadWords(f)
	f.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading words: %v\n", err)
		os.Exit(1)
	}
	if *verbose {
		fmt.Printf("[DEBUG] Read %d words from %s\n", len(words), *wordsPath)
	}

	// Step 2: Set up providers
	var (
		emb embedder.Embedder
		gen answer.Generator
	)
	if *offline {
		emb = embedder.NewHashEmbedder(512)
		gen = answer.Extractive{}
	} else {
		if cfg.OpenAI.APIKey == "" {
			fmt.Fprintf(os.Stderr, "Error: OPENAI_API_KEY environment variable not set\n")
			fmt.Fprintf(os.Stderr, "Please set it in .env file or environment, or use -offline\n")
			os.Exit(1)
		}
		emb, err = embedder.NewOpenAIEmbedder(embedder.OpenAIConfig{
			APIKey:  cfg.OpenAI.APIKey,
			BaseURL: cfg.OpenAI.BaseURL,
			Model:   cfg.OpenAI.EmbeddingModel,
			Timeout: cfg.Provider.Timeout,
			Retry:   cfg.RetryPolicy(),
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error initializing embedder: %v\n", err)
			os.Exit(1)
		}
		gen, err = answer.NewOpenAIGenerator(answer.OpenAIConfig{
			APIKey:      cfg.OpenAI.APIKey,
			BaseURL:     cfg.OpenAI.BaseURL,
			Model:       cfg.OpenAI.ChatModel,
			Temperature: cfg.OpenAI.Temperature,
			Timeout:     cfg.Provider.Timeout,
			Retry:       cfg.RetryPolicy(),
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error initializing answer generator: %v\n", err)
			os.Exit(1)
		}
	}
	emb = embedder.NewCachedEmbedder(emb, embedder.NewMemoryCache(cfg.Cache.MemoryEntries))

	pipeline := retrieval.NewPipeline(emb, gen, retrieval.NewStore(), opts)
	if !*verbose {
		pipeline.SetLogger(log.New(io.Discard, "", 0))
	}

	// Step 3: Ingest
	ctx := context.Background()
	res, err := pipeline.Ingest(ctx, "", words)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error processing transcript: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Processed %d words into %d chunks and %d segments (dim=%d)\n\n", res.Words, res.Chunks, res.Segments, res.Dimension)

	// Step 4: Answer
	if args := flag.Args(); len(args) > 0 {
		ask(ctx, pipeline, strings.Join(args, " "), *full)
		return
	}
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return
		}
		q := strings.TrimSpace(scanner.Text())
		if q == "" {
			continue
		}
		ask(ctx, pipeline, q, *full)
	}
}

func ask(ctx context.Context, p *retrieval.Pipeline, question string, full bool) {
	ans, err := p.Ask(ctx, "", question)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return
	}

	fmt.Printf("Confidence: %s (%.3f)\n", ans.Confidence.Level, ans.Confidence.Score)
	if ans.AnswerText == nil {
		fmt.Println(ans.Message)
		fmt.Println()
		return
	}
	fmt.Println(*ans.AnswerText)
	if ans.Source != nil {
		fmt.Printf("Source: %s - %s\n", formatTime(ans.Source.StartTime), formatTime(ans.Source.EndTime))
	}

	if full {
		session, err := p.Store().Get(ans.SessionID)
		if err == nil {
			for _, seg := range session.Segments {
				if ans.Source != nil && seg.StartTime == ans.Source.StartTime {
					fmt.Println("\n>>> MATCHED SEGMENT <<<")
					fmt.Println(seg.Text)
				}
			}
		}
	}
	fmt.Println("\n" + strings.Repeat("-", 80) + "\n")
}

// formatTime renders a millisecond offset as m:ss.
func formatTime(ms float64) string {
	s := int(ms / 1000)
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}
