// Package config loads the service configuration. Sources, lowest precedence
// first: built-in defaults, an optional YAML file, a .env file, the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/perbu/videoqa/pkg/retrieval"
	"github.com/perbu/videoqa/pkg/retry"
)

// GeminiBaseURL is Gemini's OpenAI-compatible endpoint, used when only
// GEMINI_API_KEY is set.
const GeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"

type Config struct {
	Listen  string `yaml:"listen"`
	WorkDir string `yaml:"work_dir"` // Where downloaded audio is kept until transcribed

	Retrieval struct {
		MaxTokens        int             `yaml:"max_tokens"`
		OverlapTokens    int             `yaml:"overlap_tokens"`
		MergeThreshold   float64         `yaml:"merge_threshold"`
		Bands            retrieval.Bands `yaml:"bands"`
		TopK             int             `yaml:"top_k"`
		SummaryKeywords  []string        `yaml:"summary_keywords"`
		EmbedConcurrency int             `yaml:"embed_concurrency"`
	} `yaml:"retrieval"`

	OpenAI struct {
		APIKey         string  `yaml:"-"`
		BaseURL        string  `yaml:"base_url"`
		EmbeddingModel string  `yaml:"embedding_model"`
		ChatModel      string  `yaml:"chat_model"`
		Temperature    float32 `yaml:"temperature"`
	} `yaml:"openai"`

	AssemblyAI struct {
		APIKey          string        `yaml:"-"`
		BaseURL         string        `yaml:"base_url"`
		PollInterval    time.Duration `yaml:"poll_interval"`
		MaxPollInterval time.Duration `yaml:"max_poll_interval"`
		PollTimeout     time.Duration `yaml:"poll_timeout"`
	} `yaml:"assemblyai"`

	YouTube struct {
		APIKey     string `yaml:"-"`
		BaseURL    string `yaml:"base_url"`
		MaxResults int    `yaml:"max_results"`
	} `yaml:"youtube"`

	YtDlp struct {
		Path string `yaml:"path"`
	} `yaml:"yt_dlp"`

	// Embedding cache. Redis is used when Addr is set, memory otherwise.
	Cache struct {
		RedisAddr     string        `yaml:"redis_addr"`
		RedisPassword string        `yaml:"-"`
		RedisDB       int           `yaml:"redis_db"`
		TTL           time.Duration `yaml:"ttl"`
		MemoryEntries int           `yaml:"memory_entries"`
	} `yaml:"cache"`

	Provider struct {
		Timeout       time.Duration `yaml:"timeout"`
		RetryAttempts int           `yaml:"retry_attempts"`
		RetryDelay    time.Duration `yaml:"retry_delay"`
		RetryMaxDelay time.Duration `yaml:"retry_max_delay"`
	} `yaml:"provider"`
}

func Default() *Config {
	c := &Config{}
	c.Listen = ":3000"
	c.WorkDir = os.TempDir()

	opts := retrieval.DefaultOptions()
	c.Retrieval.MaxTokens = opts.MaxTokens
	c.Retrieval.OverlapTokens = opts.OverlapTokens
	c.Retrieval.MergeThreshold = opts.MergeThreshold
	c.Retrieval.Bands = opts.Bands
	c.Retrieval.TopK = opts.TopK
	c.Retrieval.SummaryKeywords = opts.SummaryKeywords
	c.Retrieval.EmbedConcurrency = opts.EmbedConcurrency

	c.OpenAI.EmbeddingModel = "text-embedding-3-small"
	c.OpenAI.ChatModel = "gpt-4o-mini"
	c.OpenAI.Temperature = 0.2

	c.AssemblyAI.PollInterval = 3 * time.Second
	c.AssemblyAI.MaxPollInterval = 30 * time.Second
	c.AssemblyAI.PollTimeout = 30 * time.Minute

	c.YouTube.MaxResults = 10

	c.YtDlp.Path = "yt-dlp"

	c.Cache.TTL = 24 * time.Hour
	c.Cache.MemoryEntries = 10000

	p := retry.DefaultPolicy()
	c.Provider.Timeout = 60 * time.Second
	c.Provider.RetryAttempts = p.Attempts
	c.Provider.RetryDelay = p.InitialDelay
	c.Provider.RetryMaxDelay = p.MaxDelay
	return c
}

// Load builds the configuration. yamlPath may be empty; envFile is loaded if
// it exists and never overrides variables already set in the environment.
func Load(yamlPath, envFile string) (*Config, error) {
	cfg := Default()

	if yamlPath != "" {
		data, err := os.ReadFile(yamlPath)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", yamlPath, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", yamlPath, err)
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok && v != "" {
			*dst = v
		}
	}
	var err error
	integer := func(name string, dst *int) {
		v, ok := lookup(name)
		if !ok || v == "" || err != nil {
			return
		}
		n, perr := strconv.Atoi(v)
		if perr != nil {
			err = fmt.Errorf("%s: %w", name, perr)
			return
		}
		*dst = n
	}
	duration := func(name string, dst *time.Duration) {
		v, ok := lookup(name)
		if !ok || v == "" || err != nil {
			return
		}
		d, perr := time.ParseDuration(v)
		if perr != nil {
			err = fmt.Errorf("%s: %w", name, perr)
			return
		}
		*dst = d
	}

	str("LISTEN_ADDR", &c.Listen)
	if port, ok := lookup("PORT"); ok && port != "" {
		c.Listen = ":" + port
	}
	str("WORK_DIR", &c.WorkDir)

	str("OPENAI_API_KEY", &c.OpenAI.APIKey)
	str("OPENAI_BASE_URL", &c.OpenAI.BaseURL)
	str("EMBEDDING_MODEL", &c.OpenAI.EmbeddingModel)
	str("CHAT_MODEL", &c.OpenAI.ChatModel)
	if c.OpenAI.APIKey == "" {
		if key, ok := lookup("GEMINI_API_KEY"); ok && key != "" {
			c.OpenAI.APIKey = key
			if c.OpenAI.BaseURL == "" {
				c.OpenAI.BaseURL = GeminiBaseURL
			}
		}
	}

	str("ASSEMBLYAI_API_KEY", &c.AssemblyAI.APIKey)
	duration("ASSEMBLYAI_POLL_TIMEOUT", &c.AssemblyAI.PollTimeout)

	str("YOUTUBE_API_KEY", &c.YouTube.APIKey)
	str("YTDLP_PATH", &c.YtDlp.Path)

	str("REDIS_ADDR", &c.Cache.RedisAddr)
	str("REDIS_PASSWORD", &c.Cache.RedisPassword)
	integer("REDIS_DB", &c.Cache.RedisDB)

	duration("PROVIDER_TIMEOUT", &c.Provider.Timeout)
	integer("PROVIDER_RETRY_ATTEMPTS", &c.Provider.RetryAttempts)
	integer("EMBED_CONCURRENCY", &c.Retrieval.EmbedConcurrency)
	integer("TOP_K", &c.Retrieval.TopK)
	return err
}

// Validate checks the tunables. Missing provider keys are not an error here;
// the features needing them are disabled instead.
func (c *Config) Validate() error {
	r := c.Retrieval
	var problems []string
	if r.MaxTokens <= 0 {
		problems = append(problems, "max_tokens must be positive")
	}
	if r.OverlapTokens < 0 || r.OverlapTokens >= r.MaxTokens {
		problems = append(problems, "overlap_tokens must be in [0, max_tokens)")
	}
	if r.MergeThreshold < -1 || r.MergeThreshold > 1 {
		problems = append(problems, "merge_threshold must be in [-1, 1]")
	}
	if err := r.Bands.Validate(); err != nil {
		problems = append(problems, err.Error())
	}
	if r.TopK <= 0 {
		problems = append(problems, "top_k must be positive")
	}
	if r.EmbedConcurrency <= 0 {
		problems = append(problems, "embed_concurrency must be positive")
	}
	if c.Provider.RetryAttempts <= 0 {
		problems = append(problems, "provider retry_attempts must be positive")
	}
	if c.AssemblyAI.PollTimeout <= 0 {
		problems = append(problems, "assemblyai poll_timeout must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Options returns the retrieval pipeline options.
func (c *Config) Options() retrieval.Options {
	r := c.Retrieval
	return retrieval.Options{
		MaxTokens:        r.MaxTokens,
		OverlapTokens:    r.OverlapTokens,
		MergeThreshold:   r.MergeThreshold,
		Bands:            r.Bands,
		TopK:             r.TopK,
		SummaryKeywords:  r.SummaryKeywords,
		EmbedConcurrency: r.EmbedConcurrency,
	}
}

// RetryPolicy returns the retry policy for provider calls. The caller sets
// Retryable.
func (c *Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		Attempts:     c.Provider.RetryAttempts,
		InitialDelay: c.Provider.RetryDelay,
		MaxDelay:     c.Provider.RetryMaxDelay,
	}
}
