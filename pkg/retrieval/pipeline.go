package retrieval

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/perbu/videoqa/pkg/answer"
	"github.com/perbu/videoqa/pkg/embedder"
	"github.com/perbu/videoqa/pkg/transcript"
)

const (
	DefaultTopK = 3

	// NoAnswerMessage is returned instead of an answer when retrieval
	// confidence is too low.
	NoAnswerMessage = "The video does not contain enough relevant information to answer this question."
)

// Options are the tunables of the pipeline.
type Options struct {
	MaxTokens        int
	OverlapTokens    int
	MergeThreshold   float64
	Bands            Bands
	TopK             int
	SummaryKeywords  []string
	EmbedConcurrency int // Parallel embedding requests during ingestion
}

func DefaultOptions() Options {
	return Options{
		MaxTokens:        transcript.DefaultMaxTokens,
		OverlapTokens:    transcript.DefaultOverlapTokens,
		MergeThreshold:   DefaultMergeThreshold,
		Bands:            DefaultBands(),
		TopK:             DefaultTopK,
		SummaryKeywords:  DefaultSummaryKeywords(),
		EmbedConcurrency: 4,
	}
}

// Pipeline turns transcripts into searchable sessions and answers questions
// about them.
type Pipeline struct {
	embedder  embedder.Embedder
	generator answer.Generator
	store     *Store
	opts      Options
	logger    *log.Logger
}

func NewPipeline(e embedder.Embedder, g answer.Generator, store *Store, opts Options) *Pipeline {
	return &Pipeline{
		embedder:  e,
		generator: g,
		store:     store,
		opts:      opts,
		logger:    log.Default(),
	}
}

// SetLogger replaces the pipeline's logger.
func (p *Pipeline) SetLogger(l *log.Logger) {
	p.logger = l
}

func (p *Pipeline) Store() *Store {
	return p.store
}

// Ingest chunks, embeds and merges the words, re-embeds the merged segments and
// installs the result as the session sessionID. An empty sessionID gets a fresh
// one. On any error the previously stored session is left untouched.
func (p *Pipeline) Ingest(ctx context.Context, sessionID string, words []transcript.TimedWord) (IngestResult, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	start := time.Now()

	chunks, err := transcript.ChunkWords(words, p.opts.MaxTokens, p.opts.OverlapTokens)
	if err != nil {
		return IngestResult{}, fmt.Errorf("ingest %s: %w", sessionID, err)
	}
	p.logger.Printf("ingest %s: %d words -> %d chunks", sessionID, len(words), len(chunks))

	chunkTexts := make([]string, len(chunks))
	for i, c := range chunks {
		chunkTexts[i] = c.Text
	}
	chunkEmbeddings, err := p.embedAll(ctx, chunkTexts)
	if err != nil {
		return IngestResult{}, fmt.Errorf("ingest %s: embedding chunks: %w", sessionID, err)
	}

	segments, err := MergeChunks(chunks, chunkEmbeddings, p.opts.MergeThreshold)
	if err != nil {
		return IngestResult{}, fmt.Errorf("ingest %s: %w", sessionID, err)
	}
	p.logger.Printf("ingest %s: %d chunks merged into %d segments", sessionID, len(chunks), len(segments))

	segmentTexts := make([]string, len(segments))
	for i, s := range segments {
		segmentTexts[i] = s.Text
	}
	segmentEmbeddings, err := p.embedAll(ctx, segmentTexts)
	if err != nil {
		return IngestResult{}, fmt.Errorf("ingest %s: embedding segments: %w", sessionID, err)
	}
	dim := len(segmentEmbeddings[0])
	if dim != len(chunkEmbeddings[0]) {
		return IngestResult{}, fmt.Errorf("ingest %s: %w: segments have %d dimensions, chunks %d", sessionID, ErrDimensionMismatch, dim, len(chunkEmbeddings[0]))
	}

	session := &Session{
		ID:          sessionID,
		Fingerprint: transcript.Fingerprint(words),
		Transcript:  transcript.PlainText(words),
		Chunks:      chunks,
		Segments:    segments,
		Embeddings:  segmentEmbeddings,
		Dimension:   dim,
		ModelInfo:   p.embedder.ModelInfo(),
		CreatedAt:   time.Now(),
	}
	p.store.Put(session)
	p.logger.Printf("ingest %s: ready in %s (dim=%d)", sessionID, time.Since(start).Round(time.Millisecond), dim)

	return IngestResult{
		SessionID:   sessionID,
		Fingerprint: session.Fingerprint,
		Words:       len(words),
		Chunks:      len(chunks),
		Segments:    len(segments),
		Dimension:   dim,
	}, nil
}

// embedAll embeds texts and checks that every vector has the same dimension.
func (p *Pipeline) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := embedder.EmbedAll(ctx, p.embedder, texts, p.opts.EmbedConcurrency)
	if err != nil {
		return nil, providerErr(StageEmbed, err)
	}
	for i, v := range vecs {
		if len(v) == 0 || len(v) != len(vecs[0]) {
			return nil, fmt.Errorf("%w: text %d has %d dimensions, expected %d", ErrDimensionMismatch, i, len(v), len(vecs[0]))
		}
	}
	return vecs, nil
}

// Ask answers a question against the session sessionID, or the latest session
// when sessionID is empty. A low-confidence match returns an Answer with a nil
// AnswerText and does not call the answer generator.
func (p *Pipeline) Ask(ctx context.Context, sessionID, question string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	session, err := p.store.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if len(session.Segments) == 0 {
		return nil, ErrSessionNotReady
	}

	queryEmbedding, err := p.embedder.Embed(ctx, question)
	if err != nil {
		return nil, providerErr(StageEmbed, fmt.Errorf("embedding question: %w", err))
	}

	results, err := Search(session, queryEmbedding, p.opts.TopK)
	if err != nil {
		return nil, err
	}

	var bestScore float64
	if len(results) > 0 {
		bestScore = results[0].Score
	}
	confidence := p.opts.Bands.Evaluate(bestScore)

	ans := &Answer{
		SessionID: session.ID,
		Question:  question,
		Confidence: ConfidenceBlock{
			Score: roundScore(bestScore),
			Level: confidence.Level,
		},
	}

	if !confidence.AllowAnswer {
		ans.Message = NoAnswerMessage
		p.logger.Printf("ask %s: best score %.3f too low, not answering", session.ID, bestScore)
		return ans, nil
	}

	ans.Summary = IsSummaryQuestion(question, p.opts.SummaryKeywords)
	groundingContext := BuildContext(session, results, ans.Summary)

	text, err := p.generator.Generate(ctx, question, groundingContext)
	if err != nil {
		return nil, providerErr(StageAnswer, err)
	}

	best := results[0].Segment
	ans.AnswerText = &text
	ans.Source = &SourceRange{StartTime: best.StartTime, EndTime: best.EndTime}
	return ans, nil
}
