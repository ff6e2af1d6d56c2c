// Package server exposes the video QA pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/perbu/videoqa/pkg/media"
	"github.com/perbu/videoqa/pkg/retrieval"
	"github.com/perbu/videoqa/pkg/transcribe"
	"github.com/perbu/videoqa/pkg/transcript"
	"github.com/perbu/videoqa/pkg/youtube"
)

const maxBodyBytes = 16 << 20

var errNotConfigured = errors.New("feature not configured")

// VideoSearcher finds videos and their metadata.
type VideoSearcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]string, error)
	Videos(ctx context.Context, ids []string) ([]youtube.Video, error)
}

// AudioDownloader fetches the audio track of a video into a local file.
type AudioDownloader interface {
	DownloadAudio(ctx context.Context, videoID string) (string, error)
}

// Transcriber turns an audio file into timed words.
type Transcriber interface {
	TranscribeFile(ctx context.Context, path string) (*transcribe.Result, error)
}

// Server holds the pipeline and the optional providers. A nil provider
// disables the endpoints depending on it.
type Server struct {
	Pipeline    *retrieval.Pipeline
	Searcher    VideoSearcher
	Downloader  AudioDownloader
	Transcriber Transcriber
	MaxResults  int
	Logger      *log.Logger
}

// Handler returns the HTTP routes wrapped in CORS and request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /search", s.handleSearch)
	mux.HandleFunc("GET /transcript", s.handleTranscript)
	mux.HandleFunc("POST /ingest", s.handleIngest)
	mux.HandleFunc("GET /ask", s.handleAsk)
	mux.HandleFunc("POST /ask", s.handleAsk)
	return s.logRequests(cors(mux))
}

func (s *Server) logger() *log.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return log.Default()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": len(s.Pipeline.Store().IDs()),
	})
}

type searchResponse struct {
	Count  int             `json:"count"`
	Videos []youtube.Video `json:"videos"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	text := strings.TrimSpace(r.URL.Query().Get("text"))
	if text == "" {
		writeError(w, http.StatusBadRequest, "enter topics related to what you want to search about")
		return
	}
	if s.Searcher == nil {
		s.fail(w, fmt.Errorf("search: %w", errNotConfigured))
		return
	}
	maxResults := s.MaxResults
	if maxResults <= 0 {
		maxResults = 10
	}
	ids, err := s.Searcher.Search(r.Context(), text, maxResults)
	if err != nil {
		s.fail(w, &retrieval.ProviderError{Stage: retrieval.StageSearch, Err: err})
		return
	}
	videos, err := s.Searcher.Videos(r.Context(), ids)
	if err != nil {
		s.fail(w, &retrieval.ProviderError{Stage: retrieval.StageSearch, Err: err})
		return
	}
	s.logger().Printf("search %q: %d ids, %d videos", text, len(ids), len(videos))
	writeJSON(w, http.StatusOK, searchResponse{Count: len(ids), Videos: videos})
}

type transcriptResponse struct {
	VideoID     string `json:"videoId"`
	SessionID   string `json:"sessionId"`
	Transcript  string `json:"transcript"`
	Words       int    `json:"words"`
	Chunks      int    `json:"chunks"`
	Segments    int    `json:"segments"`
	Fingerprint string `json:"fingerprint"`
}

// handleTranscript downloads, transcribes and ingests a video. The session ID
// is the video ID.
func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	videoID := strings.TrimSpace(r.URL.Query().Get("videoId"))
	if videoID == "" {
		writeError(w, http.StatusBadRequest, "videoId required")
		return
	}
	if !media.ValidVideoID(videoID) {
		s.fail(w, fmt.Errorf("%w: %q", media.ErrInvalidVideoID, videoID))
		return
	}
	if s.Downloader == nil || s.Transcriber == nil {
		s.fail(w, fmt.Errorf("transcript: %w", errNotConfigured))
		return
	}
	ctx := r.Context()
	start := time.Now()

	audio, err := s.Downloader.DownloadAudio(ctx, videoID)
	if err != nil {
		s.fail(w, &retrieval.ProviderError{Stage: retrieval.StageDownload, Err: err})
		return
	}
	defer func() {
		if err := os.Remove(audio); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger().Printf("removing %s: %v", audio, err)
		}
	}()

	res, err := s.Transcriber.TranscribeFile(ctx, audio)
	if err != nil {
		s.fail(w, &retrieval.ProviderError{Stage: retrieval.StageTranscribe, Err: err})
		return
	}
	s.logger().Printf("transcript %s: %d words in %s", videoID, len(res.Words), time.Since(start).Round(time.Second))

	ing, err := s.Pipeline.Ingest(ctx, videoID, res.Words)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, transcriptResponse{
		VideoID:     videoID,
		SessionID:   ing.SessionID,
		Transcript:  res.Text,
		Words:       ing.Words,
		Chunks:      ing.Chunks,
		Segments:    ing.Segments,
		Fingerprint: ing.Fingerprint,
	})
}

type ingestRequest struct {
	SessionID string                 `json:"sessionId"`
	Words     []transcript.TimedWord `json:"words"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.Pipeline.Ingest(r.Context(), req.SessionID, req.Words)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type askRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"sessionId"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	req := askRequest{
		Question:  r.URL.Query().Get("question"),
		SessionID: r.URL.Query().Get("sessionId"),
	}
	if r.Method == http.MethodPost && r.ContentLength != 0 {
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	ans, err := s.Pipeline.Ask(r.Context(), req.SessionID, req.Question)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ans)
}

// fail maps err to a status code and writes it as a JSON error.
func (s *Server) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= 500 {
		s.logger().Printf("error: %v", err)
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	var perr *retrieval.ProviderError
	switch {
	case errors.Is(err, retrieval.ErrSessionNotReady):
		return http.StatusConflict
	case errors.Is(err, retrieval.ErrEmptyQuestion),
		errors.Is(err, transcript.ErrEmptyInput),
		errors.Is(err, media.ErrInvalidVideoID):
		return http.StatusBadRequest
	case errors.Is(err, transcribe.ErrTranscriptionTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, errNotConfigured):
		return http.StatusServiceUnavailable
	case errors.As(err, &perr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(r *http.Request, dst any) error {
	body := http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid json: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		log.Printf("write json: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger().Printf("%s %s %d %s", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Millisecond))
	})
}
