package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/perbu/videoqa/pkg/embedder"
	"github.com/perbu/videoqa/pkg/retrieval"
	"github.com/perbu/videoqa/pkg/transcribe"
	"github.com/perbu/videoqa/pkg/transcript"
	"github.com/perbu/videoqa/pkg/youtube"
)

type echoGenerator struct{}

func (echoGenerator) Generate(_ context.Context, question, _ string) (string, error) {
	return "answer to " + question, nil
}

type fakeSearcher struct {
	err error
}

func (f fakeSearcher) Search(_ context.Context, query string, maxResults int) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []string{"aaaaaaaaaaa", "bbbbbbbbbbb"}, nil
}

func (f fakeSearcher) Videos(_ context.Context, ids []string) ([]youtube.Video, error) {
	videos := make([]youtube.Video, len(ids))
	for i, id := range ids {
		videos[i] = youtube.Video{VideoID: id, Title: "title " + id, CaptionAvailable: true}
	}
	return videos, nil
}

type fakeDownloader struct {
	dir string
}

func (f fakeDownloader) DownloadAudio(_ context.Context, videoID string) (string, error) {
	path := filepath.Join(f.dir, "audio_"+videoID+".mp3")
	return path, os.WriteFile(path, []byte("mp3"), 0o644)
}

type fakeTranscriber struct {
	words []transcript.TimedWord
	err   error
}

func (f fakeTranscriber) TranscribeFile(_ context.Context, _ string) (*transcribe.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &transcribe.Result{ID: "t1", Text: "transcript text", Words: f.words}, nil
}

func timedWords(text string) []transcript.TimedWord {
	fields := strings.Fields(text)
	words := make([]transcript.TimedWord, len(fields))
	for i, f := range fields {
		words[i] = transcript.TimedWord{Text: f, Start: float64(i * 500), End: float64(i*500 + 400)}
	}
	return words
}

const lecture = "gradient descent updates the weights step by step."

// newTestServer starts a server with an offline embedder. configure sets the
// providers before the server starts.
func newTestServer(t *testing.T, configure func(*Server)) *httptest.Server {
	t.Helper()
	p := retrieval.NewPipeline(embedder.NewHashEmbedder(64), echoGenerator{}, retrieval.NewStore(), retrieval.DefaultOptions())
	quiet := log.New(io.Discard, "", 0)
	p.SetLogger(quiet)
	s := &Server{Pipeline: p, Logger: quiet}
	if configure != nil {
		configure(s)
	}
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func getJSON(t *testing.T, url string, dst any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if dst != nil {
		if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
			t.Fatalf("decoding %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func postJSON(t *testing.T, url string, body any, dst any) int {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url, "application/json", strings.NewReader(string(b)))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if dst != nil {
		if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
			t.Fatalf("decoding %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestAskBeforeIngest(t *testing.T) {
	ts := newTestServer(t, nil)
	var body map[string]string
	if code := getJSON(t, ts.URL+"/ask?question=what", &body); code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", code)
	}
	if !strings.Contains(body["error"], "no transcript") {
		t.Errorf("error = %q", body["error"])
	}
}

func TestIngestThenAsk(t *testing.T) {
	ts := newTestServer(t, nil)

	var ing retrieval.IngestResult
	code := postJSON(t, ts.URL+"/ingest", ingestRequest{SessionID: "lec", Words: timedWords(lecture)}, &ing)
	if code != http.StatusOK {
		t.Fatalf("ingest status = %d", code)
	}
	if ing.SessionID != "lec" || ing.Segments != 1 || ing.Words != 8 {
		t.Errorf("unexpected ingest result %+v", ing)
	}

	var ans retrieval.Answer
	code = postJSON(t, ts.URL+"/ask", askRequest{Question: lecture, SessionID: "lec"}, &ans)
	if code != http.StatusOK {
		t.Fatalf("ask status = %d", code)
	}
	if ans.AnswerText == nil || *ans.AnswerText != "answer to "+lecture {
		t.Fatalf("unexpected answer %+v", ans)
	}
	if ans.Confidence.Level != retrieval.LevelVeryConfident || ans.Confidence.Score != 1 {
		t.Errorf("confidence = %+v", ans.Confidence)
	}
	if ans.Source == nil || ans.Source.StartTime != 0 || ans.Source.EndTime != 3900 {
		t.Errorf("source = %+v", ans.Source)
	}
}

func TestAsk_EmptyQuestion(t *testing.T) {
	ts := newTestServer(t, nil)
	postJSON(t, ts.URL+"/ingest", ingestRequest{Words: timedWords(lecture)}, nil)
	if code := getJSON(t, ts.URL+"/ask?question=%20", nil); code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", code)
	}
}

func TestIngest_Errors(t *testing.T) {
	ts := newTestServer(t, nil)
	if code := postJSON(t, ts.URL+"/ingest", ingestRequest{}, nil); code != http.StatusBadRequest {
		t.Errorf("empty words: status = %d, want 400", code)
	}
	resp, err := http.Post(ts.URL+"/ingest", "application/json", strings.NewReader("{"))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad json: status = %d, want 400", resp.StatusCode)
	}
}

func TestSearch(t *testing.T) {
	ts := newTestServer(t, nil)
	if code := getJSON(t, ts.URL+"/search?text=x", nil); code != http.StatusServiceUnavailable {
		t.Errorf("unconfigured search: status = %d, want 503", code)
	}

	ts = newTestServer(t, func(s *Server) { s.Searcher = fakeSearcher{} })
	if code := getJSON(t, ts.URL+"/search", nil); code != http.StatusBadRequest {
		t.Errorf("missing text: status = %d, want 400", code)
	}

	var res searchResponse
	if code := getJSON(t, ts.URL+"/search?text=gradients", &res); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if res.Count != 2 || len(res.Videos) != 2 || res.Videos[1].VideoID != "bbbbbbbbbbb" {
		t.Errorf("unexpected response %+v", res)
	}

	ts = newTestServer(t, func(s *Server) { s.Searcher = fakeSearcher{err: errors.New("quota exceeded")} })
	if code := getJSON(t, ts.URL+"/search?text=gradients", nil); code != http.StatusBadGateway {
		t.Errorf("provider failure: status = %d, want 502", code)
	}
}

func TestTranscript(t *testing.T) {
	dir := t.TempDir()
	ts := newTestServer(t, func(s *Server) {
		s.Downloader = fakeDownloader{dir: dir}
		s.Transcriber = fakeTranscriber{words: timedWords(lecture)}
	})

	var res transcriptResponse
	if code := getJSON(t, ts.URL+"/transcript?videoId=aaaaaaaaaaa", &res); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if res.VideoID != "aaaaaaaaaaa" || res.SessionID != "aaaaaaaaaaa" || res.Transcript != "transcript text" {
		t.Errorf("unexpected response %+v", res)
	}
	if _, err := os.Stat(filepath.Join(dir, "audio_aaaaaaaaaaa.mp3")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("audio file not removed: %v", err)
	}

	// The video becomes the latest session.
	var ans retrieval.Answer
	if code := getJSON(t, ts.URL+"/ask?question=gradient+descent", &ans); code != http.StatusOK {
		t.Fatalf("ask status = %d", code)
	}
	if ans.SessionID != "aaaaaaaaaaa" {
		t.Errorf("session = %q", ans.SessionID)
	}
}

func TestTranscript_Errors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name        string
		query       string
		transcriber Transcriber
		want        int
	}{
		{"missing id", "", fakeTranscriber{}, http.StatusBadRequest},
		{"invalid id", "videoId=nope", fakeTranscriber{}, http.StatusBadRequest},
		{"timeout", "videoId=aaaaaaaaaaa", fakeTranscriber{err: fmt.Errorf("polling: %w", transcribe.ErrTranscriptionTimeout)}, http.StatusGatewayTimeout},
		{"failed", "videoId=aaaaaaaaaaa", fakeTranscriber{err: transcribe.ErrTranscriptionFailed}, http.StatusBadGateway},
		{"no words", "videoId=aaaaaaaaaaa", fakeTranscriber{}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, func(s *Server) {
				s.Downloader = fakeDownloader{dir: dir}
				s.Transcriber = tt.transcriber
			})
			if code := getJSON(t, ts.URL+"/transcript?"+tt.query, nil); code != tt.want {
				t.Errorf("status = %d, want %d", code, tt.want)
			}
		})
	}
}

func TestCORS(t *testing.T) {
	ts := newTestServer(t, nil)
	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/ask", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("preflight status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("allow origin = %q", got)
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil)
	var body map[string]any
	if code := getJSON(t, ts.URL+"/healthz", &body); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestAsk_PostWithQueryOnly(t *testing.T) {
	ts := newTestServer(t, nil)
	postJSON(t, ts.URL+"/ingest", ingestRequest{SessionID: "lec", Words: timedWords(lecture)}, nil)

	resp, err := http.Post(ts.URL+"/ask?sessionId=lec&question=gradient+descent", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d, body %s", resp.StatusCode, body)
	}
	var ans retrieval.Answer
	if err := json.NewDecoder(resp.Body).Decode(&ans); err != nil {
		t.Fatal(err)
	}
	if ans.SessionID != "lec" || ans.Question != "gradient descent" {
		t.Errorf("query values not used: %+v", ans)
	}
}
