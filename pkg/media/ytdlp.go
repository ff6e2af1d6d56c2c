// Package media downloads audio tracks with yt-dlp.
package media

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"time"
)

var (
	ErrInvalidVideoID = errors.New("invalid YouTube video id")
	videoIDRegex      = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
)

// ValidVideoID reports whether id looks like a YouTube video id.
func ValidVideoID(id string) bool {
	return videoIDRegex.MatchString(id)
}

// WatchURL returns the watch page URL of a video.
func WatchURL(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}

// YtDlp runs the yt-dlp binary.
type YtDlp struct {
	Path string // Resolved path to the executable, or a name looked up in PATH
	Dir  string // Where audio files are written; empty means the OS temp dir
}

func NewYtDlp(path, dir string) *YtDlp {
	if path == "" {
		path = "yt-dlp"
	}
	return &YtDlp{Path: path, Dir: dir}
}

// CheckBinary verifies that the yt-dlp executable can be found.
func (y *YtDlp) CheckBinary() error {
	if _, err := exec.LookPath(y.Path); err != nil {
		return fmt.Errorf("yt-dlp not found (%s): %w", y.Path, err)
	}
	return nil
}

// BuildArgs returns the yt-dlp arguments extracting the audio of a video as mp3.
func (y *YtDlp) BuildArgs(videoID, outputTemplate string) []string {
	return []string{
		"--no-config",
		"--no-progress",
		"--no-playlist",
		"-x", "--audio-format", "mp3",
		"-o", outputTemplate,
		WatchURL(videoID),
	}
}

// DownloadAudio extracts the audio of a video into an mp3 file and returns its
// path. The caller removes the file when done.
func (y *YtDlp) DownloadAudio(ctx context.Context, videoID string) (string, error) {
	if !ValidVideoID(videoID) {
		return "", fmt.Errorf("%w: %q", ErrInvalidVideoID, videoID)
	}
	dir := y.Dir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating audio dir: %w", err)
	}

	start := time.Now()
	base := filepath.Join(dir, "audio_"+videoID)
	cmd := exec.CommandContext(ctx, y.Path, y.BuildArgs(videoID, base+".%(ext)s")...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("yt-dlp failed: %w, output: %s", err, tail(out, 2048))
	}

	path := base + ".mp3"
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("yt-dlp produced no audio file: %w", err)
	}
	log.Printf("yt-dlp: %s downloaded in %s", videoID, time.Since(start).Round(time.Millisecond))
	return path, nil
}

func tail(b []byte, n int) string {
	if len(b) > n {
		b = b[len(b)-n:]
	}
	return string(b)
}
