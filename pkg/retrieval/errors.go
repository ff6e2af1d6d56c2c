package retrieval

import (
	"errors"
	"fmt"
)

var (
	ErrSessionNotReady = errors.New("no transcript has been processed for this session")
	ErrEmptyQuestion   = errors.New("question is empty")
)

// Stage names the external provider a failure came from.
type Stage string

const (
	StageEmbed      Stage = "embed"
	StageAnswer     Stage = "answer"
	StageTranscribe Stage = "transcribe"
	StageDownload   Stage = "download"
	StageSearch     Stage = "search"
)

// ProviderError tags a failure from an external provider with the stage it happened in.
type ProviderError struct {
	Stage Stage
	Err   error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider: %v", e.Stage, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func providerErr(stage Stage, err error) error {
	return &ProviderError{Stage: stage, Err: err}
}
