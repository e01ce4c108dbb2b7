package extractor

import (
	"context"
	"errors"
	"fmt"
)

// Stage names the extraction step at which a file was skipped.
type Stage string

const (
	StageRead   Stage = "read"
	StageSize   Stage = "size"
	StageParse  Stage = "parse"
	StageCancel Stage = "cancel"
)

var (
	// ErrSyntax marks a file whose parse tree contains syntax errors.
	ErrSyntax = errors.New("syntax error")
	// ErrTooLarge marks a file above the configured size limit.
	ErrTooLarge = errors.New("file too large")
)

// Skipped describes one file that contributed nothing to the graph.
type Skipped struct {
	Path  string `json:"path" toon:"path"`
	Stage Stage  `json:"stage" toon:"stage"`
	Err   error  `json:"-" toon:"-"`
	// Message mirrors Err for serialized output.
	Message string `json:"error" toon:"error"`
}

func (s Skipped) Error() string {
	return fmt.Sprintf("%s: %s: %v", s.Path, s.Stage, s.Err)
}

func (s Skipped) Unwrap() error {
	return s.Err
}

// Diagnostics lists the files skipped during extraction, in input order.
type Diagnostics struct {
	Skipped []Skipped `json:"skipped" toon:"skipped"`
}

func (d *Diagnostics) add(path string, stage Stage, err error) {
	d.Skipped = append(d.Skipped, Skipped{Path: path, Stage: stage, Err: err, Message: err.Error()})
}

// Len returns the number of skipped files.
func (d *Diagnostics) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Skipped)
}

// Paths returns the skipped file paths.
func (d *Diagnostics) Paths() []string {
	if d == nil {
		return nil
	}
	paths := make([]string, len(d.Skipped))
	for i, s := range d.Skipped {
		paths[i] = s.Path
	}
	return paths
}

// ByStage counts skipped files per stage.
func (d *Diagnostics) ByStage() map[Stage]int {
	counts := make(map[Stage]int)
	if d == nil {
		return counts
	}
	for _, s := range d.Skipped {
		counts[s.Stage]++
	}
	return counts
}

// stageError tags a per-file failure with the step that produced it.
type stageError struct {
	stage Stage
	err   error
}

func (e *stageError) Error() string { return e.err.Error() }

func (e *stageError) Unwrap() error { return e.err }

func failAt(stage Stage, err error) error {
	return &stageError{stage: stage, err: err}
}

// stageOf classifies a per-file error.
func stageOf(err error) Stage {
	var se *stageError
	switch {
	case errors.As(err, &se):
		return se.stage
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return StageCancel
	default:
		return StageRead
	}
}
