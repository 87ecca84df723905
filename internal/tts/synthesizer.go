// Package tts turns text into WAV artifacts by invoking an external
// synthesis tool.
package tts

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrEmptyText       = errors.New("text is empty")
	ErrTextTooLong     = errors.New("text too long")
	ErrTimeout         = errors.New("synthesis timed out")
	ErrKilled          = errors.New("synthesis process killed")
	ErrProcessFailed   = errors.New("synthesis process failed")
	ErrArtifactMissing = errors.New("synthesis produced no artifact")
)

// Request is one invocation of the external tool.
type Request struct {
	Text     string
	Voice    string
	Speed    float64
	DestPath string
}

// Synthesizer renders Request.Text into a WAV file at Request.DestPath.
// Failures are reported as *SynthesisError.
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) error
	Name() string
}

// SynthesisError describes a failed invocation. Kind is one of the package
// sentinels and is matched by errors.Is.
type SynthesisError struct {
	Kind     error
	Command  string
	ExitCode int
	Stdout   string
	Stderr   string
	Err      error
}

func (e *SynthesisError) Error() string {
	msg := e.Kind.Error()
	if e.ExitCode != 0 {
		msg = fmt.Sprintf("%s (exit code %d)", msg, e.ExitCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *SynthesisError) Is(target error) bool { return target == e.Kind }

func (e *SynthesisError) Unwrap() error { return e.Err }
