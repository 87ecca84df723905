package tts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxTextLength is the longest accepted input, in characters, after trimming.
const MaxTextLength = 500

// OutputURLPrefix is where the output directory is mounted over HTTP.
const OutputURLPrefix = "/outputs"

// Artifact is a generated audio file.
type Artifact struct {
	FileName string
	Path     string
	URL      string
}

type InvokerConfig struct {
	OutputDir string
	Voice     string
	Speed     float64
	Timeout   time.Duration
}

// Invoker runs one synthesis per call: it names a fresh artifact, runs the
// synthesizer under a hard timeout and only reports success when the file
// actually exists.
type Invoker struct {
	synth   Synthesizer
	cfg     InvokerConfig
	logger  *slog.Logger
	newName func() string
}

func NewInvoker(synth Synthesizer, cfg InvokerConfig, logger *slog.Logger) (*Invoker, error) {
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("synthesis timeout must be positive")
	}
	dir, err := filepath.Abs(cfg.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("resolve output dir: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	cfg.OutputDir = dir
	if logger == nil {
		logger = slog.Default()
	}
	return &Invoker{synth: synth, cfg: cfg, logger: logger, newName: newArtifactName}, nil
}

func (inv *Invoker) OutputDir() string { return inv.cfg.OutputDir }

func (inv *Invoker) Voice() string { return inv.cfg.Voice }

// ValidateText trims text and checks it is non-empty and within MaxTextLength.
func ValidateText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyText
	}
	if utf8.RuneCountInString(text) > MaxTextLength {
		return "", ErrTextTooLong
	}
	return text, nil
}

// Generate synthesizes text into a new artifact. The caller's cancellation
// is ignored; only the configured timeout stops the tool.
func (inv *Invoker) Generate(ctx context.Context, text string) (*Artifact, error) {
	text, err := ValidateText(text)
	if err != nil {
		return nil, err
	}

	name := inv.newName()
	art := &Artifact{
		FileName: name,
		Path:     filepath.Join(inv.cfg.OutputDir, name),
		URL:      path.Join(OutputURLPrefix, name),
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), inv.cfg.Timeout)
	defer cancel()

	started := time.Now()
	err = inv.synth.Synthesize(ctx, Request{
		Text:     text,
		Voice:    inv.cfg.Voice,
		Speed:    inv.cfg.Speed,
		DestPath: art.Path,
	})
	elapsed := time.Since(started)

	if err != nil {
		inv.discard(art.Path)
		inv.logFailure(ctx, err, elapsed)
		if !errors.Is(err, ErrTimeout) && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &SynthesisError{Kind: ErrTimeout, Err: err}
		}
		return nil, err
	}

	info, statErr := os.Stat(art.Path)
	if statErr != nil || info.IsDir() {
		inv.logger.ErrorContext(ctx, "synthesis exited cleanly but artifact is missing",
			"synthesizer", inv.synth.Name(), "path", art.Path, "duration", elapsed)
		return nil, &SynthesisError{Kind: ErrArtifactMissing, Err: statErr}
	}

	inv.logger.InfoContext(ctx, "synthesis completed",
		"synthesizer", inv.synth.Name(), "artifact", art.FileName, "bytes", info.Size(),
		"chars", utf8.RuneCountInString(text), "duration", elapsed)
	return art, nil
}

func (inv *Invoker) logFailure(ctx context.Context, err error, elapsed time.Duration) {
	attrs := []any{"synthesizer", inv.synth.Name(), "error", err, "duration", elapsed}
	var serr *SynthesisError
	if errors.As(err, &serr) {
		attrs = append(attrs, "command", serr.Command, "exit_code", serr.ExitCode,
			"stdout", serr.Stdout, "stderr", serr.Stderr)
	}
	switch {
	case errors.Is(err, ErrTimeout):
		inv.logger.ErrorContext(ctx, "synthesis timed out", append(attrs, "timeout", inv.cfg.Timeout)...)
	case errors.Is(err, ErrKilled):
		inv.logger.ErrorContext(ctx, "synthesis process killed, likely out of memory", attrs...)
	default:
		inv.logger.ErrorContext(ctx, "synthesis failed", attrs...)
	}
}

// discard removes a partial artifact left behind by a failed run.
func (inv *Invoker) discard(p string) {
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		inv.logger.Warn("failed to remove partial artifact", "path", p, "error", err)
	}
}

func newArtifactName() string {
	return "output_" + strings.ReplaceAll(uuid.NewString(), "-", "") + ".wav"
}
