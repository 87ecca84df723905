package tts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"
	"unicode/utf8"
)

// oomExitCode is what a shell reports for a child taken down by SIGKILL,
// which on Linux almost always means the OOM killer.
const oomExitCode = 128 + int(syscall.SIGKILL)

const outputHead = 500

// KokoroConfig describes how to launch the Kokoro command-line tool.
type KokoroConfig struct {
	Command string // interpreter, default "python"
	Module  string // run as "-m <module>"; empty runs Command directly
}

// KokoroCLI synthesizes speech by running the Kokoro CLI once per request:
//
//	python -m kokoro --voice V --text T --output-file P --speed S
type KokoroCLI struct {
	cfg KokoroConfig
}

func NewKokoroCLI(cfg KokoroConfig) *KokoroCLI {
	if cfg.Command == "" {
		cfg.Command = "python"
	}
	return &KokoroCLI{cfg: cfg}
}

func (k *KokoroCLI) Name() string { return "kokoro-cli" }

// Args returns the argument vector for req, without the command itself.
func (k *KokoroCLI) Args(req Request) []string {
	var args []string
	if k.cfg.Module != "" {
		args = append(args, "-m", k.cfg.Module)
	}
	return append(args,
		"--voice", req.Voice,
		"--text", req.Text,
		"--output-file", req.DestPath,
		"--speed", formatSpeed(req.Speed),
	)
}

func formatSpeed(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// Synthesize runs the tool to completion. Cancelling ctx, or reaching its
// deadline, kills the process.
func (k *KokoroCLI) Synthesize(ctx context.Context, req Request) error {
	args := k.Args(req)
	// #nosec G204 -- argv is built from config and passed without a shell
	cmd := exec.CommandContext(ctx, k.cfg.Command, args...)
	cmd.WaitDelay = 5 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}

	serr := &SynthesisError{
		Command: k.cfg.Command + " " + strings.Join(args, " "),
		Stdout:  head(stdout.String()),
		Stderr:  head(stderr.String()),
		Err:     err,
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		serr.Kind = ErrTimeout
		return serr
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		serr.Kind = ErrProcessFailed
		serr.Err = fmt.Errorf("start %s: %w", k.cfg.Command, err)
		return serr
	}

	serr.ExitCode = exitErr.ExitCode()
	if killedByOOM(exitErr) {
		serr.Kind = ErrKilled
		return serr
	}
	serr.Kind = ErrProcessFailed
	return serr
}

func killedByOOM(exitErr *exec.ExitError) bool {
	if exitErr.ExitCode() == oomExitCode {
		return true
	}
	ws, ok := exitErr.Sys().(syscall.WaitStatus)
	return ok && ws.Signaled() && ws.Signal() == syscall.SIGKILL
}

// head keeps at most outputHead bytes of s, cut on a rune boundary.
func head(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= outputHead {
		return s
	}
	cut := outputHead
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
