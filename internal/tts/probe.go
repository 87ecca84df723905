package tts

import (
	"fmt"
	"os/exec"
)

// Probe reports whether command resolves to an executable on this host.
func Probe(command string) (string, error) {
	p, err := exec.LookPath(command)
	if err != nil {
		return "", fmt.Errorf("tts command %q not reachable: %w", command, err)
	}
	return p, nil
}
