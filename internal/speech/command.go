package speech

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// CommandSink speaks through a local TTS binary such as espeak or say. The
// text is written to the command's stdin, never passed as an argument.
type CommandSink struct {
	Path string
	Args []string
}

// NewCommandSink parses a command line like "espeak --stdin -s 160".
func NewCommandSink(command string) (*CommandSink, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty speech command")
	}
	path, err := exec.LookPath(fields[0])
	if err != nil {
		return nil, fmt.Errorf("speech command %q: %w", fields[0], err)
	}
	return &CommandSink{Path: path, Args: fields[1:]}, nil
}

func (s *CommandSink) Name() string { return "command" }

func (s *CommandSink) Speak(ctx context.Context, u Utterance) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, s.Path, s.Args...)
	cmd.Stdin = strings.NewReader(u.Text)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w: %s", s.Path, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
