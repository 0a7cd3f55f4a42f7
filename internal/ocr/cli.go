package ocr

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"image"
	"os/exec"
	"strings"

	apperrors "go-ocr-enhancer/internal/errors"
)

// CLIEngine pipes a PNG into the tesseract binary and reads text from stdout.
type CLIEngine struct {
	command string
}

// NewCLIEngine creates an engine that runs command, usually "tesseract".
func NewCLIEngine(command string) *CLIEngine {
	if command == "" {
		command = "tesseract"
	}
	return &CLIEngine{command: command}
}

// Recognize implements Engine.
func (e *CLIEngine) Recognize(ctx context.Context, img *image.Gray, cfg EngineConfig) (string, error) {
	path, err := exec.LookPath(e.command)
	if err != nil {
		return "", apperrors.NewEngineUnavailableError(fmt.Sprintf("%s not found in PATH", e.command), err)
	}

	data, err := encodePNG(img)
	if err != nil {
		return "", err
	}

	cmd := exec.CommandContext(ctx, path, append([]string{"stdin", "stdout"}, cfg.Args()...)...)
	cmd.Stdin = bytes.NewReader(data)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", apperrors.NewTimeoutError("tesseract did not finish in time", ctx.Err())
		}
		var exitErr *exec.ExitError
		if stderrors.As(err, &exitErr) {
			return "", fmt.Errorf("tesseract execution failed: %w (stderr: %s)", err, strings.TrimSpace(stderr.String()))
		}
		return "", apperrors.NewEngineUnavailableError("tesseract could not be started", err)
	}
	return stdout.String(), nil
}
