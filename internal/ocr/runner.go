package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// DefaultBinary is the tesseract executable looked up on PATH.
const DefaultBinary = "tesseract"

// ExecRunner implements Runner by executing the real tesseract binary. It is
// the default runner used in production.
type ExecRunner struct {
	// bin is the resolved path of the tesseract executable.
	bin string
}

// NewExecRunner returns an ExecRunner for bin (DefaultBinary if empty). It
// verifies that the binary is available at construction time.
func NewExecRunner(bin string) (*ExecRunner, error) {
	if bin == "" {
		bin = DefaultBinary
	}
	path, err := exec.LookPath(bin)
	if err != nil {
		return nil, fmt.Errorf("ocr: %s binary not found; install tesseract or set TESSERACT_BIN: %w", bin, err)
	}
	return &ExecRunner{bin: path}, nil
}

// Recognize runs `tesseract <image> stdout -l <language>` and returns stdout.
// A non-zero exit is an error carrying tesseract's stderr.
func (r *ExecRunner) Recognize(ctx context.Context, imagePath, language string) (string, error) {
	cmd := exec.CommandContext(ctx, r.bin, imagePath, "stdout", "-l", language)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("ocr: tesseract exited %d: %s", exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return "", fmt.Errorf("ocr: failed to run tesseract: %w", err)
	}
	return stdout.String(), nil
}
