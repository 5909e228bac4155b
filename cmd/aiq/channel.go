package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// terminalChannel prints answers and writes oversized ones to dir
type terminalChannel struct {
	stdout io.Writer
	stderr io.Writer
	dir    string
}

// SendText prints text; error lines go to stderr
func (c *terminalChannel) SendText(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w := c.stdout
	if strings.HasPrefix(text, "Error: ") {
		w = c.stderr
	}
	_, err := fmt.Fprintln(w, text)
	return err
}

// SendFile stores data under dir and reports where it went
func (c *terminalChannel) SendFile(ctx context.Context, data []byte, filename string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := c.dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(dir, filepath.Base(filename))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	_, err := fmt.Fprintf(c.stdout, "Response too long, saved to %s\n", path)
	return err
}
