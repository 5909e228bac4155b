package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTerminalChannel(t *testing.T) {
	t.Run("errors go to stderr", func(t *testing.T) {
		stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
		ch := &terminalChannel{stdout: stdout, stderr: stderr}

		require.NoError(t, ch.SendText(context.Background(), "answer"))
		require.NoError(t, ch.SendText(context.Background(), "Error: boom"))

		assert.Equal(t, "answer\n", stdout.String())
		assert.Equal(t, "Error: boom\n", stderr.String())
	})

	t.Run("file is written under dir", func(t *testing.T) {
		stdout := &bytes.Buffer{}
		dir := filepath.Join(t.TempDir(), "nested")
		ch := &terminalChannel{stdout: stdout, stderr: &bytes.Buffer{}, dir: dir}

		require.NoError(t, ch.SendFile(context.Background(), []byte("body"), "../ai_response.txt"))

		data, err := os.ReadFile(filepath.Join(dir, "ai_response.txt"))
		require.NoError(t, err)
		assert.Equal(t, "body", string(data))
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		ch := &terminalChannel{stdout: &bytes.Buffer{}, stderr: &bytes.Buffer{}}

		assert.ErrorIs(t, ch.SendText(ctx, "x"), context.Canceled)
		assert.ErrorIs(t, ch.SendFile(ctx, nil, "x"), context.Canceled)
	})
}
