package utils

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chunkRecorder struct {
	writes []string
}

func (c *chunkRecorder) Write(p []byte) (int, error) {
	c.writes = append(c.writes, string(p))
	return len(p), nil
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed") }

func TestDeferredWriter_FlushPreservesChunks(t *testing.T) {
	var d DeferredWriter

	buf := []byte(`{"level":"info"}`)
	_, _ = d.Write(buf)
	buf[2] = 'X' // caller reuses its buffer
	_, _ = d.Write([]byte(`{"level":"warn"}`))

	rec := &chunkRecorder{}
	require.NoError(t, d.Flush(rec))

	assert.Equal(t, []string{`{"level":"info"}`, `{"level":"warn"}`}, rec.writes)
	assert.Equal(t, 0, d.Len())
}

func TestDeferredWriter_FlushEmpty(t *testing.T) {
	var d DeferredWriter
	var out bytes.Buffer
	require.NoError(t, d.Flush(&out))
	assert.Empty(t, out.String())
}

func TestDeferredWriter_FlushError(t *testing.T) {
	var d DeferredWriter
	_, _ = d.Write([]byte("x"))
	assert.Error(t, d.Flush(failingWriter{}))
}
