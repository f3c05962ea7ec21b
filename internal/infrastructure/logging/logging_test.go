package logging

import (
	"bytes"
	"testing"

	gol "github.com/op/go-logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/review-core/internal/infrastructure/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected gol.Level
		wantErr  bool
	}{
		{input: "debug", expected: gol.DEBUG},
		{input: "INFO", expected: gol.INFO},
		{input: "Notice", expected: gol.NOTICE},
		{input: "warn", expected: gol.WARNING},
		{input: "warning", expected: gol.WARNING},
		{input: "error", expected: gol.ERROR},
		{input: "loud", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestSetup(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Setup(config.LogConfig{Level: "warning"}, &buf))

	logger := gol.MustGetLogger("settest")
	logger.Infof("quiet %d", 1)
	logger.Warningf("loud %d", 2)

	out := buf.String()
	assert.NotContains(t, out, "quiet 1")
	assert.Contains(t, out, "WARN settest: loud 2")
}

func TestSetup_Errors(t *testing.T) {
	var buf bytes.Buffer
	require.Error(t, Setup(config.LogConfig{Level: "chatty"}, &buf))
	require.Error(t, Setup(config.LogConfig{Format: "xml"}, &buf))
}

func TestSetup_MemoryBackendCapturesModule(t *testing.T) {
	require.NoError(t, Setup(config.LogConfig{Level: "debug"}, &bytes.Buffer{}))

	mem := gol.NewMemoryBackend(8)
	gol.SetBackend(mem)
	t.Cleanup(func() { _ = Setup(config.LogConfig{}, &bytes.Buffer{}) })

	gol.MustGetLogger("memtest").Noticef("hello")

	head := mem.Head()
	require.NotNil(t, head)
	assert.Equal(t, "memtest", head.Record.Module)
	assert.Equal(t, gol.NOTICE, head.Record.Level)
	assert.Equal(t, "hello", head.Record.Message())
}
