package logger

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(os.Stderr) })

	tests := []struct {
		name     string
		cfg      Config
		contains []string
		absent   []string
	}{
		{
			name:     "json info",
			cfg:      Config{Level: "info", Format: "json"},
			contains: []string{`"component":"engine"`, `"message":"visible"`},
			absent:   []string{"hidden"},
		},
		{
			name:     "console debug",
			cfg:      Config{Level: "debug", Format: "console"},
			contains: []string{"| visible |", "| hidden |"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			require.NoError(t, Init(tt.cfg))

			l := GetLogger("engine")
			l.Info().Msg("visible")
			l.Debug().Msg("hidden")

			for _, s := range tt.contains {
				assert.Contains(t, buf.String(), s)
			}
			for _, s := range tt.absent {
				assert.NotContains(t, buf.String(), s)
			}
		})
	}
}

func TestInit_InvalidLevel(t *testing.T) {
	err := Init(Config{Level: "loud"})
	assert.Error(t, err)
}
