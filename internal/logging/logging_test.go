package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNewLevels(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "warn", false)
	assert.Equal(t, zerolog.WarnLevel, l.GetLevel())

	l.Info().Msg("hidden")
	assert.Empty(t, buf.String())

	assert.Equal(t, zerolog.InfoLevel, New(&buf, "loud", false).GetLevel())
	assert.Equal(t, zerolog.InfoLevel, New(&buf, "", false).GetLevel())
}

func TestComponentField(t *testing.T) {
	var buf bytes.Buffer
	l := Component(New(&buf, "debug", false), "pipeline")
	l.Info().Msg("hello")
	assert.Contains(t, buf.String(), `"component":"pipeline"`)
}
