package logging

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSecretStringerAlwaysRedacts(t *testing.T) {
	t.Parallel()

	s := Secret("hunter2")
	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "[REDACTED]", s.GoString())
	assert.Equal(t, "value is [REDACTED]", fmt.Sprintf("value is %s", s))
	assert.Equal(t, "value is [REDACTED]", fmt.Sprintf("value is %v", s))
	assert.Equal(t, "value is [REDACTED]", fmt.Sprintf("value is %#v", s))
}

func TestSecretUnderlyingValueIntact(t *testing.T) {
	t.Parallel()

	// Wrapping must not alter the value for code that needs it back
	s := Secret("hunter2")
	assert.Equal(t, "hunter2", string(s))
}

func TestNewLogger(t *testing.T) {
	t.Parallel()

	logger := New(true, false)
	assert.True(t, logger.debug)
	assert.False(t, logger.noColor)

	quiet := New(false, true)
	assert.False(t, quiet.debug)
	assert.True(t, quiet.noColor)
}

func TestLoggerLevels(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := New(true, true).WithOutput(&buf)

	logger.Info("obfuscated %d field(s)", 3)
	logger.Warn("retrying")
	logger.Error("store unreachable")
	logger.Debug("plan has %d write(s)", 2)

	out := buf.String()
	assert.Contains(t, out, "✓ obfuscated 3 field(s)\n")
	assert.Contains(t, out, "⚠ retrying\n")
	assert.Contains(t, out, "✗ store unreachable\n")
	assert.Contains(t, out, "[DEBUG] plan has 2 write(s)\n")
	assert.NotContains(t, out, "\033[", "no-color output must carry no ANSI escapes")
}

func TestLoggerDebugSuppressed(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := New(false, true).WithOutput(&buf)

	logger.Debug("hidden")
	assert.Empty(t, buf.String())
}

func TestLoggerColorEscapes(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := New(false, false).WithOutput(&buf)

	logger.Info("done")
	assert.Equal(t, "\033[32m✓\033[0m done\n", buf.String())
}
