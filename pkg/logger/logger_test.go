package logger

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDebugToggle(t *testing.T) {
	var buf bytes.Buffer
	setOutput(&buf)
	t.Cleanup(func() {
		SetDebug(false)
		setOutput(os.Stderr)
	})

	Debug("hidden %d", 1)
	Info("shown %d", 2)
	assert.NotContains(t, buf.String(), "hidden 1")
	assert.Contains(t, buf.String(), "shown 2")

	SetDebug(true)
	Debug("visible %s", "now")
	Warn("careful")
	assert.Contains(t, buf.String(), "visible now")
	assert.Contains(t, buf.String(), "WARN")
}
