package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTextOutput(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, false)
	log.Info("hello world")
	assert.Contains(t, buf.String(), "[INFO]")
	assert.Contains(t, buf.String(), "hello world")
}

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, true)
	log.Info("test message", "key", "val")
	out := buf.String()
	assert.Contains(t, out, `"msg"`)
	assert.Contains(t, out, "test message")
	assert.Contains(t, out, `"key"`)
}

func TestRedactSensitive(t *testing.T) {
	assert.Equal(t, "REDACTED", Redact("password", "secret123"))
	assert.Equal(t, "REDACTED", Redact("Token", "abc"))
	assert.Equal(t, "value", Redact("normal", "value"))
	assert.Equal(t, "", Redact("password", ""))
}

func TestRedactInLogLine(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, false)
	log.Info("msg", "password", "hunter2", "normal", "value")
	out := buf.String()
	assert.Contains(t, out, "REDACTED")
	assert.NotContains(t, out, "hunter2")
	assert.Contains(t, out, "value")
}

func TestSetJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, false)
	log.Info("text mode")
	log.SetJSON(true)
	log.Info("json mode")
	out := buf.String()
	assert.Contains(t, out, "[INFO] text mode")
	assert.Contains(t, out, `"msg"`)
}

func TestKVsInText(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, false)
	log.Info("msg", "k1", "v1", "k2", "v2")
	out := buf.String()
	assert.Contains(t, out, "k1")
	assert.Contains(t, out, "v1")
	assert.Contains(t, out, "k2")
	assert.Contains(t, out, "v2")
}

func TestDiscardLoggerDoesNotPanic(t *testing.T) {
	log := Discard()
	log.Debug("d")
	log.Info("i")
	log.Warn("w")
	log.Error("e")
}
