package logger

import (
	"bytes"
	"net/url"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestRedactURL(t *testing.T) {
	got := RedactURL("https://generativelanguage.googleapis.com/v1beta/models/gemini-1.5-flash:generateContent?key=secret")
	assert.NotContains(t, got, "secret")
	assert.Contains(t, got, "key=REDACTED")

	plain := "http://localhost:11434/api/generate"
	assert.Equal(t, plain, RedactURL(plain))
}

func TestLeveledLogrus_FieldsAndRedaction(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	l.SetLevel(logrus.DebugLevel)
	l.SetFormatter(&logrus.JSONFormatter{})

	u, _ := url.Parse("https://example.com/m:generateContent?key=secret")
	NewLeveledLogrus(l).Debug("performing request", "method", "POST", "url", u)

	out := buf.String()
	assert.Contains(t, out, `"method":"POST"`)
	assert.Contains(t, out, "performing request")
	assert.NotContains(t, out, "secret")
}

func TestConfigure_WritesToFile(t *testing.T) {
	dir := t.TempDir()
	closer, err := Configure(Options{Level: "debug", File: dir + "/logs/plower.log", MaxSizeMB: 1})
	assert.NoError(t, err)
	GetLogger().Debug("hello")
	assert.NoError(t, closer.Close())
	assert.Equal(t, logrus.DebugLevel, GetLogger().GetLevel())
	assert.FileExists(t, dir+"/logs/plower.log")
}
