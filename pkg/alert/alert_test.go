package alert

import (
	"bytes"
	"errors"
	"log/slog"
	"net/smtp"
	"testing"

	"github.com/soundprediction/conceptgraph/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSelectsAlerter(t *testing.T) {
	_, isLog := New(config.AlertConfig{}, nil).(*LogAlerter)
	assert.True(t, isLog)

	_, isEmail := New(config.AlertConfig{Enabled: true, SMTPHost: "smtp.example.com", To: []string{"ops@example.com"}}, nil).(*EmailAlerter)
	assert.True(t, isEmail)
}

func TestEmailAlerter(t *testing.T) {
	cfg := config.AlertConfig{
		Enabled:  true,
		SMTPHost: "smtp.example.com",
		SMTPPort: 587,
		From:     "conceptgraph@example.com",
		To:       []string{"ops@example.com", "oncall@example.com"},
	}
	a := NewEmailAlerter(cfg)

	var gotAddr string
	var gotMsg []byte
	a.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr = addr
		gotMsg = msg
		assert.Equal(t, cfg.From, from)
		assert.Equal(t, cfg.To, to)
		return nil
	}

	require.NoError(t, a.Alert("breaker open", "too many failures"))
	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Contains(t, string(gotMsg), "Subject: breaker open")
	assert.Contains(t, string(gotMsg), "To: ops@example.com,oncall@example.com")

	a.send = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("refused") }
	assert.Error(t, a.Alert("s", "m"))

	a.cfg.Enabled = false
	assert.NoError(t, a.Alert("s", "m"))
}

func TestLogAlerter(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	require.NoError(t, NewLogAlerter(logger).Alert("breaker open", "details"))
	assert.Contains(t, buf.String(), "ALERT: breaker open")
	assert.Contains(t, buf.String(), "details")
}
