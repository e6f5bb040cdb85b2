package mail

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShoutrrrSender_ServiceURL(t *testing.T) {
	s := NewShoutrrrSender(SMTPConfig{
		Host:     "smtp.example.com",
		Username: "mailer",
		Password: "p@ss/word",
		From:     "noreply@example.com",
	})

	u, err := url.Parse(s.serviceURL("user@example.com"))
	require.NoError(t, err)

	assert.Equal(t, "smtp", u.Scheme)
	assert.Equal(t, "smtp.example.com:587", u.Host)
	pw, _ := u.User.Password()
	assert.Equal(t, "p@ss/word", pw)
	assert.Equal(t, "noreply@example.com", u.Query().Get("fromaddress"))
	assert.Equal(t, "user@example.com", u.Query().Get("toaddresses"))
	assert.Empty(t, u.Query().Get("auth"))
}

func TestShoutrrrSender_NoAuth(t *testing.T) {
	s := NewShoutrrrSender(SMTPConfig{Host: "localhost", Port: 25, From: "a@b.c"})
	u, err := url.Parse(s.serviceURL("x@y.z"))
	require.NoError(t, err)
	assert.Nil(t, u.User)
	assert.Equal(t, "None", u.Query().Get("auth"))
}

func TestShoutrrrSender_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewShoutrrrSender(SMTPConfig{Host: "localhost"}).Send(ctx, "a@b.c", "s", "b")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLogSender(t *testing.T) {
	assert.NoError(t, LogSender{}.Send(context.Background(), "a@b.c", "subject", "body"))
}
