package mailer

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildMessage(t *testing.T) {
	msg := buildMessage("Shop <shop@example.com>", "a@b.com", "Your vouchers", "<p>hi</p>")

	require.True(t, strings.HasPrefix(msg, "From: Shop <shop@example.com>\r\n"))
	require.Contains(t, msg, "To: a@b.com\r\n")
	require.Contains(t, msg, "Content-Type: text/html; charset=UTF-8\r\n")
	require.True(t, strings.HasSuffix(msg, "\r\n<p>hi</p>"))
}

func TestFromAddress(t *testing.T) {
	require.Equal(t, "shop@example.com", fromAddress("shop@example.com", ""))
	require.Contains(t, fromAddress("shop@example.com", "Ski Shop"), "<shop@example.com>")
}

func TestSend_Validation(t *testing.T) {
	m := New(Config{Enabled: false})
	require.ErrorIs(t, m.Send(context.Background(), "a@b.com", "s", "b"), ErrDisabled)

	m = New(Config{Enabled: true})
	require.ErrorIs(t, m.Send(context.Background(), "a@b.com", "s", "b"), ErrNotConfigured)

	m = New(Config{Enabled: true, Host: "smtp.local", Port: 25, From: "x@y.z"})
	require.ErrorIs(t, m.Send(context.Background(), "not-an-address", "s", "b"), ErrInvalidEmail)
}
