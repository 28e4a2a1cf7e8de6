package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHTTPSenderPostsJSON(t *testing.T) {
	var got codeMessage
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/messages", r.URL.Path)
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s, err := NewHTTPSender(HTTPConfig{BaseURL: srv.URL, APIKey: "k1", From: "no-reply@example.com"})
	require.NoError(t, err)

	require.NoError(t, s.SendCode(context.Background(), "alice@example.com", PurposePasswordReset, "123456"))
	require.Equal(t, "Bearer k1", auth)
	require.Equal(t, "alice@example.com", got.To)
	require.Equal(t, "reset", got.Purpose)
	require.Equal(t, "123456", got.Code)
	require.Equal(t, "Your password reset code", got.Subject)
}

func TestHTTPSenderReportsRelayErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	s, err := NewHTTPSender(HTTPConfig{BaseURL: srv.URL})
	require.NoError(t, err)

	err = s.SendCode(context.Background(), "a@x.com", PurposeEmailVerification, "123456")
	require.Error(t, err)
	require.Contains(t, err.Error(), "429")
}

func TestNewHTTPSenderRequiresBaseURL(t *testing.T) {
	_, err := NewHTTPSender(HTTPConfig{})
	require.Error(t, err)
}

func TestLogSenderRedacts(t *testing.T) {
	var buf bytes.Buffer
	s := LogSender{Logger: log.New(&buf, "", 0)}

	require.NoError(t, s.SendCode(context.Background(), "alice@example.com", PurposeEmailVerification, "123456"))
	line := buf.String()
	require.NotContains(t, line, "123456")
	require.NotContains(t, line, "alice@")
	require.True(t, strings.Contains(line, "a***@example.com"), line)
	require.Contains(t, line, "1****6")
}
