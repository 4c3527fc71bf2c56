package notify_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/muzz-consent/internal/notify"
)

func TestWebhookSenderPostsRenderedDigest(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s := notify.NewWebhookSender(srv.URL, srv.Client())
	err := s.Send(context.Background(), "user1@example.com", "New message from alice", "**alice**\n\n- hi\n")
	require.NoError(t, err)

	assert.Equal(t, "user1@example.com", got["to"])
	assert.Equal(t, "New message from alice", got["subject"])
	assert.Equal(t, "**alice**\n\n- hi\n", got["text"])
	assert.Contains(t, got["html"], "<strong>alice</strong>")
	assert.Contains(t, got["html"], "<li>hi</li>")
}

func TestWebhookSenderRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := notify.NewWebhookSender(srv.URL, nil).Send(context.Background(), "x", "s", "b")
	assert.ErrorContains(t, err, "502")
}

func TestWebhookSenderHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := notify.NewWebhookSender(srv.URL, nil).Send(ctx, "x", "s", "b")
	assert.Error(t, err)
}

func TestLogSender(t *testing.T) {
	var buf bytes.Buffer
	s := notify.LogSender{Logger: slog.New(slog.NewJSONHandler(&buf, nil))}
	require.NoError(t, s.Send(context.Background(), "user1@example.com", "subject", "body"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "notification delivered", line["msg"])
	assert.Equal(t, "user1@example.com", line["to"])
}
