package notifications

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBrevoServiceSend(t *testing.T) {
	var got brevoPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key-123", r.Header.Get("api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"messageId":"1"}`))
	}))
	defer srv.Close()

	svc, err := NewBrevoService("key-123", "hello@example.com", "SDCP", zap.NewNop())
	require.NoError(t, err)
	svc.Endpoint = srv.URL

	err = svc.Send(context.Background(), Message{ToEmail: "ana@example.com", Subject: "Hi", HTML: "<p>x</p>"})
	require.NoError(t, err)
	assert.Equal(t, "Hi", got.Subject)
	assert.Equal(t, "ana", got.To[0]["name"])
}

func TestBrevoServiceRejectsErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	svc, err := NewBrevoService("bad", "hello@example.com", "SDCP", zap.NewNop())
	require.NoError(t, err)
	svc.Endpoint = srv.URL

	assert.Error(t, svc.Send(context.Background(), Message{ToEmail: "ana@example.com"}))
	assert.Error(t, svc.Send(context.Background(), Message{ToEmail: "not-an-email"}))
}

func TestNewBrevoServiceRequiresConfig(t *testing.T) {
	_, err := NewBrevoService("", "hello@example.com", "SDCP", zap.NewNop())
	assert.Error(t, err)
}
