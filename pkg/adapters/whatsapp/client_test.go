package whatsapp_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/chatflow-ai/chatflow/pkg/adapters/whatsapp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Send(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/12345/messages", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.1"}]}`))
	}))
	defer srv.Close()

	client := whatsapp.New("12345", "tok", whatsapp.WithBaseURL(srv.URL+"/"))
	require.NoError(t, client.Send(context.Background(), "+15550001111", "Hi!"))

	assert.Equal(t, "whatsapp", body["messaging_product"])
	assert.Equal(t, "15550001111", body["to"])
	assert.Equal(t, "text", body["type"])
	assert.Equal(t, map[string]any{"body": "Hi!"}, body["text"])
}

func TestClient_SendRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Invalid OAuth access token","code":190}}`))
	}))
	defer srv.Close()

	client := whatsapp.New("12345", "bad", whatsapp.WithBaseURL(srv.URL))
	err := client.Send(context.Background(), "+15550001111", "Hi!")
	require.ErrorIs(t, err, whatsapp.ErrSendFailed)
	assert.Contains(t, err.Error(), "Invalid OAuth access token")
}

func TestClient_SendCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := whatsapp.New("1", "t", whatsapp.WithBaseURL(srv.URL)).Send(ctx, "+1555", "x")
	assert.ErrorIs(t, err, whatsapp.ErrSendFailed)
	assert.ErrorIs(t, err, context.Canceled)
}
