package cli

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/chatflow-ai/chatflow/internal/config"
	"github.com/chatflow-ai/chatflow/internal/logging"
	"github.com/chatflow-ai/chatflow/pkg/adapters/memory"
	"github.com/chatflow-ai/chatflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const welcomeFlow = `{
  "name": "welcome",
  "flow_data": {
    "nodes": [
      {"id": "n1", "type": "textMessage", "data": {"message": "Hi!"}},
      {"id": "n2", "type": "aiResponse", "data": {"prompt": "Be helpful"}}
    ],
    "edges": [{"id": "e1", "source": "n1", "target": "n2"}]
  }
}`

func memoryConfig() *config.Config {
	cfg := config.Default()
	cfg.Store = config.StoreMemory
	return cfg
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestBuildApp_Memory(t *testing.T) {
	ctx := context.Background()
	app, err := BuildApp(ctx, memoryConfig(), logging.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, app.Close(ctx)) })

	_, err = ActivateFlowFile(ctx, app.Store, writeFile(t, "welcome.json", welcomeFlow), logging.NewNop())
	require.NoError(t, err)

	srv := httptest.NewServer(app.Handler)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/webhook/whatsapp", "application/json",
		strings.NewReader(`{"messages":[{"from":"+15551234567","body":"hello"}]}`))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok","message_processed":true}`, string(body))

	store := app.Store.(*memory.Store)
	require.Len(t, store.Contacts(), 1)
	assert.Equal(t, "n2", store.Contacts()[0].Position())

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), "chatflow_messages_received_total 1")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestBuildApp_WarnsOnceAboutOpenCORS(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	ctx := context.Background()
	app, err := BuildApp(ctx, memoryConfig(), logger)
	require.NoError(t, err)
	defer app.Close(ctx)

	assert.Equal(t, 1, strings.Count(buf.String(), "all origins"), buf.String())
}

func TestBuildApp_WithRedisLock(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := memoryConfig()
	cfg.Redis.Addr = mr.Addr()

	ctx := context.Background()
	app, err := BuildApp(ctx, cfg, logging.NewNop())
	require.NoError(t, err)
	defer app.Close(ctx)

	_, err = ActivateFlowFile(ctx, app.Store, writeFile(t, "welcome.json", welcomeFlow), logging.NewNop())
	require.NoError(t, err)

	out, err := app.Engine.HandleMessage(ctx, inbound())
	require.NoError(t, err)
	assert.True(t, out.Processed())
	assert.Empty(t, mr.Keys(), "lock released after the event")
}

func TestBuildApp_WithTracing(t *testing.T) {
	cfg := memoryConfig()
	cfg.Tracing.Endpoint = "127.0.0.1:1"
	cfg.Tracing.Insecure = true

	ctx := context.Background()
	app, err := BuildApp(ctx, cfg, logging.NewNop())
	require.NoError(t, err)

	_, err = ActivateFlowFile(ctx, app.Store, writeFile(t, "welcome.json", welcomeFlow), logging.NewNop())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/webhook/whatsapp",
		strings.NewReader(`{"messages":[{"from":"+15551234567","body":"hello"}]}`))
	w := httptest.NewRecorder()
	app.Handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code, "an unreachable collector never fails requests")

	closeCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	_ = app.Close(closeCtx)
}

func TestBuildApp_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"unknown store", func(c *config.Config) { c.Store = "sqlite" }, "unknown store"},
		{"mongo without uri", func(c *config.Config) { c.Store = config.StoreMongo; c.Mongo.URI = "" }, "MONGO_URI"},
		{"bad batch mode", func(c *config.Config) { c.Engine.BatchMode = "some" }, "invalid batch mode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := memoryConfig()
			tt.mutate(cfg)
			_, err := BuildApp(context.Background(), cfg, logging.NewNop())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestBuildApp_RedisUnreachable(t *testing.T) {
	cfg := memoryConfig()
	cfg.Redis.Addr = "127.0.0.1:1"

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := BuildApp(ctx, cfg, logging.NewNop())
	assert.Error(t, err)
}

func TestNewServer(t *testing.T) {
	cfg := memoryConfig()
	srv := NewServer(cfg, http.NotFoundHandler())
	assert.Equal(t, ":8000", srv.Addr)
	assert.Equal(t, cfg.Engine.AITimeout+cfg.Engine.DeliveryTimeout+10*time.Second, srv.WriteTimeout)
	assert.NotZero(t, srv.ReadHeaderTimeout)
}

func TestServe_StopsOnCancel(t *testing.T) {
	cfg := memoryConfig()
	cfg.Addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, cfg, logging.NewNop(), ServeOptions{FlowPath: writeFile(t, "welcome.json", welcomeFlow)})
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(ShutdownTimeout + time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServe_RejectsBadFlow(t *testing.T) {
	err := Serve(context.Background(), memoryConfig(), logging.NewNop(), ServeOptions{
		FlowPath: writeFile(t, "loop.yaml", "nodes:\n  - {id: a}\n  - {id: b}\nedges:\n  - {source: a, target: b}\n  - {source: b, target: a}\n"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rejected")
}

func TestBuildApp_ProtectedStore(t *testing.T) {
	cfg := memoryConfig()
	cfg.Storage.EncryptionKey = base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{7}, 32))
	cfg.Storage.RedactPatterns = []string{`\d{4} \d{4}`}

	ctx := context.Background()
	app, err := BuildApp(ctx, cfg, logging.NewNop())
	require.NoError(t, err)
	defer app.Close(ctx)

	_, isMemory := app.Store.(*memory.Store)
	assert.False(t, isMemory, "store is decorated")

	_, err = ActivateFlowFile(ctx, app.Store, writeFile(t, "welcome.json", welcomeFlow), logging.NewNop())
	require.NoError(t, err)
	out, err := app.Engine.HandleMessage(ctx, domain.InboundMessage{From: "+15551234567", Body: "pin 1234 5678"})
	require.NoError(t, err)

	logs, err := app.Store.RecentLogs(ctx, out.ContactID, 10)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "Hi!", logs[0].Text)
	assert.Equal(t, "pin ***", logs[1].Text)
}
