package http

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/rrapp/rentchat/internal/config"
	"github.com/rrapp/rentchat/internal/core"
	"github.com/rrapp/rentchat/internal/store/sqlite"
)

// createTestStore creates an in-memory SQLite store with schema applied.
func createTestStore(t *testing.T) *sqlite.SQLiteStore {
	t.Helper()

	st, err := sqlite.NewWithSetup(":memory:", sqlite.Migrate)
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

type testServer struct {
	*httptest.Server
	registry *core.Registry
	store    *sqlite.SQLiteStore
}

func startTestServer(t *testing.T, mutate func(*config.Config)) *testServer {
	t.Helper()

	cfg := config.Default()
	if mutate != nil {
		mutate(&cfg)
	}

	disabledLogger := zerolog.Nop()
	registry := core.NewRegistry(&disabledLogger)
	st := createTestStore(t)

	server := NewServer(registry, st, &cfg, &disabledLogger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testServer{Server: ts, registry: registry, store: st}
}

func (ts *testServer) wsURL(path string) string {
	return strings.Replace(ts.URL, "http", "ws", 1) + path
}
