package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

// Backend is a fake REST backend. Tests register handlers on Router before
// issuing requests.
type Backend struct {
	Router chi.Router
	server *httptest.Server
}

// NewBackend starts a Backend that is shut down with the test.
func NewBackend(t *testing.T) *Backend {
	t.Helper()

	r := chi.NewRouter()
	b := &Backend{Router: r, server: httptest.NewServer(r)}
	t.Cleanup(b.server.Close)
	return b
}

// URL returns the backend's base URL.
func (b *Backend) URL() string {
	return b.server.URL
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
