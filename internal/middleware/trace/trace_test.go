package trace

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMiddleware_AssignsRequestID(t *testing.T) {
	m := NewMiddleware(nil)
	var seen string
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/accounts", nil))

	assert.True(t, strings.HasPrefix(seen, "req_"))
	assert.Equal(t, seen, rec.Header().Get(HeaderRequestID))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, int64(1), m.GetMetrics().TotalRequests)
}

func TestMiddleware_KeepsInboundRequestID(t *testing.T) {
	h := NewMiddleware(nil).Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "upstream-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "upstream-1", rec.Header().Get(HeaderRequestID))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, strings.Repeat("x", 500))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.NotEqual(t, strings.Repeat("x", 500), rec.Header().Get(HeaderRequestID))
}

func TestGetRequestID_Missing(t *testing.T) {
	assert.Empty(t, GetRequestID(context.Background()))
	assert.NotEqual(t, GenerateRequestID(), GenerateRequestID())
}
