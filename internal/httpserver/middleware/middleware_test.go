package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/pixelcredit/internal/config"
	"github.com/davidbz/pixelcredit/internal/httpserver/middleware"
	"github.com/davidbz/pixelcredit/internal/observability"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestBearerAuth(t *testing.T) {
	tests := []struct {
		name     string
		secret   string
		header   string
		expected int
	}{
		{"valid token", "s3cret", "Bearer s3cret", http.StatusNoContent},
		{"wrong token", "s3cret", "Bearer nope", http.StatusUnauthorized},
		{"missing header", "s3cret", "", http.StatusUnauthorized},
		{"wrong scheme", "s3cret", "Basic s3cret", http.StatusUnauthorized},
		{"unconfigured secret", "", "Bearer ", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := middleware.BearerAuth(tt.secret)(okHandler())

			req := httptest.NewRequest(http.MethodPost, "/pricing/auto-update", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			require.Equal(t, tt.expected, w.Code)
		})
	}
}

func TestChain_AppliesInOrder(t *testing.T) {
	var order []string
	tag := func(name string) middleware.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	handler := middleware.Chain(tag("outer"), tag("inner"))(okHandler())
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, []string{"outer", "inner"}, order)
}

func TestBuildMiddlewareChain_SetsTraceHeaders(t *testing.T) {
	handler := middleware.BuildMiddlewareChain(&config.CORSConfig{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
	})(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/pricing", nil))

	require.Equal(t, http.StatusNoContent, w.Code)
	require.NotEmpty(t, w.Header().Get("X-Trace-Id"))
	require.NotEmpty(t, w.Header().Get("X-Request-Id"))
}

func TestTrace_KeepsCallerRequestID(t *testing.T) {
	var seen string
	handler := middleware.Trace()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = observability.GetRequestID(r.Context())
		w.WriteHeader(http.StatusAccepted)
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-Id", "req-42")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)
	require.Equal(t, "req-42", seen)
	require.Equal(t, "req-42", w.Header().Get("X-Request-Id"))
}

func TestBuildMiddlewareChain_RecoversPanics(t *testing.T) {
	handler := middleware.BuildMiddlewareChain(&config.CORSConfig{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
	})(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("quote table corrupted")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/reservations", nil))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.JSONEq(t, `{"success":false,"error":"Internal server error"}`, w.Body.String())
	require.NotEmpty(t, w.Header().Get("X-Trace-Id"))
}

func TestRecover_RepanicsAbortHandler(t *testing.T) {
	handler := middleware.Recover()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	require.PanicsWithValue(t, http.ErrAbortHandler, func() {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/pricing", nil))
	})
}

func TestCORS_PreflightAllowsAdminToken(t *testing.T) {
	tests := []struct {
		name    string
		headers []string
	}{
		{"configured", []string{"Content-Type", "Authorization"}},
		{"missing from config", []string{"Content-Type"}},
		{"empty config", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := middleware.CORS(&config.CORSConfig{
				AllowedOrigins: []string{"https://app.example"},
				AllowedMethods: []string{"GET", "POST"},
				AllowedHeaders: tt.headers,
			})(okHandler())

			req := httptest.NewRequest(http.MethodOptions, "/pricing/auto-update", nil)
			req.Header.Set("Origin", "https://app.example")
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			req.Header.Set("Access-Control-Request-Headers", "authorization")
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			require.Equal(t, "https://app.example", w.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestCORS_NilConfigPassesThrough(t *testing.T) {
	w := httptest.NewRecorder()
	middleware.CORS(nil)(okHandler()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusNoContent, w.Code)
	require.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
