package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mohammed-shakir/plot-editor/internal/mode"
)

func TestMode_FromQueryAndDefault(t *testing.T) {
	cases := []struct {
		url  string
		def  mode.Mode
		want mode.Mode
	}{
		{"/api/map", "", mode.ProjectBounds},
		{"/api/map", mode.Task, mode.Task},
		{"/api/map?mode=checkpoint", mode.Task, mode.Checkpoint},
		{"/api/map?mode=whatever", "", mode.Default},
	}
	for _, c := range cases {
		var got mode.Mode
		h := Mode(c.def)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			got = mode.FromContext(r.Context())
		}))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, c.url, nil))
		if got != c.want {
			t.Fatalf("%s def=%q: mode=%q want %q", c.url, c.def, got, c.want)
		}
	}
}

func TestLogging_SetsRequestID(t *testing.T) {
	h := Logging(nopLogger())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatal("missing generated request id")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if got := rr.Header().Get("X-Request-ID"); got != "abc" {
		t.Fatalf("request id=%q want abc", got)
	}
}

func TestRecover(t *testing.T) {
	h := Recover()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d want 500", rr.Code)
	}
}

func TestCORS_Preflight(t *testing.T) {
	h := CORS()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("preflight must not reach the handler")
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodOptions, "/api/popups/x/rows/0", nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status=%d", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Methods"); got != "GET,POST,PUT,PATCH,OPTIONS" {
		t.Fatalf("methods=%q", got)
	}
}

func nopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
