// Package router exposes the editor over HTTP: the feature store, the map
// surface, popup sessions, flash messages and the toolbar.
package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/plot-editor/internal/core/middleware"
	"github.com/mohammed-shakir/plot-editor/internal/core/observability"
	"github.com/mohammed-shakir/plot-editor/internal/flash"
	"github.com/mohammed-shakir/plot-editor/internal/hostsync"
	"github.com/mohammed-shakir/plot-editor/internal/mode"
	"github.com/mohammed-shakir/plot-editor/internal/popup"
	"github.com/mohammed-shakir/plot-editor/internal/store"
	"github.com/mohammed-shakir/plot-editor/internal/surface"
	"github.com/mohammed-shakir/plot-editor/internal/tools"
)

const maxBody = 16 << 20

// API bundles the components served under /api.
type API struct {
	Store       *store.Store
	Popups      *popup.Controller
	Renderer    *popup.Renderer
	Surface     *surface.Surface
	Flash       *flash.Flasher
	Tools       *tools.Tools
	Logger      *slog.Logger
	DefaultMode mode.Mode
}

// Routes mounts every endpoint on r.
func (a *API) Routes(r chi.Router) {
	if a.Logger == nil {
		a.Logger = slog.Default()
	}
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Mode(a.DefaultMode))

		r.Get("/map", a.observe("/api/map", a.getMap))
		r.Put("/map", a.observe("/api/map", a.putMap))
		r.Get("/source", a.observe("/api/source", a.getSource))
		r.Get("/markers", a.observe("/api/markers", a.getMarkers))
		r.Get("/viewport", a.observe("/api/viewport", a.getViewport))
		r.Get("/style", a.observe("/api/style", a.getStyle))
		r.Put("/style", a.observe("/api/style", a.putStyle))
		r.Get("/query", a.observe("/api/query", a.query))
		r.Get("/flash", a.observe("/api/flash", a.getFlash))

		r.Post("/features/{id}/popup", a.observe("/api/features/popup", a.openFeaturePopup))
		r.Post("/markers/{n}/popup", a.observe("/api/markers/popup", a.openMarkerPopup))

		r.Route("/popups/{pid}", func(r chi.Router) {
			r.Get("/", a.observe("/api/popups", a.getPopup))
			r.Put("/category", a.observe("/api/popups/category", a.selectCategory))
			r.Post("/rows", a.observe("/api/popups/rows", a.addRow))
			r.Patch("/rows/{i}", a.observe("/api/popups/rows", a.setRow))
			r.Post("/style", a.observe("/api/popups/style", a.addStyle))
			r.Post("/save", a.observe("/api/popups/save", a.save))
			r.Post("/cancel", a.observe("/api/popups/cancel", a.cancel))
			r.Post("/delete", a.observe("/api/popups/delete", a.deleteFeature))
		})

		r.Post("/tools/zoom", a.observe("/api/tools/zoom", a.zoom))
		r.Post("/tools/clear", a.observe("/api/tools/clear", a.clear))
		r.Post("/tools/flatten", a.observe("/api/tools/flatten", a.flatten))
		r.Post("/tools/save-project", a.observe("/api/tools/save-project", a.saveProject))
	})
}

// observe records the route's latency and status. route is the pattern, not
// the raw path, to keep label cardinality bounded.
func (a *API) observe(route string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		h(sw, r)
		observability.ObserveHTTP(r.Method, route, sw.code, time.Since(start).Seconds())
	}
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

type errorBody struct {
	Error   string   `json:"error"`
	Message string   `json:"message"`
	Missing []string `json:"missing,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps a domain error to its HTTP status and error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, popup.ErrValidation):
		return http.StatusUnprocessableEntity, "validation"
	case errors.Is(err, store.ErrFeatureNotFound):
		return http.StatusNotFound, "feature_not_found"
	case errors.Is(err, popup.ErrPopupNotFound):
		return http.StatusNotFound, "popup_not_found"
	case errors.Is(err, popup.ErrRowOutOfRange):
		return http.StatusNotFound, "row_out_of_range"
	case errors.Is(err, popup.ErrReadOnly):
		return http.StatusConflict, "read_only"
	case errors.Is(err, popup.ErrNoPropertyTable):
		return http.StatusConflict, "no_property_table"
	case errors.Is(err, hostsync.ErrHostUnavailable):
		return http.StatusServiceUnavailable, "host_unavailable"
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, "bad_request"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code, name := statusFor(err)
	body := errorBody{Error: name, Message: err.Error()}
	var ve *popup.ValidationError
	if errors.As(err, &ve) {
		body.Message = ve.Message
		body.Missing = ve.Missing
	}
	if code >= http.StatusInternalServerError {
		a.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "err", err)
	}
	writeJSON(w, code, body)
}

func intParam(r *http.Request, name string) (int, error) {
	raw := chi.URLParam(r, name)
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badRequest("%s must be an integer (got %q)", name, raw)
	}
	return n, nil
}

func floatQuery(r *http.Request, name string) (float64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, badRequest("missing required parameter: %s", name)
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, badRequest("%s: %v", name, err)
	}
	return f, nil
}

// decode reads an optional JSON body into v. An empty body leaves v as is.
func decode(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		return badRequest("read body: %v", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return badRequest("decode body: %v", err)
	}
	return nil
}
