package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/go-chi/chi/v5"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/plot-editor/internal/flash"
	"github.com/mohammed-shakir/plot-editor/internal/mode"
	"github.com/mohammed-shakir/plot-editor/internal/popup"
	"github.com/mohammed-shakir/plot-editor/internal/store"
)

func (a *API) getMap(w http.ResponseWriter, r *http.Request) {
	body, err := json.Marshal(a.Store.Map())
	if err != nil {
		a.writeError(w, r, fmt.Errorf("encode map: %w", err))
		return
	}
	etag := fmt.Sprintf(`"%016x"`, xxhash.Sum64(body))
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (a *API) putMap(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		a.writeError(w, r, badRequest("read body: %v", err))
		return
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		a.writeError(w, r, badRequest("invalid feature collection: %v", err))
		return
	}
	st := store.State{Map: fc}
	if name := strings.TrimSpace(r.URL.Query().Get("name")); name != "" {
		st.Meta = &store.Meta{Name: name}
	}
	a.Store.Set(st, store.OriginAPI)
	writeJSON(w, http.StatusOK, map[string]int{"features": len(fc.Features)})
}

func (a *API) getSource(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(a.Surface.Source())
}

func (a *API) getMarkers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.Surface.Markers())
}

func (a *API) getViewport(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.Surface.Viewport())
}

func (a *API) getStyle(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"style": a.Surface.Style()})
}

// putStyle switches the base-map style and returns the re-rendered markers.
func (a *API) putStyle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Style string `json:"style"`
	}
	if err := decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	style := strings.TrimSpace(req.Style)
	if style == "" {
		a.writeError(w, r, badRequest("missing required field: style"))
		return
	}
	writeJSON(w, http.StatusOK, a.Surface.SetStyle(style))
}

// query resolves the feature under a pointer position.
func (a *API) query(w http.ResponseWriter, r *http.Request) {
	lon, err := floatQuery(r, "lon")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	lat, err := floatQuery(r, "lat")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	hit, ok := a.Surface.QueryRenderedFeature(orb.Point{lon, lat})
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "no_feature", Message: "no feature at position"})
		return
	}
	writeJSON(w, http.StatusOK, hit)
}

func (a *API) getFlash(w http.ResponseWriter, r *http.Request) {
	container := r.URL.Query().Get("container")
	if container == "" {
		container = flash.DefaultContainer
		if a.Popups != nil {
			container = a.Popups.Container()
		}
	}
	msgs := []flash.Message{}
	if a.Flash != nil {
		got, err := a.Flash.Messages(r.Context(), container)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		msgs = append(msgs, got...)
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (a *API) openFeaturePopup(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "id")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.open(w, r, id)
}

// openMarkerPopup opens the popup of the feature a clicked marker belongs to.
func (a *API) openMarkerPopup(w http.ResponseWriter, r *http.Request) {
	n, err := intParam(r, "n")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	m, ok := a.Surface.Marker(n)
	if !ok {
		a.writeError(w, r, fmt.Errorf("marker %d: %w", n, store.ErrFeatureNotFound))
		return
	}
	a.open(w, r, m.FeatureID)
}

func (a *API) open(w http.ResponseWriter, r *http.Request, featureID int) {
	p, err := a.Popups.Open(r.Context(), featureID, mode.FromContext(r.Context()))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p.View())
}

func (a *API) getPopup(w http.ResponseWriter, r *http.Request) {
	p, err := a.Popups.Get(chi.URLParam(r, "pid"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if r.URL.Query().Get("format") != "html" || a.Renderer == nil {
		writeJSON(w, http.StatusOK, p.View())
		return
	}
	var buf bytes.Buffer
	if err := a.Renderer.Render(&buf, p.View()); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (a *API) selectCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Value string `json:"value"`
	}
	if err := decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	a.respond(w, r)(a.Popups.SelectCategory(r.Context(), chi.URLParam(r, "pid"), req.Value))
}

func (a *API) addRow(w http.ResponseWriter, r *http.Request) {
	a.respond(w, r)(a.Popups.AddRow(r.Context(), chi.URLParam(r, "pid")))
}

func (a *API) setRow(w http.ResponseWriter, r *http.Request) {
	i, err := intParam(r, "i")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var e popup.Entry
	if err := decode(r, &e); err != nil {
		a.writeError(w, r, err)
		return
	}
	a.respond(w, r)(a.Popups.SetRow(r.Context(), chi.URLParam(r, "pid"), i, e))
}

func (a *API) addStyle(w http.ResponseWriter, r *http.Request) {
	a.respond(w, r)(a.Popups.AddStyleProperties(r.Context(), chi.URLParam(r, "pid")))
}

// save optionally submits the client's rows, then commits the form.
func (a *API) save(w http.ResponseWriter, r *http.Request) {
	pid := chi.URLParam(r, "pid")
	var req struct {
		Rows []popup.Entry `json:"rows"`
	}
	if err := decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	if req.Rows != nil {
		if _, err := a.Popups.Submit(r.Context(), pid, req.Rows); err != nil {
			a.writeError(w, r, err)
			return
		}
	}
	props, err := a.Popups.Save(r.Context(), pid)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"properties": props})
}

func (a *API) cancel(w http.ResponseWriter, r *http.Request) {
	if err := a.Popups.Cancel(r.Context(), chi.URLParam(r, "pid")); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) deleteFeature(w http.ResponseWriter, r *http.Request) {
	if err := a.Popups.Delete(r.Context(), chi.URLParam(r, "pid")); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) respond(w http.ResponseWriter, r *http.Request) func(*popup.Popup, error) {
	return func(p *popup.Popup, err error) {
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, p.View())
	}
}

func (a *API) zoom(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.Tools.Zoom())
}

func (a *API) clear(w http.ResponseWriter, r *http.Request) {
	if err := a.Tools.Clear(); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) flatten(w http.ResponseWriter, r *http.Request) {
	n, err := a.Tools.Flatten()
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"features": n})
}

func (a *API) saveProject(w http.ResponseWriter, r *http.Request) {
	if err := a.Tools.SaveToProject(r.Context()); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
