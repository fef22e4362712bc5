// Package popup implements the property form opened for a single feature:
// table generation from geometry, mode and category, row editing, styling
// defaults, validation and the save/cancel/delete commits.
package popup

import (
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/plot-editor/internal/measure"
	"github.com/mohammed-shakir/plot-editor/internal/mode"
	"github.com/mohammed-shakir/plot-editor/internal/normalize"
	"github.com/mohammed-shakir/plot-editor/internal/schema"
)

var (
	ErrPopupNotFound   = errors.New("popup not found")
	ErrValidation      = errors.New("validation failed")
	ErrReadOnly        = errors.New("popup is read-only")
	ErrNoPropertyTable = errors.New("popup has no property table")
	ErrRowOutOfRange   = errors.New("row out of range")
)

// Row is one key/value line of the property table.
type Row struct {
	Key           string           `json:"key"`
	Value         string           `json:"value"`
	KeyReadOnly   bool             `json:"key_readonly,omitempty"`
	ValueReadOnly bool             `json:"value_readonly,omitempty"`
	Kind          schema.InputKind `json:"kind"`
	Options       []string         `json:"options,omitempty"`
	List          []string         `json:"list,omitempty"`
	Min           string           `json:"min,omitempty"`
	Max           string           `json:"max,omitempty"`
	Step          string           `json:"step,omitempty"`
}

// Entry is a client supplied key/value pair for a row.
type Entry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// View is a point-in-time copy of a popup for rendering and JSON responses.
type View struct {
	ID            string        `json:"id"`
	FeatureID     int           `json:"feature_id"`
	Mode          mode.Mode     `json:"mode"`
	GeometryType  string        `json:"geometry_type"`
	Editable      bool          `json:"editable"`
	HasTable      bool          `json:"has_table"`
	Discriminator string        `json:"discriminator,omitempty"`
	Category      string        `json:"category,omitempty"`
	Rows          []Row         `json:"rows,omitempty"`
	Info          []measure.Row `json:"info"`
	// StyleControl is false once styling rows were added.
	StyleControl bool `json:"style_control"`
}

// Popup is an open form session. All methods are safe for concurrent use.
type Popup struct {
	id        string
	featureID int
	mode      mode.Mode
	geom      orb.Geometry
	props     geojson.Properties
	editable  bool
	info      []measure.Row

	mu         sync.Mutex
	schema     schema.Schema
	rows       []Row
	hasTable   bool
	styleAdded bool
}

func newPopup(id string, featureID int, m mode.Mode, f *geojson.Feature) *Popup {
	p := &Popup{
		id:        id,
		featureID: featureID,
		mode:      m,
		geom:      f.Geometry,
		props:     f.Properties.Clone(),
		editable:  m.CanEdit(f),
		info:      measure.Info(f.Geometry),
	}
	if p.props == nil {
		p.props = geojson.Properties{}
	}
	if !isPoint(f.Geometry) {
		p.hasTable = true
		fam := m.Family()
		disc := schema.Discriminator(fam)
		cat, _ := p.props[disc].(string)
		p.schema = schema.For(fam, cat)
		p.rows = p.buildRows(p.schema, entriesFromProps(p.props))
	}
	return p
}

func (p *Popup) ID() string     { return p.id }
func (p *Popup) FeatureID() int { return p.featureID }

func (p *Popup) View() View {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.viewLocked()
}

func (p *Popup) viewLocked() View {
	v := View{
		ID:           p.id,
		FeatureID:    p.featureID,
		Mode:         p.mode,
		Editable:     p.editable,
		HasTable:     p.hasTable,
		Info:         p.info,
		StyleControl: p.editable && !p.styleAdded && len(schema.StyleFor(p.geom)) > 0,
	}
	if p.geom != nil {
		v.GeometryType = p.geom.GeoJSONType()
	}
	if v.Info == nil {
		v.Info = []measure.Row{}
	}
	if p.hasTable {
		v.Discriminator = p.schema.Discriminator
		v.Category = p.schema.Category
		v.Rows = make([]Row, len(p.rows))
		copy(v.Rows, p.rows)
	}
	return v
}

func isPoint(g orb.Geometry) bool {
	_, ok := g.(orb.Point)
	return ok
}

// entriesFromProps lists props in display order: keys sorted, objects JSON
// encoded.
func entriesFromProps(props geojson.Properties) []Entry {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Entry, 0, len(keys))
	for _, k := range keys {
		out = append(out, Entry{Key: k, Value: formatValue(props[k])})
	}
	return out
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

func lookup(entries []Entry, key string) (string, bool) {
	for _, e := range entries {
		if e.Key == key {
			return e.Value, true
		}
	}
	return "", false
}

// buildRows lays out the table for sch: the discriminator select, the
// required keys, then every other entry in order.
func (p *Popup) buildRows(sch schema.Schema, entries []Entry) []Row {
	ro := !p.editable
	rows := make([]Row, 0, len(entries)+len(sch.Required)+1)

	rows = append(rows, Row{
		Key:           sch.Discriminator,
		Value:         sch.Category,
		KeyReadOnly:   true,
		ValueReadOnly: ro,
		Kind:          schema.InputSelect,
		Options:       sch.Options,
	})
	for _, k := range sch.Required {
		v, _ := lookup(entries, k)
		rows = append(rows, Row{
			Key:           k,
			Value:         v,
			KeyReadOnly:   true,
			ValueReadOnly: ro,
			Kind:          schema.InputText,
		})
	}
	for _, e := range entries {
		if e.Key != "" && sch.Reserved(e.Key) {
			continue
		}
		r := p.styleRow(e.Key)
		r.Value = e.Value
		r.KeyReadOnly = e.Key != ""
		r.ValueReadOnly = ro
		rows = append(rows, r)
	}
	return rows
}

// styleRow returns a row whose input hints match key's styling property, or
// a plain text row.
func (p *Popup) styleRow(key string) Row {
	want := normalize.Key(key)
	for _, sp := range schema.StyleFor(p.geom) {
		if normalize.Key(sp.Key) == want {
			return Row{
				Key:  key,
				Kind: sp.Kind,
				List: sp.List,
				Min:  sp.Min,
				Max:  sp.Max,
				Step: sp.Step,
			}
		}
	}
	return Row{Key: key, Kind: schema.InputText}
}

func (p *Popup) entriesLocked() []Entry {
	out := make([]Entry, 0, len(p.rows))
	for _, r := range p.rows {
		out = append(out, Entry{Key: r.Key, Value: r.Value})
	}
	return out
}

// hasKeyLocked compares normalized keys: saved properties are snake cased,
// so "stroke_width" already covers "stroke-width".
func (p *Popup) hasKeyLocked(key string) bool {
	want := normalize.Key(key)
	for k := range p.props {
		if normalize.Key(k) == want {
			return true
		}
	}
	for _, r := range p.rows {
		if r.Key != "" && normalize.Key(r.Key) == want {
			return true
		}
	}
	return false
}

func (p *Popup) checkTableLocked() error {
	if !p.editable {
		return ErrReadOnly
	}
	if !p.hasTable {
		return ErrNoPropertyTable
	}
	return nil
}
