package popup

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/plot-editor/internal/flash"
	"github.com/mohammed-shakir/plot-editor/internal/mode"
	"github.com/mohammed-shakir/plot-editor/internal/store"
)

var square = orb.Polygon{{{0, 0}, {0.001, 0}, {0.001, 0.001}, {0, 0.001}, {0, 0}}}

func feature(g orb.Geometry, props map[string]any) *geojson.Feature {
	f := geojson.NewFeature(g)
	for k, v := range props {
		f.Properties[k] = v
	}
	return f
}

type fixture struct {
	store *store.Store
	flash *flash.Flasher
	ctrl  *Controller
}

func newFixture(t *testing.T, fs ...*geojson.Feature) *fixture {
	t.Helper()
	st := store.New(nil)
	fc := geojson.NewFeatureCollection()
	for _, f := range fs {
		fc.Append(f)
	}
	st.Set(store.State{Map: fc}, store.OriginLoad)

	fl, err := flash.New(flash.NewMemory(16, time.Minute), time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{store: st, flash: fl, ctrl: NewController(st, fl, NewRegistry(8))}
}

func (fx *fixture) messages(t *testing.T) []flash.Message {
	t.Helper()
	ms, err := fx.flash.Messages(context.Background(), flash.DefaultContainer)
	if err != nil {
		t.Fatal(err)
	}
	return ms
}

func rowIndex(t *testing.T, p *Popup, key string) int {
	t.Helper()
	for i, r := range p.View().Rows {
		if r.Key == key {
			return i
		}
	}
	t.Fatalf("no row %q in %+v", key, p.View().Rows)
	return -1
}

func TestSave_LandPlotExample(t *testing.T) {
	fx := newFixture(t, feature(square, map[string]any{"name": "Plot A"}))
	ctx := context.Background()

	p, err := fx.ctrl.Open(ctx, 0, mode.ProjectBounds)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fx.ctrl.SelectCategory(ctx, p.ID(), "land_plot"); err != nil {
		t.Fatalf("category: %v", err)
	}
	v := p.View()
	if v.Rows[0].Key != "location_category" || v.Rows[0].Value != "land_plot" {
		t.Fatalf("first row=%+v", v.Rows[0])
	}
	if _, err := fx.ctrl.SetRow(ctx, p.ID(), rowIndex(t, p, "type"), Entry{Key: "type", Value: "Forest"}); err != nil {
		t.Fatalf("set row: %v", err)
	}

	props, err := fx.ctrl.Save(ctx, p.ID())
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	want := map[string]any{"location_category": "land_plot", "name": "plot_a", "type": "forest"}
	f, _ := fx.store.Feature(0)
	for _, got := range []geojson.Properties{props, f.Properties} {
		if len(got) != len(want) {
			t.Fatalf("props=%v want %v", got, want)
		}
		for k, w := range want {
			if got[k] != w {
				t.Fatalf("props[%q]=%v want %v", k, got[k], w)
			}
		}
	}
	if _, err := fx.ctrl.Get(p.ID()); !errors.Is(err, ErrPopupNotFound) {
		t.Fatalf("popup still open: err=%v", err)
	}
}

func TestSave_LandPlotMissingTypeKeepsStore(t *testing.T) {
	fx := newFixture(t, feature(square, map[string]any{"location_category": "land_plot", "name": "Plot A"}))
	ctx := context.Background()

	p, _ := fx.ctrl.Open(ctx, 0, mode.ProjectBounds)
	_, err := fx.ctrl.Save(ctx, p.ID())
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("err=%v want ErrValidation", err)
	}
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Message != "Please enter both a name and type for this plot." {
		t.Fatalf("validation error=%v", err)
	}

	f, _ := fx.store.Feature(0)
	if f.Properties["name"] != "Plot A" || len(f.Properties) != 2 {
		t.Fatalf("store changed: %v", f.Properties)
	}
	if _, err := fx.ctrl.Get(p.ID()); err != nil {
		t.Fatalf("popup closed on failed save: %v", err)
	}
	ms := fx.messages(t)
	if len(ms) != 1 || ms[0].Level != flash.LevelError || ms[0].Text != ve.Message {
		t.Fatalf("flash=%+v", ms)
	}
}

func TestSave_FlashesToNamedContainer(t *testing.T) {
	fx := newFixture(t, feature(square, map[string]any{"location_category": "land_plot", "name": "Plot A"}))
	ctx := context.Background()
	ctrl := NewController(fx.store, fx.flash, NewRegistry(8), WithContainer("editor"))
	if ctrl.Container() != "editor" {
		t.Fatalf("container=%q", ctrl.Container())
	}

	p, _ := ctrl.Open(ctx, 0, mode.ProjectBounds)
	if _, err := ctrl.Save(ctx, p.ID()); !errors.Is(err, ErrValidation) {
		t.Fatalf("err=%v want ErrValidation", err)
	}
	ms, err := fx.flash.Messages(ctx, "editor")
	if err != nil {
		t.Fatal(err)
	}
	if len(ms) != 1 {
		t.Fatalf("editor container=%+v", ms)
	}
	if got := fx.messages(t); len(got) != 0 {
		t.Fatalf("default container=%+v", got)
	}
	if NewController(fx.store, fx.flash, nil, WithContainer("")).Container() != flash.DefaultContainer {
		t.Fatal("empty container name must keep the default")
	}
}

func TestSave_ProjectBoundaryNeedsName(t *testing.T) {
	fx := newFixture(t, feature(square, map[string]any{"location_category": "project_bounds"}))
	ctx := context.Background()

	p, _ := fx.ctrl.Open(ctx, 0, mode.ProjectBounds)
	if _, err := fx.ctrl.Save(ctx, p.ID()); !errors.Is(err, ErrValidation) {
		t.Fatalf("err=%v want ErrValidation", err)
	}
	if ms := fx.messages(t); len(ms) != 1 || ms[0].Text != "Please enter a name for this project boundary." {
		t.Fatalf("flash=%+v", ms)
	}
}

func TestSave_FeatureCategoryFamily(t *testing.T) {
	fx := newFixture(t, feature(square, map[string]any{"feat_cat": "habitat_boundary"}))
	ctx := context.Background()

	p, _ := fx.ctrl.Open(ctx, 0, mode.Default)
	v := p.View()
	if v.Discriminator != "feat_cat" || len(v.Rows[0].Options) != 6 {
		t.Fatalf("view=%+v", v)
	}
	if _, err := fx.ctrl.Save(ctx, p.ID()); !errors.Is(err, ErrValidation) {
		t.Fatalf("err=%v want ErrValidation (no plot_id)", err)
	}

	_, _ = fx.ctrl.SetRow(ctx, p.ID(), rowIndex(t, p, "plot_id"), Entry{Key: "plot_id", Value: "17"})
	props, err := fx.ctrl.Save(ctx, p.ID())
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if props["plot_id"] != float64(17) || props["feat_cat"] != "habitat_boundary" {
		t.Fatalf("props=%v", props)
	}
}

func TestSave_ReplacesPropertiesWholesale(t *testing.T) {
	fx := newFixture(t, feature(square, map[string]any{
		"name":       "Site",
		"Plot Owner": "Jane Doe",
		"area":       "007",
		"count":      "42",
	}))
	ctx := context.Background()

	p, _ := fx.ctrl.Open(ctx, 0, mode.ProjectBounds)
	props, err := fx.ctrl.Save(ctx, p.ID())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := props["Plot Owner"]; ok {
		t.Fatalf("unnormalized key survived: %v", props)
	}
	if props["plot_owner"] != "jane_doe" {
		t.Fatalf("plot_owner=%v", props["plot_owner"])
	}
	if props["area"] != "007" {
		t.Fatalf("area=%#v want string 007", props["area"])
	}
	if props["count"] != float64(42) {
		t.Fatalf("count=%#v want 42", props["count"])
	}
	// empty discriminator is submitted too
	if v, ok := props["location_category"]; !ok || v != "" {
		t.Fatalf("location_category=%#v", v)
	}
}

func TestSave_SkipsRowsWithEmptyKey(t *testing.T) {
	fx := newFixture(t, feature(square, map[string]any{"name": "a"}))
	ctx := context.Background()

	p, _ := fx.ctrl.Open(ctx, 0, mode.ProjectBounds)
	_, _ = fx.ctrl.AddRow(ctx, p.ID())
	_, _ = fx.ctrl.AddRow(ctx, p.ID())
	n := len(p.View().Rows)
	_, _ = fx.ctrl.SetRow(ctx, p.ID(), n-2, Entry{Key: "", Value: "orphan"})
	_, _ = fx.ctrl.SetRow(ctx, p.ID(), n-1, Entry{Key: "Notes", Value: "Wet Ground"})

	props, err := fx.ctrl.Save(ctx, p.ID())
	if err != nil {
		t.Fatal(err)
	}
	if len(props) != 3 || props["notes"] != "wet_ground" {
		t.Fatalf("props=%v", props)
	}
}

func TestDelete_ShiftsIDs(t *testing.T) {
	fx := newFixture(t,
		feature(square, map[string]any{"name": "a"}),
		feature(square, map[string]any{"name": "b"}),
		feature(square, map[string]any{"name": "c"}),
	)
	ctx := context.Background()

	p, _ := fx.ctrl.Open(ctx, 1, mode.ProjectBounds)
	if err := fx.ctrl.Delete(ctx, p.ID()); err != nil {
		t.Fatal(err)
	}
	if fx.store.Len() != 2 {
		t.Fatalf("len=%d want 2", fx.store.Len())
	}
	f, _ := fx.store.Feature(1)
	if f.Properties["name"] != "c" {
		t.Fatalf("id 1=%v want c", f.Properties["name"])
	}
	if fx.ctrl.Registry().Len() != 0 {
		t.Fatal("popup not closed after delete")
	}
}

func TestAddStyleProperties_OneShotNoDuplicates(t *testing.T) {
	fx := newFixture(t, feature(square, map[string]any{"name": "a", "stroke": "#ff0000"}))
	ctx := context.Background()

	p, _ := fx.ctrl.Open(ctx, 0, mode.ProjectBounds)
	if !p.View().StyleControl {
		t.Fatal("style control hidden before use")
	}
	if _, err := fx.ctrl.AddStyleProperties(ctx, p.ID()); err != nil {
		t.Fatal(err)
	}
	if _, err := fx.ctrl.AddStyleProperties(ctx, p.ID()); err != nil {
		t.Fatal(err)
	}
	v := p.View()
	if v.StyleControl {
		t.Fatal("style control visible after use")
	}
	seen := map[string]int{}
	for _, r := range v.Rows {
		seen[r.Key]++
	}
	for k, n := range seen {
		if n > 1 {
			t.Fatalf("key %q appears %d times", k, n)
		}
	}
	for _, k := range []string{"stroke-width", "stroke-opacity", "fill", "fill-opacity"} {
		if seen[k] != 1 {
			t.Fatalf("missing style row %q in %v", k, seen)
		}
	}
	if r := v.Rows[rowIndex(t, p, "fill-opacity")]; r.Value != "0.5" || r.Max != "1" {
		t.Fatalf("fill-opacity row=%+v", r)
	}
}

func TestAddStyleProperties_KeepsSavedSnakeCaseValues(t *testing.T) {
	fx := newFixture(t, feature(square, map[string]any{"location_category": "project_bounds", "name": "a"}))
	ctx := context.Background()

	p, _ := fx.ctrl.Open(ctx, 0, mode.ProjectBounds)
	if _, err := fx.ctrl.AddStyleProperties(ctx, p.ID()); err != nil {
		t.Fatal(err)
	}
	i := rowIndex(t, p, "stroke-width")
	if _, err := fx.ctrl.SetRow(ctx, p.ID(), i, Entry{Key: "stroke-width", Value: "7"}); err != nil {
		t.Fatal(err)
	}
	if _, err := fx.ctrl.Save(ctx, p.ID()); err != nil {
		t.Fatalf("first save: %v", err)
	}

	p, _ = fx.ctrl.Open(ctx, 0, mode.ProjectBounds)
	if got := p.View().Rows[rowIndex(t, p, "stroke_width")].Value; got != "7" {
		t.Fatalf("reopened stroke_width=%q", got)
	}
	n, err := p.AddStyleProperties()
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("added %d style rows over saved ones: %+v", n, p.View().Rows)
	}
	props, err := fx.ctrl.Save(ctx, p.ID())
	if err != nil {
		t.Fatalf("second save: %v", err)
	}
	if props["stroke_width"] != 7.0 {
		t.Fatalf("stroke_width=%v want 7", props["stroke_width"])
	}
}

func TestSelectCategory_PreservesExtras(t *testing.T) {
	fx := newFixture(t, feature(square, map[string]any{"location_category": "land_plot", "name": "a", "type": "b"}))
	ctx := context.Background()

	p, _ := fx.ctrl.Open(ctx, 0, mode.ProjectBounds)
	_, _ = fx.ctrl.AddRow(ctx, p.ID())
	last := len(p.View().Rows) - 1
	_, _ = fx.ctrl.SetRow(ctx, p.ID(), last, Entry{Key: "owner", Value: "x"})

	if _, err := fx.ctrl.SelectCategory(ctx, p.ID(), "project_bounds"); err != nil {
		t.Fatal(err)
	}
	v := p.View()
	if v.Category != "project_bounds" || v.Rows[1].Key != "name" || v.Rows[1].Value != "a" {
		t.Fatalf("rows=%+v", v.Rows)
	}
	_ = rowIndex(t, p, "owner")
	_ = rowIndex(t, p, "type")

	if _, err := fx.ctrl.SelectCategory(ctx, p.ID(), "bogus"); !errors.Is(err, ErrValidation) {
		t.Fatalf("err=%v want ErrValidation", err)
	}
}

func TestPointPopup_HasNoTable(t *testing.T) {
	fx := newFixture(t, feature(orb.Point{18.07, 59.33}, map[string]any{"name": "well"}))
	ctx := context.Background()

	p, _ := fx.ctrl.Open(ctx, 0, mode.ProjectBounds)
	v := p.View()
	if v.HasTable || len(v.Rows) != 0 {
		t.Fatalf("point view=%+v", v)
	}
	if len(v.Info) != 2 || v.Info[0].Label != "Latitude" {
		t.Fatalf("info=%+v", v.Info)
	}
	if _, err := fx.ctrl.Save(ctx, p.ID()); !errors.Is(err, ErrNoPropertyTable) {
		t.Fatalf("save err=%v", err)
	}
	if _, err := fx.ctrl.AddRow(ctx, p.ID()); !errors.Is(err, ErrNoPropertyTable) {
		t.Fatalf("add row err=%v", err)
	}
	if err := fx.ctrl.Delete(ctx, p.ID()); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if fx.store.Len() != 0 {
		t.Fatal("point not deleted")
	}
}

func TestTaskMode_IsReadOnly(t *testing.T) {
	fx := newFixture(t, feature(square, map[string]any{"name": "a"}))
	ctx := context.Background()

	p, _ := fx.ctrl.Open(ctx, 0, mode.Task)
	v := p.View()
	if v.Editable || !v.Rows[0].ValueReadOnly {
		t.Fatalf("view=%+v", v)
	}
	if _, err := fx.ctrl.Save(ctx, p.ID()); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("save err=%v", err)
	}
	if err := fx.ctrl.Delete(ctx, p.ID()); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("delete err=%v", err)
	}
	if err := fx.ctrl.Cancel(ctx, p.ID()); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if fx.store.Len() != 1 {
		t.Fatal("store changed in task mode")
	}
}

func TestSetRow_Errors(t *testing.T) {
	fx := newFixture(t, feature(square, map[string]any{"name": "a"}))
	ctx := context.Background()
	p, _ := fx.ctrl.Open(ctx, 0, mode.ProjectBounds)

	if _, err := fx.ctrl.SetRow(ctx, p.ID(), 99, Entry{}); !errors.Is(err, ErrRowOutOfRange) {
		t.Fatalf("err=%v want ErrRowOutOfRange", err)
	}
	if _, err := fx.ctrl.SetRow(ctx, p.ID(), 1, Entry{Key: "renamed", Value: "x"}); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("err=%v want ErrReadOnly", err)
	}
	if _, err := fx.ctrl.SetRow(ctx, "nope", 0, Entry{}); !errors.Is(err, ErrPopupNotFound) {
		t.Fatalf("err=%v want ErrPopupNotFound", err)
	}
}

func TestSubmit_FailingEntryAppliesNothing(t *testing.T) {
	fx := newFixture(t, feature(square, map[string]any{"location_category": "land_plot", "name": "a", "type": "b"}))
	ctx := context.Background()
	p, _ := fx.ctrl.Open(ctx, 0, mode.ProjectBounds)
	before := p.View()

	entries := []Entry{
		{Key: "location_category", Value: "project_bounds"},
		{Key: "renamed", Value: "x"},
	}
	if _, err := fx.ctrl.Submit(ctx, p.ID(), entries); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("err=%v want ErrReadOnly", err)
	}
	after := p.View()
	if after.Category != "land_plot" || after.Rows[0].Value != "land_plot" {
		t.Fatalf("category changed by failed submit: %+v", after.Rows[0])
	}
	if len(after.Rows) != len(before.Rows) || after.Rows[1].Key != before.Rows[1].Key {
		t.Fatalf("rows changed: before=%+v after=%+v", before.Rows, after.Rows)
	}
}

func TestOpen_OutOfRange(t *testing.T) {
	fx := newFixture(t)
	if _, err := fx.ctrl.Open(context.Background(), 0, mode.ProjectBounds); !errors.Is(err, store.ErrFeatureNotFound) {
		t.Fatalf("err=%v", err)
	}
}

func TestRender_HTML(t *testing.T) {
	fx := newFixture(t, feature(square, map[string]any{"location_category": "land_plot", "name": "north field"}))
	p, _ := fx.ctrl.Open(context.Background(), 0, mode.ProjectBounds)

	r, err := NewRenderer()
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := r.Render(&buf, p.View()); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"prop-input", "land_plot", "north field", "Sq. Meters", "add-simplestyle-properties-button"} {
		if !strings.Contains(out, want) {
			t.Fatalf("render missing %q: %s", want, out)
		}
	}
	if strings.Contains(out, "\n  ") {
		t.Fatal("output not minified")
	}
}
