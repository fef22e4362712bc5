package popup

import (
	"fmt"
	"slices"

	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/plot-editor/internal/normalize"
	"github.com/mohammed-shakir/plot-editor/internal/schema"
)

// SelectCategory rebuilds the table for the schema of value. Entered rows
// whose keys the new schema does not reserve are kept; reserved rows take
// their values from the entered rows.
func (p *Popup) SelectCategory(value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkTableLocked(); err != nil {
		return err
	}
	if !slices.Contains(p.schema.Options, value) {
		return fmt.Errorf("category %q for %s: %w", value, p.schema.Discriminator, ErrValidation)
	}
	entries := p.entriesLocked()
	sch := schema.For(p.mode.Family(), value)
	p.schema = sch
	p.rows = p.buildRows(sch, entries)
	return nil
}

// AddRow appends one blank editable row.
func (p *Popup) AddRow() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkTableLocked(); err != nil {
		return err
	}
	p.rows = append(p.rows, Row{Kind: schema.InputText})
	return nil
}

// AddStyleProperties appends the styling rows for the geometry that are not
// yet in the feature or the form. Only the first call has an effect; it
// reports how many rows were added.
func (p *Popup) AddStyleProperties() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkTableLocked(); err != nil {
		return 0, err
	}
	if p.styleAdded {
		return 0, nil
	}
	p.styleAdded = true

	added := 0
	for _, sp := range schema.StyleFor(p.geom) {
		if p.hasKeyLocked(sp.Key) {
			continue
		}
		p.rows = append(p.rows, Row{
			Key:   sp.Key,
			Value: sp.Default,
			Kind:  sp.Kind,
			List:  sp.List,
			Min:   sp.Min,
			Max:   sp.Max,
			Step:  sp.Step,
		})
		added++
	}
	return added, nil
}

// SetRow edits row i. A read-only key cannot be renamed.
func (p *Popup) SetRow(i int, e Entry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkTableLocked(); err != nil {
		return err
	}
	return p.setRowLocked(i, e)
}

func (p *Popup) setRowLocked(i int, e Entry) error {
	if i < 0 || i >= len(p.rows) {
		return fmt.Errorf("row %d of %d: %w", i, len(p.rows), ErrRowOutOfRange)
	}
	r := &p.rows[i]
	if r.KeyReadOnly && e.Key != r.Key {
		return fmt.Errorf("rename %q: %w", r.Key, ErrReadOnly)
	}
	if i == 0 && e.Value != r.Value && e.Value != "" && !slices.Contains(r.Options, e.Value) {
		return fmt.Errorf("category %q for %s: %w", e.Value, r.Key, ErrValidation)
	}
	r.Key = e.Key
	r.Value = e.Value
	if i == 0 {
		p.schema = schema.For(p.mode.Family(), e.Value)
	}
	return nil
}

// Submit applies the client's rows in order. Entries past the end of the
// table become new editable rows. Either every entry applies or none does.
func (p *Popup) Submit(entries []Entry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkTableLocked(); err != nil {
		return err
	}
	rows, sch := slices.Clone(p.rows), p.schema
	for i, e := range entries {
		if i >= len(p.rows) {
			p.rows = append(p.rows, Row{Kind: schema.InputText})
		}
		if err := p.setRowLocked(i, e); err != nil {
			p.rows, p.schema = rows, sch
			return err
		}
	}
	return nil
}

// Collect builds the normalized property object from the rows with a
// non-empty key and validates it against the schema of its discriminator
// value. The popup keeps its rows either way.
func (p *Popup) Collect() (geojson.Properties, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkTableLocked(); err != nil {
		return nil, err
	}

	obj := geojson.Properties{}
	for _, r := range p.rows {
		if r.Key == "" {
			continue
		}
		k := normalize.Key(r.Key)
		if k == "" {
			continue
		}
		obj[k] = normalize.Value(r.Value)
	}

	cat, _ := obj[p.schema.Discriminator].(string)
	sch := schema.For(p.mode.Family(), cat)
	if missing := sch.Missing(obj); len(missing) > 0 {
		return nil, &ValidationError{Message: sch.Message, Missing: missing}
	}
	return obj, nil
}

// ValidationError carries the message shown to the user. It matches
// ErrValidation with errors.Is.
type ValidationError struct {
	Message string
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing %v: %s", e.Missing, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
