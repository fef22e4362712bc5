package popup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/plot-editor/internal/core/observability"
	"github.com/mohammed-shakir/plot-editor/internal/flash"
	"github.com/mohammed-shakir/plot-editor/internal/logger"
	"github.com/mohammed-shakir/plot-editor/internal/mode"
	"github.com/mohammed-shakir/plot-editor/internal/store"
)

// Controller opens popups against the feature store and commits their
// results.
type Controller struct {
	store     *store.Store
	flasher   *flash.Flasher
	registry  *Registry
	container string
	logger    *slog.Logger
}

type Option func(*Controller)

// WithContainer names the flash container validation messages go to.
func WithContainer(name string) Option {
	return func(c *Controller) {
		if name != "" {
			c.container = name
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

func NewController(st *store.Store, fl *flash.Flasher, reg *Registry, opts ...Option) *Controller {
	if reg == nil {
		reg = NewRegistry(0)
	}
	c := &Controller{
		store:     st,
		flasher:   fl,
		registry:  reg,
		container: flash.DefaultContainer,
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Controller) Registry() *Registry { return c.registry }

// Container is the flash container validation messages go to.
func (c *Controller) Container() string { return c.container }

// Open starts a popup for the feature at featureID under mode m.
func (c *Controller) Open(ctx context.Context, featureID int, m mode.Mode) (*Popup, error) {
	f, err := c.store.Feature(featureID)
	if err != nil {
		c.observe("open", m, err)
		return nil, err
	}
	p := c.registry.open(featureID, m, f)
	c.observe("open", m, nil)
	c.logger.DebugContext(logger.WithPopupID(ctx, p.id), "popup opened",
		"feature_id", featureID,
		"geometry", p.View().GeometryType,
		"editable", p.editable)
	return p, nil
}

func (c *Controller) Get(id string) (*Popup, error) {
	return c.registry.Get(id)
}

func (c *Controller) SelectCategory(_ context.Context, id, value string) (*Popup, error) {
	return c.apply("category", id, func(p *Popup) error { return p.SelectCategory(value) })
}

func (c *Controller) AddRow(_ context.Context, id string) (*Popup, error) {
	return c.apply("add_row", id, func(p *Popup) error { return p.AddRow() })
}

func (c *Controller) AddStyleProperties(_ context.Context, id string) (*Popup, error) {
	return c.apply("add_style", id, func(p *Popup) error {
		_, err := p.AddStyleProperties()
		return err
	})
}

func (c *Controller) SetRow(_ context.Context, id string, i int, e Entry) (*Popup, error) {
	return c.apply("set_row", id, func(p *Popup) error { return p.SetRow(i, e) })
}

func (c *Controller) Submit(_ context.Context, id string, entries []Entry) (*Popup, error) {
	return c.apply("submit", id, func(p *Popup) error { return p.Submit(entries) })
}

func (c *Controller) apply(action, id string, fn func(*Popup) error) (*Popup, error) {
	p, err := c.registry.Get(id)
	if err != nil {
		c.observe(action, "", err)
		return nil, err
	}
	err = fn(p)
	c.observe(action, p.mode, err)
	return p, err
}

// Save validates the form and replaces the feature's properties with the
// collected object. On validation failure the message is flashed and the
// popup stays open.
func (c *Controller) Save(ctx context.Context, id string) (geojson.Properties, error) {
	p, err := c.registry.Get(id)
	if err != nil {
		c.observe("save", "", err)
		return nil, err
	}
	ctx = logger.WithPopupID(ctx, id)

	obj, err := p.Collect()
	if err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			c.flashError(ctx, ve.Message)
		}
		c.observe("save", p.mode, err)
		return nil, err
	}

	err = c.store.Update(store.OriginPopup, func(fc *geojson.FeatureCollection) error {
		if p.featureID < 0 || p.featureID >= len(fc.Features) {
			return fmt.Errorf("save feature %d: %w", p.featureID, store.ErrFeatureNotFound)
		}
		fc.Features[p.featureID].Properties = obj.Clone()
		return nil
	})
	c.observe("save", p.mode, err)
	if err != nil {
		return nil, err
	}
	c.registry.close(id)
	c.logger.InfoContext(ctx, "feature saved", "feature_id", p.featureID, "keys", len(obj))
	return obj, nil
}

// Cancel closes the popup without committing.
func (c *Controller) Cancel(_ context.Context, id string) error {
	p, err := c.registry.Get(id)
	if err != nil {
		c.observe("cancel", "", err)
		return err
	}
	c.registry.close(id)
	c.observe("cancel", p.mode, nil)
	return nil
}

// Delete splices the popup's feature out of the collection and closes the
// popup. Later feature ids shift down by one.
func (c *Controller) Delete(ctx context.Context, id string) error {
	p, err := c.registry.Get(id)
	if err != nil {
		c.observe("delete", "", err)
		return err
	}
	if !p.editable {
		c.observe("delete", p.mode, ErrReadOnly)
		return ErrReadOnly
	}
	err = c.store.Update(store.OriginPopup, func(fc *geojson.FeatureCollection) error {
		if p.featureID < 0 || p.featureID >= len(fc.Features) {
			return fmt.Errorf("delete feature %d: %w", p.featureID, store.ErrFeatureNotFound)
		}
		fc.Features = append(fc.Features[:p.featureID], fc.Features[p.featureID+1:]...)
		return nil
	})
	c.observe("delete", p.mode, err)
	if err != nil {
		return err
	}
	c.registry.close(id)
	c.logger.InfoContext(logger.WithPopupID(ctx, id), "feature deleted", "feature_id", p.featureID)
	return nil
}

func (c *Controller) flashError(ctx context.Context, msg string) {
	if c.flasher == nil {
		return
	}
	if _, err := c.flasher.Flash(ctx, c.container, flash.LevelError, msg); err != nil {
		c.logger.WarnContext(ctx, "flash failed", "err", err)
	}
}

func (c *Controller) observe(action string, m mode.Mode, err error) {
	observability.ObservePopupAction(action, outcome(err), string(m))
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrValidation):
		return "invalid"
	case errors.Is(err, ErrReadOnly):
		return "read_only"
	case errors.Is(err, ErrNoPropertyTable):
		return "no_table"
	case errors.Is(err, ErrPopupNotFound), errors.Is(err, store.ErrFeatureNotFound):
		return "not_found"
	default:
		return "error"
	}
}
