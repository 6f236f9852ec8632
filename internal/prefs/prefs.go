// Package prefs exposes typed accessors over the local key-value store for
// the handful of UI preferences the tool persists. Invalid values are
// rejected synchronously without touching the committed state.
package prefs

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/ohyesboy/BananaPicGen/internal/localstore"
	"github.com/ohyesboy/BananaPicGen/pkg/models"
)

const (
	keyAspectRatio       = "aspect_ratio"
	keyImageSize         = "image_size"
	keyModel             = "model"
	keyTemperature       = "temperature"
	keyTerminalCollapsed = "terminal_collapsed"
)

type Prefs struct {
	store    *localstore.Store
	registry *models.ModelRegistry
}

func New(store *localstore.Store, registry *models.ModelRegistry) *Prefs {
	return &Prefs{store: store, registry: registry}
}

func (p *Prefs) Model() string {
	var name string
	if p.get(keyModel, &name) && name != "" {
		return name
	}
	list := p.registry.List()
	if len(list) > 0 {
		return list[0]
	}
	return ""
}

func (p *Prefs) SetModel(name string) error {
	if _, ok := p.registry.Get(name); !ok {
		return fmt.Errorf("unknown model %q: available models: %v", name, p.registry.List())
	}
	return p.set(keyModel, name)
}

func (p *Prefs) AspectRatio() string {
	var ratio string
	if p.get(keyAspectRatio, &ratio) && ratio != "" {
		return ratio
	}
	if caps, ok := p.registry.Get(p.Model()); ok {
		return caps.DefaultRatio
	}
	return ""
}

func (p *Prefs) SetAspectRatio(ratio string) error {
	caps, ok := p.registry.Get(p.Model())
	if !ok {
		return fmt.Errorf("no model selected")
	}
	if !slices.Contains(caps.SupportedRatios, ratio) {
		return fmt.Errorf("%w: %q (supported: %v)", models.ErrInvalidAspectRatio, ratio, caps.SupportedRatios)
	}
	return p.set(keyAspectRatio, ratio)
}

func (p *Prefs) ImageSize() string {
	var size string
	if p.get(keyImageSize, &size) && size != "" {
		return size
	}
	if caps, ok := p.registry.Get(p.Model()); ok {
		return caps.DefaultSize
	}
	return ""
}

func (p *Prefs) SetImageSize(size string) error {
	caps, ok := p.registry.Get(p.Model())
	if !ok {
		return fmt.Errorf("no model selected")
	}
	if !slices.Contains(caps.SupportedSizes, size) {
		return fmt.Errorf("%w: %q (supported: %v)", models.ErrInvalidImageSize, size, caps.SupportedSizes)
	}
	return p.set(keyImageSize, size)
}

func (p *Prefs) Temperature() float64 {
	var temp float64
	if p.get(keyTemperature, &temp) {
		return temp
	}
	if caps, ok := p.registry.Get(p.Model()); ok {
		return caps.DefaultTemperature
	}
	return 1.0
}

func (p *Prefs) SetTemperature(temp float64) error {
	caps, ok := p.registry.Get(p.Model())
	if !ok {
		return fmt.Errorf("no model selected")
	}
	if temp < caps.MinTemperature || temp > caps.MaxTemperature {
		return fmt.Errorf("%w: %g (allowed %g-%g)", models.ErrInvalidTemperature, temp, caps.MinTemperature, caps.MaxTemperature)
	}
	return p.set(keyTemperature, temp)
}

func (p *Prefs) TerminalCollapsed() bool {
	var collapsed bool
	p.get(keyTerminalCollapsed, &collapsed)
	return collapsed
}

func (p *Prefs) SetTerminalCollapsed(collapsed bool) error {
	return p.set(keyTerminalCollapsed, collapsed)
}

func (p *Prefs) get(key string, out any) bool {
	raw, ok := p.store.Get(key)
	if !ok {
		return false
	}
	return json.Unmarshal([]byte(raw), out) == nil
}

func (p *Prefs) set(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return p.store.Set(key, string(raw))
}
