package theme

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/socialterm/internal/model"
	"github.com/nhle/socialterm/internal/store"
)

// Mode is the colour scheme.
type Mode string

const (
	Dark  Mode = "dark"
	Light Mode = "light"
)

// Preference is the persisted dark/light choice.
type Preference struct {
	kv   store.KV
	mode Mode

	// detect reports whether the terminal has a dark background.
	detect func() bool
}

func NewPreference(kv store.KV) *Preference {
	return &Preference{kv: kv, mode: Dark, detect: lipgloss.HasDarkBackground}
}

// Load reads the saved mode. Without one, the terminal background decides.
func (p *Preference) Load(ctx context.Context) error {
	saved, err := p.kv.Get(ctx, model.StorageKeyTheme)
	switch {
	case err == nil && (Mode(saved) == Dark || Mode(saved) == Light):
		p.mode = Mode(saved)
		return nil
	case err != nil && !errors.Is(err, store.ErrNotFound):
		p.mode = p.system()
		return fmt.Errorf("loading theme: %w", err)
	}
	p.mode = p.system()
	return nil
}

// Set switches to mode, persists it and applies it.
func (p *Preference) Set(ctx context.Context, mode Mode) error {
	if mode != Dark && mode != Light {
		return fmt.Errorf("unknown theme %q", mode)
	}
	p.mode = mode
	p.Apply()
	if err := p.kv.Set(ctx, model.StorageKeyTheme, string(mode)); err != nil {
		return fmt.Errorf("saving theme: %w", err)
	}
	return nil
}

// Toggle flips between dark and light.
func (p *Preference) Toggle(ctx context.Context) error {
	next := Dark
	if p.mode == Dark {
		next = Light
	}
	return p.Set(ctx, next)
}

func (p *Preference) Mode() Mode {
	return p.mode
}

func (p *Preference) IsDark() bool {
	return p.mode == Dark
}

// Apply makes adaptive colours follow the current mode.
func (p *Preference) Apply() {
	lipgloss.SetHasDarkBackground(p.IsDark())
}

func (p *Preference) system() Mode {
	if p.detect != nil && !p.detect() {
		return Light
	}
	return Dark
}
