package vocabulary

import (
	"fmt"
	"log/slog"
	"sync/atomic"
)

// Registry holds the current Vocabulary snapshot. Readers call Current once
// per operation so an extraction never mixes two snapshots.
type Registry struct {
	dir     string
	current atomic.Pointer[Vocabulary]
	logger  *slog.Logger
}

// NewRegistry loads the lexicons from dir, or the embedded defaults when dir
// is empty.
func NewRegistry(dir string) (*Registry, error) {
	r := &Registry{
		dir:    dir,
		logger: slog.Default().With("component", "vocabulary"),
	}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// NewStaticRegistry serves a fixed snapshot; Reload keeps it.
func NewStaticRegistry(v *Vocabulary) *Registry {
	r := &Registry{logger: slog.Default().With("component", "vocabulary")}
	r.current.Store(v)
	return r
}

// Current returns the active snapshot.
func (r *Registry) Current() *Vocabulary {
	return r.current.Load()
}

// Dir is the watched lexicon directory, "" for embedded data.
func (r *Registry) Dir() string { return r.dir }

// Reload re-reads the lexicons. On failure the previous snapshot stays
// active.
func (r *Registry) Reload() error {
	if r.dir == "" && r.current.Load() != nil {
		return nil
	}
	var (
		v   *Vocabulary
		err error
	)
	if r.dir == "" {
		v, err = Default()
	} else {
		v, err = Load(r.dir)
	}
	if err != nil {
		return fmt.Errorf("loading vocabulary: %w", err)
	}
	r.current.Store(v)
	r.logger.Info("vocabulary loaded",
		"source", v.Source(),
		"skills", len(v.skills),
		"cities", len(v.cities),
		"rules", len(v.rules),
	)
	return nil
}
