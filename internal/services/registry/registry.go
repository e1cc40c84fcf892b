package registry

import (
	"errors"
	"strings"
	"sync"
	"time"

	"MandiCast/internal/domain/models"
	domrepo "MandiCast/internal/domain/repository"
	domsvc "MandiCast/internal/domain/service"
	applogger "MandiCast/pkg/logger"

	"golang.org/x/sync/singleflight"
)

// Key builds the registry key for (district, market, crop). Spaces in the
// market name become underscores.
func Key(district, market, crop string) string {
	return district + "_" + strings.ReplaceAll(market, " ", "_") + "_" + crop
}

type entry struct {
	model  domsvc.PriceModel
	absent bool
}

// Registry lazily loads persisted models and keeps them for the process
// lifetime. A key whose load failed stays absent and is never retried.
type Registry struct {
	store   domrepo.ModelStore
	logger  *applogger.Logger
	metrics domrepo.Metrics

	mu      sync.RWMutex
	entries map[string]entry
	group   singleflight.Group
}

// New creates an empty registry over store. logger and metrics may be nil.
func New(store domrepo.ModelStore, logger *applogger.Logger, metrics domrepo.Metrics) *Registry {
	return &Registry{
		store:   store,
		logger:  logger,
		metrics: metrics,
		entries: make(map[string]entry),
	}
}

// Get returns the cached model for the key or models.ErrModelAbsent.
func (r *Registry) Get(district, market, crop string) (domsvc.PriceModel, error) {
	key := Key(district, market, crop)
	if e, ok := r.lookup(key); ok {
		return e.result()
	}

	v, _, _ := r.group.Do(key, func() (interface{}, error) {
		if e, ok := r.lookup(key); ok {
			return e, nil
		}
		e := r.load(key)
		r.mu.Lock()
		r.entries[key] = e
		loaded := r.countLocked()
		r.mu.Unlock()
		if r.metrics != nil {
			r.metrics.SetModelsCached(loaded)
		}
		return e, nil
	})
	return v.(entry).result()
}

func (r *Registry) lookup(key string) (entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[key]
	return e, ok
}

func (r *Registry) load(key string) entry {
	start := time.Now()
	m, err := r.store.Load(key)
	if r.metrics != nil {
		r.metrics.RecordLatency("model_load", time.Since(start).Seconds())
	}
	if err != nil {
		if r.logger != nil {
			if errors.Is(err, models.ErrModelAbsent) {
				r.logger.Debug("model not trained", applogger.String("key", key))
			} else {
				r.logger.Warn("model load failed", applogger.String("key", key), applogger.Error(err))
			}
		}
		return entry{absent: true}
	}
	if r.logger != nil {
		r.logger.Info("model loaded", applogger.String("key", key), applogger.String("path", r.store.Path(key)))
	}
	return entry{model: m}
}

func (e entry) result() (domsvc.PriceModel, error) {
	if e.absent || e.model == nil {
		return nil, models.ErrModelAbsent
	}
	return e.model, nil
}

// Loaded returns the number of models held in memory.
func (r *Registry) Loaded() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.countLocked()
}

func (r *Registry) countLocked() int {
	n := 0
	for _, e := range r.entries {
		if !e.absent {
			n++
		}
	}
	return n
}

var _ domrepo.ModelRegistry = (*Registry)(nil)
