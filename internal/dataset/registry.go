package dataset

import (
	"fmt"
	"sort"
	"sync"

	"github.com/dgraph-io/ristretto"
	"go.uber.org/zap"
)

// Registry maps dataset IDs to loaded datasets. Registration happens at
// startup; after that the registry only serves concurrent reads. Profiling
// artifacts are cached per (dataset, tier) since they are pure functions of
// immutable data.
type Registry struct {
	mu       sync.RWMutex
	datasets map[string]*Dataset

	profiles *ristretto.Cache
	logger   *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) (*Registry, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1 << 14,
		MaxCost:     64 << 20, // bytes of cached profile text
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("profile cache: %w", err)
	}
	return &Registry{
		datasets: make(map[string]*Dataset),
		profiles: cache,
		logger:   logger,
	}, nil
}

// Register adds a dataset. Re-registering an ID is an error: datasets are
// immutable once serving starts.
func (r *Registry) Register(ds *Dataset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.datasets[ds.ID]; exists {
		return fmt.Errorf("dataset %q already registered", ds.ID)
	}
	r.datasets[ds.ID] = ds
	r.logger.Info("Dataset registered",
		zap.String("dataset_id", ds.ID),
		zap.String("name", ds.Name),
		zap.Int("rows", ds.Rows),
		zap.Int("columns", ds.Width()),
	)
	return nil
}

// Get returns the dataset for id, or nil.
func (r *Registry) Get(id string) *Dataset {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.datasets[id]
}

// Resolve returns the datasets for the given IDs plus the IDs that are not
// registered. Results are ordered by ID for deterministic profiling.
func (r *Registry) Resolve(ids []string) ([]*Dataset, []string) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	found := make([]*Dataset, 0, len(ids))
	var missing []string
	for _, id := range ids {
		if ds, ok := r.datasets[id]; ok {
			found = append(found, ds)
		} else {
			missing = append(missing, id)
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].ID < found[j].ID })
	return found, missing
}

// IDs returns all registered dataset IDs, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.datasets))
	for id := range r.datasets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CachedProfile returns a previously stored profiling artifact.
func (r *Registry) CachedProfile(key string) (string, bool) {
	v, ok := r.profiles.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// StoreProfile caches a profiling artifact keyed by dataset and tier.
func (r *Registry) StoreProfile(key, artifact string) {
	r.profiles.Set(key, artifact, int64(len(artifact)))
}
