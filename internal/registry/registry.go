package registry

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// CostTier buckets models by price.
type CostTier string

const (
	CostTierFree   CostTier = "free"
	CostTierLow    CostTier = "low"
	CostTierMedium CostTier = "medium"
	CostTierHigh   CostTier = "high"
)

// costTierRank orders tiers from cheapest to most expensive.
func costTierRank(t CostTier) int {
	switch t {
	case CostTierFree:
		return 0
	case CostTierLow:
		return 1
	case CostTierMedium:
		return 2
	case CostTierHigh:
		return 3
	default:
		return 2
	}
}

// Capabilities scores a model on a 0-10 scale per dimension.
type Capabilities struct {
	Reasoning int `json:"reasoning" yaml:"reasoning"`
	Coding    int `json:"coding" yaml:"coding"`
	Speed     int `json:"speed" yaml:"speed"`
}

// ModelDescriptor is one static registry entry. Descriptors are immutable for
// the process lifetime; reloading swaps the whole table.
type ModelDescriptor struct {
	ID           string       `json:"id" yaml:"id"`
	DisplayName  string       `json:"displayName" yaml:"display_name"`
	Provider     string       `json:"provider" yaml:"provider"`
	Capabilities Capabilities `json:"capabilities" yaml:"capabilities"`
	CostTier     CostTier     `json:"costTier" yaml:"cost_tier"`
	SpeedTier    string       `json:"speedTier" yaml:"speed_tier"`
	Reliability  float64      `json:"reliability" yaml:"reliability"`
}

// TaskRequirements weights the capability dimensions for ByTask ranking.
// A zero weight ignores that dimension; MaxCostTier, when set, filters out
// more expensive tiers before ranking.
type TaskRequirements struct {
	Reasoning   float64
	Coding      float64
	Speed       float64
	MaxCostTier CostTier
}

// reliabilityBonus scales how much declared reliability contributes to a
// ByTask score relative to a single full-weight capability point.
const reliabilityBonus = 5.0

// Registry is the read-only (at request time) table of known models.
// Reload replaces the table atomically and bumps the generation counter so
// cached derivations can be invalidated out-of-band.
type Registry struct {
	mu         sync.RWMutex
	models     []ModelDescriptor
	byID       map[string]ModelDescriptor
	generation uint64
	path       string
}

// New builds a registry from a descriptor slice. The stored order is stable:
// by provider, then display name, then ID.
func New(models []ModelDescriptor) *Registry {
	r := &Registry{}
	r.swap(models)
	return r
}

// LoadFile reads a YAML model catalog and builds a registry bound to that
// path, so Reload can re-read it later.
func LoadFile(path string) (*Registry, error) {
	models, err := readCatalog(path)
	if err != nil {
		return nil, err
	}
	r := New(models)
	r.path = path
	return r, nil
}

type catalogFile struct {
	Models []ModelDescriptor `yaml:"models"`
}

func readCatalog(path string) ([]ModelDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model catalog: %w", err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse model catalog: %w", err)
	}
	if len(file.Models) == 0 {
		return nil, fmt.Errorf("model catalog %s contains no models", path)
	}

	for _, m := range file.Models {
		if m.ID == "" || m.Provider == "" {
			return nil, fmt.Errorf("model catalog entry missing id or provider")
		}
		if m.Reliability < 0 || m.Reliability > 1 {
			return nil, fmt.Errorf("model %s: reliability %v out of range [0,1]", m.ID, m.Reliability)
		}
	}

	return file.Models, nil
}

func (r *Registry) swap(models []ModelDescriptor) {
	sorted := make([]ModelDescriptor, len(models))
	copy(sorted, models)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Provider != sorted[j].Provider {
			return sorted[i].Provider < sorted[j].Provider
		}
		if sorted[i].DisplayName != sorted[j].DisplayName {
			return sorted[i].DisplayName < sorted[j].DisplayName
		}
		return sorted[i].ID < sorted[j].ID
	})

	byID := make(map[string]ModelDescriptor, len(sorted))
	for _, m := range sorted {
		byID[m.ID] = m
	}

	r.mu.Lock()
	r.models = sorted
	r.byID = byID
	r.generation++
	r.mu.Unlock()
}

// Reload re-reads the catalog file this registry was loaded from and swaps
// the table. It is an out-of-band operation, never called on the request path.
func (r *Registry) Reload() error {
	if r.path == "" {
		return fmt.Errorf("registry was not loaded from a file")
	}
	models, err := readCatalog(r.path)
	if err != nil {
		return err
	}
	r.swap(models)
	return nil
}

// Generation returns a counter bumped on every table swap.
func (r *Registry) Generation() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.generation
}

// Get looks up a model descriptor by ID.
func (r *Registry) Get(id string) (ModelDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byID[id]
	return m, ok
}

// ListAll returns every descriptor in stable order.
func (r *Registry) ListAll() []ModelDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ModelDescriptor, len(r.models))
	copy(out, r.models)
	return out
}

// ByTask ranks descriptors by a weighted capability sum plus a reliability
// bonus, descending. Ties are broken by declared ID so the ranking is stable
// across processes.
func (r *Registry) ByTask(req TaskRequirements) []ModelDescriptor {
	candidates := r.ListAll()

	if req.MaxCostTier != "" {
		ceiling := costTierRank(req.MaxCostTier)
		filtered := candidates[:0]
		for _, m := range candidates {
			if costTierRank(m.CostTier) <= ceiling {
				filtered = append(filtered, m)
			}
		}
		candidates = filtered
	}

	score := func(m ModelDescriptor) float64 {
		return req.Reasoning*float64(m.Capabilities.Reasoning) +
			req.Coding*float64(m.Capabilities.Coding) +
			req.Speed*float64(m.Capabilities.Speed) +
			m.Reliability*reliabilityBonus
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		si, sj := score(candidates[i]), score(candidates[j])
		if si != sj {
			return si > sj
		}
		return candidates[i].ID < candidates[j].ID
	})

	return candidates
}

// ByProvider returns the descriptors declared for one provider, in stable
// order.
func (r *Registry) ByProvider(provider string) []ModelDescriptor {
	var out []ModelDescriptor
	for _, m := range r.ListAll() {
		if m.Provider == provider {
			out = append(out, m)
		}
	}
	return out
}

// ProviderReliability is the best declared reliability among a provider's
// models; 0 when the provider has no models.
func (r *Registry) ProviderReliability(provider string) float64 {
	best := 0.0
	for _, m := range r.ByProvider(provider) {
		if m.Reliability > best {
			best = m.Reliability
		}
	}
	return best
}
