package registry

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DonutLabs-ai/donut-toolkit-sub001/internal/actions"
)

// Registry holds the two in-memory mappings backing tool search: action id
// to SearchableAction and provider id to ProviderMetadata. It is populated
// by one extraction pass and wholly rebuilt on reindex; ids are regenerated
// per pass.
type Registry struct {
	mu        sync.RWMutex
	actions   map[string]*SearchableAction
	providers map[string]*ProviderMetadata
	// provider ids in encounter order, for stable listings
	order []string
	log   *zap.Logger
}

// New creates an empty registry.
func New(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		actions:   make(map[string]*SearchableAction),
		providers: make(map[string]*ProviderMetadata),
		log:       logger,
	}
}

// Extract walks the flat action list, groups actions by inferred provider
// prefix, assigns fresh ids, and swaps both registries in one step. Readers
// observe either the previous generation or the new one, never a partial
// state.
func (r *Registry) Extract(list []actions.Action) error {
	byProvider := make(map[string]*ProviderMetadata)
	actionMap := make(map[string]*SearchableAction, len(list))
	var order []string
	seen := make(map[string]struct{}, len(list))

	for _, act := range list {
		if act.Name == "" {
			return fmt.Errorf("action with empty name")
		}
		if act.Handler == nil {
			return fmt.Errorf("action %q has no handler", act.Name)
		}
		if _, dup := seen[act.Name]; dup {
			return fmt.Errorf("duplicate action name %q", act.Name)
		}
		seen[act.Name] = struct{}{}

		providerName := act.Provider()
		prov, ok := byProvider[providerName]
		if !ok {
			prov = &ProviderMetadata{
				ProviderID: uuid.New().String(),
				Name:       providerName,
				Network:    NetworkUnknown,
			}
			byProvider[providerName] = prov
			order = append(order, prov.ProviderID)
		}

		sa := &SearchableAction{
			ActionID:       uuid.New().String(),
			ProviderID:     prov.ProviderID,
			ProviderName:   providerName,
			Name:           act.Name,
			Description:    act.Description,
			Schema:         act.Schema,
			Parameters:     actions.Parameters(act.Schema),
			RequiresWallet: inferRequiresWallet(act.Name, act.Description),
			Invoke:         act.Handler,
		}
		prov.Actions = append(prov.Actions, sa)
		actionMap[sa.ActionID] = sa
	}

	providerMap := make(map[string]*ProviderMetadata, len(byProvider))
	for _, prov := range byProvider {
		prov.Description = synthesizeDescription(prov)
		providerMap[prov.ProviderID] = prov
	}

	r.mu.Lock()
	r.actions = actionMap
	r.providers = providerMap
	r.order = order
	r.mu.Unlock()

	r.log.Info("Registry extracted",
		zap.Int("actions", len(actionMap)),
		zap.Int("providers", len(providerMap)),
	)
	return nil
}

// synthesizeDescription summarizes a provider by its prefix-stripped action
// names.
func synthesizeDescription(prov *ProviderMetadata) string {
	names := make([]string, 0, len(prov.Actions))
	for _, sa := range prov.Actions {
		name := sa.Name
		if i := strings.Index(name, "_"); i > 0 && i < len(name)-1 {
			name = name[i+1:]
		}
		names = append(names, name)
	}
	return fmt.Sprintf("%s provider offering: %s", prov.Name, strings.Join(names, ", "))
}

// Action looks up a searchable action by id.
func (r *Registry) Action(id string) (*SearchableAction, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sa, ok := r.actions[id]
	return sa, ok
}

// Provider looks up provider metadata by id.
func (r *Registry) Provider(id string) (*ProviderMetadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[id]
	return p, ok
}

// Providers lists provider metadata in encounter order.
func (r *Registry) Providers() []*ProviderMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*ProviderMetadata, 0, len(r.order))
	for _, id := range r.order {
		if p, ok := r.providers[id]; ok {
			out = append(out, p)
		}
	}
	return out
}

// ActionsByProvider returns the provider's actions, or nil when the id is
// unknown.
func (r *Registry) ActionsByProvider(providerID string) []*SearchableAction {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[providerID]
	if !ok {
		return nil
	}
	out := make([]*SearchableAction, len(p.Actions))
	copy(out, p.Actions)
	return out
}

// All returns every searchable action, grouped by provider encounter order.
func (r *Registry) All() []*SearchableAction {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*SearchableAction
	for _, id := range r.order {
		if p, ok := r.providers[id]; ok {
			out = append(out, p.Actions...)
		}
	}
	return out
}

// Count returns the number of registered actions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.actions)
}

// ProviderCount returns the number of distinct providers.
func (r *Registry) ProviderCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}

// Clear drops both registries.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = make(map[string]*SearchableAction)
	r.providers = make(map[string]*ProviderMetadata)
	r.order = nil
}
