package provider

import (
	"maps"
	"slices"

	"ecotrack/internal/apperrors"
)

// Registry looks providers up by name.
type Registry struct {
	byName map[string]OAuthProvider
}

// NewRegistry skips nil entries. A later provider replaces an earlier
// one with the same name.
func NewRegistry(list ...OAuthProvider) *Registry {
	r := &Registry{byName: make(map[string]OAuthProvider, len(list))}
	for _, p := range list {
		if p != nil {
			r.byName[p.Name()] = p
		}
	}
	return r
}

// Get reports PROVIDER_ERROR for a name that is not configured.
func (r *Registry) Get(name string) (OAuthProvider, error) {
	if p, ok := r.byName[name]; ok {
		return p, nil
	}
	return nil, apperrors.New(apperrors.CodeProviderError, "unknown sign-in provider: "+name)
}

// Names lists the configured providers, sorted.
func (r *Registry) Names() []string {
	return slices.Sorted(maps.Keys(r.byName))
}
