package catalog

import "sync"

// Package is a read-only view over a package record returned by the
// catalog API. The extras and harvest lists are flattened into lookups on
// first use.
type Package struct {
	raw map[string]any

	extrasOnce    sync.Once
	extras        map[string]any
	harvestOnce   sync.Once
	harvest       map[string]any
	resourcesOnce sync.Once
	resources     []Resource
}

// NewPackage wraps a decoded package record
func NewPackage(raw map[string]any) *Package {
	if raw == nil {
		raw = map[string]any{}
	}
	return &Package{raw: raw}
}

// Get returns a top-level field
func (p *Package) Get(key string) (any, bool) {
	v, ok := p.raw[key]
	return v, ok
}

// String returns a top-level field when it is a string
func (p *Package) String(key string) string {
	s, _ := p.raw[key].(string)
	return s
}

// Extra returns the value stored under key in the extras list
func (p *Package) Extra(key string) (any, bool) {
	p.extrasOnce.Do(func() { p.extras = keyValues(p.raw["extras"]) })
	v, ok := p.extras[key]
	return v, ok
}

// Harvest returns the value stored under key in the harvest list
func (p *Package) Harvest(key string) (any, bool) {
	p.harvestOnce.Do(func() { p.harvest = keyValues(p.raw["harvest"]) })
	v, ok := p.harvest[key]
	return v, ok
}

// Resources returns the package's resources
func (p *Package) Resources() []Resource {
	p.resourcesOnce.Do(func() {
		list, _ := p.raw["resources"].([]any)
		p.resources = make([]Resource, 0, len(list))
		for _, item := range list {
			if m, ok := item.(map[string]any); ok {
				p.resources = append(p.resources, Resource{raw: m})
			}
		}
	})
	return p.resources
}

// Resource is one file attached to a package
type Resource struct {
	raw map[string]any
}

// Get returns a field of the resource
func (r Resource) Get(key string) (any, bool) {
	v, ok := r.raw[key]
	return v, ok
}

// String returns a field of the resource when it is a string
func (r Resource) String(key string) string {
	s, _ := r.raw[key].(string)
	return s
}

// keyValues turns [{"key": k, "value": v}, ...] into a map. Entries without
// a string key are skipped.
func keyValues(v any) map[string]any {
	out := make(map[string]any)
	list, _ := v.([]any)
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		k, ok := m["key"].(string)
		if !ok {
			continue
		}
		out[k] = m["value"]
	}
	return out
}
