package record

import "strings"

// TypeRegistry assigns incident type ids in order of first appearance.
type TypeRegistry struct {
	ids   map[string]int
	names []string
}

// NewTypeRegistry creates an empty registry.
func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{ids: map[string]int{}}
}

// ID returns the id for name, assigning the next one if name is new.
func (r *TypeRegistry) ID(name string) int {
	name = strings.TrimSpace(name)
	if id, ok := r.ids[name]; ok {
		return id
	}
	id := len(r.names)
	r.ids[name] = id
	r.names = append(r.names, name)
	return id
}

// Lookup returns the id for name without assigning one.
func (r *TypeRegistry) Lookup(name string) (int, bool) {
	id, ok := r.ids[strings.TrimSpace(name)]
	return id, ok
}

// Name returns the type name for id.
func (r *TypeRegistry) Name(id int) string {
	if id < 0 || id >= len(r.names) {
		return ""
	}
	return r.names[id]
}

// Names returns type names indexed by id.
func (r *TypeRegistry) Names() []string {
	return append([]string(nil), r.names...)
}
