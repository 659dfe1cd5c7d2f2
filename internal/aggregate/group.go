package aggregate

// Field is a single named value within a namespace
type Field struct {
	Name  string
	Value Value
}

// Group holds the fields of one namespace in first-seen insertion order.
// Setting an existing field replaces its value but keeps its position.
type Group struct {
	Namespace string

	names  []string
	values map[string]Value
}

// NewGroup creates an empty group for the namespace
func NewGroup(namespace string) *Group {
	return &Group{
		Namespace: namespace,
		values:    make(map[string]Value),
	}
}

// Set inserts or replaces a field
func (g *Group) Set(name string, v Value) {
	if _, exists := g.values[name]; !exists {
		g.names = append(g.names, name)
	}
	g.values[name] = v
}

// Get returns the value of a field
func (g *Group) Get(name string) (Value, bool) {
	v, ok := g.values[name]
	return v, ok
}

// Len returns the number of fields
func (g *Group) Len() int {
	return len(g.names)
}

// Fields returns the fields in insertion order
func (g *Group) Fields() []Field {
	fields := make([]Field, 0, len(g.names))
	for _, name := range g.names {
		fields = append(fields, Field{Name: name, Value: g.values[name]})
	}
	return fields
}

// Groups maps namespaces to their groups, remembering the order in which
// namespaces were first seen.
type Groups struct {
	order  []string
	groups map[string]*Group
}

// NewGroups creates an empty namespace mapping
func NewGroups() *Groups {
	return &Groups{groups: make(map[string]*Group)}
}

// Group returns the group for a namespace, creating it on first use
func (gs *Groups) Group(namespace string) *Group {
	if g, ok := gs.groups[namespace]; ok {
		return g
	}
	g := NewGroup(namespace)
	gs.groups[namespace] = g
	gs.order = append(gs.order, namespace)
	return g
}

// Get returns the group for a namespace without creating it
func (gs *Groups) Get(namespace string) (*Group, bool) {
	g, ok := gs.groups[namespace]
	return g, ok
}

// Len returns the number of namespaces
func (gs *Groups) Len() int {
	return len(gs.order)
}

// All returns the groups in first-seen order
func (gs *Groups) All() []*Group {
	all := make([]*Group, 0, len(gs.order))
	for _, ns := range gs.order {
		all = append(all, gs.groups[ns])
	}
	return all
}
