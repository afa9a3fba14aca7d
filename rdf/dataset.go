package rdf

import "sort"

// Dataset is a default graph plus a set of named graphs.
type Dataset struct {
	def   *Graph
	named map[string]*Graph
}

// NewDataset returns an empty dataset.
func NewDataset() *Dataset {
	return &Dataset{def: NewGraph(), named: make(map[string]*Graph)}
}

// DatasetOf wraps g as the default graph of a new dataset.
func DatasetOf(g *Graph) *Dataset {
	ds := NewDataset()
	if g != nil {
		ds.def = g
	}
	return ds
}

// Default returns the default graph.
func (d *Dataset) Default() *Graph { return d.def }

// Graph returns the named graph, creating it when absent. An empty name is
// the default graph.
func (d *Dataset) Graph(name string) *Graph {
	if name == "" {
		return d.def
	}
	g, ok := d.named[name]
	if !ok {
		g = NewGraph()
		d.named[name] = g
	}
	return g
}

// Lookup returns the named graph without creating it.
func (d *Dataset) Lookup(name string) (*Graph, bool) {
	if name == "" {
		return d.def, true
	}
	g, ok := d.named[name]
	return g, ok
}

// Names returns the sorted names of the named graphs.
func (d *Dataset) Names() []string {
	out := make([]string, 0, len(d.named))
	for n := range d.named {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// AddQuad adds a quad and reports whether it was new.
func (d *Dataset) AddQuad(q Quad) bool {
	return d.Graph(q.Graph).Add(q.Triple)
}

// AddQuads adds quads and returns the number that were new.
func (d *Dataset) AddQuads(qs []Quad) int {
	n := 0
	for _, q := range qs {
		if d.AddQuad(q) {
			n++
		}
	}
	return n
}

// Quads returns every quad, default graph first.
func (d *Dataset) Quads() []Quad {
	var out []Quad
	for _, t := range d.def.Triples() {
		out = append(out, Quad{Triple: t})
	}
	for _, n := range d.Names() {
		for _, t := range d.named[n].Triples() {
			out = append(out, Quad{Triple: t, Graph: n})
		}
	}
	return out
}

// Len returns the number of quads across all graphs.
func (d *Dataset) Len() int {
	n := d.def.Len()
	for _, g := range d.named {
		n += g.Len()
	}
	return n
}

// Union returns a graph merging the default graph and every named graph.
func (d *Dataset) Union() *Graph {
	u := d.def.Clone()
	for _, n := range d.Names() {
		u.Merge(d.named[n])
	}
	return u
}
