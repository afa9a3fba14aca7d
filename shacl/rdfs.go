package shacl

import "github.com/c360studio/semlink/rdf"

var (
	subPropertyOf = rdf.NewIRI(rdf.RDFSSubPropertyOf)
	rdfsDomain    = rdf.NewIRI(rdf.RDFSDomain)
	rdfsRange     = rdf.NewIRI(rdf.RDFSRange)
)

// expandRDFS adds the RDFS entailments of g to g until a fixed point and
// returns the number of triples added.
//
// Covered rules: rdfs2 (domain), rdfs3 (range), rdfs5 and rdfs11
// (transitivity), rdfs7 (subproperty) and rdfs9 (subclass membership).
func expandRDFS(g *rdf.Graph) int {
	added := 0
	for {
		var pending []rdf.Triple
		add := func(s, p, o rdf.Term) {
			if !s.IsResource() {
				return
			}
			t := rdf.Triple{S: s, P: p, O: o}
			if !g.Has(t) {
				pending = append(pending, t)
			}
		}

		for _, rel := range []rdf.Term{subClassOf, subPropertyOf} {
			g.ForEach(nil, &rel, nil, func(ab rdf.Triple) bool {
				for _, c := range g.Objects(ab.O, rel) {
					add(ab.S, rel, c)
				}
				return true
			})
		}

		g.ForEach(nil, &subPropertyOf, nil, func(sp rdf.Triple) bool {
			if !sp.S.IsIRI() || !sp.O.IsIRI() {
				return true
			}
			p := sp.S
			g.ForEach(nil, &p, nil, func(t rdf.Triple) bool {
				add(t.S, sp.O, t.O)
				return true
			})
			return true
		})

		g.ForEach(nil, &rdfsDomain, nil, func(d rdf.Triple) bool {
			p := d.S
			g.ForEach(nil, &p, nil, func(t rdf.Triple) bool {
				add(t.S, rdfType, d.O)
				return true
			})
			return true
		})
		g.ForEach(nil, &rdfsRange, nil, func(r rdf.Triple) bool {
			p := r.S
			g.ForEach(nil, &p, nil, func(t rdf.Triple) bool {
				if t.O.IsResource() {
					add(t.O, rdfType, r.O)
				}
				return true
			})
			return true
		})

		g.ForEach(nil, &rdfType, nil, func(t rdf.Triple) bool {
			for _, super := range g.Objects(t.O, subClassOf) {
				add(t.S, rdfType, super)
			}
			return true
		})

		n := 0
		for _, t := range pending {
			if g.Add(t) {
				n++
			}
		}
		if n == 0 {
			return added
		}
		added += n
	}
}
