package sparql

import "github.com/c360studio/semlink/rdf"

// pathPairs returns the (subject, object) pairs connected by path. Bound
// endpoints restrict the search.
func (ev *evaluator) pathPairs(path Path, s rdf.Term, sBound bool, o rdf.Term, oBound bool) [][2]rdf.Term {
	var out [][2]rdf.Term
	switch {
	case sBound:
		for _, x := range ev.pathFrom(path, s) {
			if !oBound || x == o {
				out = append(out, [2]rdf.Term{s, x})
			}
		}
	case oBound:
		for _, x := range ev.pathFrom(reversePath(path), o) {
			out = append(out, [2]rdf.Term{x, o})
		}
	default:
		for _, start := range ev.graphNodes() {
			for _, x := range ev.pathFrom(path, start) {
				out = append(out, [2]rdf.Term{start, x})
			}
		}
	}
	return out
}

// graphNodes returns every subject and object of the active graph.
func (ev *evaluator) graphNodes() []rdf.Term {
	seen := make(map[rdf.Term]bool)
	var out []rdf.Term
	ev.active.ForEach(nil, nil, nil, func(t rdf.Triple) bool {
		for _, n := range []rdf.Term{t.S, t.O} {
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
		return true
	})
	rdf.SortTerms(out)
	return out
}

// pathFrom returns the distinct nodes reachable from start along path.
func (ev *evaluator) pathFrom(path Path, start rdf.Term) []rdf.Term {
	g := ev.active
	switch p := path.(type) {
	case PathIRI:
		return g.Objects(start, rdf.NewIRI(p.IRI))
	case PathInverse:
		if iri, ok := p.Path.(PathIRI); ok {
			return g.Subjects(rdf.NewIRI(iri.IRI), start)
		}
		return ev.pathFrom(reversePath(p.Path), start)
	case PathSequence:
		frontier := []rdf.Term{start}
		for _, part := range p.Parts {
			var next []rdf.Term
			seen := make(map[rdf.Term]bool)
			for _, n := range frontier {
				for _, x := range ev.pathFrom(part, n) {
					if !seen[x] {
						seen[x] = true
						next = append(next, x)
					}
				}
			}
			frontier = next
			if len(frontier) == 0 {
				break
			}
		}
		return frontier
	case PathAlternative:
		var out []rdf.Term
		seen := make(map[rdf.Term]bool)
		for _, alt := range p.Alternatives {
			for _, x := range ev.pathFrom(alt, start) {
				if !seen[x] {
					seen[x] = true
					out = append(out, x)
				}
			}
		}
		return out
	case PathRepeat:
		return ev.repeatFrom(p, start)
	case PathNegated:
		return ev.negatedFrom(p, start)
	}
	return nil
}

func (ev *evaluator) repeatFrom(p PathRepeat, start rdf.Term) []rdf.Term {
	var out []rdf.Term
	seen := make(map[rdf.Term]bool)
	if p.Min == 0 {
		seen[start] = true
		out = append(out, start)
	}
	if p.Max == 1 {
		for _, x := range ev.pathFrom(p.Path, start) {
			if !seen[x] {
				seen[x] = true
				out = append(out, x)
			}
		}
		return out
	}

	visited := map[rdf.Term]bool{start: true}
	queue := []rdf.Term{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, x := range ev.pathFrom(p.Path, cur) {
			if !seen[x] {
				seen[x] = true
				out = append(out, x)
			}
			if !visited[x] {
				visited[x] = true
				queue = append(queue, x)
			}
		}
	}
	return out
}

func (ev *evaluator) negatedFrom(p PathNegated, start rdf.Term) []rdf.Term {
	var out []rdf.Term
	seen := make(map[rdf.Term]bool)
	excluded := func(list []string, pred rdf.Term) bool {
		for _, iri := range list {
			if pred.Value == iri {
				return true
			}
		}
		return false
	}
	if len(p.Forward) > 0 || len(p.Inverse) == 0 {
		ev.active.ForEach(&start, nil, nil, func(t rdf.Triple) bool {
			if !excluded(p.Forward, t.P) && !seen[t.O] {
				seen[t.O] = true
				out = append(out, t.O)
			}
			return true
		})
	}
	if len(p.Inverse) > 0 {
		ev.active.ForEach(nil, nil, &start, func(t rdf.Triple) bool {
			if !excluded(p.Inverse, t.P) && !seen[t.S] {
				seen[t.S] = true
				out = append(out, t.S)
			}
			return true
		})
	}
	rdf.SortTerms(out)
	return out
}

// reversePath returns the path that connects object to subject.
func reversePath(path Path) Path {
	switch p := path.(type) {
	case PathIRI:
		return PathInverse{Path: p}
	case PathInverse:
		return p.Path
	case PathSequence:
		parts := make([]Path, len(p.Parts))
		for i, part := range p.Parts {
			parts[len(p.Parts)-1-i] = reversePath(part)
		}
		return PathSequence{Parts: parts}
	case PathAlternative:
		alts := make([]Path, len(p.Alternatives))
		for i, a := range p.Alternatives {
			alts[i] = reversePath(a)
		}
		return PathAlternative{Alternatives: alts}
	case PathRepeat:
		return PathRepeat{Path: reversePath(p.Path), Min: p.Min, Max: p.Max}
	case PathNegated:
		return PathNegated{Forward: p.Inverse, Inverse: p.Forward}
	}
	return path
}
