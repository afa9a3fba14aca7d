package rdf

import (
	"fmt"
	"sort"
	"strings"
)

// TurtleWriter serialises graphs as Turtle with prefix compression and
// subject grouping.
type TurtleWriter struct {
	prefixes map[string]string
	sb       strings.Builder
}

// NewTurtleWriter creates a writer preloaded with DefaultPrefixes.
func NewTurtleWriter() *TurtleWriter {
	return &TurtleWriter{prefixes: DefaultPrefixes()}
}

// SetPrefix sets a namespace prefix.
func (w *TurtleWriter) SetPrefix(prefix, iri string) {
	w.prefixes[prefix] = iri
}

// Write appends g to the output, emitting only the prefixes it uses.
func (w *TurtleWriter) Write(g *Graph) string {
	for p, ns := range g.Prefixes() {
		w.prefixes[p] = ns
	}
	triples := g.Triples()
	used := make(map[string]bool)
	for _, t := range triples {
		for _, term := range []Term{t.S, t.P, t.O} {
			if p := w.prefixFor(term); p != "" {
				used[p] = true
			}
		}
	}
	w.writePrefixes(used)

	var current Term
	for i, t := range triples {
		if i == 0 || t.S != current {
			if i > 0 {
				w.sb.WriteString(" .\n\n")
			}
			current = t.S
			w.sb.WriteString(w.format(t.S))
			w.sb.WriteString("\n    ")
		} else {
			w.sb.WriteString(" ;\n    ")
		}
		if t.P.Value == RDFType {
			w.sb.WriteString("a")
		} else {
			w.sb.WriteString(w.format(t.P))
		}
		w.sb.WriteByte(' ')
		w.sb.WriteString(w.format(t.O))
	}
	if len(triples) > 0 {
		w.sb.WriteString(" .\n")
	}
	return w.sb.String()
}

// String returns the accumulated Turtle output.
func (w *TurtleWriter) String() string {
	return w.sb.String()
}

func (w *TurtleWriter) writePrefixes(used map[string]bool) {
	keys := make([]string, 0, len(used))
	for k := range used {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, prefix := range keys {
		w.sb.WriteString(fmt.Sprintf("@prefix %s: <%s> .\n", prefix, w.prefixes[prefix]))
	}
	if len(keys) > 0 {
		w.sb.WriteString("\n")
	}
}

func (w *TurtleWriter) prefixFor(t Term) string {
	iri := t.Value
	if t.Kind == KindLiteral {
		if t.Lang != "" || t.Datatype == XSDString {
			return ""
		}
		iri = t.Datatype
	} else if t.Kind != KindIRI {
		return ""
	}
	p, _ := w.compact(iri)
	return p
}

// compact returns the longest matching prefix and the local part when the
// local part is a safe Turtle local name.
func (w *TurtleWriter) compact(iri string) (string, string) {
	best, bestNS := "", ""
	for p, ns := range w.prefixes {
		if strings.HasPrefix(iri, ns) && len(ns) > len(bestNS) {
			best, bestNS = p, ns
		}
	}
	if bestNS == "" {
		return "", ""
	}
	local := iri[len(bestNS):]
	if !isLocalName(local) {
		return "", ""
	}
	return best, local
}

func (w *TurtleWriter) format(t Term) string {
	switch t.Kind {
	case KindIRI:
		if p, local := w.compact(t.Value); p != "" {
			return p + ":" + local
		}
		return t.String()
	case KindLiteral:
		lit := `"` + EscapeString(t.Value) + `"`
		switch {
		case t.Lang != "":
			return lit + "@" + t.Lang
		case t.Datatype == XSDString || t.Datatype == "":
			return lit
		case t.Datatype == XSDInteger && isInteger(t.Value):
			return t.Value
		case t.Datatype == XSDBoolean && (t.Value == "true" || t.Value == "false"):
			return t.Value
		}
		if p, local := w.compact(t.Datatype); p != "" {
			return lit + "^^" + p + ":" + local
		}
		return lit + "^^<" + t.Datatype + ">"
	default:
		return t.String()
	}
}

func isLocalName(s string) bool {
	if s == "" {
		return true
	}
	for i, r := range s {
		switch {
		case r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case (r == '-' || r == '.') && i > 0 && i < len(s)-1:
		default:
			return false
		}
	}
	return true
}

func isInteger(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if (r == '-' || r == '+') && i == 0 && len(s) > 1 {
			continue
		}
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// WriteTurtle serialises g as Turtle.
func WriteTurtle(g *Graph) string {
	return NewTurtleWriter().Write(g)
}
