package sparql

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/c360studio/semlink/rdf"
)

// Result serialisation formats.
const (
	ResultsJSON = "json"
	ResultsXML  = "xml"
	ResultsCSV  = "csv"
	ResultsTSV  = "tsv"
)

// ResultsAccept maps result formats to their media types.
var ResultsAccept = map[string]string{
	ResultsJSON: "application/sparql-results+json",
	ResultsXML:  "application/sparql-results+xml",
	ResultsCSV:  "text/csv",
	ResultsTSV:  "text/tab-separated-values",
}

// JSONTerm is a term in the SPARQL 1.1 JSON results format.
type JSONTerm struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	Datatype string `json:"datatype,omitempty"`
	Lang     string `json:"xml:lang,omitempty"`
}

// JSONResults is the SPARQL 1.1 JSON results document.
type JSONResults struct {
	Head    JSONHead       `json:"head"`
	Results *JSONResultSet `json:"results,omitempty"`
	Boolean *bool          `json:"boolean,omitempty"`
}

// JSONHead lists the result variables.
type JSONHead struct {
	Vars []string `json:"vars"`
	Link []string `json:"link,omitempty"`
}

// JSONResultSet holds SELECT bindings.
type JSONResultSet struct {
	Bindings []map[string]JSONTerm `json:"bindings"`
}

// TermToJSON converts a term to its JSON results form.
func TermToJSON(t rdf.Term) JSONTerm {
	switch t.Kind {
	case rdf.KindIRI:
		return JSONTerm{Type: "uri", Value: t.Value}
	case rdf.KindBlank:
		return JSONTerm{Type: "bnode", Value: t.Value}
	}
	jt := JSONTerm{Type: "literal", Value: t.Value, Lang: t.Lang}
	if t.Lang == "" && t.Datatype != rdf.XSDString {
		jt.Datatype = t.Datatype
	}
	return jt
}

// TermFromJSON converts a JSON results term back to an RDF term.
func TermFromJSON(jt JSONTerm) (rdf.Term, error) {
	switch jt.Type {
	case "uri":
		return rdf.NewIRI(jt.Value), nil
	case "bnode":
		return rdf.NewBlank(jt.Value), nil
	case "literal", "typed-literal":
		if jt.Lang != "" {
			return rdf.NewLangLiteral(jt.Value, jt.Lang), nil
		}
		return rdf.NewTypedLiteral(jt.Value, jt.Datatype), nil
	}
	return rdf.Term{}, fmt.Errorf("unknown term type %q", jt.Type)
}

// ToJSON converts SELECT or ASK results to the JSON results document.
func (r *Results) ToJSON() *JSONResults {
	out := &JSONResults{Head: JSONHead{Vars: r.Vars}}
	if r.Form == FormAsk {
		b := r.Boolean
		out.Head.Vars = nil
		out.Boolean = &b
		return out
	}
	if out.Head.Vars == nil {
		out.Head.Vars = []string{}
	}
	rs := &JSONResultSet{Bindings: make([]map[string]JSONTerm, 0, len(r.Solutions))}
	for _, s := range r.Solutions {
		row := make(map[string]JSONTerm, len(s))
		for k, v := range s {
			if !v.IsZero() {
				row[k] = TermToJSON(v)
			}
		}
		rs.Bindings = append(rs.Bindings, row)
	}
	out.Results = rs
	return out
}

// ParseJSONResults decodes a SPARQL JSON results document.
func ParseJSONResults(data []byte) (*Results, error) {
	var doc JSONResults
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode sparql json results: %w", err)
	}
	if doc.Boolean != nil {
		return &Results{Form: FormAsk, Boolean: *doc.Boolean}, nil
	}
	res := &Results{Form: FormSelect, Vars: doc.Head.Vars}
	if doc.Results == nil {
		return res, nil
	}
	for _, row := range doc.Results.Bindings {
		b := make(Binding, len(row))
		for k, jt := range row {
			t, err := TermFromJSON(jt)
			if err != nil {
				return nil, err
			}
			b[k] = t
		}
		res.Solutions = append(res.Solutions, b)
	}
	return res, nil
}

// Serialize renders SELECT or ASK results in the given format.
func (r *Results) Serialize(format string) (string, error) {
	switch strings.ToLower(format) {
	case ResultsJSON, "":
		data, err := json.MarshalIndent(r.ToJSON(), "", "  ")
		if err != nil {
			return "", err
		}
		return string(data), nil
	case ResultsXML:
		return r.toXML()
	case ResultsCSV:
		return r.toCSV()
	case ResultsTSV:
		return r.toTSV(), nil
	}
	return "", fmt.Errorf("unsupported result format %q", format)
}

type xmlSparql struct {
	XMLName xml.Name    `xml:"sparql"`
	NS      string      `xml:"xmlns,attr"`
	Head    xmlHead     `xml:"head"`
	Boolean *bool       `xml:"boolean,omitempty"`
	Results *xmlResults `xml:"results,omitempty"`
}

type xmlHead struct {
	Variables []xmlVariable `xml:"variable"`
}

type xmlVariable struct {
	Name string `xml:"name,attr"`
}

type xmlResults struct {
	Results []xmlResult `xml:"result"`
}

type xmlResult struct {
	Bindings []xmlBinding `xml:"binding"`
}

type xmlBinding struct {
	Name    string      `xml:"name,attr"`
	URI     string      `xml:"uri,omitempty"`
	BNode   string      `xml:"bnode,omitempty"`
	Literal *xmlLiteral `xml:"literal,omitempty"`
}

type xmlLiteral struct {
	Lang     string `xml:"xml:lang,attr,omitempty"`
	Datatype string `xml:"datatype,attr,omitempty"`
	Value    string `xml:",chardata"`
}

func (r *Results) toXML() (string, error) {
	doc := xmlSparql{NS: "http://www.w3.org/2005/sparql-results#"}
	if r.Form == FormAsk {
		b := r.Boolean
		doc.Boolean = &b
	} else {
		for _, v := range r.Vars {
			doc.Head.Variables = append(doc.Head.Variables, xmlVariable{Name: v})
		}
		doc.Results = &xmlResults{}
		for _, s := range r.Solutions {
			var res xmlResult
			for _, v := range r.Vars {
				t, ok := s[v]
				if !ok || t.IsZero() {
					continue
				}
				xb := xmlBinding{Name: v}
				switch t.Kind {
				case rdf.KindIRI:
					xb.URI = t.Value
				case rdf.KindBlank:
					xb.BNode = t.Value
				default:
					jt := TermToJSON(t)
					xb.Literal = &xmlLiteral{Lang: jt.Lang, Datatype: jt.Datatype, Value: t.Value}
				}
				res.Bindings = append(res.Bindings, xb)
			}
			doc.Results.Results = append(doc.Results.Results, res)
		}
	}
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (r *Results) toCSV() (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.UseCRLF = true
	if r.Form == FormAsk {
		if err := w.Write([]string{"_askResult"}); err != nil {
			return "", err
		}
		if err := w.Write([]string{fmt.Sprint(r.Boolean)}); err != nil {
			return "", err
		}
	} else {
		if err := w.Write(r.Vars); err != nil {
			return "", err
		}
		for _, s := range r.Solutions {
			row := make([]string, len(r.Vars))
			for i, v := range r.Vars {
				t := s[v]
				if t.IsBlank() {
					row[i] = "_:" + t.Value
				} else {
					row[i] = t.Value
				}
			}
			if err := w.Write(row); err != nil {
				return "", err
			}
		}
	}
	w.Flush()
	return buf.String(), w.Error()
}

func (r *Results) toTSV() string {
	var sb strings.Builder
	if r.Form == FormAsk {
		fmt.Fprintf(&sb, "?_askResult\n%t\n", r.Boolean)
		return sb.String()
	}
	head := make([]string, len(r.Vars))
	for i, v := range r.Vars {
		head[i] = "?" + v
	}
	sb.WriteString(strings.Join(head, "\t"))
	sb.WriteByte('\n')
	for _, s := range r.Solutions {
		row := make([]string, len(r.Vars))
		for i, v := range r.Vars {
			row[i] = s[v].String()
		}
		sb.WriteString(strings.Join(row, "\t"))
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Simplify flattens SELECT solutions to variable -> value maps, the shape
// returned to tool callers.
func (r *Results) Simplify() []map[string]any {
	out := make([]map[string]any, 0, len(r.Solutions))
	for _, s := range r.Solutions {
		row := make(map[string]any, len(s))
		for k, v := range s {
			row[k] = TermToJSON(v)
		}
		out = append(out, row)
	}
	return out
}
