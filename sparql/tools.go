package sparql

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/c360studio/semlink/fetch"
	"github.com/c360studio/semlink/rdf"
)

// Tools implements the SPARQL tool operations on top of a protocol client
// and an optional graph store.
type Tools struct {
	client *Client
	store  fetch.Ingester
	logger *slog.Logger
	now    func() time.Time
}

// NewTools creates the tool operations. store may be nil when results are
// never stored.
func NewTools(client *Client, store fetch.Ingester, logger *slog.Logger) *Tools {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tools{client: client, store: store, logger: logger, now: time.Now}
}

// QueryOptions controls Query.
type QueryOptions struct {
	// QueryType is SELECT, ASK, CONSTRUCT or DESCRIBE. Default SELECT.
	QueryType string
	// ResultFormat is json, xml, csv or tsv for SELECT/ASK and json-ld,
	// turtle, n-triples or xml for CONSTRUCT/DESCRIBE.
	ResultFormat string
	Store        bool
	GraphID      string
	Timeout      time.Duration
}

// DefaultGraphID names the graph that stores results from endpoint.
func DefaultGraphID(endpoint string) string {
	return "sparql_" + strings.ReplaceAll(strings.ReplaceAll(endpoint, "://", "_"), "/", "_")
}

// Query executes a query against a remote endpoint. The result map is the
// tool payload; failures set success=false instead of returning an error.
func (t *Tools) Query(ctx context.Context, endpoint, query string, opts QueryOptions) map[string]any {
	qt := strings.ToUpper(strings.TrimSpace(opts.QueryType))
	if qt == "" {
		qt = string(FormSelect)
	}
	format := strings.ToLower(opts.ResultFormat)
	if format == "" {
		format = ResultsJSON
	}
	if opts.Store && opts.GraphID == "" {
		opts.GraphID = DefaultGraphID(endpoint)
	}

	fail := func(err error) map[string]any {
		t.logger.Error("SPARQL query error", "endpoint", endpoint, "error", err)
		return map[string]any{
			"success":    false,
			"error":      err.Error(),
			"query_type": qt,
			"endpoint":   endpoint,
		}
	}

	if qt == string(FormSelect) || qt == string(FormAsk) {
		accept, ok := ResultsAccept[format]
		if !ok {
			t.logger.Warn("Unsupported result format, using JSON", "format", format, "query_type", qt)
			format, accept = ResultsJSON, ResultsAccept[ResultsJSON]
		}
		resp, err := t.client.Request(ctx, endpoint, query, accept, opts.Timeout)
		if err != nil {
			return fail(err)
		}
		if format != ResultsJSON {
			return map[string]any{
				"success":    true,
				"query_type": qt,
				"data":       string(resp.Body),
				"format":     format,
			}
		}
		res, err := ParseJSONResults(resp.Body)
		if err != nil {
			return fail(err)
		}
		if qt == string(FormAsk) {
			return map[string]any{
				"success":    true,
				"query_type": "ASK",
				"result":     res.Boolean,
				"format":     ResultsJSON,
			}
		}
		doc := res.ToJSON()
		bindings := []map[string]JSONTerm{}
		if doc.Results != nil {
			bindings = doc.Results.Bindings
		}
		return map[string]any{
			"success":    true,
			"query_type": "SELECT",
			"results":    bindings,
			"format":     ResultsJSON,
			"vars":       doc.Head.Vars,
		}
	}

	if qt != string(FormConstruct) && qt != string(FormDescribe) {
		return fail(fmt.Errorf("unsupported query type %q", opts.QueryType))
	}
	accept, ok := graphAccept[format]
	if !ok {
		accept = DefaultGraphAccept
	}
	resp, err := t.client.Request(ctx, endpoint, query, accept, opts.Timeout)
	if err != nil {
		return fail(err)
	}
	content := string(resp.Body)
	out := map[string]any{
		"success":    true,
		"query_type": qt,
		"format":     opts.ResultFormat,
		"data_size":  len(content),
	}
	if !opts.Store {
		out["data"] = content
		return out
	}

	g, err := parseGraphAs(resp, format)
	if err != nil {
		return fail(err)
	}
	if err := t.ingest(ctx, g, opts.GraphID); err != nil {
		return fail(err)
	}
	out["stored"] = true
	out["triple_count"] = g.Len()
	out["graph_id"] = opts.GraphID
	return out
}

// parseGraphAs parses a graph response in the requested format, or by
// content type when no specific format was requested.
func parseGraphAs(resp *fetch.Response, format string) (*rdf.Graph, error) {
	if _, ok := graphAccept[format]; !ok {
		return ParseGraphResponse(resp)
	}
	f, err := rdf.ParseFormat(format)
	if err != nil {
		return nil, err
	}
	return rdf.ParseGraph(string(resp.Body), f, nil)
}

func (t *Tools) ingest(ctx context.Context, g *rdf.Graph, graphID string) error {
	if t.store == nil {
		return errors.New("no graph store configured")
	}
	_, err := t.store.IngestNQuads(ctx, rdf.WriteNQuads(rdf.DatasetOf(g)), graphID)
	return err
}

// DescribeResource runs DESCRIBE <uri>. Stored results go to a graph named
// after the resource unless GraphID is set.
func (t *Tools) DescribeResource(ctx context.Context, endpoint, uri string, opts QueryOptions) map[string]any {
	opts.QueryType = string(FormDescribe)
	if opts.ResultFormat == "" {
		opts.ResultFormat = "turtle"
	}
	if opts.Store && opts.GraphID == "" {
		opts.GraphID = uri
	}
	out := t.Query(ctx, endpoint, fmt.Sprintf("DESCRIBE <%s>", uri), opts)
	out["uri"] = uri
	return out
}

// Discovery methods.
const (
	DiscoverVoID        = "void"
	DiscoverServiceDesc = "service-description"
	DiscoverIntrospect  = "introspection"
	DiscoverAll         = "all"
)

// VoIDDataset is one void:Dataset description.
type VoIDDataset struct {
	URI            string   `json:"uri"`
	SPARQLEndpoint string   `json:"sparql_endpoint,omitempty"`
	Triples        int64    `json:"triples,omitempty"`
	DataDumps      []string `json:"data_dumps,omitempty"`
}

// VoIDInfo is the outcome of VoID discovery.
type VoIDInfo struct {
	VoIDURL  string        `json:"void_url"`
	Datasets []VoIDDataset `json:"datasets"`
}

// ServiceDescription is the outcome of service description discovery.
type ServiceDescription struct {
	DefaultGraphs     []string `json:"default_graphs"`
	NamedGraphs       []string `json:"named_graphs"`
	SupportedFeatures []string `json:"supported_features"`
}

// Introspection is the outcome of sampling an endpoint with queries.
type Introspection struct {
	SamplePredicates []string `json:"sample_predicates"`
	SampleClasses    []string `json:"sample_classes"`
	TripleCount      *int64   `json:"triple_count,omitempty"`
}

// Discovery collects endpoint metadata.
type Discovery struct {
	Success            bool                `json:"success"`
	Endpoint           string              `json:"endpoint"`
	Method             string              `json:"method"`
	VoID               *VoIDInfo           `json:"void,omitempty"`
	ServiceDescription *ServiceDescription `json:"service_description,omitempty"`
	Introspection      *Introspection      `json:"introspection,omitempty"`
	Datasets           []VoIDDataset       `json:"datasets,omitempty"`
	Classes            []string            `json:"classes,omitempty"`
	Properties         []string            `json:"properties,omitempty"`
	Prefixes           map[string]string   `json:"prefixes,omitempty"`
	Error              string              `json:"error,omitempty"`
}

const (
	predicateSampleQuery = "SELECT DISTINCT ?p WHERE { ?s ?p ?o } LIMIT 20"
	classSampleQuery     = "SELECT DISTINCT ?type WHERE { ?s a ?type . } LIMIT 20"
	tripleCountQuery     = "SELECT (COUNT(*) AS ?count) WHERE { ?s ?p ?o }"
)

// Discover gathers metadata about an endpoint with the given method.
func (t *Tools) Discover(ctx context.Context, endpoint, method string, timeout time.Duration) *Discovery {
	if method == "" {
		method = DiscoverAll
	}
	d := &Discovery{Endpoint: endpoint, Method: method}
	switch method {
	case DiscoverVoID, DiscoverServiceDesc, DiscoverIntrospect, DiscoverAll:
	default:
		d.Error = fmt.Sprintf("unknown discovery method %q", method)
		return d
	}

	if method == DiscoverVoID || method == DiscoverAll {
		if v, err := t.discoverVoID(ctx, endpoint, timeout); err != nil {
			t.logger.Warn("VoID discovery failed", "endpoint", endpoint, "error", err)
		} else {
			d.VoID = v
			d.Datasets = v.Datasets
		}
	}
	if method == DiscoverServiceDesc || method == DiscoverAll {
		if sd, err := t.discoverServiceDescription(ctx, endpoint, timeout); err != nil {
			t.logger.Warn("Service description discovery failed", "endpoint", endpoint, "error", err)
		} else {
			d.ServiceDescription = sd
		}
	}
	if method == DiscoverIntrospect || method == DiscoverAll {
		if in, err := t.introspect(ctx, endpoint, timeout); err != nil {
			t.logger.Warn("Introspection discovery failed", "endpoint", endpoint, "error", err)
		} else {
			d.Introspection = in
			d.Properties = in.SamplePredicates
			d.Classes = in.SampleClasses
			d.Prefixes = namespacePrefixes(append(append([]string{}, in.SamplePredicates...), in.SampleClasses...))
		}
	}

	d.Success = d.VoID != nil || d.ServiceDescription != nil || d.Introspection != nil
	if !d.Success {
		d.Error = "no discovery method succeeded"
	}
	return d
}

func (t *Tools) discoverVoID(ctx context.Context, endpoint string, timeout time.Duration) (*VoIDInfo, error) {
	origin, err := fetch.Origin(endpoint)
	if err != nil {
		return nil, err
	}
	voidURL := origin + "/.well-known/void"
	h := http.Header{}
	h.Set("Accept", "text/turtle")
	resp, err := t.client.fetcher.Do(ctx, fetch.Request{URL: voidURL, Header: h, Timeout: timeout})
	if err != nil {
		return nil, err
	}
	g, err := rdf.ParseTurtle(string(resp.Body))
	if err != nil {
		return nil, err
	}

	info := &VoIDInfo{VoIDURL: voidURL, Datasets: []VoIDDataset{}}
	voidNS := rdf.VoIDNS
	for _, ds := range g.Subjects(rdf.NewIRI(rdf.RDFType), rdf.NewIRI(voidNS+"Dataset")) {
		entry := VoIDDataset{URI: ds.Value}
		if ep, ok := g.Object(ds, rdf.NewIRI(voidNS+"sparqlEndpoint")); ok {
			entry.SPARQLEndpoint = ep.Value
		}
		if n, ok := g.Object(ds, rdf.NewIRI(voidNS+"triples")); ok {
			if v, err := strconv.ParseInt(n.Value, 10, 64); err == nil {
				entry.Triples = v
			}
		}
		for _, dump := range g.Objects(ds, rdf.NewIRI(voidNS+"dataDump")) {
			entry.DataDumps = append(entry.DataDumps, dump.Value)
		}
		info.Datasets = append(info.Datasets, entry)
	}
	return info, nil
}

func (t *Tools) discoverServiceDescription(ctx context.Context, endpoint string, timeout time.Duration) (*ServiceDescription, error) {
	resp, err := t.client.Request(ctx, endpoint, fmt.Sprintf("DESCRIBE <%s>", endpoint), "text/turtle", timeout)
	if err != nil {
		return nil, err
	}
	g, err := ParseGraphResponse(resp)
	if err != nil {
		return nil, err
	}

	sd := &ServiceDescription{
		DefaultGraphs:     []string{},
		NamedGraphs:       []string{},
		SupportedFeatures: []string{},
	}
	for _, tr := range g.Match(nil, ptr(rdf.NewIRI(rdf.SDNS+"defaultGraph")), nil) {
		sd.DefaultGraphs = append(sd.DefaultGraphs, tr.O.Value)
	}
	for _, tr := range g.Match(nil, ptr(rdf.NewIRI(rdf.SDNS+"namedGraph")), nil) {
		for _, name := range g.Objects(tr.O, rdf.NewIRI(rdf.SDNS+"name")) {
			sd.NamedGraphs = append(sd.NamedGraphs, name.Value)
		}
	}
	for _, tr := range g.Match(nil, ptr(rdf.NewIRI(rdf.SDNS+"feature")), nil) {
		sd.SupportedFeatures = append(sd.SupportedFeatures, tr.O.Value)
	}
	return sd, nil
}

func (t *Tools) introspect(ctx context.Context, endpoint string, timeout time.Duration) (*Introspection, error) {
	preds, err := t.client.Select(ctx, endpoint, predicateSampleQuery, timeout)
	if err != nil {
		return nil, err
	}
	in := &Introspection{
		SamplePredicates: column(preds, "p"),
		SampleClasses:    []string{},
	}
	if classes, err := t.client.Select(ctx, endpoint, classSampleQuery, timeout); err == nil {
		in.SampleClasses = column(classes, "type")
	}
	if count, err := t.client.Select(ctx, endpoint, tripleCountQuery, timeout); err == nil && len(count.Solutions) > 0 {
		if n, err := strconv.ParseInt(count.Solutions[0]["count"].Value, 10, 64); err == nil {
			in.TripleCount = &n
		}
	}
	return in, nil
}

func column(res *Results, name string) []string {
	out := make([]string, 0, len(res.Solutions))
	for _, s := range res.Solutions {
		if v, ok := s[name]; ok && !v.IsZero() {
			out = append(out, v.Value)
		}
	}
	return out
}

// namespacePrefixes maps well-known prefixes to the namespaces used by iris,
// inventing ns1, ns2... for unknown ones.
func namespacePrefixes(iris []string) map[string]string {
	known := make(map[string]string)
	for p, ns := range rdf.DefaultPrefixes() {
		known[ns] = p
	}
	out := make(map[string]string)
	seen := make(map[string]bool)
	n := 0
	for _, iri := range iris {
		ns := namespaceOf(iri)
		if ns == "" || seen[ns] {
			continue
		}
		seen[ns] = true
		if p, ok := known[ns]; ok {
			out[p] = ns
			continue
		}
		n++
		out["ns"+strconv.Itoa(n)] = ns
	}
	return out
}

func namespaceOf(iri string) string {
	if i := strings.LastIndexAny(iri, "#/"); i > 0 && i < len(iri)-1 {
		return iri[:i+1]
	}
	return ""
}

func ptr(t rdf.Term) *rdf.Term { return &t }

// jsonLDResultContext is the context of documents built by ToJSONLD.
var jsonLDResultContext = map[string]any{
	"rdf":    rdf.RDFNS,
	"rdfs":   rdf.RDFSNS,
	"xsd":    rdf.XSDNS,
	"schema": "http://schema.org/",
	"sparql": "http://www.w3.org/2005/sparql-results#",
}

// ToJSONLD converts SPARQL JSON results into a JSON-LD document. SELECT
// results become a sparql:ResultSet of sparql:ResultRow nodes, ASK results a
// sparql:AskResult. An empty baseURI yields urn:sparql:result:<timestamp>.
func ToJSONLD(sparqlJSON []byte, baseURI string, now time.Time) (string, error) {
	var data map[string]any
	if err := json.Unmarshal(sparqlJSON, &data); err != nil {
		return "", fmt.Errorf("invalid JSON input: %w", err)
	}
	if baseURI == "" {
		baseURI = "urn:sparql:result:" + now.Format("20060102150405")
	}
	stamp := now.Format("2006-01-02T15:04:05.000000")

	if b, ok := data["boolean"]; ok {
		return marshalIndent(map[string]any{
			"@context":         jsonLDResultContext,
			"@id":              baseURI,
			"@type":            "sparql:AskResult",
			"sparql:boolean":   b,
			"schema:timestamp": stamp,
		})
	}

	var vars []any
	if head, ok := data["head"].(map[string]any); ok {
		vars, _ = head["vars"].([]any)
	}
	var bindings []any
	if results, ok := data["results"].(map[string]any); ok {
		bindings, _ = results["bindings"].([]any)
	}
	if vars == nil {
		vars = []any{}
	}

	graph := make([]any, 0, len(bindings))
	for i, raw := range bindings {
		binding, _ := raw.(map[string]any)
		canonical, err := json.Marshal(binding)
		if err != nil {
			return "", err
		}
		sum := md5.Sum(canonical)
		row := map[string]any{
			"@id":             baseURI + "/result/" + hex.EncodeToString(sum[:]),
			"@type":           "sparql:ResultRow",
			"schema:position": i + 1,
		}
		for name, v := range binding {
			value, _ := v.(map[string]any)
			typ, _ := value["type"].(string)
			content, _ := value["value"].(string)
			switch typ {
			case "uri":
				row[name] = map[string]any{"@id": content}
			case "bnode":
				row[name] = map[string]any{"@id": "_:" + content}
			case "literal", "typed-literal", "":
				if lang, ok := value["xml:lang"]; ok {
					row[name] = map[string]any{"@value": content, "@language": lang}
				} else if dt, ok := value["datatype"]; ok {
					row[name] = map[string]any{"@value": content, "@type": dt}
				} else {
					row[name] = content
				}
			}
		}
		graph = append(graph, row)
	}

	return marshalIndent(map[string]any{
		"@context":              jsonLDResultContext,
		"@id":                   baseURI,
		"@type":                 "sparql:ResultSet",
		"sparql:resultVariable": vars,
		"schema:totalResults":   len(bindings),
		"schema:timestamp":      stamp,
		"@graph":                graph,
	})
}

// ToJSONLD converts SPARQL JSON results stamped with the current time.
func (t *Tools) ToJSONLD(sparqlJSON []byte, baseURI string) (string, error) {
	return ToJSONLD(sparqlJSON, baseURI, t.now())
}

func marshalIndent(v any) (string, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}
