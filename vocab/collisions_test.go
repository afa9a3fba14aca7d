package vocab

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStrategies(t *testing.T) {
	names := make([]string, 0)
	for _, s := range Strategies() {
		names = append(names, s.Name)
		assert.NotEmpty(t, s.Description, s.Name)
		assert.NotEmpty(t, s.AppliesWhen, s.Name)
	}
	assert.Equal(t, []string{
		StrategyContextVersioning, StrategyGraphPartition, StrategyNestedContexts,
		StrategyPropertyMapping, StrategyPropertyScoped, StrategySeparateGraphs,
	}, names)
	assert.Len(t, StrategyPairs(), 7)
}

func TestRegistry_StrategyFor(t *testing.T) {
	r := DefaultRegistry()
	tests := []struct {
		a, b string
		want string
		ok   bool
	}{
		{"vc", "epcis", StrategyPropertyScoped, true},
		{"epcis", "vc", StrategyPropertyScoped, true},
		{"schema", "foaf", StrategyPropertyMapping, true},
		{"ro-crate", "dcat", StrategyNestedContexts, true},
		{"vc", "croissant", StrategyGraphPartition, true},
		{"croissant", "dcat", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.a+"+"+tt.b, func(t *testing.T) {
			s, ok := r.StrategyFor(tt.a, tt.b)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, s.Strategy)
			}
		})
	}
}

func TestApplyCollisionStrategy_PropertyScoped(t *testing.T) {
	r := DefaultRegistry()
	s, _ := r.StrategyFor("vc", "epcis")
	doc := map[string]any{
		"@context":          []any{"https://www.w3.org/ns/credentials/v2", "https://ref.gs1.org/epcis/"},
		"type":              "VerifiableCredential",
		"credentialSubject": map[string]any{"type": "ObjectEvent"},
	}

	out := r.ApplyCollisionStrategy(doc, s)
	ctx := out["@context"].(map[string]any)
	assert.Equal(t, 1.1, ctx["@version"])
	assert.Equal(t, "https://www.w3.org/ns/credentials/v2", ctx["@vocab"])
	scoped := ctx["credentialSubject"].(map[string]any)
	assert.Equal(t, "https://www.w3.org/ns/credentials/v2credentialSubject", scoped["@id"])
	assert.Equal(t, map[string]any{"@vocab": "https://ref.gs1.org/epcis/"}, scoped["@context"])
	assert.Equal(t, false, scoped["@protected"])

	_, isList := doc["@context"].([]any)
	assert.True(t, isList, "input must not be modified")

	delete(doc, "credentialSubject")
	assert.Equal(t, doc, r.ApplyCollisionStrategy(doc, s), "no scoped property leaves the document unchanged")
}

func TestApplyCollisionStrategy_PropertyMapping(t *testing.T) {
	r := DefaultRegistry()
	s, _ := r.StrategyFor("schema", "foaf")
	doc := map[string]any{
		"@context": []any{"https://schema.org/", "http://xmlns.com/foaf/0.1/"},
		"name":     "Alice",
	}
	out := r.ApplyCollisionStrategy(doc, s)
	ctx := out["@context"].(map[string]any)
	assert.Equal(t, "https://schema.org/", ctx["@vocab"])
	assert.Equal(t, map[string]any{"@id": "schema:knows"}, ctx["knows"])
	assert.Equal(t, map[string]any{"@id": "schema:Person"}, ctx["Person"])
	assert.Equal(t, "Alice", out["name"])
}

func TestApplyCollisionStrategy_NestedAndVersioning(t *testing.T) {
	r := DefaultRegistry()

	nested, _ := r.StrategyFor("ro-crate", "dcat")
	out := r.ApplyCollisionStrategy(map[string]any{"@context": "x"}, nested)
	ctx := out["@context"].(map[string]any)
	roCrate, _ := r.Get("ro-crate")
	assert.Equal(t, roCrate.URI, ctx["@vocab"])
	inner := ctx["inner"].(map[string]any)
	assert.Equal(t, map[string]any{"@vocab": "http://www.w3.org/ns/dcat#"}, inner["@context"])

	versioning := &CollisionStrategy{Strategy: StrategyContextVersioning, ContextVersion: "1.1"}
	out = r.ApplyCollisionStrategy(map[string]any{
		"@context": []any{"http://www.w3.org/ns/prov#", map[string]any{"name": "https://schema.org/name"}},
	}, versioning)
	ctx = out["@context"].(map[string]any)
	assert.Equal(t, 1.1, ctx["@version"])
	assert.Equal(t, "http://www.w3.org/ns/prov#", ctx["ctx1"])
	assert.Equal(t, "https://schema.org/name", ctx["name"])
}

func TestApplyCollisionStrategy_Unchanged(t *testing.T) {
	r := DefaultRegistry()
	doc := map[string]any{"name": "no context"}
	s := &CollisionStrategy{Strategy: StrategyGraphPartition}
	assert.Equal(t, doc, r.ApplyCollisionStrategy(doc, s))
	assert.Equal(t, doc, r.ApplyCollisionStrategy(doc, nil))
}

func TestCreateGraphPartition(t *testing.T) {
	doc := map[string]any{
		"@context": "https://schema.org/",
		"@id":      "http://example.org/dataset",
		"name":     "Dataset",
		"creator":  map[string]any{"name": "Alice", "email": "alice@example.org"},
		"keywords": map[string]any{"@value": "single"},
		"distribution": []any{
			map[string]any{"@id": "http://example.org/csv", "encodingFormat": "text/csv"},
			"plain",
		},
	}

	out := CreateGraphPartition(doc)
	nodes := out["@graph"].([]any)
	require.Len(t, nodes, 3)

	byID := map[string]map[string]any{}
	for _, n := range nodes {
		m := n.(map[string]any)
		byID[m["@id"].(string)] = m
	}
	root := byID["http://example.org/dataset"]
	require.NotNil(t, root)
	creatorRef := root["creator"].(map[string]any)["@id"].(string)
	assert.True(t, strings.HasPrefix(creatorRef, "urn:uuid:"))
	assert.Equal(t, "Alice", byID[creatorRef]["name"])
	assert.Equal(t, map[string]any{"@value": "single"}, root["keywords"])

	dist := root["distribution"].([]any)
	assert.Equal(t, map[string]any{"@id": "http://example.org/csv"}, dist[0])
	assert.Equal(t, "plain", dist[1])
	assert.Equal(t, "text/csv", byID["http://example.org/csv"]["encodingFormat"])
}

func TestComposeContext(t *testing.T) {
	r := DefaultRegistry()

	out, err := r.ComposeContext([]string{"schema", "dct", "prov"}, "")
	require.NoError(t, err)
	assert.Equal(t, "https://schema.org/", out.Context["schema"])
	assert.Equal(t, "http://purl.org/dc/terms/", out.Context["dct"])
	assert.Equal(t, "http://purl.org/dc/terms/", out.Context["dc"])
	assert.Equal(t, "http://www.w3.org/ns/prov#", out.Context["prov"])
	assert.Equal(t, []string{"schema", "dc", "prov"}, out.Vocabularies)
	require.Len(t, out.Collisions, 2)

	out, err = r.ComposeContext([]string{"schema", "foaf"}, StrategyGraphPartition)
	require.NoError(t, err)
	require.Len(t, out.Collisions, 1)
	assert.Equal(t, StrategyGraphPartition, out.Collisions[0].Strategy)

	_, err = r.ComposeContext([]string{"nope"}, "")
	assert.ErrorIs(t, err, ErrUnknownVocabulary)
	_, err = r.ComposeContext([]string{"schema"}, "bogus")
	assert.Error(t, err)
	_, err = r.ComposeContext(nil, "")
	assert.Error(t, err)
}
