package knowledge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const catalogDoc = `{
  "@context": "https://schema.org/",
  "@type": "DataCatalog",
  "name": "City data",
  "dataset": [
    {"@id": "http://example.org/ds/traffic", "@type": "Dataset", "name": "Traffic counts",
     "temporalCoverage": "2020/2024", "keywords": ["traffic", "mobility"],
     "distribution": {"@type": "DataDownload", "encodingFormat": "text/csv"}},
    {"@id": "http://example.org/ds/air", "@type": "Dataset", "name": "Air quality",
     "creator": {"@id": "http://example.org/org/env"}}
  ]
}`

func TestParsePath(t *testing.T) {
	tests := []struct {
		path    string
		want    []pathStep
		wantErr bool
	}{
		{"", nil, false},
		{"a.b", []pathStep{{key: "a"}, {key: "b"}}, false},
		{"a[1].b", []pathStep{{key: "a"}, {index: 1, isIdx: true}, {key: "b"}}, false},
		{"m[0][2]", []pathStep{{key: "m"}, {index: 0, isIdx: true}, {index: 2, isIdx: true}}, false},
		{"[3]", []pathStep{{index: 3, isIdx: true}}, false},
		{"a..b", nil, true},
		{"a[x]", nil, true},
		{"a[1", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := parsePath(tt.path)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrPath)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBase_Lookup(t *testing.T) {
	b := New(loadDoc(t, catalogDoc))

	v, err := b.Lookup("dataset[0].distribution.encodingFormat")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", v)

	v, err = b.Lookup("dataset[0].keywords[1]")
	require.NoError(t, err)
	assert.Equal(t, "mobility", v)

	v, err = b.Lookup("")
	require.NoError(t, err)
	assert.Equal(t, b.Data(), v)

	for _, bad := range []string{"dataset[5]", "name[0]", "name.first", "missing"} {
		_, err := b.Lookup(bad)
		assert.ErrorIs(t, err, ErrPath, bad)
	}
}

func TestBase_Explore(t *testing.T) {
	b := New(loadDoc(t, catalogDoc))

	out, err := b.Explore("", 0)
	require.NoError(t, err)
	assert.Contains(t, out, "# Structure at path: root")
	assert.Contains(t, out, "**Type**: `DataCatalog`")
	assert.Contains(t, out, "- **dataset**: List with 2 items")
	assert.Contains(t, out, "- **name**: City data")

	out, err = b.Explore("dataset", 0)
	require.NoError(t, err)
	assert.Contains(t, out, "# List at path: dataset")
	assert.Contains(t, out, "Contains 2 items")
	assert.Contains(t, out, "**ID**: `http://example.org/ds/air`")
	assert.Contains(t, out, "- **creator**: Complex value")

	out, err = b.Explore("dataset[1].creator", 0)
	require.NoError(t, err)
	assert.Contains(t, out, "**ID**: `http://example.org/org/env`")

	out, err = b.Explore("dataset[0].name", 0)
	require.NoError(t, err)
	assert.Equal(t, "# Value at path: dataset[0].name\n\nTraffic counts", out)

	out, err = b.Explore("", 20)
	require.NoError(t, err)
	assert.Contains(t, out, "...\n```")

	_, err = b.Explore("nope", 0)
	assert.ErrorIs(t, err, ErrPath)
}

func TestBase_Search(t *testing.T) {
	b := New(loadDoc(t, catalogDoc))

	matches := b.Search("traffic", false)
	assert.Equal(t, []SearchMatch{
		{Path: "dataset[0].@id", Value: "http://example.org/ds/traffic"},
		{Path: "dataset[0].keywords[0]", Value: "traffic"},
		{Path: "dataset[0].name", Value: "Traffic counts"},
	}, matches)
	assert.Len(t, b.Search("traffic", true), 2)

	keys := b.Search("encoding", false)
	assert.Equal(t, []SearchMatch{{Path: "dataset[0].distribution.encodingFormat", Key: true}}, keys)

	md := b.SearchMarkdown("dataset", false)
	assert.Contains(t, md, "## Matching keys")
	assert.Contains(t, md, "- `dataset`")
	assert.Contains(t, md, "## Matching values")
	assert.Equal(t, "No matches found for 'zzz'", b.SearchMarkdown("zzz", false))
}

func TestBase_Evidence(t *testing.T) {
	b := New(loadDoc(t, catalogDoc))

	items := b.Evidence("csv", 0)
	require.Len(t, items, 1)
	assert.Equal(t, "dataset[0].distribution.encodingFormat", items[0].Path)
	assert.Equal(t, "text/csv", items[0].Value)
	assert.Equal(t, map[string]any{"property": "encodingFormat", "type": "DataDownload"}, items[0].Context)

	items = b.Evidence("creator", 0)
	require.Len(t, items, 1)
	assert.Equal(t, map[string]any{"@id": "http://example.org/org/env"}, items[0].Value)
	assert.Equal(t, "http://example.org/org/env", items[0].Context["id"])

	items = b.Evidence("air", 1)
	assert.Len(t, items, 1)

	md := b.EvidenceMarkdown("csv", 5)
	assert.Contains(t, md, "# Evidence for topic: 'csv'")
	assert.Contains(t, md, "- property: encodingFormat")
	assert.Contains(t, md, "text/csv")
	assert.Equal(t, "No evidence found for topic: 'zzz'", b.EvidenceMarkdown("zzz", 5))
	assert.Equal(t, "No structured evidence found for topic: 'City'", b.EvidenceMarkdown("City", 5))
}
