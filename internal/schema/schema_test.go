package schema

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParseJSON(t *testing.T, raw string) any {
	t.Helper()
	v, err := JSONParser{}.Parse([]byte(raw))
	require.NoError(t, err)
	return v
}

func TestInferScalarsAndObjects(t *testing.T) {
	got, err := Infer(mustParseJSON(t, `{"a": 1, "b": "x", "c": 1.5, "d": true, "e": null}`))
	require.NoError(t, err)

	want := map[string]any{
		"$schema": SchemaURI,
		"type":    "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "integer"},
			"b": map[string]any{"type": "string"},
			"c": map[string]any{"type": "number"},
			"d": map[string]any{"type": "boolean"},
			"e": map[string]any{"type": "null"},
		},
		"required": []any{"a", "b", "c", "d", "e"},
	}
	assert.Equal(t, want, got)
}

func TestInferArrays(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want map[string]any
	}{
		{
			name: "empty array has no items",
			doc:  `[]`,
			want: map[string]any{"$schema": SchemaURI, "type": "array"},
		},
		{
			name: "integers and decimals merge into number",
			doc:  `[1, 2.5]`,
			want: map[string]any{
				"$schema": SchemaURI,
				"type":    "array",
				"items":   map[string]any{"type": "number"},
			},
		},
		{
			name: "mixed scalars become a type list",
			doc:  `["x", 1, null]`,
			want: map[string]any{
				"$schema": SchemaURI,
				"type":    "array",
				"items":   map[string]any{"type": []any{"integer", "null", "string"}},
			},
		},
		{
			name: "objects keep only common keys required",
			doc:  `[{"id": 1, "name": "a"}, {"id": 2}]`,
			want: map[string]any{
				"$schema": SchemaURI,
				"type":    "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"id":   map[string]any{"type": "integer"},
						"name": map[string]any{"type": "string"},
					},
					"required": []any{"id"},
				},
			},
		},
		{
			name: "scalar mixed with object uses anyOf",
			doc:  `["x", {"k": 1}]`,
			want: map[string]any{
				"$schema": SchemaURI,
				"type":    "array",
				"items": map[string]any{
					"anyOf": []any{
						map[string]any{"type": "string"},
						map[string]any{
							"type":       "object",
							"properties": map[string]any{"k": map[string]any{"type": "integer"}},
							"required":   []any{"k"},
						},
					},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Infer(mustParseJSON(t, tt.doc))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCanonicalizeIsIdempotent(t *testing.T) {
	inferred, err := Infer(mustParseJSON(t, `{"z": {"y": [1, "a"], "x": {"w": null}}, "a": [{"b": 1}]}`))
	require.NoError(t, err)

	once, fields := Canonicalize(inferred)
	twice, fieldsAgain := Canonicalize(once)

	assert.Equal(t, once, twice)
	assert.Equal(t, fields, fieldsAgain)

	first, err := Marshal(once)
	require.NoError(t, err)
	second, err := Marshal(twice)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCanonicalizeSortsStringLists(t *testing.T) {
	out, _ := Canonicalize(map[string]any{
		"required": []any{"c", "a", "b"},
		"mixed":    []any{"b", 1, "a"},
	})
	assert.Equal(t, []any{"a", "b", "c"}, out["required"])
	assert.Equal(t, []any{"b", 1, "a"}, out["mixed"], "only all-string lists are sorted")
}

func TestCanonicalizeCollectsNestedFields(t *testing.T) {
	doc := `{
		"user": {"name": "x", "address": {"city": "y", "geo": {"lat": 1.0}}},
		"tags": [{"label": "t"}],
		"name": "dup"
	}`
	inferred, err := Infer(mustParseJSON(t, doc))
	require.NoError(t, err)

	_, fields := Canonicalize(inferred)
	assert.Equal(t, []string{"address", "city", "geo", "label", "lat", "name", "tags", "user"}, fields)
}

func TestCanonicalizeDoesNotAliasInput(t *testing.T) {
	in := map[string]any{"required": []any{"b", "a"}}
	_, _ = Canonicalize(in)
	assert.Equal(t, []any{"b", "a"}, in["required"])
}

func TestBuildDigestDeterminism(t *testing.T) {
	a, err := Build(JSONParser{}, []byte(`{"a": 1, "b": {"c": "x", "d": [1, 2]}}`))
	require.NoError(t, err)
	b, err := Build(JSONParser{}, []byte(`{"b": {"d": [3], "c": "other"}, "a": 7}`))
	require.NoError(t, err)
	c, err := Build(JSONParser{}, []byte(`{"a": "1", "b": {"c": "x", "d": [1, 2]}}`))
	require.NoError(t, err)

	assert.Equal(t, a.Digest, b.Digest)
	assert.NotEqual(t, a.Digest, c.Digest)
	assert.Equal(t, ComputeDigest(a.Bytes), a.Digest)
	assert.True(t, ValidDigest(a.Digest))
	assert.Equal(t, a.Digest+".json", a.ObjectKey())
}

func TestBuildExampleDocument(t *testing.T) {
	doc, err := Build(JSONParser{}, []byte(`{"a": 1, "b": "x"}`))
	require.NoError(t, err)

	assert.Equal(t, ContentTypeJSON, doc.ContentType)
	assert.Equal(t, []string{"a", "b"}, doc.Fields)

	var roundTrip map[string]any
	require.NoError(t, json.Unmarshal(doc.Bytes, &roundTrip))
	assert.Equal(t, doc.Schema, roundTrip)
	assert.Contains(t, string(doc.Bytes), "\n    \"$schema\": \"http://json-schema.org/schema#\"")
}

func TestMarshalEscapesNonASCII(t *testing.T) {
	doc, err := Build(JSONParser{}, []byte(`{"café": "naïve", "emoji😀": 1}`))
	require.NoError(t, err)

	out := string(doc.Bytes)
	assert.Contains(t, out, `"caf\u00e9"`)
	assert.Contains(t, out, `"emoji\ud83d\ude00"`)
	for _, b := range doc.Bytes {
		require.Less(t, b, byte(0x80))
	}

	assert.Equal(t, []string{"caf\u00e9", "emoji\U0001F600"}, doc.Fields)
	var roundTrip map[string]any
	require.NoError(t, json.Unmarshal(doc.Bytes, &roundTrip))
	assert.Equal(t, doc.Schema, roundTrip)
}

func TestBuildXML(t *testing.T) {
	raw := `<?xml version="1.0"?>
<catalog id="7">
  <book lang="en"><title>Go</title><price>10</price></book>
  <book><title>Rust</title></book>
</catalog>`
	doc, err := Build(XMLParser{}, []byte(raw))
	require.NoError(t, err)

	assert.Equal(t, ContentTypeXML, doc.ContentType)
	assert.Equal(t, []string{"@id", "@lang", "book", "catalog", "price", "title"}, doc.Fields)

	catalog := doc.Schema["properties"].(map[string]any)["catalog"].(map[string]any)
	book := catalog["properties"].(map[string]any)["book"].(map[string]any)
	assert.Equal(t, "array", book["type"])
}

func TestBuildXMLEmptyElementsAreNull(t *testing.T) {
	doc, err := Build(XMLParser{}, []byte(`<a><b/><c></c><d>x</d></a>`))
	require.NoError(t, err)

	a := doc.Schema["properties"].(map[string]any)["a"].(map[string]any)
	props := a["properties"].(map[string]any)
	assert.Equal(t, map[string]any{"type": "null"}, props["b"])
	assert.Equal(t, map[string]any{"type": "null"}, props["c"])
	assert.Equal(t, map[string]any{"type": "string"}, props["d"])
}

func TestXMLParserAllowsMiscAroundRoot(t *testing.T) {
	raw := "<?xml version=\"1.0\"?>\n<!-- header -->\n<a>1</a>\n<!-- trailer -->\n<?pi done?>\n"
	v, err := XMLParser{}.Parse([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": "1"}, v)
}

func TestBuildRejectsMalformedInput(t *testing.T) {
	tests := []struct {
		name   string
		parser Parser
		data   string
	}{
		{name: "truncated json", parser: JSONParser{}, data: `{"a": `},
		{name: "trailing json", parser: JSONParser{}, data: `{"a": 1} {"b": 2}`},
		{name: "empty json", parser: JSONParser{}, data: ``},
		{name: "broken xml", parser: XMLParser{}, data: `<a><b></a>`},
		{name: "two xml roots", parser: XMLParser{}, data: `<a/><b/>`},
		{name: "text after xml root", parser: XMLParser{}, data: `<a>1</a>junk`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.parser, []byte(tt.data))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrParse))
		})
	}
}

func TestRegistryLookup(t *testing.T) {
	r := DefaultRegistry()

	p, ok := r.Lookup("application/json; charset=utf-8")
	require.True(t, ok)
	assert.Equal(t, ContentTypeJSON, p.ContentType())

	p, ok = r.Lookup("application/xml")
	require.True(t, ok)
	assert.Equal(t, ContentTypeAppXML, p.ContentType())

	_, ok = r.Lookup("text/csv")
	assert.False(t, ok)

	assert.Equal(t, []string{ContentTypeJSON, ContentTypeAppXML, ContentTypeXML}, r.ContentTypes())
}
