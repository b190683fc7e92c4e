package schema

import "fmt"

// Document is the catalog view of one uploaded file. It is computed once by
// Build and never modified afterwards.
type Document struct {
	ContentType string
	Schema      map[string]any
	Fields      []string
	Bytes       []byte
	Digest      string
}

// Build parses data with p, infers and canonicalizes its schema, and
// computes the digest of the serialized result.
func Build(p Parser, data []byte) (*Document, error) {
	value, err := p.Parse(data)
	if err != nil {
		return nil, err
	}

	inferred, err := Infer(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	canonical, fields := Canonicalize(inferred)
	raw, err := Marshal(canonical)
	if err != nil {
		return nil, err
	}

	return &Document{
		ContentType: p.ContentType(),
		Schema:      canonical,
		Fields:      fields,
		Bytes:       raw,
		Digest:      ComputeDigest(raw),
	}, nil
}

// ObjectKey is the blob store key of the document's schema
func (d *Document) ObjectKey() string {
	return ObjectKey(d.Digest)
}
