package schema

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"mime"
	"sort"
	"strings"

	"github.com/clbanning/mxj"
)

// Content types handled by the default registry
const (
	ContentTypeJSON   = "application/json"
	ContentTypeXML    = "text/xml"
	ContentTypeAppXML = "application/xml"
)

// ErrParse marks input that could not be decoded by its parser
var ErrParse = errors.New("malformed document")

func init() {
	// xmltodict convention: "@attr" for attributes, "#text" for mixed text.
	mxj.SetAttrPrefix("@")
}

// Parser decodes raw file content into the generic value tree that schema
// inference consumes.
type Parser interface {
	ContentType() string
	Parse(data []byte) (any, error)
}

// JSONParser handles application/json documents
type JSONParser struct{}

func (JSONParser) ContentType() string { return ContentTypeJSON }

// Parse decodes exactly one JSON value. Numbers are kept as json.Number so
// integers and decimals infer different types.
func (JSONParser) Parse(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: json: %v", ErrParse, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: json: unexpected data after top-level value", ErrParse)
	}
	return v, nil
}

// XMLParser handles XML documents, folding attributes and text into mapping
// keys. Repeated sibling elements become lists.
type XMLParser struct {
	// Type is the content type the parser registers under; text/xml when empty.
	Type string
}

func (p XMLParser) ContentType() string {
	if p.Type == "" {
		return ContentTypeXML
	}
	return p.Type
}

// Parse decodes a single root element. Empty elements decode to nil, and
// anything but whitespace, comments or processing instructions around the
// root is rejected.
func (XMLParser) Parse(data []byte) (any, error) {
	m, err := mxj.NewMapXml(data)
	if err != nil {
		return nil, fmt.Errorf("%w: xml: %v", ErrParse, err)
	}
	if err := checkSingleRoot(data); err != nil {
		return nil, fmt.Errorf("%w: xml: %v", ErrParse, err)
	}
	return nullEmpty(map[string]any(m)), nil
}

// checkSingleRoot walks the token stream. mxj stops reading after the
// first element and never sees what follows it.
func checkSingleRoot(data []byte) error {
	dec := xml.NewDecoder(bytes.NewReader(data))
	// Only structure matters here; mxj has already decoded the content.
	dec.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) {
		return input, nil
	}

	depth := 0
	closed := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if closed {
				return fmt.Errorf("second root element <%s>", t.Name.Local)
			}
			depth++
		case xml.EndElement:
			depth--
			if depth == 0 {
				closed = true
			}
		case xml.CharData:
			if depth == 0 && len(bytes.TrimSpace(t)) > 0 {
				return errors.New("text outside the root element")
			}
		}
	}
}

// nullEmpty replaces empty text leaves with nil, in place
func nullEmpty(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			t[k] = nullEmpty(child)
		}
	case mxj.Map:
		return nullEmpty(map[string]any(t))
	case []any:
		for i, child := range t {
			t[i] = nullEmpty(child)
		}
	case string:
		if t == "" {
			return nil
		}
	}
	return v
}

// Registry maps content types to parsers
type Registry struct {
	parsers map[string]Parser
}

// NewRegistry registers parsers under their content types. Later parsers
// replace earlier ones registered for the same type.
func NewRegistry(parsers ...Parser) *Registry {
	r := &Registry{parsers: make(map[string]Parser, len(parsers))}
	for _, p := range parsers {
		r.parsers[p.ContentType()] = p
	}
	return r
}

// DefaultRegistry handles JSON and XML
func DefaultRegistry() *Registry {
	return NewRegistry(
		JSONParser{},
		XMLParser{},
		XMLParser{Type: ContentTypeAppXML},
	)
}

// Lookup finds the parser for a declared content type. Media type parameters
// such as charset are ignored.
func (r *Registry) Lookup(contentType string) (Parser, bool) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}
	p, ok := r.parsers[mediaType]
	return p, ok
}

// ContentTypes lists the registered content types
func (r *Registry) ContentTypes() []string {
	types := make([]string, 0, len(r.parsers))
	for t := range r.parsers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
