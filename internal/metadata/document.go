package metadata

import (
	"errors"
	"strconv"

	"github.com/tidwall/gjson"
)

// ErrMalformedDocument is returned when the payload is not a JSON object
var ErrMalformedDocument = errors.New("malformed metadata document")

// Trait is a (trait_type, value) pair of a metadata document
type Trait struct {
	Name  string
	Value string
}

// Document is the decoded subset of an OpenSea-style metadata document
// https://docs.opensea.io/docs/metadata-standards
type Document struct {
	Description string
	Image       string
	Name        string
	// HasAttributes is false when the attributes field is absent or not an array
	HasAttributes bool
	Traits        []Trait
}

// Decode parses a metadata payload. Some collections (Extra Life) publish an array
// holding a single object; the first element is used.
func Decode(data []byte) (*Document, error) {
	if !gjson.ValidBytes(data) {
		return nil, ErrMalformedDocument
	}

	root := gjson.ParseBytes(data)
	if root.IsArray() {
		root = root.Get("0")
	}
	if !root.IsObject() {
		return nil, ErrMalformedDocument
	}

	doc := &Document{
		Description: stringOf(root.Get("description")),
		Image:       stringOf(root.Get("image")),
		Name:        stringOf(root.Get("name")),
	}

	attributes := root.Get("attributes")
	if !attributes.IsArray() {
		return doc, nil
	}

	doc.HasAttributes = true
	attributes.ForEach(func(_, item gjson.Result) bool {
		if !item.IsObject() {
			return true
		}
		doc.Traits = append(doc.Traits, Trait{
			Name:  stringOf(item.Get("trait_type")),
			Value: valueOf(item.Get("value")),
		})
		return true
	})

	return doc, nil
}

// stringOf returns the string value, or "" for absent and non-string values
func stringOf(r gjson.Result) string {
	if r.Type != gjson.String {
		return ""
	}
	return r.Str
}

// valueOf renders a trait value. Numbers are rendered as integer text.
func valueOf(r gjson.Result) string {
	if r.Type == gjson.Number {
		return strconv.FormatInt(r.Int(), 10)
	}
	return stringOf(r)
}
