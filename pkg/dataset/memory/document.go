package memory

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/nodeweld/nodeweld/pkg/ident"
	"github.com/nodeweld/nodeweld/pkg/topology"
)

// FieldSpec is the JSON form of a field's identifier domain.
type FieldSpec struct {
	Kind   string `json:"kind"`
	Length int    `json:"length,omitempty"`
}

// FeatureJSON is the JSON form of one feature record.
type FeatureJSON struct {
	ID    int64               `json:"id"`
	From  topology.Coordinate `json:"from"`
	To    topology.Coordinate `json:"to"`
	Attrs map[string]any      `json:"attrs,omitempty"`
}

// Document is a portable feature collection: field schema plus records.
// This is the CLI's offline input/output format.
type Document struct {
	Fields   map[string]FieldSpec `json:"fields"`
	Features []FeatureJSON        `json:"features"`
}

// ReadDocument decodes a feature document and loads it into a fresh store.
// Attribute values are normalized into their field's domain; a value that
// does not fit its domain fails the load.
func ReadDocument(r io.Reader) (*Store, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	schema := make(Schema, len(doc.Fields))
	for name, spec := range doc.Fields {
		kind, err := ident.ParseKind(spec.Kind)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		domain := ident.Domain{Kind: kind, Length: spec.Length}
		if err := domain.Validate(); err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		schema[name] = domain
	}

	store := New(schema)
	for _, f := range doc.Features {
		attrs := make(map[string]ident.Value, len(f.Attrs))
		for name, raw := range f.Attrs {
			domain, ok := schema[name]
			if !ok {
				return nil, fmt.Errorf("feature %d: field %q not declared", f.ID, name)
			}
			v, err := domain.FromWire(raw)
			if err != nil {
				return nil, fmt.Errorf("feature %d field %q: %w", f.ID, name, err)
			}
			attrs[name] = v
		}
		if err := store.Insert(Record{ID: f.ID, From: f.From, To: f.To, Attrs: attrs}); err != nil {
			return nil, err
		}
	}
	return store, nil
}

// WriteDocument serializes the store back into the document format, with
// features in ID order for deterministic output.
func (s *Store) WriteDocument(w io.Writer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := Document{Fields: make(map[string]FieldSpec, len(s.schema))}
	for name, domain := range s.schema {
		doc.Fields[name] = FieldSpec{Kind: domain.Kind.String(), Length: domain.Length}
	}
	s.features.Scan(func(id int64, r Record) bool {
		attrs := make(map[string]any, len(r.Attrs))
		for name, v := range r.Attrs {
			if v != nil {
				attrs[name] = v
			}
		}
		doc.Features = append(doc.Features, FeatureJSON{ID: r.ID, From: r.From, To: r.To, Attrs: attrs})
		return true
	})

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
