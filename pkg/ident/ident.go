// Package ident provides domain-typed identifier values, collision-free
// identifier pools, and reconciliation of possibly-duplicate or missing
// identifiers against a committed set.
//
// Identifiers are heterogeneous: a dataset field may hold integers, floats,
// fixed-length strings, or opaque 128-bit tokens. The domain is selected once
// at the API boundary (from the target field's type) as a [Domain] and
// threaded through pool construction and reconciliation, so the rest of the
// system never dispatches on language-level types.
//
// A nil [Value] means "not yet assigned". Numeric pools additionally reserve
// 0 and start counting at 1, because downstream consumers treat 0 as a null
// sentinel.
package ident

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrUnsupportedKind is returned when a Domain names a kind no pool
	// implementation exists for. This is a configuration error and is never
	// retried.
	ErrUnsupportedKind = errors.New("unsupported identifier kind")

	// ErrInvalidLength is returned when a string Domain has a non-positive
	// length.
	ErrInvalidLength = errors.New("string identifier length must be positive")

	// ErrPoolExhausted is returned by [Pool.TryNext] when the pool cannot
	// produce another unused value (fixed-length string keyspace used up).
	// This is fatal to the operation; the pool does not widen the length or
	// otherwise recover.
	ErrPoolExhausted = errors.New("identifier pool exhausted")

	// ErrKindMismatch is returned when a value's dynamic type does not match
	// the domain it is used under.
	ErrKindMismatch = errors.New("identifier value does not match domain kind")
)

// Kind enumerates the supported identifier domains.
type Kind int

const (
	// KindInteger is a 64-bit integer identifier counting from 1.
	KindInteger Kind = iota
	// KindFloat is a float identifier with integral values counting from 1.
	KindFloat
	// KindString is a fixed-length alphanumeric string identifier.
	KindString
	// KindToken is an opaque 128-bit random token (UUID).
	KindToken
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindToken:
		return "token"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind converts a kind name ("integer", "float", "string", "token")
// into a Kind. Returns ErrUnsupportedKind for anything else.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "integer", "int":
		return KindInteger, nil
	case "float", "double":
		return KindFloat, nil
	case "string", "text":
		return KindString, nil
	case "token", "guid", "uuid":
		return KindToken, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedKind, s)
	}
}

// Value is a domain-typed identifier. The dynamic type is one of int64,
// float64, string, or [uuid.UUID]; nil means the identifier has not been
// assigned yet. All concrete value types are comparable, so values can be
// used directly as map keys in used-sets and claim tables.
type Value = any

// IsNull reports whether v is the unassigned identifier.
func IsNull(v Value) bool { return v == nil }

// Domain identifies an identifier domain: the kind plus, for fixed-length
// strings, the length. The zero value is a valid integer domain.
type Domain struct {
	Kind   Kind
	Length int // string length; ignored for other kinds
}

// Validate checks that the domain is well formed.
func (d Domain) Validate() error {
	switch d.Kind {
	case KindInteger, KindFloat, KindToken:
		return nil
	case KindString:
		if d.Length <= 0 {
			return fmt.Errorf("%w: got %d", ErrInvalidLength, d.Length)
		}
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedKind, d.Kind)
	}
}

// String returns a short description such as "integer" or "string(8)".
func (d Domain) String() string {
	if d.Kind == KindString {
		return fmt.Sprintf("string(%d)", d.Length)
	}
	return d.Kind.String()
}

// Check verifies that v belongs to the domain. A nil value is always
// acceptable (unassigned). Returns ErrKindMismatch otherwise.
func (d Domain) Check(v Value) error {
	if v == nil {
		return nil
	}
	ok := false
	switch d.Kind {
	case KindInteger:
		_, ok = v.(int64)
	case KindFloat:
		_, ok = v.(float64)
	case KindString:
		s, isStr := v.(string)
		ok = isStr && len(s) == d.Length
	case KindToken:
		_, ok = v.(uuid.UUID)
	}
	if !ok {
		return fmt.Errorf("%w: %T is not %s", ErrKindMismatch, v, d)
	}
	return nil
}

// Less reports whether a orders before b within the domain. It is the
// tie-break used when two declared endpoint identifiers meet at the same
// coordinate: the smaller one wins. Both values must be non-nil and pass
// Check; Less on mismatched values reports false.
func (d Domain) Less(a, b Value) bool {
	switch d.Kind {
	case KindInteger:
		av, aok := a.(int64)
		bv, bok := b.(int64)
		return aok && bok && av < bv
	case KindFloat:
		av, aok := a.(float64)
		bv, bok := b.(float64)
		return aok && bok && av < bv
	case KindString:
		av, aok := a.(string)
		bv, bok := b.(string)
		return aok && bok && av < bv
	case KindToken:
		av, aok := a.(uuid.UUID)
		bv, bok := b.(uuid.UUID)
		return aok && bok && bytes.Compare(av[:], bv[:]) < 0
	default:
		return false
	}
}

// FromWire normalizes a value decoded from JSON or BSON into the domain's
// canonical representation. JSON numbers arrive as float64 regardless of the
// target domain and tokens arrive as strings, so boundary layers use this to
// produce canonical values before they enter graphs or pools.
func (d Domain) FromWire(v any) (Value, error) {
	if v == nil {
		return nil, nil
	}
	switch d.Kind {
	case KindInteger:
		switch n := v.(type) {
		case int64:
			return n, nil
		case int:
			return int64(n), nil
		case int32:
			return int64(n), nil
		case float64:
			if n != float64(int64(n)) {
				return nil, fmt.Errorf("%w: %v is not an integer", ErrKindMismatch, n)
			}
			return int64(n), nil
		}
	case KindFloat:
		switch n := v.(type) {
		case float64:
			return n, nil
		case float32:
			return float64(n), nil
		case int64:
			return float64(n), nil
		case int:
			return float64(n), nil
		}
	case KindString:
		if s, ok := v.(string); ok {
			if len(s) != d.Length {
				return nil, fmt.Errorf("%w: string length %d, want %d", ErrKindMismatch, len(s), d.Length)
			}
			return s, nil
		}
	case KindToken:
		switch t := v.(type) {
		case uuid.UUID:
			return t, nil
		case string:
			id, err := uuid.Parse(t)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrKindMismatch, err)
			}
			return id, nil
		case []byte:
			id, err := uuid.FromBytes(t)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrKindMismatch, err)
			}
			return id, nil
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKind, d.Kind)
	}
	return nil, fmt.Errorf("%w: cannot decode %T as %s", ErrKindMismatch, v, d)
}

// Format renders an identifier for logs and error messages.
// Nil renders as "<null>"; tokens render in canonical UUID form.
func Format(v Value) string {
	if v == nil {
		return "<null>"
	}
	return fmt.Sprintf("%v", v)
}
