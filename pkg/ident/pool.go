package ident

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/google/uuid"
)

// Pool is a lazy, logically infinite sequence of identifiers that never
// repeats a value within one pool instance. Pools are single-consumer:
// sharing one across goroutines breaks the collision-free guarantee.
// A pool cannot be restarted; create a new one instead.
type Pool interface {
	// TryNext returns the next unused identifier, or ErrPoolExhausted when
	// the domain's keyspace cannot yield another distinct value.
	TryNext() (Value, error)
}

// stringAlphabet is the draw alphabet for fixed-length string identifiers.
const stringAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// maxStringDraws bounds the random retry loop of a string pool. Repeated
// collisions at this scale mean the keyspace is effectively used up, which is
// surfaced as ErrPoolExhausted rather than looping forever.
const maxStringDraws = 100000

// NewPool builds a pool for the domain. Integer and float pools count up
// from 1 (0 is reserved as a null sentinel). Token pools draw random UUIDs.
// String pools draw random alphanumeric strings of the configured length and
// track them in an instance-local used-set.
func (d Domain) NewPool() (Pool, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	switch d.Kind {
	case KindInteger, KindFloat:
		return &sequencePool{kind: d.Kind, next: 1}, nil
	case KindToken:
		return tokenPool{}, nil
	case KindString:
		return &stringPool{
			length:   d.Length,
			used:     make(map[string]struct{}),
			keyspace: math.Pow(float64(len(stringAlphabet)), float64(d.Length)),
		}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKind, d.Kind)
	}
}

// sequencePool yields 1, 2, 3, ... as int64 or float64. Strictly monotonic,
// so no collision bookkeeping is needed.
type sequencePool struct {
	kind Kind
	next int64
}

func (p *sequencePool) TryNext() (Value, error) {
	v := p.next
	p.next++
	if p.kind == KindFloat {
		return float64(v), nil
	}
	return v, nil
}

// tokenPool yields fresh random 128-bit tokens. Collision probability is
// negligible and not checked.
type tokenPool struct{}

func (tokenPool) TryNext() (Value, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("draw token: %w", err)
	}
	return id, nil
}

// stringPool yields random fixed-length alphanumeric strings, guaranteed
// distinct within the pool instance.
type stringPool struct {
	length   int
	used     map[string]struct{}
	keyspace float64
}

func (p *stringPool) TryNext() (Value, error) {
	if float64(len(p.used)) >= p.keyspace {
		return nil, fmt.Errorf("%w: all %s values of length %d drawn", ErrPoolExhausted, "string", p.length)
	}
	buf := make([]byte, p.length)
	for range maxStringDraws {
		for i := range buf {
			buf[i] = stringAlphabet[rand.IntN(len(stringAlphabet))]
		}
		s := string(buf)
		if _, dup := p.used[s]; dup {
			continue
		}
		p.used[s] = struct{}{}
		return s, nil
	}
	return nil, fmt.Errorf("%w: no unused string of length %d found after %d draws", ErrPoolExhausted, p.length, maxStringDraws)
}

// Excluding wraps pool so that values already present in used are skipped.
// The used set is read on every draw, so the caller may keep adding to it
// between draws. Used by resolution to avoid identifiers committed elsewhere.
func Excluding(pool Pool, used map[Value]struct{}) Pool {
	return &excludingPool{inner: pool, used: used}
}

type excludingPool struct {
	inner Pool
	used  map[Value]struct{}
}

func (p *excludingPool) TryNext() (Value, error) {
	for {
		v, err := p.inner.TryNext()
		if err != nil {
			return nil, err
		}
		if _, taken := p.used[v]; taken {
			continue
		}
		return v, nil
	}
}
