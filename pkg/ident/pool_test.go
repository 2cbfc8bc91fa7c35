package ident

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestSequencePoolStartsAtOne(t *testing.T) {
	pool, err := Domain{Kind: KindInteger}.NewPool()
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	for want := int64(1); want <= 5; want++ {
		v, err := pool.TryNext()
		if err != nil {
			t.Fatalf("TryNext: %v", err)
		}
		if v != want {
			t.Errorf("draw = %v, want %d", v, want)
		}
	}
}

func TestFloatPoolYieldsFloats(t *testing.T) {
	pool, err := Domain{Kind: KindFloat}.NewPool()
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	v, err := pool.TryNext()
	if err != nil {
		t.Fatalf("TryNext: %v", err)
	}
	f, ok := v.(float64)
	if !ok || f != 1.0 {
		t.Errorf("draw = %v (%T), want 1.0 (float64)", v, v)
	}
}

func TestTokenPoolDrawsDistinctTokens(t *testing.T) {
	pool, err := Domain{Kind: KindToken}.NewPool()
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	a, err := pool.TryNext()
	if err != nil {
		t.Fatalf("TryNext: %v", err)
	}
	b, err := pool.TryNext()
	if err != nil {
		t.Fatalf("TryNext: %v", err)
	}
	if _, ok := a.(uuid.UUID); !ok {
		t.Fatalf("draw type = %T, want uuid.UUID", a)
	}
	if a == b {
		t.Errorf("two token draws returned the same value %v", a)
	}
}

func TestStringPoolNeverRepeats(t *testing.T) {
	pool, err := Domain{Kind: KindString, Length: 6}.NewPool()
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	seen := make(map[Value]struct{}, 10000)
	for i := 0; i < 10000; i++ {
		v, err := pool.TryNext()
		if err != nil {
			t.Fatalf("draw %d: %v", i, err)
		}
		s, ok := v.(string)
		if !ok || len(s) != 6 {
			t.Fatalf("draw %d = %v (%T), want 6-char string", i, v, v)
		}
		if _, dup := seen[v]; dup {
			t.Fatalf("draw %d repeated %q", i, s)
		}
		seen[v] = struct{}{}
	}
}

func TestStringPoolExhaustsKeyspace(t *testing.T) {
	// Length 1 has exactly len(stringAlphabet) values.
	pool, err := Domain{Kind: KindString, Length: 1}.NewPool()
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	seen := make(map[Value]struct{})
	for i := 0; i < len(stringAlphabet); i++ {
		v, err := pool.TryNext()
		if err != nil {
			t.Fatalf("draw %d: %v", i, err)
		}
		if _, dup := seen[v]; dup {
			t.Fatalf("draw %d repeated %v", i, v)
		}
		seen[v] = struct{}{}
	}
	if _, err := pool.TryNext(); !errors.Is(err, ErrPoolExhausted) {
		t.Errorf("draw past keyspace: error = %v, want ErrPoolExhausted", err)
	}
}

func TestExcludingSkipsUsedValues(t *testing.T) {
	pool, err := Domain{Kind: KindInteger}.NewPool()
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	used := map[Value]struct{}{
		int64(1): {},
		int64(3): {},
	}
	wrapped := Excluding(pool, used)

	v, err := wrapped.TryNext()
	if err != nil {
		t.Fatalf("TryNext: %v", err)
	}
	if v != int64(2) {
		t.Errorf("first draw = %v, want 2", v)
	}

	// The used set is consulted on every draw, so additions between draws
	// take effect.
	used[int64(4)] = struct{}{}
	v, err = wrapped.TryNext()
	if err != nil {
		t.Fatalf("TryNext: %v", err)
	}
	if v != int64(5) {
		t.Errorf("second draw = %v, want 5", v)
	}
}
