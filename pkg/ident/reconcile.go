package ident

import "slices"

// Correct returns an identifier for current that does not collide with
// anything in used. It draws from pool only when current is already taken.
//
//   - nullIsFree && current == nil: returns nil unchanged (assigned later).
//   - current not in used: returns current unchanged.
//   - otherwise: draws from pool until a value outside used appears.
//
// Correct never mutates used; recording the returned value is the caller's
// responsibility. An already-unique identifier is a no-op, not an error.
func Correct(current Value, pool Pool, used map[Value]struct{}, nullIsFree bool) (Value, error) {
	if current == nil {
		if nullIsFree {
			return nil, nil
		}
		return Excluding(pool, used).TryNext()
	}
	if _, taken := used[current]; !taken {
		return current, nil
	}
	return Excluding(pool, used).TryNext()
}

// CorrectAll reconciles a feature→identifier mapping in two passes: the
// first preserves already-unique non-null identifiers while treating nulls
// as provisionally free, the second assigns pool-drawn identifiers to the
// remaining nulls. The result has no duplicates and no nulls.
//
// Keys are visited in sorted order so reruns are deterministic. Unlike
// Correct, CorrectAll records every identifier it settles on in used, since
// it owns the whole pass. Running it again on its own output returns an
// identical mapping.
func CorrectAll(ids map[int64]Value, pool Pool, used map[Value]struct{}) (map[int64]Value, error) {
	keys := make([]int64, 0, len(ids))
	for k := range ids {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	out := make(map[int64]Value, len(ids))
	for _, k := range keys {
		v, err := Correct(ids[k], pool, used, true)
		if err != nil {
			return nil, err
		}
		out[k] = v
		if v != nil {
			used[v] = struct{}{}
		}
	}
	for _, k := range keys {
		if out[k] != nil {
			continue
		}
		v, err := Correct(nil, pool, used, false)
		if err != nil {
			return nil, err
		}
		out[k] = v
		used[v] = struct{}{}
	}
	return out, nil
}
