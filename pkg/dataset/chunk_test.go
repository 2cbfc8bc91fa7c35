package dataset

import (
	"slices"
	"testing"
)

func collectRanges(ids []int64, chunkSize int) []Range {
	var out []Range
	for r := range Ranges(ids, chunkSize) {
		out = append(out, r)
	}
	return out
}

func TestRanges(t *testing.T) {
	tests := []struct {
		name      string
		ids       []int64
		chunkSize int
		want      []Range
	}{
		{
			name:      "boundaries follow sorted positions",
			ids:       []int64{1, 2, 3, 4, 5, 7, 9},
			chunkSize: 3,
			want:      []Range{{1, 3}, {4, 7}, {9, 9}},
		},
		{
			name:      "single chunk covers everything",
			ids:       []int64{4, 8, 15},
			chunkSize: 100,
			want:      []Range{{4, 15}},
		},
		{
			name:      "chunk size one",
			ids:       []int64{2, 5},
			chunkSize: 1,
			want:      []Range{{2, 2}, {5, 5}},
		},
		{
			name:      "unsorted input is sorted first",
			ids:       []int64{9, 1, 5},
			chunkSize: 2,
			want:      []Range{{1, 5}, {9, 9}},
		},
		{
			name:      "empty input",
			ids:       nil,
			chunkSize: 3,
			want:      nil,
		},
		{
			name:      "non-positive chunk size yields nothing",
			ids:       []int64{1, 2},
			chunkSize: 0,
			want:      nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := collectRanges(tt.ids, tt.chunkSize)
			if !slices.Equal(got, tt.want) {
				t.Errorf("Ranges(%v, %d) = %v, want %v", tt.ids, tt.chunkSize, got, tt.want)
			}
		})
	}
}

func TestRangesCoverInputExactly(t *testing.T) {
	ids := []int64{1, 2, 3, 4, 5, 7, 9}
	covered := make(map[int64]int)
	for r := range Ranges(ids, 3) {
		for _, id := range ids {
			if r.Contains(id) {
				covered[id]++
			}
		}
	}
	for _, id := range ids {
		if covered[id] != 1 {
			t.Errorf("id %d covered %d times, want exactly once", id, covered[id])
		}
	}
}

func TestRangeContains(t *testing.T) {
	r := Range{Min: 3, Max: 7}
	for _, id := range []int64{3, 5, 7} {
		if !r.Contains(id) {
			t.Errorf("Contains(%d) = false, want true", id)
		}
	}
	for _, id := range []int64{2, 8} {
		if r.Contains(id) {
			t.Errorf("Contains(%d) = true, want false", id)
		}
	}
}
