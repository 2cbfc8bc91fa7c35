package redistore

import (
	"reflect"
	"testing"

	"github.com/google/uuid"

	"github.com/nodeweld/nodeweld/pkg/ident"
)

func TestFlattenStagedMergesFieldsIntoOneBatch(t *testing.T) {
	staged := map[string]map[int64]ident.Value{
		"to_node_id":   {2: int64(20), 1: int64(10)},
		"from_node_id": {1: int64(1), 3: nil},
	}

	got := flattenStaged(staged)
	want := []stagedWrite{
		{id: 1, field: "from_node_id", value: int64(1)},
		{id: 1, field: "to_node_id", value: int64(10)},
		{id: 2, field: "to_node_id", value: int64(20)},
		{id: 3, field: "from_node_id", value: nil},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("flattenStaged = %+v, want %+v", got, want)
	}
}

func TestFlattenStagedEmpty(t *testing.T) {
	if got := flattenStaged(nil); len(got) != 0 {
		t.Errorf("flattenStaged(nil) = %+v, want empty", got)
	}
	if got := flattenStaged(map[string]map[int64]ident.Value{}); len(got) != 0 {
		t.Errorf("flattenStaged(empty) = %+v, want empty", got)
	}
}

func TestBatchIDsDeduplicates(t *testing.T) {
	batch := []stagedWrite{
		{id: 1, field: "from_node_id"},
		{id: 1, field: "to_node_id"},
		{id: 2, field: "from_node_id"},
		{id: 2, field: "to_node_id"},
		{id: 5, field: "from_node_id"},
	}
	got := batchIDs(batch)
	want := []int64{1, 2, 5}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("batchIDs = %v, want %v", got, want)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	token := uuid.MustParse("a1b2c3d4-0000-0000-0000-000000000001")
	tests := []struct {
		name   string
		domain ident.Domain
		value  ident.Value
	}{
		{"integer", ident.Domain{Kind: ident.KindInteger}, int64(42)},
		{"float", ident.Domain{Kind: ident.KindFloat}, float64(2.5)},
		{"string", ident.Domain{Kind: ident.KindString, Length: 4}, "abcd"},
		{"token", ident.Domain{Kind: ident.KindToken}, token},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := encode(tt.value)
			got, err := decode(tt.domain, raw, true)
			if err != nil {
				t.Fatalf("decode(%q): %v", raw, err)
			}
			if got != tt.value {
				t.Errorf("round trip = %v, want %v", got, tt.value)
			}
		})
	}
}

func TestDecodeMissingFieldIsNull(t *testing.T) {
	got, err := decode(ident.Domain{Kind: ident.KindInteger}, "", false)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != nil {
		t.Errorf("decode absent field = %v, want nil", got)
	}
}

func TestDecodeRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		domain ident.Domain
		raw    string
	}{
		{"non-numeric integer", ident.Domain{Kind: ident.KindInteger}, "twelve"},
		{"non-numeric float", ident.Domain{Kind: ident.KindFloat}, "x"},
		{"wrong string length", ident.Domain{Kind: ident.KindString, Length: 4}, "abcde"},
		{"malformed token", ident.Domain{Kind: ident.KindToken}, "not-a-uuid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := decode(tt.domain, tt.raw, true); err == nil {
				t.Errorf("decode(%q) accepted, want error", tt.raw)
			}
		})
	}
}
