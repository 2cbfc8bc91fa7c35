package errors

import (
	"strings"
	"testing"
)

func TestValidateFieldName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid simple", "from_node_id", false},
		{"valid with dash", "from-id", false},
		{"valid with dot", "attrs.from", false},
		{"valid upper", "FROM_NODE_ID", false},

		{"empty", "", true},
		{"too long", strings.Repeat("a", 129), true},
		{"space", "from id", true},
		{"null byte", "foo\x00bar", true},
		{"backslash", "foo\\bar", true},
		{"slash", "foo/bar", true},
		{"control char", "foo\x01bar", true},
		{"newline", "foo\nbar", true},
		{"single quote", "foo'bar", true},
		{"double quote", `foo"bar`, true},
		{"dollar", "foo$bar", true},
		{"backtick", "foo`bar", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFieldName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateFieldName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateChunkSize(t *testing.T) {
	tests := []struct {
		name    string
		input   int
		wantErr bool
	}{
		{"positive", 1000, false},
		{"one", 1, false},
		{"zero", 0, true},
		{"negative", -5, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateChunkSize(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateChunkSize(%d) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}
