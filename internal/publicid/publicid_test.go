package publicid

import (
	"testing"
)

func TestGenerate_LengthAndAlphabet(t *testing.T) {
	id, err := Generate()
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if len(id) != Length {
		t.Errorf("len(id) = %d, want %d", len(id), Length)
	}
	if !Valid(id) {
		t.Errorf("generated id %q should be valid", id)
	}
}

func TestGenerate_NoDuplicatesInSample(t *testing.T) {
	seen := make(map[string]struct{}, 10000)
	for i := 0; i < 10000; i++ {
		id, err := Generate()
		if err != nil {
			t.Fatalf("Generate returned error: %v", err)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id generated: %s", id)
		}
		seen[id] = struct{}{}
	}
}

func TestValid(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want bool
	}{
		{"16文字英数字", "AbCdEf0123456789", true},
		{"最小長ちょうど", "abcdefghijkl", true},
		{"短すぎる", "abc", false},
		{"空文字列", "", false},
		{"記号を含む", "abcdefghijk-_", false},
		{"マルチバイト", "あいうえおかきくけこさし", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Valid(tt.id); got != tt.want {
				t.Errorf("Valid(%q) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}
}
