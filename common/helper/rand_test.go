package helper

import (
	"testing"
)

func TestGenerateRequestID(t *testing.T) {
	seen := make(map[string]struct{}, 100)
	for i := 0; i < 100; i++ {
		id, err := GenerateRequestID()
		if err != nil {
			t.Fatalf("generate error: %v", err)
		}
		if len(id) != 32 {
			t.Fatalf("len != 32: %s", id)
		}
		for j := 0; j < len(id); j++ {
			c := id[j]
			if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
				t.Fatalf("non-hex char: %s", id)
			}
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate request id: %s", id)
		}
		seen[id] = struct{}{}
	}
}

func TestGenerateRandNum(t *testing.T) {
	for i := 0; i < 1000; i++ {
		n := GenerateRandNum(1, 100)
		if n < 1 || n >= 100 {
			t.Fatalf("out of range: %d", n)
		}
	}
}
