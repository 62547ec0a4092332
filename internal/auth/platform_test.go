package auth

import "testing"

func TestIsValidPlatformUserID(t *testing.T) {
	valid := []string{"u1", "demo_user_001", "Player-9", "A"}
	for _, s := range valid {
		if !IsValidPlatformUserID(s) {
			t.Fatalf("should accept %q", s)
		}
	}
	invalid := []string{"", "user name", "user@host", "中文", string(make([]byte, 65))}
	for _, s := range invalid {
		if IsValidPlatformUserID(s) {
			t.Fatalf("should reject %q", s)
		}
	}
}

func TestSecureCompare(t *testing.T) {
	if !SecureCompare("abc", "abc") {
		t.Fatalf("equal strings should match")
	}
	if SecureCompare("abc", "abd") || SecureCompare("abc", "ab") {
		t.Fatalf("different strings must not match")
	}
}

func TestIsIPAllowed(t *testing.T) {
	if !IsIPAllowed("1.2.3.4", nil) {
		t.Fatalf("empty allowlist should allow all")
	}
	if !IsIPAllowed("1.2.3.4", []string{"5.6.7.8", " 1.2.3.4 "}) {
		t.Fatalf("listed ip should be allowed")
	}
	if IsIPAllowed("9.9.9.9", []string{"1.2.3.4"}) {
		t.Fatalf("unlisted ip must be rejected")
	}
}
