package otp

import "testing"

func TestGenerateFormat(t *testing.T) {
	for range 50 {
		code, err := Generate()
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if len(code) != 4 {
			t.Fatalf("expected 4-digit code, got %q", code)
		}
		for _, r := range code {
			if r < '0' || r > '9' {
				t.Fatalf("non-digit in code %q", code)
			}
		}
	}
}

func TestVerify(t *testing.T) {
	if !Verify("1234", "1234") {
		t.Error("matching code rejected")
	}
	if Verify("1234", "4321") {
		t.Error("mismatched code accepted")
	}
	if Verify("", "1234") {
		t.Error("empty provided code accepted")
	}
	if Verify("1234", "") {
		t.Error("empty stored code accepted")
	}
}
