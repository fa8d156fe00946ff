package storage

import "testing"

func TestValidateContentType(t *testing.T) {
	cases := map[string]bool{
		"text/plain":                true,
		"text/plain; charset=utf-8": true,
		"Application/JSON":          true,
		"image/png":                 false,
		"":                          false,
	}
	for ct, ok := range cases {
		err := validateContentType(ct)
		if ok && err != nil {
			t.Errorf("%q: unexpected error %v", ct, err)
		}
		if !ok && err == nil {
			t.Errorf("%q: expected rejection", ct)
		}
	}
}

func TestValidateFileSize(t *testing.T) {
	if err := validateFileSize(0, 100); err == nil {
		t.Fatal("empty files must be rejected")
	}
	if err := validateFileSize(101, 100); err == nil {
		t.Fatal("oversized files must be rejected")
	}
	if err := validateFileSize(100, 100); err != nil {
		t.Fatalf("limit itself is allowed: %v", err)
	}
	if err := validateFileSize(1<<30, 0); err != nil {
		t.Fatalf("zero limit means unlimited: %v", err)
	}
}
