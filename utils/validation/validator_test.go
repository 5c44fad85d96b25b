package validation

import (
	"strings"
	"testing"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want bool
	}{
		{"valid https", "https://lums.edu.pk", true},
		{"valid http", "http://uok.edu.pk", true},
		{"no scheme", "lums.edu.pk", false},
		{"ftp scheme", "ftp://lums.edu.pk", false},
		{"too short", "http://a", false},
		{"empty", "", false},
		{"too long", "https://" + strings.Repeat("a", 300), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateURL(tt.url); got != tt.want {
				t.Errorf("ValidateURL(%q) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}
}

func TestValidatePriority(t *testing.T) {
	for _, p := range []int{1, 5, 10} {
		if !ValidatePriority(p) {
			t.Errorf("ValidatePriority(%d) = false, want true", p)
		}
	}
	for _, p := range []int{0, -1, 11, 100} {
		if ValidatePriority(p) {
			t.Errorf("ValidatePriority(%d) = true, want false", p)
		}
	}
}

func TestSanitizeString(t *testing.T) {
	if got := SanitizeString("  University of Karachi  "); got != "University of Karachi" {
		t.Errorf("SanitizeString did not trim whitespace: %q", got)
	}
	if got := SanitizeString("LUMS\x00"); got != "LUMS" {
		t.Errorf("SanitizeString did not strip null bytes: %q", got)
	}
}

func TestValidateStructTags(t *testing.T) {
	type input struct {
		Name     string `validate:"required,min=2,max=255"`
		Type     string `validate:"required,oneof=public private"`
		Priority int    `validate:"omitempty,gte=1,lte=10"`
	}

	v := NewValidator()

	if err := v.ValidateStruct(input{Name: "NUST", Type: "public", Priority: 8}); err != nil {
		t.Fatalf("valid input rejected: %v", err)
	}

	err := v.ValidateStruct(input{Name: "", Type: "charter", Priority: 12})
	if err == nil {
		t.Fatal("invalid input accepted")
	}
	fields := FormatValidationErrors(err)
	if _, ok := fields["name"]; !ok {
		t.Error("missing field error for name")
	}
	if msg, ok := fields["type"]; !ok || !strings.Contains(msg, "public private") {
		t.Errorf("type error = %q, want oneof message", msg)
	}
	if _, ok := fields["priority"]; !ok {
		t.Error("missing field error for priority")
	}
}
