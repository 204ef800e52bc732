package resource

import (
	"strings"
	"testing"
)

func TestName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		parts []string
		want  string
	}{
		{"joins with dashes", []string{"at-cafe0123", "function", "web"}, "at-cafe0123-function-web"},
		{"lowercases", []string{"At-CAFE0123", "Web"}, "at-cafe0123-web"},
		{"sanitizes invalid characters", []string{"at cafe", "w_b"}, "at-cafe-w-b"},
		{"squeezes repeated dashes", []string{"a--b", "c"}, "a-b-c"},
		{"keeps dots", []string{"node1.example.org"}, "node1.example.org"},
		{"trims leading and trailing dashes", []string{"-a-", ""}, "a"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Name(tc.parts...); got != tc.want {
				t.Errorf("Name(%v) = %q, want %q", tc.parts, got, tc.want)
			}
		})
	}
}

func TestName_TruncatesKeepingSuffix(t *testing.T) {
	t.Parallel()

	got := Name(strings.Repeat("a", 80), "web")

	if len(got) > 63 {
		t.Errorf("Expected at most 63 characters, got %d", len(got))
	}
	if !strings.HasSuffix(got, "-web") {
		t.Errorf("Expected the distinguishing suffix to survive truncation, got: %q", got)
	}
}

func TestName_TruncatesOverlongSuffix(t *testing.T) {
	t.Parallel()

	got := Name("prefix", strings.Repeat("b", 80))

	if len(got) > 63 {
		t.Errorf("Expected at most 63 characters, got %d", len(got))
	}
}
