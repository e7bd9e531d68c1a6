package command

import "testing"

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"!hello", "hello"},
		{"HELLO", "hello"},
		{"  !Hello  ", "hello"},
		{"!", ""},
		{"", ""},
		{"! spaced", "spaced"},
		{"?hello", "hello"},
		{"~Greet", "greet"},
		{"hello", "hello"},
		{"8ball", "8ball"},
		{"!!double", "!double"},
	}
	for _, tt := range tests {
		if got := NormalizeKey(tt.in); got != tt.want {
			t.Errorf("NormalizeKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDefinitionKeyMatchesNormalizedName(t *testing.T) {
	d := Definition{Command: "!Hello"}
	if d.Key() != "hello" {
		t.Fatalf("Key() = %q, want %q", d.Key(), "hello")
	}
}
