package orchestrator

import "testing"

func TestDecodeModelJSON(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"bare object", `{"title":"dev"}`, `{"title":"dev"}`, false},
		{"fenced json", "```json\n{\"title\":\"dev\"}\n```", `{"title":"dev"}`, false},
		{"uppercase fence", "```JSON\n{\"a\":1}\n```", `{"a":1}`, false},
		{"plain fence", "```\n{\"a\":1}\n```", `{"a":1}`, false},
		{"prose around object", `Sure! Here it is: {"a":1} hope that helps`, `{"a":1}`, false},
		{"whitespace padding", "  \n {\"a\":1} \n", `{"a":1}`, false},
		{"pretty printed", "{\n  \"a\": 1\n}", `{"a":1}`, false},
		{"no json at all", "I cannot help with that.", "", true},
		{"array only", `[1,2,3]`, "", true},
		{"broken object", `{"a":`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeModelJSON(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("decodeModelJSON(%q) = %s, want error", tt.raw, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("decodeModelJSON(%q) failed: %v", tt.raw, err)
			}
			if string(got) != tt.want {
				t.Errorf("decodeModelJSON(%q) = %s, want %s", tt.raw, got, tt.want)
			}
		})
	}
}

func TestTruncateText(t *testing.T) {
	if got := truncateText("short", 100); got != "short" {
		t.Errorf("short text modified: %q", got)
	}
	long := "aaaa\nbbbb\ncccc\ndddd"
	got := truncateText(long, 18)
	if len([]rune(got)) > 18 {
		t.Errorf("truncation exceeds limit: %d runes", len([]rune(got)))
	}
	if got != "aaaa\nbbbb\ncccc" {
		t.Errorf("expected cut on line boundary, got %q", got)
	}
}
