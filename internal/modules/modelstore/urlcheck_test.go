package modelstore

import (
	"testing"

	"github.com/jobtrail/core/internal/pkg/aierr"
)

func TestDeriveFilename(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		want    string
		wantErr bool
	}{
		{"plain https", "https://example.com/models/llama-3-8b.Q4_K_M.gguf", "llama-3-8b.Q4_K_M.gguf", false},
		{"plain http", "http://example.com/phi-3.gguf", "phi-3.gguf", false},
		{"uppercase ext", "https://example.com/model.GGUF", "model.GGUF", false},
		{"empty", "", "", true},
		{"whitespace only", "   ", "", true},
		{"no scheme", "example.com/model.gguf", "", true},
		{"ftp scheme", "ftp://example.com/model.gguf", "", true},
		{"no host", "https:///model.gguf", "", true},
		{"query params", "https://example.com/model.gguf?download=true", "", true},
		{"fragment", "https://example.com/model.gguf#section", "", true},
		{"no file", "https://example.com/", "", true},
		{"wrong extension", "https://example.com/model.bin", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DeriveFilename(tt.url)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("DeriveFilename(%q) = %q, want error", tt.url, got)
				}
				if !aierr.Is(err, aierr.KindInvalidURL) {
					t.Errorf("DeriveFilename(%q) error kind = %v, want invalid_url", tt.url, aierr.KindOf(err))
				}
				return
			}
			if err != nil {
				t.Fatalf("DeriveFilename(%q) failed: %v", tt.url, err)
			}
			if got != tt.want {
				t.Errorf("DeriveFilename(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}

func TestValidFilename(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"clean name", "llama-3-8b.Q4_K_M.gguf", true},
		{"uppercase ext", "MODEL.GGUF", true},
		{"query artifact", "model.gguf?download=true", false},
		{"ampersand", "model&x.gguf", false},
		{"equals", "model=1.gguf", false},
		{"hash", "model#1.gguf", false},
		{"wrong ext", "model.bin", false},
		{"no ext", "model", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidFilename(tt.input); got != tt.want {
				t.Errorf("ValidFilename(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
