package orchestrator

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Purpose tags which feature produced an AI output; the cache is partitioned
// by it.
type Purpose string

const (
	PurposeParseJob       Purpose = "parse_job"
	PurposeExtractProfile Purpose = "extract_profile"
	PurposeExtractSkills  Purpose = "extract_skills"
	PurposeGenResume      Purpose = "generate_resume"
	PurposeGenCoverLetter Purpose = "generate_cover_letter"
	PurposeRewriteText    Purpose = "rewrite_text"
	PurposeGenSummary     Purpose = "generate_summary"
)

// Options are the output-affecting knobs of a task invocation. They feed the
// fingerprint; anything that does not change the output (API keys, provider
// choice) must stay out so cache hits survive safe settings changes.
type Options struct {
	Tone        string  `json:"tone,omitempty"`
	Language    string  `json:"language,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

// chunkable reports whether oversized input for this purpose is split into
// chunks instead of truncated. Extraction across a long document benefits
// from seeing all of it; rewrite and document generation do not.
func (p Purpose) chunkable() bool {
	switch p {
	case PurposeParseJob, PurposeExtractProfile, PurposeExtractSkills, PurposeGenSummary:
		return true
	}
	return false
}

// summaryStyle reports whether chunk merge keeps only the first successful
// chunk's scalar output (summaries are not concatenated).
func (p Purpose) summaryStyle() bool {
	return p == PurposeGenSummary
}

// ttl returns how long cached outputs of this purpose stay fresh.
func (p Purpose) ttl() time.Duration {
	switch p {
	case PurposeParseJob, PurposeExtractProfile, PurposeExtractSkills:
		return 30 * 24 * time.Hour
	case PurposeGenResume, PurposeGenCoverLetter:
		return 7 * 24 * time.Hour
	default:
		return 14 * 24 * time.Hour
	}
}

var whitespaceRun = regexp.MustCompile(`[ \t]+`)

// normalizeInput canonicalizes the task input before fingerprinting so
// cosmetic whitespace differences do not defeat the cache.
func normalizeInput(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = whitespaceRun.ReplaceAllString(text, " ")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// Fingerprint derives the cache key from purpose, normalized input and the
// output-affecting options. Deterministic: Options marshals with fixed field
// order.
func Fingerprint(purpose Purpose, input string, opts Options) string {
	optsJSON, _ := json.Marshal(opts)
	h := sha256.New()
	h.Write([]byte(purpose))
	h.Write([]byte{0})
	h.Write([]byte(normalizeInput(input)))
	h.Write([]byte{0})
	h.Write(optsJSON)
	return fmt.Sprintf("%x", h.Sum(nil))
}
