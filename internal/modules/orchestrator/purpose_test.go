package orchestrator

import "testing"

func TestFingerprintStability(t *testing.T) {
	a := Fingerprint(PurposeParseJob, "Senior Go Developer\nRemote", Options{})
	b := Fingerprint(PurposeParseJob, "Senior Go Developer\nRemote", Options{})
	if a != b {
		t.Error("identical inputs must fingerprint identically")
	}
	if len(a) != 64 {
		t.Errorf("fingerprint length = %d, want 64 hex chars", len(a))
	}
}

func TestFingerprintNormalizesWhitespace(t *testing.T) {
	a := Fingerprint(PurposeParseJob, "Senior  Go Developer \r\n Remote", Options{})
	b := Fingerprint(PurposeParseJob, "Senior Go Developer\nRemote", Options{})
	if a != b {
		t.Error("cosmetic whitespace differences should not change the fingerprint")
	}
}

func TestFingerprintDiscriminates(t *testing.T) {
	base := Fingerprint(PurposeParseJob, "some posting", Options{})

	if got := Fingerprint(PurposeExtractSkills, "some posting", Options{}); got == base {
		t.Error("purpose must be part of the fingerprint")
	}
	if got := Fingerprint(PurposeParseJob, "another posting", Options{}); got == base {
		t.Error("input must be part of the fingerprint")
	}
	if got := Fingerprint(PurposeParseJob, "some posting", Options{Tone: "casual"}); got == base {
		t.Error("options must be part of the fingerprint")
	}
}

func TestParsePurpose(t *testing.T) {
	if _, err := ParsePurpose("parse_job"); err != nil {
		t.Errorf("parse_job should be valid: %v", err)
	}
	if _, err := ParsePurpose("make_coffee"); err == nil {
		t.Error("unknown purpose should be rejected")
	}
}
