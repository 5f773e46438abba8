package metadata

import (
	"encoding/json"
	"testing"
	"time"
)

func decoded(t *testing.T, text string) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(text), &m); err != nil {
		t.Fatalf("merged text is not valid JSON: %v\ntext: %s", err, text)
	}
	return m
}

func TestMergeNoCallerMetadataProducesMinimalObject(t *testing.T) {
	out, err := Merge("", DecoderFields{
		DecoderSource:     "p25-ingest",
		InputFile:         "capture.bin",
		P25Frames:         42,
		VoiceFrames:       18,
		CallLengthSeconds: 4.5,
		AudioType:         "digital",
		NAC:               0x293,
		Encrypted:         true,
	})
	if err != nil {
		t.Fatal(err)
	}
	m := decoded(t, out)
	if len(m) != 8 {
		t.Fatalf("minimal object has %d keys, want 8: %v", len(m), m)
	}
	if m["decoder_source"] != "p25-ingest" || m["input_file"] != "capture.bin" {
		t.Fatalf("unexpected fields: %v", m)
	}
	if m["audio_type"] != "digital" || m["nac"].(float64) != float64(0x293) {
		t.Fatalf("unexpected minimal-case fields: %v", m)
	}
	if m["encrypted"].(float64) != 1 {
		t.Fatalf("encrypted = %v, want 1", m["encrypted"])
	}
}

func TestMergePreservesCallerFieldsAndAppendsDecoderFields(t *testing.T) {
	caller := `{"talkgroup": 101, "system": "county-1"}`
	out, err := Merge(caller, DecoderFields{
		DecoderSource: "p25-ingest",
		InputFile:     "capture.bin",
		P25Frames:     10,
		VoiceFrames:   4,
	})
	if err != nil {
		t.Fatal(err)
	}
	m := decoded(t, out)
	if m["talkgroup"].(float64) != 101 || m["system"] != "county-1" {
		t.Fatalf("caller fields not preserved: %v", m)
	}
	if m["decoder_source"] != "p25-ingest" || m["p25_frames"].(float64) != 10 {
		t.Fatalf("decoder fields not appended: %v", m)
	}
}

func TestMergeTolerantOfTrailingCommaAndWhitespace(t *testing.T) {
	caller := "{\"talkgroup\": 101,  }  \n"
	out, err := Merge(caller, DecoderFields{DecoderSource: "x", InputFile: "y", P25Frames: 1, VoiceFrames: 1})
	if err != nil {
		t.Fatal(err)
	}
	m := decoded(t, out)
	if m["talkgroup"].(float64) != 101 {
		t.Fatalf("talkgroup not preserved: %v", m)
	}
}

func TestMergeEmptyCallerObjectStillCountsAsCallerPresent(t *testing.T) {
	// "{}" is caller metadata that happens to be empty, not the
	// "no caller metadata" case — only the always-appended four fields
	// are added, not the minimal-case extras.
	out, err := Merge("{}", DecoderFields{DecoderSource: "x", InputFile: "y", P25Frames: 0, VoiceFrames: 0})
	if err != nil {
		t.Fatal(err)
	}
	m := decoded(t, out)
	if len(m) != 4 {
		t.Fatalf("expected 4 decoder fields only, got: %v", m)
	}
}

func TestMergeRejectsMalformedCallerJSON(t *testing.T) {
	_, err := Merge(`{"talkgroup": 101`, DecoderFields{})
	if err == nil {
		t.Fatal("expected an error for caller JSON missing its closing brace")
	}
}

func TestMergeNeverOverwritesCallerField(t *testing.T) {
	caller := `{"decoder_source": "caller-claimed-source"}`
	out, err := Merge(caller, DecoderFields{DecoderSource: "real-source", InputFile: "f", P25Frames: 1, VoiceFrames: 1})
	if err != nil {
		t.Fatal(err)
	}
	// The merged text now contains two "decoder_source" keys; JSON
	// semantics say the last one wins on decode, but Merge itself must
	// not have dropped or rewritten the caller's original key — verify
	// both appear in the raw text.
	if count := countOccurrences(out, "decoder_source"); count != 2 {
		t.Fatalf("expected both the caller's and decoder's decoder_source keys in the text, got %d occurrences: %s", count, out)
	}
}

func TestDatedFieldsExtractsShortNameAndStartTime(t *testing.T) {
	caller := `{"short_name": "king_county", "start_time": 1767312000, "talkgroup": 5}`
	name, start, ok := DatedFields(caller)
	if !ok {
		t.Fatal("expected hasDated = true")
	}
	if name != "king_county" {
		t.Fatalf("short_name = %q, want king_county", name)
	}
	want := time.Unix(1767312000, 0).UTC()
	if !start.Equal(want) {
		t.Fatalf("start_time = %v, want %v", start, want)
	}
}

func TestDatedFieldsFalseWhenEitherFieldMissing(t *testing.T) {
	if _, _, ok := DatedFields(`{"short_name": "king_county"}`); ok {
		t.Fatal("expected hasDated = false without start_time")
	}
	if _, _, ok := DatedFields(`{"start_time": 1767312000}`); ok {
		t.Fatal("expected hasDated = false without short_name")
	}
}

func TestDatedFieldsFalseOnEmptyOrMalformedCallerJSON(t *testing.T) {
	if _, _, ok := DatedFields(""); ok {
		t.Fatal("expected hasDated = false for empty caller JSON")
	}
	if _, _, ok := DatedFields(`{"short_name": "x", "start_time":`); ok {
		t.Fatal("expected hasDated = false for malformed JSON")
	}
}

func TestDatedFieldsIgnoresSubstringLookalikes(t *testing.T) {
	// A key that merely contains "short_name"/"start_time" as a
	// substring must not satisfy the real-parser extraction.
	caller := `{"not_short_name_really": "x", "also_not_start_time": 5}`
	if _, _, ok := DatedFields(caller); ok {
		t.Fatal("expected hasDated = false when the real keys are absent")
	}
}

func TestMergeAppendsOriginCountryWhenSet(t *testing.T) {
	out, err := Merge("", DecoderFields{DecoderSource: "x", InputFile: "y", OriginCountry: "United States", OriginCountryCode: "US"})
	if err != nil {
		t.Fatal(err)
	}
	m := decoded(t, out)
	if m["origin_country"] != "United States" || m["origin_country_code"] != "US" {
		t.Fatalf("origin fields missing or wrong: %v", m)
	}
}

func TestMergeOmitsOriginCountryWhenUnset(t *testing.T) {
	out, err := Merge("", DecoderFields{DecoderSource: "x", InputFile: "y"})
	if err != nil {
		t.Fatal(err)
	}
	m := decoded(t, out)
	if _, ok := m["origin_country"]; ok {
		t.Fatalf("origin_country should be omitted: %v", m)
	}
}

func TestHasKeyDetectsTopLevelField(t *testing.T) {
	if !HasKey(`{"origin_country": "France"}`, "origin_country") {
		t.Fatal("expected HasKey = true")
	}
	if HasKey(`{"other": 1}`, "origin_country") {
		t.Fatal("expected HasKey = false when absent")
	}
	if HasKey("", "origin_country") {
		t.Fatal("expected HasKey = false for empty caller JSON")
	}
	if HasKey(`{"origin_country":`, "origin_country") {
		t.Fatal("expected HasKey = false for malformed JSON")
	}
}

func countOccurrences(s, substr string) int {
	count := 0
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			count++
		}
	}
	return count
}
