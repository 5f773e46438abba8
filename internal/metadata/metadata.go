// Package metadata merges caller-supplied call metadata with the
// fields the decoder pipeline computes from a capture, producing the
// JSON sidecar text written alongside each call's audio.
package metadata

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DecoderFields are the values the pipeline appends to whatever the
// caller supplied. Caller metadata is treated as ground truth and is
// never overwritten — these fields are only ever appended, never
// substituted into an existing key.
//
// DecoderSource, InputFile, P25Frames, and VoiceFrames are appended
// in every case. CallLengthSeconds, AudioType, NAC, and Encrypted are
// only appended when there is no caller metadata at all (the minimal
// object case) — when caller metadata is present it is assumed to
// already carry the authoritative call timing and channel identity.
type DecoderFields struct {
	DecoderSource string
	InputFile     string
	P25Frames     int
	VoiceFrames   int

	CallLengthSeconds float64
	AudioType         string
	NAC               int
	Encrypted         bool

	// OriginCountry and OriginCountryCode are set only when a GeoIP
	// lookup succeeded and the caller did not already supply an
	// origin_country field; empty means omit.
	OriginCountry     string
	OriginCountryCode string
}

// Merge combines callerJSON (opaque text the caller supplied, or
// empty if none was supplied) with fields, returning the final
// sidecar text.
//
// If callerJSON is present, it is parsed leniently: trailing
// whitespace and a trailing comma before the closing brace are
// tolerated. The closing brace is stripped, the always-appended
// decoder fields are appended, and the object is re-closed. If
// callerJSON is absent, the result is a minimal object containing the
// decoder fields plus the call-timing fields a caller would otherwise
// have supplied.
func Merge(callerJSON string, fields DecoderFields) (string, error) {
	if strings.TrimSpace(callerJSON) == "" {
		return minimalObject(fields), nil
	}

	body, err := stripTrailingBrace(callerJSON)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(body)
	if needsComma(body) {
		b.WriteString(",")
	}
	b.WriteString(decoderFieldsJSON(fields))
	b.WriteString("}")
	return b.String(), nil
}

// stripTrailingBrace trims trailing whitespace, tolerates one
// trailing comma immediately before the closing `}`, and returns the
// text with that `}` removed.
func stripTrailingBrace(s string) (string, error) {
	trimmed := strings.TrimRight(s, " \t\r\n")
	if !strings.HasSuffix(trimmed, "}") {
		return "", fmt.Errorf("metadata: caller JSON does not end in '}': %q", s)
	}
	body := trimmed[:len(trimmed)-1]
	body = strings.TrimRight(body, " \t\r\n")
	body = strings.TrimSuffix(body, ",")
	return body, nil
}

// needsComma reports whether body (the caller object with its
// closing brace already stripped) has any fields, in which case the
// appended decoder fields need a separating comma.
func needsComma(body string) bool {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(body), "{")) != ""
}

func minimalObject(fields DecoderFields) string {
	extra := strings.Join([]string{
		jsonFloat("call_length", fields.CallLengthSeconds),
		jsonString("audio_type", fields.AudioType),
		jsonInt("nac", fields.NAC),
		jsonBool("encrypted", fields.Encrypted),
	}, ",")
	return "{" + decoderFieldsJSON(fields) + "," + extra + "}"
}

func decoderFieldsJSON(fields DecoderFields) string {
	parts := []string{
		jsonString("decoder_source", fields.DecoderSource),
		jsonString("input_file", fields.InputFile),
		jsonInt("p25_frames", fields.P25Frames),
		jsonInt("voice_frames", fields.VoiceFrames),
	}
	if fields.OriginCountry != "" {
		parts = append(parts, jsonString("origin_country", fields.OriginCountry))
	}
	if fields.OriginCountryCode != "" {
		parts = append(parts, jsonString("origin_country_code", fields.OriginCountryCode))
	}
	return strings.Join(parts, ",")
}

// HasKey reports whether callerJSON, parsed as a JSON object, already
// has a top-level field named key. Used to decide whether an
// ambient-enrichment field (origin_country and the like) would
// collide with a caller-supplied value, since Merge itself never
// overwrites — the decision to omit happens before Merge is called.
func HasKey(callerJSON, key string) bool {
	if strings.TrimSpace(callerJSON) == "" {
		return false
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(callerJSON), &obj); err != nil {
		return false
	}
	_, ok := obj[key]
	return ok
}

func jsonString(key, value string) string {
	return fmt.Sprintf("%q:%q", key, value)
}

func jsonInt(key string, value int) string {
	return fmt.Sprintf("%q:%s", key, strconv.Itoa(value))
}

func jsonFloat(key string, value float64) string {
	return fmt.Sprintf("%q:%s", key, strconv.FormatFloat(value, 'f', -1, 64))
}

func jsonBool(key string, value bool) string {
	v := "0"
	if value {
		v = "1"
	}
	return fmt.Sprintf("%q:%s", key, v)
}

// DatedFields extracts short_name and start_time from callerJSON,
// using encoding/json rather than substring search (a malformed or
// merely similar-looking key elsewhere in the object must never be
// mistaken for these fields). hasDated is true only when both fields
// are present and well-typed: short_name a non-empty string,
// start_time a Unix-seconds number.
func DatedFields(callerJSON string) (shortName string, startTime time.Time, hasDated bool) {
	if strings.TrimSpace(callerJSON) == "" {
		return "", time.Time{}, false
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(callerJSON), &obj); err != nil {
		return "", time.Time{}, false
	}

	rawName, ok := obj["short_name"]
	if !ok {
		return "", time.Time{}, false
	}
	if err := json.Unmarshal(rawName, &shortName); err != nil || shortName == "" {
		return "", time.Time{}, false
	}

	rawStart, ok := obj["start_time"]
	if !ok {
		return "", time.Time{}, false
	}
	var unixSeconds float64
	if err := json.Unmarshal(rawStart, &unixSeconds); err != nil {
		return "", time.Time{}, false
	}

	return shortName, time.Unix(int64(unixSeconds), 0).UTC(), true
}
