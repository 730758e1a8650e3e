// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"
)

// fireRecord mirrors the shape of a fire log record: cbor tags only.
type fireRecord struct {
	Sequence uint64 `cbor:"seq"`
	Tick     uint64 `cbor:"tick"`
	LateNS   int64  `cbor:"late_ns,omitempty"`
}

// counterReport mirrors a stats snapshot: json tags serve both formats.
type counterReport struct {
	Started uint64 `json:"started"`
	Fired   uint64 `json:"fired"`
}

// textDuration is a TextMarshaler in the style of config.Duration.
type textDuration time.Duration

func (d textDuration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *textDuration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	*d = textDuration(parsed)
	return err
}

func TestMarshalDeterministic(t *testing.T) {
	// Map iteration order is random; the encoding must not be.
	value := map[string]uint64{"tick": 9, "fired": 3, "armed": 1, "cancelled": 4}

	first, err := Marshal(value)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for range 20 {
		again, err := Marshal(value)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("deterministic encoding violated: %x != %x", first, again)
		}
	}
}

func TestStreamSequence(t *testing.T) {
	records := []fireRecord{
		{Sequence: 0, Tick: 1},
		{Sequence: 1, Tick: 2, LateNS: 150},
		{Sequence: 2, Tick: 500},
	}

	var buffer bytes.Buffer
	encoder := NewEncoder(&buffer)
	for _, record := range records {
		if err := encoder.Encode(record); err != nil {
			t.Fatalf("Encode: %v", err)
		}
	}

	decoder := NewDecoder(&buffer)
	for i, want := range records {
		var got fireRecord
		if err := decoder.Decode(&got); err != nil {
			t.Fatalf("Decode record %d: %v", i, err)
		}
		if got != want {
			t.Errorf("record %d: got %+v, want %+v", i, got, want)
		}
	}
	var extra fireRecord
	if err := decoder.Decode(&extra); !errors.Is(err, io.EOF) {
		t.Errorf("Decode past the end: got %v, want io.EOF", err)
	}
}

func TestJSONTagFallback(t *testing.T) {
	data, err := Marshal(counterReport{Started: 10, Fired: 7})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var generic any
	if err := Unmarshal(data, &generic); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	fields, ok := generic.(map[string]any)
	if !ok {
		t.Fatalf("decoded %T, want map[string]any", generic)
	}
	if fields["started"] != uint64(10) || fields["fired"] != uint64(7) {
		t.Errorf("json tag names not used as keys: %v", fields)
	}
}

func TestTextMarshalerAsString(t *testing.T) {
	type settings struct {
		Precision textDuration `cbor:"precision"`
	}

	data, err := Marshal(settings{Precision: textDuration(10 * time.Millisecond)})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var generic map[string]any
	if err := Unmarshal(data, &generic); err != nil {
		t.Fatalf("Unmarshal generic: %v", err)
	}
	if generic["precision"] != "10ms" {
		t.Errorf("precision encoded as %#v, want text string \"10ms\"", generic["precision"])
	}

	var decoded settings
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if time.Duration(decoded.Precision) != 10*time.Millisecond {
		t.Errorf("precision decoded as %v", time.Duration(decoded.Precision))
	}
}

func TestUnmarshalInvalidCBOR(t *testing.T) {
	var record fireRecord
	if err := Unmarshal([]byte{0xFF, 0xFE, 0xFD}, &record); err == nil {
		t.Error("Unmarshal should reject invalid CBOR")
	}
}

func BenchmarkEncodeRecord(b *testing.B) {
	encoder := NewEncoder(io.Discard)
	record := fireRecord{Sequence: 42, Tick: 16645, LateNS: 312}

	b.ReportAllocs()
	for b.Loop() {
		encoder.Encode(record)
	}
}
