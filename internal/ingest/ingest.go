// Package ingest supplies validated document records to the engine.
//
// The engine core never sees raw input: this package plays the
// validation collaborator's role, decoding JSONL, rejecting malformed
// records, and counting rejects. Only valid records cross into the
// driver, which assigns ids and token counts.
package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Record is one validated input document, before the driver assigns an id.
type Record struct {
	Text   string `json:"text"`
	Source string `json:"source,omitempty"`
	Lang   string `json:"lang,omitempty"`
	Domain string `json:"domain,omitempty"`
}

// Source is an ordered stream of validated records. Next returns io.EOF
// when the stream is drained.
type Source interface {
	Next(ctx context.Context) (*Record, error)
}

// SliceSource serves records from memory; used by tests and by
// idempotence re-runs over a previous kept-output.
type SliceSource struct {
	records []Record
	pos     int
}

// NewSliceSource creates a Source over the given records.
func NewSliceSource(records []Record) *SliceSource {
	return &SliceSource{records: records}
}

// Next returns the next record or io.EOF.
func (s *SliceSource) Next(ctx context.Context) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.records) {
		return nil, io.EOF
	}
	r := &s.records[s.pos]
	s.pos++
	return r, nil
}

// JSONLSource streams records from JSONL input, one JSON object per
// line. Blank lines are skipped; lines that fail to parse or carry no
// text are rejected and counted, never surfaced to the engine.
type JSONLSource struct {
	scanner  *bufio.Scanner
	line     int
	rejected int
}

// maxLineBytes bounds a single JSONL line (64 MiB); corpus documents
// larger than this are rejected upstream of the core.
const maxLineBytes = 64 << 20

// NewJSONLSource creates a Source reading JSONL from r.
func NewJSONLSource(r io.Reader) *JSONLSource {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	return &JSONLSource{scanner: scanner}
}

// Next returns the next valid record, skipping and counting malformed
// lines. Returns io.EOF when input is exhausted.
func (s *JSONLSource) Next(ctx context.Context) (*Record, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return nil, fmt.Errorf("failed to read input line %d: %w", s.line+1, err)
			}
			return nil, io.EOF
		}
		s.line++

		line := strings.TrimSpace(s.scanner.Text())
		if line == "" {
			continue
		}

		var rec Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			s.rejected++
			continue
		}
		if strings.TrimSpace(rec.Text) == "" {
			s.rejected++
			continue
		}
		return &rec, nil
	}
}

// Rejected returns the number of malformed lines skipped so far.
func (s *JSONLSource) Rejected() int {
	return s.rejected
}
