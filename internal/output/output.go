// Package output writes the kept-document stream and the run report.
//
// Output is atomic: both files are staged under temporary names and
// renamed into place only after FINALIZING completes, so a failed run
// never leaves a partial or inconsistent kept-stream behind.
package output

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/yunmindata/dedupe/internal/types"
)

// KeptWriter stages kept documents as JSONL and commits them in one
// rename. Write order is the caller's order; the engine feeds it kept
// documents in input order.
type KeptWriter struct {
	path string
	tmp  *os.File
	buf  *bufio.Writer
}

// NewKeptWriter stages a kept-stream for path.
func NewKeptWriter(path string) (*KeptWriter, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create staging file: %w", err)
	}
	return &KeptWriter{
		path: path,
		tmp:  tmp,
		buf:  bufio.NewWriter(tmp),
	}, nil
}

// Write appends one kept document as a JSONL line.
func (w *KeptWriter) Write(doc *types.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document %d: %w", doc.ID, err)
	}
	if _, err := w.buf.Write(data); err != nil {
		return fmt.Errorf("failed to write document %d: %w", doc.ID, err)
	}
	if err := w.buf.WriteByte('\n'); err != nil {
		return fmt.Errorf("failed to write document %d: %w", doc.ID, err)
	}
	return nil
}

// Commit flushes the staged stream and renames it into place.
func (w *KeptWriter) Commit() error {
	if err := w.buf.Flush(); err != nil {
		w.Abort()
		return fmt.Errorf("failed to flush kept stream: %w", err)
	}
	if err := w.tmp.Close(); err != nil {
		os.Remove(w.tmp.Name())
		return fmt.Errorf("failed to close staging file: %w", err)
	}
	if err := os.Rename(w.tmp.Name(), w.path); err != nil {
		os.Remove(w.tmp.Name())
		return fmt.Errorf("failed to commit kept stream: %w", err)
	}
	return nil
}

// Abort discards the staged stream. Safe to call after a failed Commit.
func (w *KeptWriter) Abort() {
	w.tmp.Close()
	os.Remove(w.tmp.Name())
}

// WriteReport writes the run report as indented JSON, atomically.
func WriteReport(path string, report *types.Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create report staging file: %w", err)
	}
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close report staging file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to commit report: %w", err)
	}
	return nil
}
