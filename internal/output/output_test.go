package output

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/yunmindata/dedupe/internal/types"
)

func TestKeptWriterCommit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kept.jsonl")

	w, err := NewKeptWriter(path)
	if err != nil {
		t.Fatalf("NewKeptWriter() error = %v", err)
	}

	docs := []*types.Document{
		{ID: 0, Text: "first", Domain: "news", TokenCount: 1},
		{ID: 2, Text: "third", Domain: "web", TokenCount: 1},
	}
	for _, doc := range docs {
		if err := w.Write(doc); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}

	// Nothing visible at the final path until Commit
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("kept stream visible before Commit()")
	}

	if err := w.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open committed stream: %v", err)
	}
	defer f.Close()

	var got []types.Document
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var doc types.Document
		if err := json.Unmarshal(scanner.Bytes(), &doc); err != nil {
			t.Fatalf("bad JSONL line: %v", err)
		}
		got = append(got, doc)
	}
	if len(got) != 2 || got[0].ID != 0 || got[1].ID != 2 {
		t.Errorf("committed stream = %+v", got)
	}
}

func TestKeptWriterAbort(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kept.jsonl")

	w, err := NewKeptWriter(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Write(&types.Document{ID: 0, Text: "doc"}); err != nil {
		t.Fatal(err)
	}
	w.Abort()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("directory not empty after Abort(): %v", entries)
	}
}

func TestWriteReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")

	report := &types.Report{
		RunID:          "run-1",
		InputCount:     10,
		KeptCount:      8,
		DuplicateCount: 2,
		ClusterCount:   1,
		PerDomain: map[string]types.DomainReduction{
			"news": {InputCount: 10, RemovedCount: 2, Rate: 0.2},
		},
	}
	if err := WriteReport(path, report); err != nil {
		t.Fatalf("WriteReport() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var got types.Report
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("report not valid JSON: %v", err)
	}
	if got.InputCount != 10 || got.DuplicateCount != 2 {
		t.Errorf("round-tripped report = %+v", got)
	}
	if got.PerDomain["news"].RemovedCount != 2 {
		t.Errorf("per-domain block = %+v", got.PerDomain)
	}
}
