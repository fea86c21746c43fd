package types

import (
	"fmt"
	"time"
)

// Document is a single corpus record as handed to the engine by the
// ingestion collaborator. Documents are immutable after ingestion: the
// engine assigns the ID, computes TokenCount once, and never mutates
// the record afterwards.
type Document struct {
	// ID is assigned at ingestion, monotonically increasing from 0.
	// All engine-internal structures (signatures, buckets, union-find)
	// are keyed by this id.
	ID int `json:"id"`

	// Text is the raw document text.
	Text string `json:"text"`

	// Source identifies where the document came from (e.g. "wikipedia", "web")
	Source string `json:"source,omitempty"`

	// Lang is the document language code
	Lang string `json:"lang,omitempty"`

	// Domain is the corpus domain used for per-domain reduction reporting
	Domain string `json:"domain,omitempty"`

	// TokenCount is the whitespace token count, computed once at ingestion.
	// Representative selection uses it as the primary sort key.
	TokenCount int `json:"token_count"`
}

// DedupDecision is the terminal, immutable per-document verdict.
type DedupDecision struct {
	// ID is the document this decision applies to
	ID int `json:"id"`

	// Kept is true if the document survives deduplication
	// (unique, or chosen as its cluster's representative)
	Kept bool `json:"kept"`

	// RepresentativeID is the id of the surviving cluster member.
	// For kept documents it equals ID; for removed documents it points
	// at the document that replaced this one.
	RepresentativeID int `json:"representative_id"`

	// Similarity is the estimated similarity to the representative.
	// 1.0 for the representative itself and for unique documents.
	Similarity float64 `json:"similarity"`
}

// Validate checks that the decision is internally consistent
func (d *DedupDecision) Validate() error {
	if d.ID < 0 {
		return fmt.Errorf("decision id cannot be negative (got %d)", d.ID)
	}
	if d.Kept && d.RepresentativeID != d.ID {
		return fmt.Errorf("kept document %d must be its own representative (got %d)",
			d.ID, d.RepresentativeID)
	}
	if !d.Kept && d.RepresentativeID == d.ID {
		return fmt.Errorf("removed document %d cannot be its own representative", d.ID)
	}
	if d.Similarity < 0.0 || d.Similarity > 1.0 {
		return fmt.Errorf("similarity must be between 0.0 and 1.0 (got %.4f)", d.Similarity)
	}
	return nil
}

// DuplicatePair is one confirmed near-duplicate edge, retained in the
// report as a bounded inspection sample.
type DuplicatePair struct {
	A          int     `json:"a"`
	B          int     `json:"b"`
	Similarity float64 `json:"similarity"`
}

// DomainReduction summarizes deduplication impact for one corpus domain.
type DomainReduction struct {
	InputCount   int     `json:"input_count"`
	RemovedCount int     `json:"removed_count"`
	Rate         float64 `json:"rate"`
}

// Report is the run summary emitted after FINALIZING completes.
// Counts follow the original pipeline's stats block: input, removed,
// multi-member cluster count, and overall reduction rate.
type Report struct {
	// RunID uniquely identifies this engine run
	RunID string `json:"run_id"`

	// InputCount is the number of documents ingested
	InputCount int `json:"input_count"`

	// KeptCount is the number of documents that survived
	KeptCount int `json:"kept_count"`

	// DuplicateCount is the number of documents removed as near-duplicates
	DuplicateCount int `json:"duplicate_count"`

	// ClusterCount is the number of clusters with more than one member
	ClusterCount int `json:"cluster_count"`

	// DeduplicationRate is DuplicateCount / InputCount (0 when the input is empty)
	DeduplicationRate float64 `json:"deduplication_rate"`

	// CandidateCount is the number of candidate pairs the LSH index produced
	CandidateCount int `json:"candidate_count"`

	// ConfirmedCount is the number of candidate pairs the verifier confirmed
	ConfirmedCount int `json:"confirmed_count"`

	// OverflowSkips counts bucket-cap exclusions. Each increment is one
	// document excluded from comparisons in one bucket; non-fatal.
	OverflowSkips int `json:"overflow_skips"`

	// PerDomain breaks down input/removed counts by document domain
	PerDomain map[string]DomainReduction `json:"per_domain"`

	// SamplePairs is a bounded sample of confirmed duplicate pairs for inspection
	SamplePairs []DuplicatePair `json:"sample_pairs,omitempty"`

	// Duration is the wall-clock time of the run
	Duration time.Duration `json:"duration"`
}

// Validate checks internal consistency of the report counts
func (r *Report) Validate() error {
	if r.InputCount < 0 || r.KeptCount < 0 || r.DuplicateCount < 0 {
		return fmt.Errorf("report counts cannot be negative (input=%d kept=%d duplicates=%d)",
			r.InputCount, r.KeptCount, r.DuplicateCount)
	}
	if r.KeptCount+r.DuplicateCount != r.InputCount {
		return fmt.Errorf("kept (%d) + duplicates (%d) must equal input (%d)",
			r.KeptCount, r.DuplicateCount, r.InputCount)
	}
	if r.ClusterCount > r.DuplicateCount {
		return fmt.Errorf("cluster_count (%d) cannot exceed duplicate_count (%d): "+
			"every multi-member cluster removes at least one document",
			r.ClusterCount, r.DuplicateCount)
	}
	for domain, dr := range r.PerDomain {
		if dr.RemovedCount > dr.InputCount {
			return fmt.Errorf("domain %q removed (%d) exceeds input (%d)",
				domain, dr.RemovedCount, dr.InputCount)
		}
	}
	return nil
}
