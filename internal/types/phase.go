package types

// RunPhase is the Dedup Driver's state machine position.
//
// Phases advance strictly in order:
//
//	INGESTING → INDEXING → VERIFYING → CLUSTERING → FINALIZING → DONE
//
// PhaseFailed is reachable only from PhaseIngesting, and only for
// configuration errors detected before any state mutation begins.
// Per-document anomalies never change the phase.
type RunPhase string

const (
	// PhaseIngesting pulls validated documents from the ingestion
	// collaborator, assigns ids, and computes tokens and signatures
	PhaseIngesting RunPhase = "ingesting"

	// PhaseIndexing inserts every signature into the LSH index
	PhaseIndexing RunPhase = "indexing"

	// PhaseVerifying drains candidate pairs through the similarity verifier
	PhaseVerifying RunPhase = "verifying"

	// PhaseClustering folds confirmed edges into the union-find structure
	PhaseClustering RunPhase = "clustering"

	// PhaseFinalizing selects representatives and emits decisions and the report
	PhaseFinalizing RunPhase = "finalizing"

	// PhaseDone is the terminal success state
	PhaseDone RunPhase = "done"

	// PhaseFailed is the terminal failure state for config rejection
	PhaseFailed RunPhase = "failed"
)

// IsValid checks if the phase value is valid
func (p RunPhase) IsValid() bool {
	switch p {
	case PhaseIngesting, PhaseIndexing, PhaseVerifying,
		PhaseClustering, PhaseFinalizing, PhaseDone, PhaseFailed:
		return true
	}
	return false
}

// IsTerminal returns true for the two terminal states
func (p RunPhase) IsTerminal() bool {
	return p == PhaseDone || p == PhaseFailed
}
