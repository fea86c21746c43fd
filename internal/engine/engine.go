// Package engine implements the deduplication driver: a phased state
// machine that takes a validated document stream to a set of terminal
// per-document decisions and a run report.
//
// Phases run strictly in order (INGESTING, INDEXING, VERIFYING,
// CLUSTERING, FINALIZING) with a barrier between each. All shared
// mutable state (the LSH buckets, the union-find arena) is confined to
// a single phase, so no fine-grained locking is needed anywhere:
// ingestion workers only write their own results, indexing is owned
// per band, and clustering is one single-threaded fold bounded by edge
// count. A run with identical input order and configuration produces
// identical decisions for any worker count.
package engine

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/yunmindata/dedupe/internal/cluster"
	"github.com/yunmindata/dedupe/internal/config"
	"github.com/yunmindata/dedupe/internal/events"
	"github.com/yunmindata/dedupe/internal/ingest"
	"github.com/yunmindata/dedupe/internal/lsh"
	"github.com/yunmindata/dedupe/internal/minhash"
	"github.com/yunmindata/dedupe/internal/tokenize"
	"github.com/yunmindata/dedupe/internal/types"
)

// Engine runs deduplication over a document stream. One Engine value
// serves one run; construct a new one per run.
type Engine struct {
	cfg   config.Config
	sink  events.Sink
	runID string
}

// Option configures an Engine.
type Option func(*Engine)

// WithEventSink attaches an observability sink. Sink failures are
// logged and ignored; events never affect run outcomes.
func WithEventSink(sink events.Sink) Option {
	return func(e *Engine) {
		e.sink = sink
	}
}

// New creates an Engine for one run. The configuration is validated
// here, before INGESTING can begin: an invalid config is the only
// path to a failed run that has done no work.
func New(cfg config.Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration rejected: %w", err)
	}
	e := &Engine{
		cfg:   cfg,
		runID: uuid.New().String(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// RunID returns the unique id assigned to this run.
func (e *Engine) RunID() string {
	return e.runID
}

// Result is the committed outcome of a run.
type Result struct {
	// Documents holds every ingested document, indexed by id
	Documents []*types.Document

	// Decisions holds the terminal per-document verdicts, indexed by id
	Decisions []types.DedupDecision

	// Report is the run summary
	Report *types.Report
}

// KeptDocuments returns the kept subsequence in input order.
func (r *Result) KeptDocuments() []*types.Document {
	kept := make([]*types.Document, 0, r.Report.KeptCount)
	for _, doc := range r.Documents {
		if r.Decisions[doc.ID].Kept {
			kept = append(kept, doc)
		}
	}
	return kept
}

// edge is one confirmed near-duplicate pair.
type edge struct {
	a   int
	b   int
	sim float64
}

// Run executes the full state machine over source and returns the
// decisions and report. Per-document anomalies (bucket overflow) are
// counted and reported, never fatal; the only errors are config
// rejection (caught in New), source failures, context cancellation,
// and internal invariant violations.
func (e *Engine) Run(ctx context.Context, source ingest.Source) (*Result, error) {
	start := time.Now()
	e.emit(ctx, events.EventTypeRunStarted, events.SeverityInfo,
		fmt.Sprintf("deduplication run started: %s", e.cfg),
		map[string]interface{}{"config": e.cfg.String()})

	// INGESTING
	docs, sigs, err := e.ingest(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("ingestion failed: %w", err)
	}
	e.phaseDone(ctx, types.PhaseIngesting, map[string]interface{}{"documents": len(docs)})

	// INDEXING
	idx := lsh.New(e.cfg.Bands, e.cfg.Rows, e.cfg.BucketCap)
	if err := idx.InsertAll(ctx, sigs); err != nil {
		return nil, fmt.Errorf("indexing failed: %w", err)
	}
	overflowSkips := idx.OverflowSkips()
	if overflowSkips > 0 {
		log.Printf("bucket cap reached: %d comparison exclusions", overflowSkips)
		e.emit(ctx, events.EventTypeBucketOverflow, events.SeverityWarning,
			fmt.Sprintf("%d documents excluded from overfull buckets", overflowSkips),
			map[string]interface{}{"overflow_skips": overflowSkips})
	}
	e.phaseDone(ctx, types.PhaseIndexing, map[string]interface{}{
		"overflow_skips": overflowSkips,
	})

	// VERIFYING
	pairs := idx.Candidates()
	idx.Reset() // bucket state does not outlive candidate emission
	edges, err := e.verify(ctx, pairs, sigs)
	if err != nil {
		return nil, fmt.Errorf("verification failed: %w", err)
	}
	e.phaseDone(ctx, types.PhaseVerifying, map[string]interface{}{
		"candidates": len(pairs),
		"confirmed":  len(edges),
	})

	// CLUSTERING: single-threaded fold behind the verification barrier
	uf := cluster.New(len(docs))
	for _, ed := range edges {
		if err := uf.Union(ed.a, ed.b); err != nil {
			return nil, fmt.Errorf("clustering failed: %w", err)
		}
	}
	e.phaseDone(ctx, types.PhaseClustering, nil)

	// FINALIZING
	result, err := e.finalize(docs, sigs, uf, edges)
	if err != nil {
		return nil, fmt.Errorf("finalization failed: %w", err)
	}
	result.Report.RunID = e.runID
	result.Report.CandidateCount = len(pairs)
	result.Report.ConfirmedCount = len(edges)
	result.Report.OverflowSkips = overflowSkips
	result.Report.Duration = time.Since(start)
	e.phaseDone(ctx, types.PhaseFinalizing, nil)

	e.emit(ctx, events.EventTypeRunCompleted, events.SeverityInfo,
		fmt.Sprintf("run complete: %d in, %d removed, %d clusters",
			result.Report.InputCount, result.Report.DuplicateCount, result.Report.ClusterCount),
		map[string]interface{}{
			"input_count":     result.Report.InputCount,
			"duplicate_count": result.Report.DuplicateCount,
			"cluster_count":   result.Report.ClusterCount,
		})
	return result, nil
}

// ingest pulls records from source, assigns ids, and fans text out to
// a signature worker pool over a bounded queue. The queue gives
// back-pressure against a slow pipeline; workers write results keyed
// by document id, so scheduling cannot influence anything downstream.
func (e *Engine) ingest(ctx context.Context, source ingest.Source) ([]*types.Document, []minhash.Signature, error) {
	tok := tokenize.New(e.cfg.GraphemeNGram, e.cfg.WordNGram)
	gen := minhash.NewGenerator(e.cfg.SignatureSize, e.cfg.Seed)

	type signed struct {
		id  int
		sig minhash.Signature
	}

	docCh := make(chan *types.Document, e.cfg.QueueSize)
	resCh := make(chan signed, e.cfg.QueueSize)

	var docs []*types.Document

	g, gctx := errgroup.WithContext(ctx)

	// Reader: the single writer of docs and the id sequence
	g.Go(func() error {
		defer close(docCh)
		progress := rate.NewLimiter(rate.Every(5*time.Second), 1)
		for {
			rec, err := source.Next(gctx)
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return err
			}
			doc := &types.Document{
				ID:         len(docs),
				Text:       rec.Text,
				Source:     rec.Source,
				Lang:       rec.Lang,
				Domain:     rec.Domain,
				TokenCount: tokenize.TokenCount(rec.Text),
			}
			docs = append(docs, doc)
			if progress.Allow() {
				log.Printf("ingested %d documents", len(docs))
			}
			select {
			case docCh <- doc:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})

	// Signature workers: stateless per document
	workers := e.cfg.EffectiveWorkers()
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for doc := range docCh {
				sig := gen.Sign(tok.Tokens(doc.Text))
				select {
				case resCh <- signed{id: doc.ID, sig: sig}:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}

	// Collector: single writer of the signature table
	sigsByID := make(map[int]minhash.Signature)
	collectDone := make(chan struct{})
	go func() {
		defer close(collectDone)
		for s := range resCh {
			sigsByID[s.id] = s.sig
		}
	}()

	err := g.Wait()
	close(resCh)
	<-collectDone
	if err != nil {
		return nil, nil, err
	}

	sigs := make([]minhash.Signature, len(docs))
	for id, sig := range sigsByID {
		sigs[id] = sig
	}
	return docs, sigs, nil
}

// verify drains candidate pairs through the similarity check in
// parallel. Pairs arrive sorted; contiguous chunks keep the confirmed
// edge list in the same order after concatenation, so the clustering
// input is identical for any worker count.
func (e *Engine) verify(ctx context.Context, pairs []lsh.Pair, sigs []minhash.Signature) ([]edge, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	workers := e.cfg.EffectiveWorkers()
	if workers > len(pairs) {
		workers = len(pairs)
	}
	chunkSize := (len(pairs) + workers - 1) / workers
	chunks := make([][]edge, workers)

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		w := w
		lo := w * chunkSize
		hi := lo + chunkSize
		if hi > len(pairs) {
			hi = len(pairs)
		}
		if lo >= hi {
			continue
		}
		g.Go(func() error {
			var confirmed []edge
			for i, p := range pairs[lo:hi] {
				if i%4096 == 0 {
					select {
					case <-gctx.Done():
						return gctx.Err()
					default:
					}
				}
				sim := minhash.Similarity(sigs[p.A], sigs[p.B])
				if sim >= e.cfg.SimilarityThreshold {
					confirmed = append(confirmed, edge{a: p.A, b: p.B, sim: sim})
				}
			}
			chunks[w] = confirmed
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var edges []edge
	for _, chunk := range chunks {
		edges = append(edges, chunk...)
	}
	return edges, nil
}

// finalize computes representatives and assembles decisions and the
// report. Representative choice is a function of (token_count, id)
// only; nothing here depends on processing order.
func (e *Engine) finalize(docs []*types.Document, sigs []minhash.Signature, uf *cluster.UnionFind, edges []edge) (*Result, error) {
	tokenCounts := make([]int, len(docs))
	for _, doc := range docs {
		tokenCounts[doc.ID] = doc.TokenCount
	}

	clusters, err := uf.Clusters()
	if err != nil {
		return nil, err
	}

	decisions := make([]types.DedupDecision, len(docs))
	report := &types.Report{
		InputCount: len(docs),
		PerDomain:  make(map[string]types.DomainReduction),
	}

	for _, members := range clusters {
		rep, err := cluster.SelectRepresentative(members, tokenCounts)
		if err != nil {
			return nil, err
		}
		if len(members) > 1 {
			report.ClusterCount++
		}
		for _, id := range members {
			if id == rep {
				decisions[id] = types.DedupDecision{
					ID:               id,
					Kept:             true,
					RepresentativeID: id,
					Similarity:       1.0,
				}
				continue
			}
			decisions[id] = types.DedupDecision{
				ID:               id,
				Kept:             false,
				RepresentativeID: rep,
				Similarity:       minhash.Similarity(sigs[id], sigs[rep]),
			}
		}
	}

	for _, doc := range docs {
		dr := report.PerDomain[doc.Domain]
		dr.InputCount++
		if decisions[doc.ID].Kept {
			report.KeptCount++
		} else {
			report.DuplicateCount++
			dr.RemovedCount++
		}
		if dr.InputCount > 0 {
			dr.Rate = float64(dr.RemovedCount) / float64(dr.InputCount)
		}
		report.PerDomain[doc.Domain] = dr
	}
	if report.InputCount > 0 {
		report.DeduplicationRate = float64(report.DuplicateCount) / float64(report.InputCount)
	}

	limit := e.cfg.SampleLimit
	if limit > len(edges) {
		limit = len(edges)
	}
	for _, ed := range edges[:limit] {
		report.SamplePairs = append(report.SamplePairs, types.DuplicatePair{
			A: ed.a, B: ed.b, Similarity: ed.sim,
		})
	}

	if err := report.Validate(); err != nil {
		return nil, fmt.Errorf("internal report inconsistency: %w", err)
	}
	return &Result{
		Documents: docs,
		Decisions: decisions,
		Report:    report,
	}, nil
}

// phaseDone emits a phase-completion event.
func (e *Engine) phaseDone(ctx context.Context, phase types.RunPhase, data map[string]interface{}) {
	e.emit(ctx, events.EventTypePhaseCompleted, events.SeverityInfo,
		fmt.Sprintf("phase %s complete", phase), data)
}

// emit sends an event to the sink, if any. Sink errors are logged and
// dropped: observability never changes a run's outcome.
func (e *Engine) emit(ctx context.Context, eventType events.EventType, severity events.EventSeverity, message string, data map[string]interface{}) {
	if e.sink == nil {
		return
	}
	if err := e.sink.Record(ctx, events.New(e.runID, eventType, severity, message, data)); err != nil {
		log.Printf("event sink error (ignored): %v", err)
	}
}
