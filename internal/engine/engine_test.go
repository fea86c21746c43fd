package engine

import (
	"context"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yunmindata/dedupe/internal/config"
	"github.com/yunmindata/dedupe/internal/events"
	"github.com/yunmindata/dedupe/internal/ingest"
	"github.com/yunmindata/dedupe/internal/minhash"
	"github.com/yunmindata/dedupe/internal/tokenize"
)

// syntheticWords returns n pseudo-random 5-letter words from a fixed seed.
func syntheticWords(seed int64, n int) []string {
	rng := rand.New(rand.NewSource(seed))
	words := make([]string, n)
	for i := range words {
		var sb strings.Builder
		for j := 0; j < 5; j++ {
			sb.WriteByte(byte('a' + rng.Intn(26)))
		}
		words[i] = sb.String()
	}
	return words
}

// gibberish returns a long pseudo-random word for corrupting documents.
func gibberish(rng *rand.Rand, length int) string {
	var sb strings.Builder
	for i := 0; i < length; i++ {
		sb.WriteByte(byte('a' + rng.Intn(26)))
	}
	return sb.String()
}

func runEngine(t *testing.T, cfg config.Config, records []ingest.Record, opts ...Option) *Result {
	t.Helper()
	eng, err := New(cfg, opts...)
	require.NoError(t, err)
	result, err := eng.Run(context.Background(), ingest.NewSliceSource(records))
	require.NoError(t, err)
	return result
}

func TestConfigRejectedBeforeIngestion(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Bands = 10 // 10*8 != 128

	_, err := New(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration rejected")
}

func TestExactDuplicatesMerge(t *testing.T) {
	text := "the quick brown fox jumps over the lazy dog and never stops running through the field"
	records := []ingest.Record{
		{Text: text, Domain: "news"},
		{Text: "an entirely different document about distributed storage systems and consensus protocols"},
		{Text: text, Domain: "news"},
	}

	result := runEngine(t, config.DefaultConfig(), records)

	require.Len(t, result.Decisions, 3)
	// Equal token counts: the smaller id survives
	assert.True(t, result.Decisions[0].Kept, "doc 0 should be the representative")
	assert.True(t, result.Decisions[1].Kept, "unique doc should be kept")
	assert.False(t, result.Decisions[2].Kept, "doc 2 should be removed")
	assert.Equal(t, 0, result.Decisions[2].RepresentativeID)
	assert.Equal(t, 1.0, result.Decisions[2].Similarity,
		"identical text must score estimated similarity 1.0")

	assert.Equal(t, 3, result.Report.InputCount)
	assert.Equal(t, 1, result.Report.DuplicateCount)
	assert.Equal(t, 1, result.Report.ClusterCount)
	assert.Equal(t, 2, result.Report.KeptCount)
}

func TestRepresentativeHasLargestTokenCount(t *testing.T) {
	base := strings.Join(syntheticWords(11, 60), " ")
	longer := base + " trailing extra tokens appended here"

	records := []ingest.Record{
		{Text: base},
		{Text: longer}, // near-duplicate with more tokens
	}
	result := runEngine(t, config.DefaultConfig(), records)

	require.False(t, result.Decisions[0].Kept, "shorter near-duplicate should be removed")
	require.True(t, result.Decisions[1].Kept, "longer document should represent the cluster")
	assert.Equal(t, 1, result.Decisions[0].RepresentativeID)
}

// TestPartitionProperty checks every document lands in exactly one
// cluster: each doc has exactly one decision, and removed docs point at
// a kept representative.
func TestPartitionProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	words := syntheticWords(5, 400)

	var records []ingest.Record
	for i := 0; i < 40; i++ {
		start := rng.Intn(len(words) - 80)
		text := strings.Join(words[start:start+80], " ")
		records = append(records, ingest.Record{Text: text})
		if i%3 == 0 {
			// Exact duplicate of the record just added
			records = append(records, ingest.Record{Text: text})
		}
	}

	result := runEngine(t, config.DefaultConfig(), records)

	require.Len(t, result.Decisions, len(records))
	for id, dec := range result.Decisions {
		assert.Equal(t, id, dec.ID)
		require.NoError(t, dec.Validate())
		if !dec.Kept {
			rep := dec.RepresentativeID
			assert.True(t, result.Decisions[rep].Kept,
				"doc %d removed in favor of %d, which is not kept", id, rep)
		}
	}
	assert.Equal(t, result.Report.InputCount, result.Report.KeptCount+result.Report.DuplicateCount)
}

// TestMatchesBruteForceGroundTruth compares engine clustering against
// all-pairs signature comparison on a small corpus of clear duplicates
// and clearly distinct documents.
func TestMatchesBruteForceGroundTruth(t *testing.T) {
	cfg := config.DefaultConfig()

	texts := []string{
		"alpha document about search engines and inverted index construction details",
		"alpha document about search engines and inverted index construction details",
		"beta document describing union find forests with path compression and ranks",
		"gamma text on streaming ingestion pipelines with bounded queues and workers",
		"beta document describing union find forests with path compression and ranks",
	}
	var records []ingest.Record
	for _, text := range texts {
		records = append(records, ingest.Record{Text: text})
	}

	result := runEngine(t, cfg, records)

	// Brute-force ground truth over the same signatures
	tok := tokenize.New(cfg.GraphemeNGram, cfg.WordNGram)
	gen := minhash.NewGenerator(cfg.SignatureSize, cfg.Seed)
	sigs := make([]minhash.Signature, len(texts))
	for i, text := range texts {
		sigs[i] = gen.Sign(tok.Tokens(text))
	}

	sameCluster := func(a, b int) bool {
		repOf := func(id int) int { return result.Decisions[id].RepresentativeID }
		return repOf(a) == repOf(b)
	}
	for a := 0; a < len(texts); a++ {
		for b := a + 1; b < len(texts); b++ {
			want := minhash.Similarity(sigs[a], sigs[b]) >= cfg.SimilarityThreshold
			assert.Equal(t, want, sameCluster(a, b),
				"pair (%d,%d): brute force says %v", a, b, want)
		}
	}
}

// TestNearDuplicateThreshold: 500-token documents differing in 5% of
// word positions stay separate under defaults, while documents
// differing in 0 positions merge.
func TestNearDuplicateThreshold(t *testing.T) {
	words := syntheticWords(23, 500)
	base := strings.Join(words, " ")

	// Corrupt every 20th position: 25 of 500 words = 5%
	rng := rand.New(rand.NewSource(29))
	corrupted := make([]string, len(words))
	copy(corrupted, words)
	for i := 0; i < len(corrupted); i += 20 {
		corrupted[i] = gibberish(rng, 50)
	}
	modified := strings.Join(corrupted, " ")

	records := []ingest.Record{
		{Text: base},
		{Text: modified},
		{Text: base}, // exact duplicate of doc 0
	}

	result := runEngine(t, config.DefaultConfig(), records)

	assert.True(t, result.Decisions[1].Kept,
		"5%% word difference must stay below the 0.8 threshold")
	assert.False(t, result.Decisions[2].Kept, "exact duplicate must merge")
	assert.Equal(t, 0, result.Decisions[2].RepresentativeID,
		"tie on token_count resolves to the smaller id")
	assert.Equal(t, 1.0, result.Decisions[2].Similarity)
}

// TestIdempotence re-runs the engine on its own kept output and
// expects zero additional removals.
func TestIdempotence(t *testing.T) {
	words := syntheticWords(31, 300)
	var records []ingest.Record
	for i := 0; i < 30; i++ {
		start := (i * 9) % (len(words) - 60)
		text := strings.Join(words[start:start+60], " ")
		records = append(records, ingest.Record{Text: text})
		if i%4 == 0 {
			records = append(records, ingest.Record{Text: text})
		}
	}

	cfg := config.DefaultConfig()
	first := runEngine(t, cfg, records)
	require.Greater(t, first.Report.DuplicateCount, 0, "first run should remove something")

	var keptRecords []ingest.Record
	for _, doc := range first.KeptDocuments() {
		keptRecords = append(keptRecords, ingest.Record{
			Text: doc.Text, Source: doc.Source, Lang: doc.Lang, Domain: doc.Domain,
		})
	}

	second := runEngine(t, cfg, keptRecords)
	assert.Equal(t, 0, second.Report.DuplicateCount,
		"re-running on kept output must remove nothing")
	assert.Equal(t, len(keptRecords), second.Report.KeptCount)
}

// TestDeterminismAcrossWorkerCounts runs the same input with different
// worker pool sizes and requires identical decisions.
func TestDeterminismAcrossWorkerCounts(t *testing.T) {
	words := syntheticWords(41, 500)
	var records []ingest.Record
	for i := 0; i < 60; i++ {
		start := (i * 7) % (len(words) - 50)
		records = append(records, ingest.Record{Text: strings.Join(words[start:start+50], " ")})
	}
	// Sprinkle exact duplicates
	for i := 0; i < 60; i += 5 {
		records = append(records, records[i])
	}

	var baseline *Result
	for _, workers := range []int{1, 2, 8} {
		cfg := config.DefaultConfig()
		cfg.Workers = workers
		result := runEngine(t, cfg, records)

		if baseline == nil {
			baseline = result
			continue
		}
		require.Equal(t, len(baseline.Decisions), len(result.Decisions))
		for id := range baseline.Decisions {
			assert.Equal(t, baseline.Decisions[id], result.Decisions[id],
				"decision for doc %d differs at workers=%d", id, workers)
		}
		assert.Equal(t, baseline.Report.ClusterCount, result.Report.ClusterCount)
		assert.Equal(t, baseline.Report.SamplePairs, result.Report.SamplePairs)
	}
}

// TestBucketCapDegradesGracefully floods one bucket with identical
// documents and expects counted exclusions, bounded comparisons, and a
// completed run.
func TestBucketCapDegradesGracefully(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BucketCap = 100

	text := "one repeated document body that lands every copy in the same bucket each time"
	records := make([]ingest.Record, 1000)
	for i := range records {
		records[i] = ingest.Record{Text: text}
	}

	sink := &events.MemorySink{}
	result := runEngine(t, cfg, records, WithEventSink(sink))

	// 900 insertions overflow in each of the 16 bands
	assert.Equal(t, (1000-cfg.BucketCap)*cfg.Bands, result.Report.OverflowSkips)
	// Candidate pairs bounded by the cap, not the input size
	assert.Equal(t, cfg.BucketCap*(cfg.BucketCap-1)/2, result.Report.CandidateCount)
	// Docs beyond the cap never reached comparison: kept as singletons
	assert.Equal(t, cfg.BucketCap-1, result.Report.DuplicateCount)

	overflow := sink.ByType(events.EventTypeBucketOverflow)
	require.Len(t, overflow, 1)
	assert.Equal(t, events.SeverityWarning, overflow[0].Severity)
}

func TestEmptyDocumentsNeverMerge(t *testing.T) {
	records := []ingest.Record{
		{Text: " "}, // normalizes to nothing: empty token set
		{Text: " "},
		{Text: "a normal document with some actual words inside of it"},
	}
	result := runEngine(t, config.DefaultConfig(), records)

	assert.True(t, result.Decisions[0].Kept)
	assert.True(t, result.Decisions[1].Kept)
	assert.Equal(t, 0, result.Report.DuplicateCount,
		"empty documents must never merge, even with each other")
}

func TestKeptStreamPreservesInputOrder(t *testing.T) {
	dup := "a duplicated body of text that appears at two separate input positions"
	records := []ingest.Record{
		{Text: "first unique document in the stream with several additional words"},
		{Text: dup},
		{Text: "second unique document in the stream with several additional words"},
		{Text: dup},
		{Text: "third unique document in the stream with several additional words"},
	}
	result := runEngine(t, config.DefaultConfig(), records)

	kept := result.KeptDocuments()
	require.Len(t, kept, 4)
	for i := 1; i < len(kept); i++ {
		assert.Greater(t, kept[i].ID, kept[i-1].ID, "kept stream must preserve input order")
	}
}

func TestPerDomainReduction(t *testing.T) {
	newsDup := "breaking news article body repeated verbatim across the news domain feed"
	records := []ingest.Record{
		{Text: newsDup, Domain: "news"},
		{Text: newsDup, Domain: "news"},
		{Text: "a books domain document with no duplicate anywhere in this corpus", Domain: "books"},
	}
	result := runEngine(t, config.DefaultConfig(), records)

	news := result.Report.PerDomain["news"]
	assert.Equal(t, 2, news.InputCount)
	assert.Equal(t, 1, news.RemovedCount)
	assert.InDelta(t, 0.5, news.Rate, 1e-9)

	books := result.Report.PerDomain["books"]
	assert.Equal(t, 1, books.InputCount)
	assert.Equal(t, 0, books.RemovedCount)
}

func TestRunEventsEmitted(t *testing.T) {
	sink := &events.MemorySink{}
	records := []ingest.Record{{Text: "a single document so the run has something to chew on"}}
	result := runEngine(t, config.DefaultConfig(), records, WithEventSink(sink))

	require.NotEmpty(t, result.Report.RunID)
	assert.Len(t, sink.ByType(events.EventTypeRunStarted), 1)
	assert.Len(t, sink.ByType(events.EventTypeRunCompleted), 1)
	// One phase-completed event per phase before DONE
	assert.Len(t, sink.ByType(events.EventTypePhaseCompleted), 5)
	for _, e := range sink.Events() {
		assert.Equal(t, result.Report.RunID, e.RunID)
	}
}

func TestEmptyInput(t *testing.T) {
	result := runEngine(t, config.DefaultConfig(), nil)
	assert.Equal(t, 0, result.Report.InputCount)
	assert.Empty(t, result.Decisions)
	assert.Empty(t, result.KeptDocuments())
}

func TestSampleBounded(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.SampleLimit = 3

	text := "the same exact document text echoed across every record in this input"
	records := make([]ingest.Record, 12)
	for i := range records {
		records[i] = ingest.Record{Text: text}
	}
	result := runEngine(t, cfg, records)

	assert.LessOrEqual(t, len(result.Report.SamplePairs), 3)
	for _, pair := range result.Report.SamplePairs {
		assert.Less(t, pair.A, pair.B)
		assert.GreaterOrEqual(t, pair.Similarity, cfg.SimilarityThreshold)
	}
}
