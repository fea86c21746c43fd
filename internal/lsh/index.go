// Package lsh implements the banded locality-sensitive index that turns
// MinHash signatures into candidate near-duplicate pairs without
// all-pairs comparison.
package lsh

import (
	"context"
	"encoding/binary"
	"hash/fnv"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/yunmindata/dedupe/internal/minhash"
)

// Pair is an unordered candidate pair of document ids, stored with A < B.
type Pair struct {
	A int
	B int
}

// Index buckets signatures by band. Bucket storage is owned per band:
// band i's buckets are only ever touched by the goroutine processing
// band i, so parallel insertion needs no locks and insertion order
// within a bucket is always document-id order. That keeps bucket-cap
// cutoffs identical for any worker count.
type Index struct {
	bands     int
	rows      int
	bucketCap int

	// buckets[band] maps band-key hash to the ids sharing that key
	buckets []map[uint64][]int

	// overflow[band] counts cap exclusions in that band's buckets
	overflow []int
}

// New creates an Index with the given band geometry and bucket cap.
// The caller guarantees bands*rows equals the signature length; the
// config layer validates this before any insertion happens.
func New(bands, rows, bucketCap int) *Index {
	idx := &Index{
		bands:     bands,
		rows:      rows,
		bucketCap: bucketCap,
		buckets:   make([]map[uint64][]int, bands),
		overflow:  make([]int, bands),
	}
	for i := range idx.buckets {
		idx.buckets[i] = make(map[uint64][]int)
	}
	return idx
}

// Insert adds one signature to every band's buckets. Sentinel
// signatures (empty documents) are never indexed: they can match
// nothing, so they generate no candidates.
//
// Insert is not safe for concurrent use; parallel runs go through
// InsertAll instead.
func (idx *Index) Insert(id int, sig minhash.Signature) {
	if sig.IsEmpty() {
		return
	}
	for band := 0; band < idx.bands; band++ {
		idx.insertBand(band, id, sig)
	}
}

// InsertAll indexes signatures in document-id order, parallelized
// across bands. Each band goroutine owns its bucket map outright, so
// the resulting index is byte-for-byte identical to a sequential
// insertion regardless of how many bands run concurrently.
func (idx *Index) InsertAll(ctx context.Context, sigs []minhash.Signature) error {
	g, ctx := errgroup.WithContext(ctx)
	for band := 0; band < idx.bands; band++ {
		band := band
		g.Go(func() error {
			for id, sig := range sigs {
				if id%1024 == 0 {
					select {
					case <-ctx.Done():
						return ctx.Err()
					default:
					}
				}
				if sig.IsEmpty() {
					continue
				}
				idx.insertBand(band, id, sig)
			}
			return nil
		})
	}
	return g.Wait()
}

// insertBand appends id to the bucket keyed by the band's slice of sig.
// Buckets at the cardinality cap exclude further ids from comparison;
// the exclusion is counted, never fatal.
func (idx *Index) insertBand(band, id int, sig minhash.Signature) {
	key := bandKey(sig[band*idx.rows : (band+1)*idx.rows])
	bucket := idx.buckets[band][key]
	if len(bucket) >= idx.bucketCap {
		idx.overflow[band]++
		return
	}
	idx.buckets[band][key] = append(bucket, id)
}

// bandKey hashes an r-length signature slice to a bucket key.
func bandKey(rows []uint64) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	for _, v := range rows {
		binary.LittleEndian.PutUint64(buf[:], v)
		h.Write(buf[:])
	}
	return h.Sum64()
}

// Candidates returns every id pair co-located in at least one bucket,
// deduplicated across bands and sorted by (A, B) so downstream phases
// see a stable order.
func (idx *Index) Candidates() []Pair {
	seen := make(map[Pair]struct{})
	for band := 0; band < idx.bands; band++ {
		for _, bucket := range idx.buckets[band] {
			if len(bucket) < 2 {
				continue
			}
			for i := 0; i < len(bucket); i++ {
				for j := i + 1; j < len(bucket); j++ {
					p := Pair{A: bucket[i], B: bucket[j]}
					if p.A > p.B {
						p.A, p.B = p.B, p.A
					}
					seen[p] = struct{}{}
				}
			}
		}
	}

	pairs := make([]Pair, 0, len(seen))
	for p := range seen {
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].A != pairs[j].A {
			return pairs[i].A < pairs[j].A
		}
		return pairs[i].B < pairs[j].B
	})
	return pairs
}

// OverflowSkips returns the total number of bucket-cap exclusions.
// Each unit is one document excluded from one bucket's comparisons.
func (idx *Index) OverflowSkips() int {
	total := 0
	for _, n := range idx.overflow {
		total += n
	}
	return total
}

// Reset clears all bucket state so the index can be reused. Bucket
// contents do not outlive a run.
func (idx *Index) Reset() {
	for i := range idx.buckets {
		idx.buckets[i] = make(map[uint64][]int)
		idx.overflow[i] = 0
	}
}
