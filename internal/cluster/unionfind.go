// Package cluster groups confirmed near-duplicate edges into clusters
// and selects each cluster's surviving representative.
//
// The near-duplicate relation is a graph with cycles; rather than an
// explicit adjacency structure, clusters are tracked with an index-based
// union-find arena keyed by document id, giving amortized O(1) merge
// and find with no cyclic ownership.
package cluster

import (
	"fmt"
	"sort"
)

// UnionFind is a disjoint-set forest over document ids [0, n).
// Not safe for concurrent use: the driver folds edges into it in a
// single-threaded pass behind the verification barrier.
type UnionFind struct {
	parent []int
	rank   []int
}

// New creates a UnionFind where every id starts as its own singleton.
func New(n int) *UnionFind {
	u := &UnionFind{
		parent: make([]int, n),
		rank:   make([]int, n),
	}
	for i := range u.parent {
		u.parent[i] = i
	}
	return u
}

// Size returns the number of ids in the arena.
func (u *UnionFind) Size() int {
	return len(u.parent)
}

// Find returns the cluster root of x with path compression.
// An out-of-range id is an internal invariant violation: confirmed
// edges only ever reference ingested documents.
func (u *UnionFind) Find(x int) (int, error) {
	if x < 0 || x >= len(u.parent) {
		return 0, fmt.Errorf("cluster inconsistency: id %d outside arena [0,%d)", x, len(u.parent))
	}
	root := x
	for u.parent[root] != root {
		root = u.parent[root]
	}
	for u.parent[x] != root {
		u.parent[x], x = root, u.parent[x]
	}
	return root, nil
}

// Union merges the clusters containing a and b, by rank. The final
// partition is independent of the order unions are applied in.
func (u *UnionFind) Union(a, b int) error {
	ra, err := u.Find(a)
	if err != nil {
		return fmt.Errorf("union(%d,%d): %w", a, b, err)
	}
	rb, err := u.Find(b)
	if err != nil {
		return fmt.Errorf("union(%d,%d): %w", a, b, err)
	}
	if ra == rb {
		return nil
	}
	if u.rank[ra] < u.rank[rb] {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
	if u.rank[ra] == u.rank[rb] {
		u.rank[ra]++
	}
	return nil
}

// Clusters returns the final partition: root id to sorted member ids.
// Every id appears in exactly one cluster; unmerged ids form singletons.
func (u *UnionFind) Clusters() (map[int][]int, error) {
	clusters := make(map[int][]int)
	for id := range u.parent {
		root, err := u.Find(id)
		if err != nil {
			return nil, err
		}
		clusters[root] = append(clusters[root], id)
	}
	for root := range clusters {
		sort.Ints(clusters[root])
	}
	return clusters, nil
}

// SelectRepresentative picks the surviving member of a cluster: the
// document with the largest token count, ties broken by the smallest
// id. The choice is a pure function of (token_count, id); processing
// order never participates.
func SelectRepresentative(members []int, tokenCounts []int) (int, error) {
	if len(members) == 0 {
		return 0, fmt.Errorf("cluster inconsistency: empty cluster")
	}
	best := -1
	for _, id := range members {
		if id < 0 || id >= len(tokenCounts) {
			return 0, fmt.Errorf("cluster inconsistency: member %d outside corpus [0,%d)",
				id, len(tokenCounts))
		}
		if best == -1 {
			best = id
			continue
		}
		if tokenCounts[id] > tokenCounts[best] ||
			(tokenCounts[id] == tokenCounts[best] && id < best) {
			best = id
		}
	}
	return best, nil
}
