package generation

import "github.com/cychipo/examio-be-sub001/internal/domain"

// Group is a set of chunks that share one provider call, with the number of
// items that call must produce.
type Group struct {
	Chunks []*domain.Chunk
	Quota  int
}

// GroupChunks distributes requested items across chunks. When requested is at
// least the chunk count, every chunk becomes its own group and the quota is
// split evenly with the remainder going one extra to the leading groups. When
// requested is smaller, chunks are merged into exactly requested contiguous
// groups of near-equal size, each with a quota of 1.
//
// The quotas across all returned groups always sum to requested. Groups with
// a quota of 0 never occur with the even split, but callers skip them anyway.
func GroupChunks(chunks []*domain.Chunk, requested int) []Group {
	if len(chunks) == 0 || requested <= 0 {
		return nil
	}

	n := len(chunks)

	if requested >= n {
		base := requested / n
		extra := requested % n

		groups := make([]Group, 0, n)
		for i, chunk := range chunks {
			quota := base
			if i < extra {
				quota++
			}
			groups = append(groups, Group{Chunks: []*domain.Chunk{chunk}, Quota: quota})
		}
		return groups
	}

	// Fewer items than chunks: requested merged groups, one item each. The
	// first n mod requested groups absorb one extra chunk.
	base := n / requested
	extra := n % requested

	groups := make([]Group, 0, requested)
	start := 0
	for i := 0; i < requested; i++ {
		size := base
		if i < extra {
			size++
		}
		groups = append(groups, Group{Chunks: chunks[start : start+size], Quota: 1})
		start += size
	}
	return groups
}
