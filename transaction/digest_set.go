package transaction

import "ledgerd/types"

// DigestSet is an unordered set of transaction digests. The coordinator
// builds one per block while waiting for transactions to arrive and filters
// it in place as the storage layer confirms them.
type DigestSet map[types.Hash]struct{}

// NewDigestSet builds a set from the given digests.
func NewDigestSet(digests ...types.Hash) DigestSet {
	set := make(DigestSet, len(digests))
	for _, d := range digests {
		set[d] = struct{}{}
	}
	return set
}

func (s DigestSet) Add(d types.Hash) {
	s[d] = struct{}{}
}

func (s DigestSet) Remove(d types.Hash) {
	delete(s, d)
}

func (s DigestSet) Contains(d types.Hash) bool {
	_, ok := s[d]
	return ok
}

func (s DigestSet) Len() int {
	return len(s)
}

func (s DigestSet) Empty() bool {
	return len(s) == 0
}

// Filter removes every digest for which keep returns false.
func (s DigestSet) Filter(keep func(types.Hash) bool) {
	for d := range s {
		if !keep(d) {
			delete(s, d)
		}
	}
}

// Digests returns the members as a slice, in map order.
func (s DigestSet) Digests() []types.Hash {
	out := make([]types.Hash, 0, len(s))
	for d := range s {
		out = append(out, d)
	}
	return out
}
