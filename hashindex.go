package profattach

// HashIndex maps function fingerprints to binary functions (spec §4.B).
// Collisions keep an arbitrary one (last write wins); the claim check
// happens at the matcher, not here.
type HashIndex struct {
	byHash map[uint64]BinaryFunction
}

// hashOf computes (and caches) bf's fingerprint using the given algorithm
// and block order, without consulting or populating any HashIndex.
func hashOf(bf BinaryFunction, isDFS bool, fn HashFunc) uint64 {
	if h, ok := bf.GetHash(); ok {
		return h
	}
	return bf.ComputeHash(isDFS, fn)
}

// BuildHashIndex computes a fingerprint for every function in ctx and
// returns a dense Hash→BinaryFunction map. Used only when
// MatchProfileWithFunctionHash is set (stage S3).
func BuildHashIndex(ctx BinaryContext, isDFS bool, fn HashFunc) *HashIndex {
	idx := &HashIndex{byHash: make(map[uint64]BinaryFunction)}
	for _, bf := range ctx.Functions() {
		idx.byHash[hashOf(bf, isDFS, fn)] = bf
	}
	return idx
}

// Lookup returns the binary function registered under hash, if any.
func (idx *HashIndex) Lookup(hash uint64) (BinaryFunction, bool) {
	bf, ok := idx.byHash[hash]
	return bf, ok
}
