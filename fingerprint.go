package profattach

import (
	"encoding/binary"
	"hash/maphash"

	"github.com/zeebo/xxh3"
)

// HashFunc computes a 64-bit structural fingerprint over a function's
// basic blocks, given in either DFS or layout order per the caller.
type HashFunc func(blocks []BasicBlock) uint64

// fingerprintSeed is created once per process, mirroring the teacher's own
// package-level maphash.Seed used to hash stack traces.
var fingerprintSeed = maphash.MakeSeed()

// HashForFunction returns the HashFunc for the profile's configured hash
// algorithm.
func HashForFunction(fn HashFunction) HashFunc {
	switch fn {
	case HashXXH3:
		return hashXXH3
	default:
		return hashStd
	}
}

// shapeBytes serializes the structural shape of blocks that both hash
// functions fold in: for each block, one uint64 each for its non-pseudo
// instruction count, call count and successor count, followed by one uint64
// per successor encoding the target's position in blocks.
func shapeBytes(blocks []BasicBlock) []byte {
	index := make(map[BasicBlock]int, len(blocks))
	for i, b := range blocks {
		index[b] = i
	}

	buf := make([]byte, 0, 16*len(blocks))
	var word [8]byte
	put := func(v uint64) {
		binary.LittleEndian.PutUint64(word[:], v)
		buf = append(buf, word[:]...)
	}

	for _, b := range blocks {
		put(uint64(b.NumNonPseudoInstructions()))
		put(uint64(b.NumCalls()))
		succ := b.Successors()
		put(uint64(len(succ)))
		for _, e := range succ {
			if target, ok := index[e.Target]; ok {
				put(uint64(target))
			} else {
				put(^uint64(0))
			}
		}
	}
	return buf
}

func hashStd(blocks []BasicBlock) uint64 {
	return maphash.Bytes(fingerprintSeed, shapeBytes(blocks))
}

func hashXXH3(blocks []BasicBlock) uint64 {
	return xxh3.Hash(shapeBytes(blocks))
}
