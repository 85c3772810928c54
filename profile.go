package profattach

import "strings"

// HeaderFlags is a bitset carried in the profile header.
type HeaderFlags uint32

const (
	// FlagSample marks a sample-based profile: blocks carry an EventCount
	// instead of branch counts, and there are no successor or call-site
	// records to propagate.
	FlagSample HeaderFlags = 1 << iota
)

// HashFunction identifies the algorithm used to compute function
// fingerprints, both in the profile (pre-computed, stored per function in
// ProfiledFunction.Hash) and on the binary side via ComputeHash.
type HashFunction int

const (
	HashStd HashFunction = iota
	HashXXH3
)

func ParseHashFunction(s string) (HashFunction, bool) {
	switch s {
	case "std", "":
		return HashStd, true
	case "xxh3":
		return HashXXH3, true
	default:
		return 0, false
	}
}

// Header is the profile document's header record.
type Header struct {
	// Version must equal 1; anything else is a fatal error in
	// PreprocessProfile.
	Version int

	Flags HeaderFlags

	// EventNames is the comma-separated event-names string from the
	// profile. A comma means multiple events were recorded, which this
	// core rejects as a fatal error (see CheckSingleEvent).
	EventNames string

	HashFunction HashFunction

	// IsDFSOrder selects how ProfiledBlock.Index is interpreted: as a
	// position in the binary function's DFS traversal order rather than
	// its layout order.
	IsDFSOrder bool
}

// IsSample reports whether the header's SAMPLE flag is set.
func (h Header) IsSample() bool {
	return h.Flags&FlagSample != 0
}

// CheckSingleEvent returns false if EventNames names more than one event
// (contains a comma), per spec: a multi-event profile is a fatal error.
func (h Header) CheckSingleEvent() bool {
	return !strings.Contains(h.EventNames, ",")
}

// eventSet splits EventNames on the internal ':'-delimited event-descriptor
// separator used by usesEvent; this is unrelated to the comma check above,
// which rejects multiple distinct events rather than a single descriptor's
// fields.
func (h Header) eventSet() []string {
	if h.EventNames == "" {
		return nil
	}
	return strings.Split(h.EventNames, ":")
}

// UsesEvent reports whether name appears among the profile's recorded
// event(s).
func (h Header) UsesEvent(name string) bool {
	for _, e := range h.eventSet() {
		if e == name {
			return true
		}
	}
	return false
}

// NormalizeByInsnCount reports whether sample-mode block counts should be
// divided by the block's non-pseudo instruction count.
func (h Header) NormalizeByInsnCount() bool {
	return h.UsesEvent("cycles") || h.UsesEvent("instructions")
}

// NormalizeByCalls reports whether sample-mode block counts should be
// divided by the block's call count (+1) instead.
func (h Header) NormalizeByCalls() bool {
	return h.UsesEvent("branches")
}

// Successor is an edge record: the profile-side index of the target block,
// the branch count taken, and the number of those branches mispredicted.
type Successor struct {
	Index    int
	Count    uint64
	Mispreds uint64
}

// CallSite is a profiled call, keyed by byte offset from the start of the
// containing block.
type CallSite struct {
	// DestId indexes into ProfileDocument.Functions, or 0 if the callee
	// could not be resolved by the profile producer.
	DestId int

	// EntryDiscriminator disambiguates a multi-entry callee's entry
	// point.
	EntryDiscriminator uint32

	Offset   uint64
	Count    uint64
	Mispreds uint64
}

// ProfiledBlock is one basic block's worth of recorded counts.
type ProfiledBlock struct {
	// Index is the block's position in the producer's ordering: DFS
	// pre-order if Header.IsDFSOrder, layout order otherwise.
	Index int

	ExecCount uint64

	// EventCount is only meaningful in sample mode (Header.IsSample).
	EventCount uint64
	HasEventCount bool

	CallSites  []CallSite
	Successors []Successor
}

// ProfiledFunction is one function's record in the profile document.
type ProfiledFunction struct {
	// Id is a small, dense integer key stable across the document,
	// 1-based: 0 is never a valid Id (see YamlProfileToFunction sizing).
	Id int

	// Name may carry a trailing "(*…" disambiguator; use CleanName to
	// strip it for lookup purposes.
	Name string

	Hash uint64

	NumBasicBlocks int
	ExecCount      uint64

	Blocks []ProfiledBlock

	// Used is flipped to true by the matcher once this record has been
	// claimed by a binary function. It is the only mutable field on the
	// profile side (see spec Design Notes §9).
	Used bool
}

// CleanName strips a trailing "(*…" disambiguator from the profiled
// function's name, returning the spelling used for name-index lookups.
func (pf *ProfiledFunction) CleanName() string {
	if i := strings.Index(pf.Name, "(*"); i >= 0 {
		return pf.Name[:i]
	}
	return pf.Name
}

// RawBranchCount sums the Count of every successor across every block in
// this profiled function; used to cross-check Propagator output (P3).
func (pf *ProfiledFunction) RawBranchCount() uint64 {
	var total uint64
	for _, b := range pf.Blocks {
		for _, s := range b.Successors {
			total += s.Count
		}
	}
	return total
}

// ProfileDocument is the read-only-after-load profile, as produced by an
// external loader (see LoadDocument in profileyaml.go). The core never
// mutates it except for the per-record Used flag.
type ProfileDocument struct {
	Header    Header
	Functions []ProfiledFunction
}
