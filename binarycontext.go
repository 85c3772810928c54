package profattach

// BinaryContext is the consumed interface onto a disassembled target
// binary: the set of functions recovered from it, and symbol lookup by
// name. Building one is out of scope for this core; see cfg.go for a
// reference, in-memory implementation used by tests and the CLI demo.
type BinaryContext interface {
	// GetBinaryDataByName resolves a (possibly aliased) symbol name to
	// binary data, or false if no such symbol exists.
	GetBinaryDataByName(name string) (BinaryData, bool)

	// GetFunctionForSymbol resolves binary data to the BinaryFunction
	// that owns it, or false.
	GetFunctionForSymbol(sym BinaryData) (BinaryFunction, bool)

	// Functions iterates every function recovered from the binary,
	// addressed or not, in a fixed, deterministic order.
	Functions() []BinaryFunction

	// Stats exposes the mutable diagnostic counters the propagator and
	// stale-profile inference hook contribute to.
	Stats() *Stats
}

// BinaryData is an opaque handle to a named symbol on the binary side.
type BinaryData interface {
	SymbolName() string
}

// MCSymbol identifies a specific entry point of a (possibly multi-entry)
// binary function.
type MCSymbol interface {
	SymbolName() string
}

// BinaryFunction is a function recovered from the target binary.
type BinaryFunction interface {
	// Names returns every alias this function is known by.
	Names() []string
	DemangledName() string

	// Size reports the function's footprint; Empty functions are
	// trivially matched without propagation.
	Size() int
	Empty() bool

	// GetHash returns the cached structural fingerprint, or false if none
	// has been computed yet; ComputeHash(isDFS, fn) computes and caches it.
	GetHash() (uint64, bool)
	ComputeHash(isDFS bool, fn HashFunc) uint64

	// DFS and Layout return the function's basic blocks in DFS pre-order
	// and layout order respectively. Propagation uses whichever the
	// profile header specifies.
	DFS() []BasicBlock
	Layout() []BasicBlock

	// GetInstructionAtOffset resolves the instruction whose input-binary
	// byte offset equals offset, or false if none does.
	GetInstructionAtOffset(offset uint64) (Instruction, bool)

	// GetSymbolForEntryID resolves a CallSite's EntryDiscriminator to a
	// specific entry symbol of a (possibly multi-entry) function.
	GetSymbolForEntryID(discriminator uint32) MCSymbol

	// GetAllCallSites returns every call site recorded for this
	// function so far (appended to by the propagator).
	GetAllCallSites() []RecordedCallSite

	AddCallSite(site RecordedCallSite)

	SetExecutionCount(count uint64)
	ExecutionCount() uint64

	SetRawBranchCount(count uint64)
	RawBranchCount() uint64

	// MarkProfiled records that this function now carries profile data,
	// folding in the header flags that produced it.
	MarkProfiled(flags HeaderFlags)
	HasProfile() bool

	SetIgnored(ignored bool)
	Ignored() bool
}

// RecordedCallSite is a call site annotation appended, unconditionally, to
// a BinaryFunction's call-site list by the propagator (step 2 of "Call
// sites" in spec §4.E), independent of whether the instruction it targets
// could be validated.
type RecordedCallSite struct {
	Callee   MCSymbol
	Count    uint64
	Mispreds uint64
	Offset   uint64
}

// BasicBlock is one basic block of a BinaryFunction's control-flow graph.
type BasicBlock interface {
	// InputOffset is this block's first instruction's byte offset in the
	// original binary; CallSite.Offset is relative to it.
	InputOffset() uint64
	OriginalSize() uint64

	IsEntryPoint() bool

	NumNonPseudoInstructions() int
	NumCalls() int

	SetExecutionCount(count uint64)
	ExecutionCount() uint64

	// Successors lists this block's outgoing edges as currently known to
	// the CFG (not the profile).
	Successors() []*Edge

	// GetOrCreateEdge returns the mutable edge record to target,
	// creating it if the CFG did not already expose that successor
	// (used by the pass-through heuristic, spec §4.E "Successors" step
	// 2, which fabricates a BB→FT edge on demand).
	GetOrCreateEdge(target BasicBlock) *Edge

	// FalseBranch returns this block's fallthrough ("false" conditional)
	// successor, or false if it has none (e.g. unconditional or no
	// successors at all).
	FalseBranch() (BasicBlock, bool)
}

// Edge is a mutable successor-edge record: a branch count and a
// mispredict count, accumulated in place by the propagator.
type Edge struct {
	Target            BasicBlock
	Count             uint64
	MispredictedCount uint64
}

func (e *Edge) add(count, mispreds uint64) {
	e.Count += count
	e.MispredictedCount += mispreds
}

// Instruction is a single disassembled instruction, addressable by byte
// offset within its function, with annotation storage and a capability
// predicate surface (the "MIB" interface of spec §6).
type Instruction interface {
	Offset() uint64

	IsCall() bool
	IsIndirectCall() bool
	IsIndirectBranch() bool

	// GetConditionalTailCall reports whether this instruction is a
	// conditional tail call (a conditional branch that, when taken,
	// transfers control to another function rather than a block in the
	// same function).
	GetConditionalTailCall() bool

	Annotations() *Annotations
}
