package profattach

import "golang.org/x/exp/slices"

// This file implements a minimal, in-memory BinaryContext: not a
// disassembler, just enough of a control-flow graph to drive the matcher
// and propagator in tests and in the CLI demo. Building the real thing from
// a binary is out of scope for this core (spec §1).

// RefSymbol is a named symbol handle, used both as BinaryData (name
// lookups) and MCSymbol (call-site callees).
type RefSymbol struct{ Name string }

func (s RefSymbol) SymbolName() string { return s.Name }

// RefInstruction is a disassembled instruction in the reference CFG.
type RefInstruction struct {
	offset                 uint64
	isCall                 bool
	isIndirectCall         bool
	isIndirectBranch       bool
	isConditionalTailCall  bool
	annotations            *Annotations
}

func (i *RefInstruction) Offset() uint64               { return i.offset }
func (i *RefInstruction) IsCall() bool                  { return i.isCall }
func (i *RefInstruction) IsIndirectCall() bool          { return i.isIndirectCall }
func (i *RefInstruction) IsIndirectBranch() bool        { return i.isIndirectBranch }
func (i *RefInstruction) GetConditionalTailCall() bool  { return i.isConditionalTailCall }
func (i *RefInstruction) Annotations() *Annotations {
	if i.annotations == nil {
		i.annotations = NewAnnotations()
	}
	return i.annotations
}

// RefBlock is a basic block in the reference CFG.
type RefBlock struct {
	label                string
	inputOffset          uint64
	originalSize         uint64
	isEntry              bool
	numNonPseudoInsns    int
	numCalls             int
	execCount            uint64
	instructions         []*RefInstruction
	successors           []*Edge
	falseBranch          *RefBlock
}

func (b *RefBlock) InputOffset() uint64            { return b.inputOffset }
func (b *RefBlock) OriginalSize() uint64           { return b.originalSize }
func (b *RefBlock) IsEntryPoint() bool             { return b.isEntry }
func (b *RefBlock) NumNonPseudoInstructions() int  { return b.numNonPseudoInsns }
func (b *RefBlock) NumCalls() int                  { return b.numCalls }
func (b *RefBlock) SetExecutionCount(c uint64)     { b.execCount = c }
func (b *RefBlock) ExecutionCount() uint64         { return b.execCount }
func (b *RefBlock) Successors() []*Edge            { return b.successors }

func (b *RefBlock) GetOrCreateEdge(target BasicBlock) *Edge {
	for _, e := range b.successors {
		if e.Target == target {
			return e
		}
	}
	e := &Edge{Target: target}
	b.successors = append(b.successors, e)
	return e
}

func (b *RefBlock) FalseBranch() (BasicBlock, bool) {
	if b.falseBranch == nil {
		return nil, false
	}
	return b.falseBranch, true
}

func (b *RefBlock) instructionAtOffset(offset uint64) (Instruction, bool) {
	for _, ins := range b.instructions {
		if ins.offset == offset {
			return ins, true
		}
	}
	return nil, false
}

// RefFunction is a function in the reference CFG.
type RefFunction struct {
	names          []string
	demangledName  string
	layout         []BasicBlock
	dfs            []BasicBlock
	callSites      []RecordedCallSite
	executionCount uint64
	rawBranchCount uint64
	profiled       bool
	profiledFlags  HeaderFlags
	ignored        bool
	hash           uint64
	hasHash        bool
}

func (f *RefFunction) Names() []string       { return f.names }
func (f *RefFunction) DemangledName() string { return f.demangledName }
func (f *RefFunction) Size() int             { return len(f.layout) }
func (f *RefFunction) Empty() bool           { return len(f.layout) == 0 }

func (f *RefFunction) GetHash() (uint64, bool) { return f.hash, f.hasHash }

func (f *RefFunction) ComputeHash(isDFS bool, fn HashFunc) uint64 {
	blocks := f.layout
	if isDFS {
		blocks = f.dfs
	}
	f.hash = fn(blocks)
	f.hasHash = true
	return f.hash
}

// DFS and Layout hand back copies of the underlying block slice, so a
// caller appending to the result can never alias and corrupt f's own block
// ordering (the blocks themselves remain shared, mutable CFG nodes).
func (f *RefFunction) DFS() []BasicBlock    { return slices.Clone(f.dfs) }
func (f *RefFunction) Layout() []BasicBlock { return slices.Clone(f.layout) }

func (f *RefFunction) GetInstructionAtOffset(offset uint64) (Instruction, bool) {
	for _, b := range f.layout {
		rb := b.(*RefBlock)
		if offset < rb.inputOffset || offset >= rb.inputOffset+rb.originalSize {
			continue
		}
		return rb.instructionAtOffset(offset - rb.inputOffset)
	}
	return nil, false
}

func (f *RefFunction) GetSymbolForEntryID(discriminator uint32) MCSymbol {
	idx := int(discriminator)
	if idx < 0 || idx >= len(f.names) {
		idx = 0
	}
	if len(f.names) == 0 {
		return nil
	}
	return RefSymbol{Name: f.names[idx]}
}

func (f *RefFunction) GetAllCallSites() []RecordedCallSite { return f.callSites }

func (f *RefFunction) AddCallSite(site RecordedCallSite) {
	f.callSites = append(f.callSites, site)
}

func (f *RefFunction) SetExecutionCount(c uint64) { f.executionCount = c }
func (f *RefFunction) ExecutionCount() uint64     { return f.executionCount }

func (f *RefFunction) SetRawBranchCount(c uint64) { f.rawBranchCount = c }
func (f *RefFunction) RawBranchCount() uint64     { return f.rawBranchCount }

func (f *RefFunction) MarkProfiled(flags HeaderFlags) {
	f.profiled = true
	f.profiledFlags |= flags
}
func (f *RefFunction) HasProfile() bool { return f.profiled }

func (f *RefFunction) SetIgnored(v bool) { f.ignored = v }
func (f *RefFunction) Ignored() bool     { return f.ignored }

// RefContext is a reference BinaryContext backed by RefFunctions.
type RefContext struct {
	functions []BinaryFunction
	byName    map[string]*RefFunction
	stats     Stats
}

// NewRefContext returns an empty reference binary context.
func NewRefContext() *RefContext {
	return &RefContext{byName: make(map[string]*RefFunction)}
}

// AddFunction registers f under all of its names and adds it to the
// iteration order.
func (c *RefContext) AddFunction(f *RefFunction) {
	c.functions = append(c.functions, f)
	for _, n := range f.names {
		c.byName[n] = f
	}
}

func (c *RefContext) GetBinaryDataByName(name string) (BinaryData, bool) {
	if _, ok := c.byName[name]; !ok {
		return nil, false
	}
	return RefSymbol{Name: name}, true
}

func (c *RefContext) GetFunctionForSymbol(sym BinaryData) (BinaryFunction, bool) {
	f, ok := c.byName[sym.SymbolName()]
	if !ok {
		return nil, false
	}
	return f, true
}

func (c *RefContext) Functions() []BinaryFunction { return c.functions }

func (c *RefContext) Stats() *Stats { return &c.stats }

// --- Declarative builder, used by tests and the CLI demo fixture. ---

// InstrSpec describes one instruction to build within a BlockSpec.
type InstrSpec struct {
	Offset                uint64
	IsCall                bool
	IsIndirectCall        bool
	IsIndirectBranch      bool
	IsConditionalTailCall bool
}

// BlockSpec describes one basic block to build within a FuncSpec.
type BlockSpec struct {
	Label        string
	Entry        bool
	NonPseudo    int
	Calls        int
	Instructions []InstrSpec
	// Successors names blocks (by Label) this block branches to,
	// unconditionally or as the "taken" edge.
	Successors []string
	// FalseBranch names the fallthrough block, if this block ends in a
	// conditional branch.
	FalseBranch string
}

// FuncSpec declaratively describes a RefFunction: its blocks, and the DFS
// and layout orderings over them (by Label).
type FuncSpec struct {
	Names       []string
	Demangled   string
	Blocks      []BlockSpec
	LayoutOrder []string
	DFSOrder    []string
}

// BuildRefFunction materializes a FuncSpec into a RefFunction, wiring
// successor edges, the fallthrough block, and the DFS/layout orderings.
func BuildRefFunction(spec FuncSpec) *RefFunction {
	blocks := make(map[string]*RefBlock, len(spec.Blocks))
	var offset uint64
	for _, bs := range spec.Blocks {
		rb := &RefBlock{
			label:             bs.Label,
			inputOffset:       offset,
			isEntry:           bs.Entry,
			numNonPseudoInsns: bs.NonPseudo,
			numCalls:          bs.Calls,
		}
		for _, is := range bs.Instructions {
			rb.instructions = append(rb.instructions, &RefInstruction{
				offset:                is.Offset,
				isCall:                is.IsCall,
				isIndirectCall:        is.IsIndirectCall,
				isIndirectBranch:      is.IsIndirectBranch,
				isConditionalTailCall: is.IsConditionalTailCall,
			})
		}
		var maxEnd uint64
		for _, is := range bs.Instructions {
			if end := is.Offset + 1; end > maxEnd {
				maxEnd = end
			}
		}
		if maxEnd == 0 {
			maxEnd = 1
		}
		rb.originalSize = maxEnd
		offset += maxEnd
		blocks[bs.Label] = rb
	}

	for _, bs := range spec.Blocks {
		rb := blocks[bs.Label]
		for _, succ := range bs.Successors {
			rb.successors = append(rb.successors, &Edge{Target: blocks[succ]})
		}
		if bs.FalseBranch != "" {
			rb.falseBranch = blocks[bs.FalseBranch]
		}
	}

	f := &RefFunction{names: spec.Names, demangledName: spec.Demangled}
	for _, label := range spec.LayoutOrder {
		f.layout = append(f.layout, blocks[label])
	}
	for _, label := range spec.DFSOrder {
		f.dfs = append(f.dfs, blocks[label])
	}
	if len(f.layout) == 0 {
		for _, bs := range spec.Blocks {
			f.layout = append(f.layout, blocks[bs.Label])
		}
	}
	if len(f.dfs) == 0 {
		f.dfs = f.layout
	}
	return f
}
