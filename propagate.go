package profattach

import "log"

// CountNoProfile is the sentinel execution count assigned to a function or
// block before real profile data is known to apply to it; Finalization
// resets any block still bearing it to zero (spec §4.E).
const CountNoProfile = ^uint64(0)

// StaleProfileInferrer is the external min-cost-flow stale-profile
// inference hook invoked when a matched pair's propagation reports a
// mismatch and Config.InferStaleProfile is set. It is out of scope for
// this core (spec §1); callers supply a real implementation.
type StaleProfileInferrer func(bf BinaryFunction, pf *ProfiledFunction) bool

// Propagator stamps execution, branch, and call-site counts from a matched
// ProfiledFunction onto a BinaryFunction's control-flow graph (spec §4.E).
type Propagator struct {
	cfg        Config
	header     Header
	stats      *Stats
	hashFn     HashFunc
	isDFS      bool
	inferStale StaleProfileInferrer
}

// NewPropagator returns a Propagator for the given profile header and
// configuration. inferStale may be nil; it is only consulted when
// Config.InferStaleProfile is set.
func NewPropagator(header Header, cfg Config, stats *Stats, inferStale StaleProfileInferrer) *Propagator {
	return &Propagator{
		cfg:        cfg,
		header:     header,
		stats:      stats,
		hashFn:     HashForFunction(header.HashFunction),
		isDFS:      cfg.blockOrder(header),
		inferStale: inferStale,
	}
}

// order returns bf's blocks in whichever ordering the profile's block
// indices refer into: DFS pre-order or layout order.
func (p *Propagator) order(bf BinaryFunction) []BasicBlock {
	if p.isDFS {
		return bf.DFS()
	}
	return bf.Layout()
}

// Propagate stamps pf's counts onto bf and returns the function-level
// match verdict. yamlProfileToFunction resolves a CallSite.DestId to the
// callee claimed for it, per spec §4.E "Call sites" step 1.
func (p *Propagator) Propagate(pf *ProfiledFunction, bf BinaryFunction, yamlProfileToFunction []BinaryFunction) bool {
	if bf.Empty() {
		bf.MarkProfiled(p.header.Flags)
		return true
	}

	order := p.order(bf)

	bf.SetExecutionCount(pf.ExecCount)
	bf.SetRawBranchCount(pf.RawBranchCount())

	profileMatched := true
	if !p.cfg.ProfileIgnoreHash {
		h := hashOf(bf, p.isDFS, p.hashFn)
		if h != pf.Hash {
			profileMatched = false
			if len(order) == pf.NumBasicBlocks {
				p.stats.NumStaleFuncsWithEqualBlockCount++
			}
		}
	}
	if len(order) != pf.NumBasicBlocks {
		profileMatched = false
	}

	for _, bb := range order {
		bb.SetExecutionCount(CountNoProfile)
	}

	var mismatchedBlocks, mismatchedCalls, mismatchedEdges int
	var functionExecutionCount uint64

	for _, pb := range pf.Blocks {
		if pb.Index >= len(order) {
			mismatchedBlocks++
			continue
		}
		bb := order[pb.Index]

		if p.header.IsSample() {
			p.propagateSampleBlock(bb, pb, &functionExecutionCount)
			continue
		}

		bb.SetExecutionCount(pb.ExecCount)
		p.propagateCallSites(bf, bb, pb, yamlProfileToFunction, &mismatchedCalls)
		p.propagateSuccessors(bb, pb, order, &mismatchedEdges)
	}

	for _, bb := range order {
		if bb.ExecutionCount() == CountNoProfile {
			bb.SetExecutionCount(0)
		}
	}

	if p.header.IsSample() {
		bf.SetExecutionCount(functionExecutionCount)
	}

	p.stats.MismatchedBlocks += mismatchedBlocks
	p.stats.MismatchedCalls += mismatchedCalls
	p.stats.MismatchedEdges += mismatchedEdges

	verdict := profileMatched && mismatchedBlocks == 0 && mismatchedCalls == 0 && mismatchedEdges == 0
	if !verdict && p.cfg.InferStaleProfile && p.inferStale != nil {
		verdict = p.inferStale(bf, pf)
		if verdict {
			p.stats.NumStaleRecovered++
		}
	}
	if verdict {
		bf.MarkProfiled(p.header.Flags)
	}
	return verdict
}

// propagateSampleBlock implements spec §4.E's sample-mode block rule: no
// branches or call sites are stamped in this mode.
func (p *Propagator) propagateSampleBlock(bb BasicBlock, pb ProfiledBlock, functionExecutionCount *uint64) {
	if !pb.HasEventCount || pb.EventCount == 0 {
		bb.SetExecutionCount(0)
		return
	}

	s := pb.EventCount * 1000
	switch {
	case p.header.NormalizeByInsnCount() && bb.NumNonPseudoInstructions() > 0:
		s /= uint64(bb.NumNonPseudoInstructions())
	case p.header.NormalizeByCalls():
		s /= uint64(bb.NumCalls() + 1)
	}

	bb.SetExecutionCount(s)
	if bb.IsEntryPoint() {
		*functionExecutionCount += s
	}
}

// propagateCallSites implements spec §4.E's "Call sites" rule.
func (p *Propagator) propagateCallSites(bf BinaryFunction, bb BasicBlock, pb ProfiledBlock, yamlProfileToFunction []BinaryFunction, mismatchedCalls *int) {
	for _, cs := range pb.CallSites {
		var callee MCSymbol
		if cs.DestId >= 0 && cs.DestId < len(yamlProfileToFunction) {
			if target := yamlProfileToFunction[cs.DestId]; target != nil {
				callee = target.GetSymbolForEntryID(cs.EntryDiscriminator)
			}
		}

		bf.AddCallSite(RecordedCallSite{Callee: callee, Count: cs.Count, Mispreds: cs.Mispreds, Offset: cs.Offset})

		if cs.Offset >= bb.OriginalSize() {
			*mismatchedCalls++
			continue
		}
		insn, ok := bf.GetInstructionAtOffset(bb.InputOffset() + cs.Offset)
		if !ok || !(insn.IsCall() || insn.IsIndirectBranch()) {
			*mismatchedCalls++
			continue
		}

		ann := insn.Annotations()
		switch {
		case insn.IsIndirectCall() || insn.IsIndirectBranch():
			ann.AppendCallProfile(CallProfileEntry{Callee: callee, Count: cs.Count, Mispreds: cs.Mispreds})
		case insn.GetConditionalTailCall():
			if !ann.SetScalar(AnnotationCTCTakenCount, cs.Count) {
				p.warnDuplicate("CTCTakenCount", cs.Offset)
			}
			if !ann.SetScalar(AnnotationCTCMispredCount, cs.Mispreds) {
				p.warnDuplicate("CTCMispredCount", cs.Offset)
			}
		default:
			if !ann.SetScalar(AnnotationCount, cs.Count) {
				p.warnDuplicate("Count", cs.Offset)
			}
		}
	}
}

// propagateSuccessors implements spec §4.E's "Successors" rule, including
// the one-hop pass-through heuristic.
func (p *Propagator) propagateSuccessors(bb BasicBlock, pb ProfiledBlock, order []BasicBlock, mismatchedEdges *int) {
	for _, succ := range pb.Successors {
		if succ.Index >= len(order) {
			*mismatchedEdges++
			continue
		}
		toBB := order[succ.Index]

		edge := findEdgeTo(bb, toBB)
		if edge == nil {
			if ft, ok := bb.FalseBranch(); ok {
				if ftSucc := ft.Successors(); len(ftSucc) == 1 && ftSucc[0].Target == toBB {
					onward := ft.GetOrCreateEdge(toBB)
					onward.add(succ.Count, succ.Mispreds)
					edge = bb.GetOrCreateEdge(ft)
				}
			}
		}
		if edge == nil {
			*mismatchedEdges++
			continue
		}
		edge.add(succ.Count, succ.Mispreds)
	}
}

func findEdgeTo(bb BasicBlock, target BasicBlock) *Edge {
	for _, e := range bb.Successors() {
		if e.Target == target {
			return e
		}
	}
	return nil
}

func (p *Propagator) warnDuplicate(annotation string, offset uint64) {
	p.stats.DuplicateAnnotations++
	if p.cfg.Verbosity > 0 {
		log.Printf("profattach: duplicate %s annotation at offset %d, keeping original", annotation, offset)
	}
}
