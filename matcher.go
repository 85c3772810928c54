package profattach

// Matcher drives the ordered stage cascade of spec §4.C: S1 (preliminary,
// run during preprocess), S2 (exact), S3 (hash-only, optional), S4 (LTO
// common), S5 (residual by position), and S6 (similarity, §4.D, optional).
// Each stage shares one "claim" primitive and the same two tables:
// YamlProfileToFunction and ProfiledFunctions.
type Matcher struct {
	ctx   BinaryContext
	doc   *ProfileDocument
	cfg   Config
	names *NameIndex
	stats *Stats

	// YamlProfileToFunction maps a ProfiledFunction.Id to the
	// BinaryFunction that claimed it. Sized len(Functions)+1; slot 0 is
	// never claimed and stays nil (spec Design Notes §9 — Id values are
	// 1-based), so a CallSite.DestId of 0 resolves to no callee.
	YamlProfileToFunction []BinaryFunction

	// ProfiledFunctions is the set of already-claimed binary functions.
	ProfiledFunctions map[BinaryFunction]bool

	hashFn HashFunc
	isDFS  bool

	hashIndex *HashIndex
}

// NewMatcher constructs a Matcher over ctx/doc/cfg, reusing the NameIndex
// built during preprocessing.
func NewMatcher(ctx BinaryContext, doc *ProfileDocument, cfg Config, names *NameIndex, stats *Stats) *Matcher {
	return &Matcher{
		ctx:                    ctx,
		doc:                    doc,
		cfg:                    cfg,
		names:                  names,
		stats:                  stats,
		YamlProfileToFunction:  make([]BinaryFunction, len(doc.Functions)+1),
		ProfiledFunctions:      make(map[BinaryFunction]bool, len(doc.Functions)),
		hashFn:                 HashForFunction(doc.Header.HashFunction),
		isDFS:                  cfg.blockOrder(doc.Header),
	}
}

// claim binds a profiled function to a binary function: spec §4.C's common
// primitive, shared by every stage.
func (m *Matcher) claim(pf *ProfiledFunction, bf BinaryFunction) {
	m.YamlProfileToFunction[pf.Id] = bf
	pf.Used = true
	m.ProfiledFunctions[bf] = true
}

func (m *Matcher) claimed(bf BinaryFunction) bool {
	return m.ProfiledFunctions[bf]
}

// fingerprint returns bf's structural hash under the matcher's configured
// algorithm and block order.
func (m *Matcher) fingerprint(bf BinaryFunction) uint64 {
	return hashOf(bf, m.isDFS, m.hashFn)
}

// shapeMatches reports whether pf and bf agree on the criterion that
// distinguishes an "exact" match: block count under IgnoreHash, hash
// otherwise.
func (m *Matcher) shapeMatches(pf *ProfiledFunction, bf BinaryFunction) bool {
	if m.cfg.ProfileIgnoreHash {
		return pf.NumBasicBlocks == bf.Size()
	}
	h, ok := bf.GetHash()
	if !ok {
		h = m.fingerprint(bf)
	}
	return h == pf.Hash
}

// stagePreliminary is S1: for each name-matched pair found by the name
// index, provisionally set the binary function's ExecCount, or drop the
// slot with a duplicate warning if some other record already claimed it
// preliminarily. Run once, during preprocess, before any other stage.
func (m *Matcher) stagePreliminary() {
	seen := make(map[BinaryFunction]bool, len(m.doc.Functions))
	for i := range m.doc.Functions {
		pf := &m.doc.Functions[i]
		bf := m.names.ProfileBFs[i]
		if bf == nil {
			continue
		}
		if seen[bf] {
			m.names.ProfileBFs[i] = nil
			m.stats.DuplicateProfiles++
			continue
		}
		seen[bf] = true
		bf.SetExecutionCount(pf.ExecCount)
	}
}

// stageExact is S2: a name-matched pair whose shape agrees (hash, or block
// count under IgnoreHash) is claimed. The preliminary ExecCount set by S1
// is first reset to the sentinel, since S2's claim will assign the real
// value during propagation.
func (m *Matcher) stageExact() {
	for i := range m.doc.Functions {
		pf := &m.doc.Functions[i]
		if pf.Used {
			continue
		}
		bf := m.names.ProfileBFs[i]
		if bf == nil || m.claimed(bf) {
			continue
		}
		bf.SetExecutionCount(CountNoProfile)
		if m.shapeMatches(pf, bf) {
			m.claim(pf, bf)
			m.stats.MatchedByName++
		}
	}
}

// stageHashOnly is S3, enabled by Config.MatchProfileWithFunctionHash: for
// every unclaimed record, match by fingerprint alone against every
// unclaimed binary function.
func (m *Matcher) stageHashOnly() {
	if !m.cfg.MatchProfileWithFunctionHash {
		return
	}
	m.hashIndex = BuildHashIndex(m.ctx, m.isDFS, m.hashFn)
	for i := range m.doc.Functions {
		pf := &m.doc.Functions[i]
		if pf.Used {
			continue
		}
		bf, ok := m.hashIndex.Lookup(pf.Hash)
		if !ok || m.claimed(bf) {
			continue
		}
		m.claim(pf, bf)
		m.stats.MatchedByHash++
	}
}

// stageLTOCommon is S4: for each LTO common name present on both sides,
// scan the binary-function bucket and take the first whose shape matches
// an unused profile record in the same bucket. If exactly one record and
// one function share the bucket and neither was matched, bind them
// unconditionally.
func (m *Matcher) stageLTOCommon() {
	for common, pfs := range m.names.LTOCommonNameMap {
		bfs, ok := m.names.LTOCommonNameFunctionMap[common]
		if !ok {
			continue
		}

		var unusedPFs []*ProfiledFunction
		for _, pf := range pfs {
			if !pf.Used {
				unusedPFs = append(unusedPFs, pf)
			}
		}
		var unclaimedBFs []BinaryFunction
		for _, bf := range bfs {
			if !m.claimed(bf) {
				unclaimedBFs = append(unclaimedBFs, bf)
			}
		}

		if len(unusedPFs) == 1 && len(unclaimedBFs) == 1 {
			m.claim(unusedPFs[0], unclaimedBFs[0])
			m.stats.MatchedByLTO++
			continue
		}

		for _, pf := range unusedPFs {
			if pf.Used {
				continue
			}
			for _, bf := range unclaimedBFs {
				if m.claimed(bf) {
					continue
				}
				if m.shapeMatches(pf, bf) {
					m.claim(pf, bf)
					m.stats.MatchedByLTO++
					break
				}
			}
		}
	}
}

// stageResidual is S5: every still name-paired (ProfileBFs[i], Functions[i])
// where the profile is unused and the binary function unclaimed is bound,
// tolerating a shape mismatch (downstream stale-profile inference is
// expected to reconcile it). Per spec Design Notes §9, the ProfiledFunctions
// claim check is enforced explicitly here, resolving the open question in
// the matcher's favor.
func (m *Matcher) stageResidual() {
	for i := range m.doc.Functions {
		pf := &m.doc.Functions[i]
		if pf.Used {
			continue
		}
		bf := m.names.ProfileBFs[i]
		if bf == nil || m.claimed(bf) {
			continue
		}
		m.claim(pf, bf)
		m.stats.MatchedByPosition++
	}
}

// Run executes stages S2 through S5 in order (S1 runs separately, during
// preprocess; S6 runs separately too, since it is conditional on
// Config.NameSimilarityThreshold and needs the demangler/edit-distance
// collaborators of §4.D).
func (m *Matcher) Run() {
	m.stageExact()
	m.stageHashOnly()
	m.stageLTOCommon()
	m.stageResidual()
}
