package profattach

// NameIndex maps symbol spellings and LTO common-name prefixes to
// candidates on both the profile and binary sides (spec §4.A).
type NameIndex struct {
	// ProfileFunctionNames is the set of cleaned profile names.
	ProfileFunctionNames map[string]bool

	// ProfileBFs[i] is the name-lookup result for Functions[i], or nil.
	ProfileBFs []BinaryFunction

	// LTOCommonNameMap maps an LTO common name to every profiled
	// function sharing it.
	LTOCommonNameMap map[string][]*ProfiledFunction

	// LTOCommonNameFunctionMap maps an LTO common name to every binary
	// function sharing it.
	LTOCommonNameFunctionMap map[string][]BinaryFunction

	trustHashOnly bool
}

// BuildNameIndex implements preprocess's component-A construction: for each
// profiled function, clean its name, record it, resolve it to a binary
// function, and classify both sides under their LTO common name.
func BuildNameIndex(ctx BinaryContext, doc *ProfileDocument, cfg Config) *NameIndex {
	idx := &NameIndex{
		ProfileFunctionNames:     make(map[string]bool, len(doc.Functions)),
		ProfileBFs:               make([]BinaryFunction, len(doc.Functions)),
		LTOCommonNameMap:         make(map[string][]*ProfiledFunction),
		LTOCommonNameFunctionMap: make(map[string][]BinaryFunction),
		trustHashOnly:            cfg.TrustHashOnly,
	}

	for i := range doc.Functions {
		pf := &doc.Functions[i]
		name := pf.CleanName()
		idx.ProfileFunctionNames[name] = true

		if bd, ok := ctx.GetBinaryDataByName(name); ok {
			if bf, ok := ctx.GetFunctionForSymbol(bd); ok {
				idx.ProfileBFs[i] = bf
			}
		}

		if common, ok := getLTOCommonName(name); ok {
			idx.LTOCommonNameMap[common] = append(idx.LTOCommonNameMap[common], pf)
		}
	}

	for _, bf := range ctx.Functions() {
		for _, name := range bf.Names() {
			if common, ok := getLTOCommonName(name); ok {
				idx.LTOCommonNameFunctionMap[common] = append(idx.LTOCommonNameFunctionMap[common], bf)
				break
			}
		}
	}

	return idx
}

// MayHaveProfileData reports whether bf could plausibly be matched by the
// profile currently loaded: one of its names is a known profile name, one
// of its LTO common names collides with a profiled common name, or the run
// is configured to trust hash matching alone (spec §4.A(iii)).
func (idx *NameIndex) MayHaveProfileData(bf BinaryFunction) bool {
	if idx.trustHashOnly {
		return true
	}
	for _, name := range bf.Names() {
		if idx.ProfileFunctionNames[name] {
			return true
		}
		if common, ok := getLTOCommonName(name); ok {
			if _, ok := idx.LTOCommonNameMap[common]; ok {
				return true
			}
		}
	}
	return false
}
