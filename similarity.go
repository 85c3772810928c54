package profattach

import (
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/ianlancetaylor/demangle"
)

// restoreSanitizedName reverses the ".:" placeholder the profile producer
// substitutes for "::" inside symbol names (chosen because the text
// profile format's own fields never contain it), per spec §4.D step 1
// ("restoring any internal name-sanitization marks first").
func restoreSanitizedName(name string) string {
	return strings.ReplaceAll(name, ".:", "::")
}

// demangleProfileName demangles a profile-side symbol name, stripping
// parameter and template-argument lists so namespace/leaf splitting stays
// simple. Returns ("", false) on failure, per spec §4.D step 1 ("Empty on
// failure").
func demangleProfileName(name string) (string, bool) {
	name = restoreSanitizedName(name)

	out, ok := demangleSafely(name)
	if !ok || out == name {
		return "", false
	}
	return out, true
}

// demangleSafely calls into the demangler, recovering from any panic the
// library raises on malformed input, since this path must never abort
// matching (spec §4.D: "Empty on failure").
func demangleSafely(name string) (out string, ok bool) {
	defer func() {
		if recover() != nil {
			out, ok = "", false
		}
	}()
	result := demangle.Filter(name, demangle.NoParams, demangle.NoTemplateParams)
	return result, true
}

// splitNamespace derives the fully-qualified declaration context (every
// "::"-delimited component but the last) from a demangled name, ignoring
// "::" nested inside <...> or (...). Returns "" if name has no namespace.
func splitNamespace(name string) string {
	depth := 0
	lastSep := -1
	for i := 0; i < len(name)-1; i++ {
		switch name[i] {
		case '<', '(':
			depth++
		case '>', ')':
			if depth > 0 {
				depth--
			}
		case ':':
			if depth == 0 && name[i+1] == ':' {
				lastSep = i
			}
		}
	}
	if lastSep < 0 {
		return ""
	}
	return name[:lastSep]
}

// SimilarityMatcher implements stage S6 of spec §4.C, described in detail
// in §4.D: recovering matches when symbols differ but namespace and shape
// are preserved.
type SimilarityMatcher struct {
	threshold int
}

// NewSimilarityMatcher returns a SimilarityMatcher using the given
// edit-distance threshold. A threshold of 0 means the caller should not run
// it at all (Config.NameSimilarityThreshold == 0 disables stage S6).
func NewSimilarityMatcher(threshold int) *SimilarityMatcher {
	return &SimilarityMatcher{threshold: threshold}
}

type profileCandidate struct {
	pf        *ProfiledFunction
	namespace string
	demangled string
}

// Run performs stage S6 over m's matcher state: it claims every unclaimed
// profile record it can bind to an unclaimed binary function sharing its
// namespace and block count, within the edit-distance threshold.
func (s *SimilarityMatcher) Run(m *Matcher) {
	if s.threshold <= 0 {
		return
	}

	// Step 1+2: demangle unclaimed profile records, bucket block counts
	// by namespace.
	namespaceBlockCounts := make(map[string]map[int]bool)
	var candidates []profileCandidate
	for i := range m.doc.Functions {
		pf := &m.doc.Functions[i]
		if pf.Used {
			continue
		}
		demangled, ok := demangleProfileName(pf.Name)
		if !ok {
			continue
		}
		ns := splitNamespace(demangled)
		if ns == "" {
			continue
		}
		candidates = append(candidates, profileCandidate{pf: pf, namespace: ns, demangled: demangled})
		if namespaceBlockCounts[ns] == nil {
			namespaceBlockCounts[ns] = make(map[int]bool)
		}
		namespaceBlockCounts[ns][pf.NumBasicBlocks] = true
	}

	// Step 3: bucket unclaimed binary functions by namespace, discarding
	// any whose namespace has no profiled records with equal block
	// count.
	byNamespace := make(map[string][]BinaryFunction)
	for _, bf := range m.ctx.Functions() {
		if m.claimed(bf) {
			continue
		}
		ns := splitNamespace(bf.DemangledName())
		if ns == "" {
			continue
		}
		counts, ok := namespaceBlockCounts[ns]
		if !ok || !counts[bf.Size()] {
			continue
		}
		byNamespace[ns] = append(byNamespace[ns], bf)
	}

	// Step 4: for each unclaimed profile record, pick the binary
	// function in its namespace bucket with equal block count and
	// minimal edit distance, binding if within threshold.
	for _, cand := range candidates {
		if cand.pf.Used {
			continue
		}
		var best BinaryFunction
		bestDist := -1
		for _, bf := range byNamespace[cand.namespace] {
			if m.claimed(bf) || bf.Size() != cand.pf.NumBasicBlocks {
				continue
			}
			dist := levenshtein.ComputeDistance(cand.demangled, bf.DemangledName())
			if bestDist < 0 || dist < bestDist {
				bestDist = dist
				best = bf
			}
		}
		if best != nil && bestDist <= s.threshold {
			m.claim(cand.pf, best)
			m.stats.MatchedWithNameSimilarity++
		}
	}
}
