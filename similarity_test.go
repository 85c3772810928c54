package profattach

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func oneBlockFunc(names []string, demangled string) *RefFunction {
	return BuildRefFunction(FuncSpec{
		Names:       names,
		Demangled:   demangled,
		LayoutOrder: []string{"b0"},
		Blocks:      []BlockSpec{{Label: "b0", Entry: true, NonPseudo: 1}},
	})
}

func TestSplitNamespace(t *testing.T) {
	require.Equal(t, "ns", splitNamespace("ns::bar"))
	require.Equal(t, "a::b", splitNamespace("a::b::c"))
	require.Equal(t, "", splitNamespace("bar"))
	require.Equal(t, "ns::tmpl<a::b>", splitNamespace("ns::tmpl<a::b>::leaf"))
}

func TestDemangleProfileName(t *testing.T) {
	out, ok := demangleProfileName("_ZN2ns3barEv")
	require.True(t, ok)
	require.Equal(t, "ns::bar", out)

	_, ok = demangleProfileName("not_mangled")
	require.False(t, ok)
}

// TestSimilarityMatcherWithinThreshold reproduces the renamed-leaf scenario:
// a profile record for ns::bar is unclaimed, and the only unclaimed binary
// function in that namespace with the same block count is ns::baz, one
// edit away.
func TestSimilarityMatcherWithinThreshold(t *testing.T) {
	ctx := NewRefContext()
	bf := oneBlockFunc([]string{"ns_baz"}, "ns::baz")
	ctx.AddFunction(bf)

	doc := &ProfileDocument{
		Header:    Header{Version: 1},
		Functions: []ProfiledFunction{{Id: 1, Name: "_ZN2ns3barEv", Hash: ^uint64(0), NumBasicBlocks: 1}},
	}

	m := buildMatcher(ctx, doc, DefaultConfig())
	m.Run()
	require.False(t, m.claimed(bf))

	NewSimilarityMatcher(2).Run(m)

	require.True(t, m.claimed(bf))
	require.EqualValues(t, 1, m.stats.MatchedWithNameSimilarity)
}

func TestSimilarityMatcherBeyondThreshold(t *testing.T) {
	ctx := NewRefContext()
	bf := oneBlockFunc([]string{"ns_baz"}, "ns::baz")
	ctx.AddFunction(bf)

	doc := &ProfileDocument{
		Header:    Header{Version: 1},
		Functions: []ProfiledFunction{{Id: 1, Name: "_ZN2ns3barEv", Hash: ^uint64(0), NumBasicBlocks: 1}},
	}

	m := buildMatcher(ctx, doc, DefaultConfig())
	m.Run()

	NewSimilarityMatcher(0).Run(m)
	require.False(t, m.claimed(bf))
}
