package profattach

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func buildMatcher(ctx BinaryContext, doc *ProfileDocument, cfg Config) *Matcher {
	names := BuildNameIndex(ctx, doc, cfg)
	stats := &Stats{}
	m := NewMatcher(ctx, doc, cfg, names, stats)
	m.stagePreliminary()
	return m
}

func TestMatcherExactStageClaimsByNameAndHash(t *testing.T) {
	ctx := NewRefContext()
	f := twoBlockFunc()
	ctx.AddFunction(f)

	h := hashStd(f.Layout())
	doc := &ProfileDocument{
		Header:    Header{Version: 1},
		Functions: []ProfiledFunction{{Id: 1, Name: "f", Hash: h, NumBasicBlocks: 2, ExecCount: 10}},
	}

	m := buildMatcher(ctx, doc, DefaultConfig())
	m.Run()

	require.EqualValues(t, 1, m.stats.MatchedByName)
	require.True(t, m.claimed(f))
	require.Same(t, BinaryFunction(f), m.YamlProfileToFunction[1])
}

// TestMatcherRenameViaHash covers S3: a function renamed on the binary side
// (so the name index can't resolve it) is still matched when
// MatchProfileWithFunctionHash is enabled and its fingerprint is unique.
func TestMatcherRenameViaHash(t *testing.T) {
	ctx := NewRefContext()
	f := twoBlockFunc()
	f.names = []string{"f_renamed"}
	ctx.AddFunction(f)

	h := hashStd(f.Layout())
	doc := &ProfileDocument{
		Header:    Header{Version: 1},
		Functions: []ProfiledFunction{{Id: 1, Name: "f", Hash: h, NumBasicBlocks: 2}},
	}

	cfg := DefaultConfig()
	cfg.MatchProfileWithFunctionHash = true
	m := buildMatcher(ctx, doc, cfg)
	m.Run()

	require.EqualValues(t, 0, m.stats.MatchedByName)
	require.EqualValues(t, 1, m.stats.MatchedByHash)
	require.True(t, m.claimed(f))
}

// TestMatcherLTOCommonBucket covers S4: an LLVM-suffixed rename defeats exact
// name matching, but both sides share one LTO common-name bucket with a
// single member each, so S4 binds them unconditionally.
func TestMatcherLTOCommonBucket(t *testing.T) {
	ctx := NewRefContext()
	f := twoBlockFunc()
	f.names = []string{"foo.llvm.222"}
	ctx.AddFunction(f)

	doc := &ProfileDocument{
		Header:    Header{Version: 1},
		Functions: []ProfiledFunction{{Id: 1, Name: "foo.llvm.111", Hash: ^uint64(0), NumBasicBlocks: 99}},
	}

	m := buildMatcher(ctx, doc, DefaultConfig())
	m.Run()

	require.EqualValues(t, 0, m.stats.MatchedByName)
	require.EqualValues(t, 1, m.stats.MatchedByLTO)
	require.True(t, m.claimed(f))
}

// TestMatcherResidualClaimCheck covers S5's resolution of the open question:
// a name-paired record whose binary function was already claimed by another
// record earlier in the cascade must not be claimed again.
func TestMatcherResidualClaimCheck(t *testing.T) {
	ctx := NewRefContext()
	f := twoBlockFunc()
	ctx.AddFunction(f)

	doc := &ProfileDocument{
		Header: Header{Version: 1},
		Functions: []ProfiledFunction{
			{Id: 1, Name: "f", Hash: hashStd(f.Layout()), NumBasicBlocks: 2},
			{Id: 2, Name: "f", Hash: ^uint64(0), NumBasicBlocks: 2},
		},
	}

	m := buildMatcher(ctx, doc, DefaultConfig())
	// The preliminary stage drops the duplicate ProfileBFs slot; restore it
	// so the second record reaches the residual stage still name-paired.
	m.names.ProfileBFs[1] = f
	m.Run()

	require.True(t, m.claimed(f))
	require.Nil(t, m.YamlProfileToFunction[2])
}

func TestMatcherStagesRunInOrder(t *testing.T) {
	ctx := NewRefContext()
	exact := twoBlockFunc()
	exact.names = []string{"exact"}
	ctx.AddFunction(exact)

	doc := &ProfileDocument{
		Header: Header{Version: 1},
		Functions: []ProfiledFunction{
			{Id: 1, Name: "exact", Hash: hashStd(exact.Layout()), NumBasicBlocks: 2},
		},
	}

	cfg := DefaultConfig()
	cfg.MatchProfileWithFunctionHash = true
	m := buildMatcher(ctx, doc, cfg)
	m.Run()

	require.EqualValues(t, 1, m.stats.MatchedByName)
	require.EqualValues(t, 0, m.stats.MatchedByHash)
}
