package profattach

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProfiledFunctionCleanName(t *testing.T) {
	pf := ProfiledFunction{Name: "foo(*3)"}
	require.Equal(t, "foo", pf.CleanName())

	pf2 := ProfiledFunction{Name: "bar"}
	require.Equal(t, "bar", pf2.CleanName())
}

func TestProfiledFunctionRawBranchCount(t *testing.T) {
	pf := ProfiledFunction{
		Blocks: []ProfiledBlock{
			{Successors: []Successor{{Count: 70}, {Count: 30}}},
			{Successors: []Successor{{Count: 5}}},
		},
	}
	require.EqualValues(t, 105, pf.RawBranchCount())
}

func TestHeaderCheckSingleEvent(t *testing.T) {
	require.True(t, Header{EventNames: "cycles"}.CheckSingleEvent())
	require.False(t, Header{EventNames: "cycles,instructions"}.CheckSingleEvent())
}

func TestHeaderNormalization(t *testing.T) {
	h := Header{EventNames: "cycles"}
	require.True(t, h.NormalizeByInsnCount())
	require.False(t, h.NormalizeByCalls())

	h2 := Header{EventNames: "branches"}
	require.False(t, h2.NormalizeByInsnCount())
	require.True(t, h2.NormalizeByCalls())
}

func TestHeaderUsesEvent(t *testing.T) {
	h := Header{EventNames: "cycles:u"}
	require.True(t, h.UsesEvent("cycles"))
	require.False(t, h.UsesEvent("instructions"))
}

func TestHeaderIsSample(t *testing.T) {
	require.True(t, Header{Flags: FlagSample}.IsSample())
	require.False(t, Header{}.IsSample())
}
