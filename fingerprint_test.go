package profattach

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func twoBlockFunc() *RefFunction {
	return BuildRefFunction(FuncSpec{
		Names:       []string{"f"},
		LayoutOrder: []string{"b0", "b1"},
		Blocks: []BlockSpec{
			{Label: "b0", Entry: true, NonPseudo: 2, Successors: []string{"b1"}},
			{Label: "b1", NonPseudo: 1},
		},
	})
}

func TestHashStdDeterministic(t *testing.T) {
	f1 := twoBlockFunc()
	f2 := twoBlockFunc()

	h1 := hashStd(f1.Layout())
	h2 := hashStd(f2.Layout())
	require.Equal(t, h1, h2)
}

func TestHashDiffersOnShape(t *testing.T) {
	f1 := twoBlockFunc()
	f2 := BuildRefFunction(FuncSpec{
		Names:       []string{"g"},
		LayoutOrder: []string{"b0", "b1", "b2"},
		Blocks: []BlockSpec{
			{Label: "b0", Entry: true, NonPseudo: 2, Successors: []string{"b1", "b2"}},
			{Label: "b1", NonPseudo: 1},
			{Label: "b2", NonPseudo: 1},
		},
	})

	require.NotEqual(t, hashStd(f1.Layout()), hashStd(f2.Layout()))
}

func TestHashAlgorithmsDisagree(t *testing.T) {
	f := twoBlockFunc()
	require.NotEqual(t, hashStd(f.Layout()), hashXXH3(f.Layout()))
}

func TestComputeHashCaches(t *testing.T) {
	f := twoBlockFunc()
	_, ok := f.GetHash()
	require.False(t, ok)

	h := f.ComputeHash(false, hashStd)
	cached, ok := f.GetHash()
	require.True(t, ok)
	require.Equal(t, h, cached)
}
