package profattach

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPreprocessProfileRejectsUnsupportedVersion(t *testing.T) {
	ctx := NewRefContext()
	doc := &ProfileDocument{Header: Header{Version: 2}}

	_, err := PreprocessProfile(ctx, doc, DefaultConfig(), nil)
	require.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestPreprocessProfileRejectsMultiEvent(t *testing.T) {
	ctx := NewRefContext()
	doc := &ProfileDocument{Header: Header{Version: 1, EventNames: "cycles,instructions"}}

	_, err := PreprocessProfile(ctx, doc, DefaultConfig(), nil)
	require.ErrorIs(t, err, ErrMultiEventProfile)
}

// TestReaderEndToEnd drives PreprocessProfile and ReadProfile together over
// a single exact-name match, exercising the full control flow described for
// this core: preprocess builds the name index and runs the preliminary
// pass, ReadProfile runs the matcher cascade and then propagation.
func TestReaderEndToEnd(t *testing.T) {
	ctx := NewRefContext()
	f := twoBlockFunc()
	ctx.AddFunction(f)

	h := hashStd(f.Layout())
	doc := &ProfileDocument{
		Header: Header{Version: 1, EventNames: "cycles"},
		Functions: []ProfiledFunction{
			{
				Id: 1, Name: "f", Hash: h, NumBasicBlocks: 2, ExecCount: 42,
				Blocks: []ProfiledBlock{
					{Index: 0, ExecCount: 42, Successors: []Successor{{Index: 1, Count: 42}}},
					{Index: 1, ExecCount: 42},
				},
			},
		},
	}

	reader, err := PreprocessProfile(ctx, doc, DefaultConfig(), nil)
	require.NoError(t, err)

	require.True(t, reader.MayHaveProfileData(f))
	require.True(t, reader.UsesEvent("cycles"))

	require.NoError(t, reader.ReadProfile())

	require.True(t, f.HasProfile())
	require.EqualValues(t, 42, f.ExecutionCount())
	require.EqualValues(t, 1, reader.Stats().MatchedByName)
}

func TestReaderLiteMarksUnprofiledIgnored(t *testing.T) {
	ctx := NewRefContext()
	profiled := twoBlockFunc()
	unprofiled := twoBlockFunc()
	unprofiled.names = []string{"unprofiled"}
	ctx.AddFunction(profiled)
	ctx.AddFunction(unprofiled)

	h := hashStd(profiled.Layout())
	doc := &ProfileDocument{
		Header: Header{Version: 1},
		Functions: []ProfiledFunction{
			{Id: 1, Name: "f", Hash: h, NumBasicBlocks: 2},
		},
	}

	cfg := DefaultConfig()
	cfg.Lite = true
	cfg.InferStaleProfile = true

	reader, err := PreprocessProfile(ctx, doc, cfg, func(BinaryFunction, *ProfiledFunction) bool { return true })
	require.NoError(t, err)
	require.NoError(t, reader.ReadProfile())

	require.True(t, unprofiled.Ignored())
	require.False(t, profiled.Ignored())
}

func TestIsYAMLProbe(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/profile.yaml"
	require.NoError(t, os.WriteFile(path, []byte("---\nversion: 1\n"), 0o644))

	ok, err := IsYAML(path)
	require.NoError(t, err)
	require.True(t, ok)

	path2 := dir + "/not-yaml.txt"
	require.NoError(t, os.WriteFile(path2, []byte("plain text"), 0o644))
	ok2, err := IsYAML(path2)
	require.NoError(t, err)
	require.False(t, ok2)
}
