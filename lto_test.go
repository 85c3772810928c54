package profattach

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetLTOCommonName(t *testing.T) {
	cases := []struct {
		name   string
		common string
		ok     bool
	}{
		{"foo.llvm.111", "foo", true},
		{"foo.llvm.222", "foo", true},
		{"bar.lto_priv.42", "bar", true},
		{"baz", "", false},
		{"qux.part.9", "qux", true},
	}
	for _, c := range cases {
		common, ok := getLTOCommonName(c.name)
		require.Equal(t, c.ok, ok, c.name)
		if c.ok {
			require.Equal(t, c.common, common, c.name)
		}
	}
}
