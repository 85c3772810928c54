package profattach

import "regexp"

// ltoSuffixes are recognized link-time-optimization mangling suffixes, in
// the order BOLT-style tooling checks them. Each pattern anchors at the end
// of the symbol name.
var ltoSuffixes = []*regexp.Regexp{
	regexp.MustCompile(`\.llvm\.\d+$`),
	regexp.MustCompile(`\.lto_priv\.\d+$`),
	regexp.MustCompile(`\.constprop\.\d+$`),
	regexp.MustCompile(`\.part\.\d+$`),
}

// getLTOCommonName returns the longest prefix of name preceding a
// recognized LTO mangling suffix, or ("", false) if name carries none.
func getLTOCommonName(name string) (string, bool) {
	for _, re := range ltoSuffixes {
		if loc := re.FindStringIndex(name); loc != nil {
			return name[:loc[0]], true
		}
	}
	return "", false
}
