// Copyright 2024 The profattach Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package profattach

import (
	"errors"
	"fmt"
	"log"
	"os"
)

// yamlProbe is the literal prefix a conforming profile document begins
// with (spec §6).
const yamlProbe = "---\n"

// ErrMultiEventProfile is returned by PreprocessProfile when the profile's
// event-names string names more than one event.
var ErrMultiEventProfile = errors.New("profattach: multi-event profiles are not supported")

// ErrUnsupportedVersion is returned by PreprocessProfile when the header's
// schema version is not 1.
var ErrUnsupportedVersion = errors.New("profattach: unsupported profile schema version")

// IsYAML reports whether the file at path begins with the profile
// document's literal probe sequence. A file-open failure is returned as an
// error (spec §7 tier 1).
func IsYAML(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("profattach: opening %s: %w", path, err)
	}
	defer f.Close()

	buf := make([]byte, len(yamlProbe))
	n, err := f.Read(buf)
	if err != nil && n == 0 {
		return false, nil
	}
	return string(buf[:n]) == yamlProbe, nil
}

// Reader owns the matcher tables built by PreprocessProfile and drives
// ReadProfile; it is the Go home for spec §2's control flow ("preprocess
// loads the document, builds A; readProfile computes fingerprints, runs C
// ... then D, then calls E once per successfully matched pair").
type Reader struct {
	ctx  BinaryContext
	doc  *ProfileDocument
	cfg  Config
	stats *Stats

	names   *NameIndex
	matcher *Matcher

	inferStale StaleProfileInferrer
}

// PreprocessProfile validates the profile header, builds the Name Index
// (component A), and runs the preliminary matching pass (stage S1). It is
// the only place the two fatal checks of spec §7 tier 1 that belong to
// this core (as opposed to the loader) are performed.
func PreprocessProfile(ctx BinaryContext, doc *ProfileDocument, cfg Config, inferStale StaleProfileInferrer) (*Reader, error) {
	if doc.Header.Version != 1 {
		return nil, fmt.Errorf("%w: got %d", ErrUnsupportedVersion, doc.Header.Version)
	}
	if !doc.Header.CheckSingleEvent() {
		return nil, ErrMultiEventProfile
	}

	stats := ctx.Stats()
	names := BuildNameIndex(ctx, doc, cfg)
	matcher := NewMatcher(ctx, doc, cfg, names, stats)
	matcher.stagePreliminary()

	return &Reader{
		ctx:        ctx,
		doc:        doc,
		cfg:        cfg,
		stats:      stats,
		names:      names,
		matcher:    matcher,
		inferStale: inferStale,
	}, nil
}

// MayHaveProfileData reports whether bf could plausibly be matched by the
// currently loaded profile (spec §4.A(iii)).
func (r *Reader) MayHaveProfileData(bf BinaryFunction) bool {
	return r.names.MayHaveProfileData(bf)
}

// UsesEvent reports whether the profile's header names the given event.
func (r *Reader) UsesEvent(name string) bool {
	return r.doc.Header.UsesEvent(name)
}

// Stats returns the diagnostic counters accumulated so far.
func (r *Reader) Stats() *Stats {
	return r.stats
}

// ReadProfile runs stages S2 through S6 of the matcher, propagates every
// successfully matched pair, applies the "lite" post-pass, and emits
// end-of-run diagnostics (spec §7 tier 3), gated by Config.Verbosity.
func (r *Reader) ReadProfile() error {
	r.matcher.Run()

	if r.cfg.NameSimilarityThreshold > 0 {
		NewSimilarityMatcher(r.cfg.NameSimilarityThreshold).Run(r.matcher)
	}

	propagator := NewPropagator(r.doc.Header, r.cfg, r.stats, r.inferStale)
	for i := range r.doc.Functions {
		pf := &r.doc.Functions[i]
		if !pf.Used {
			continue
		}
		bf := r.matcher.YamlProfileToFunction[pf.Id]
		if bf == nil {
			continue
		}
		propagator.Propagate(pf, bf, r.matcher.YamlProfileToFunction)
	}

	if r.cfg.Lite && r.cfg.InferStaleProfile {
		for _, bf := range r.ctx.Functions() {
			if !bf.HasProfile() {
				bf.SetIgnored(true)
				r.stats.Ignored++
			}
		}
	}

	r.logDiagnostics()
	return nil
}

func (r *Reader) logDiagnostics() {
	if r.cfg.Verbosity <= 0 {
		return
	}
	s := r.stats
	log.Printf("profattach: matched by-name=%d by-hash=%d by-lto=%d by-position=%d by-similarity=%d ignored=%d",
		s.MatchedByName, s.MatchedByHash, s.MatchedByLTO, s.MatchedByPosition, s.MatchedWithNameSimilarity, s.Ignored)
	log.Printf("profattach: duplicate-profiles=%d mismatched-blocks=%d mismatched-calls=%d mismatched-edges=%d duplicate-annotations=%d stale-recovered=%d",
		s.DuplicateProfiles, s.MismatchedBlocks, s.MismatchedCalls, s.MismatchedEdges, s.DuplicateAnnotations, s.NumStaleRecovered)
}
