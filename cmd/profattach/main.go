//  Copyright 2024 The profattach Authors.
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

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/spf13/pflag"

	"github.com/dispatchrun/profattach"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type program struct {
	profilePath string
	binaryName  string
	cfg         profattach.Config
}

func (prog *program) run(ctx context.Context) error {
	doc, err := profattach.LoadDocument(prog.profilePath)
	if err != nil {
		return fmt.Errorf("loading profile: %w", err)
	}

	bctx := demoBinaryContext(prog.binaryName)

	reader, err := profattach.PreprocessProfile(bctx, doc, prog.cfg, nil)
	if err != nil {
		return fmt.Errorf("preprocessing profile: %w", err)
	}

	if err := reader.ReadProfile(); err != nil {
		return fmt.Errorf("reading profile: %w", err)
	}

	stats := reader.Stats()
	log.Printf("matched: name=%d hash=%d lto=%d position=%d similarity=%d",
		stats.MatchedByName, stats.MatchedByHash, stats.MatchedByLTO,
		stats.MatchedByPosition, stats.MatchedWithNameSimilarity)

	for _, bf := range bctx.Functions() {
		fmt.Printf("%s: exec=%d branch=%d profiled=%t\n",
			bf.DemangledName(), bf.ExecutionCount(), bf.RawBranchCount(), bf.HasProfile())
	}

	return nil
}

// demoBinaryContext builds a tiny, fixed reference binary context for
// demonstration purposes, standing in for the real disassembler this core
// treats as an external collaborator. Matches the single function "f" used
// throughout the round-trip scenario in spec §8.
func demoBinaryContext(name string) *profattach.RefContext {
	if name == "" {
		name = "f"
	}
	bctx := profattach.NewRefContext()
	bctx.AddFunction(profattach.BuildRefFunction(profattach.FuncSpec{
		Names:       []string{name},
		Demangled:   name,
		LayoutOrder: []string{"b0", "b1", "b2"},
		DFSOrder:    []string{"b0", "b1", "b2"},
		Blocks: []profattach.BlockSpec{
			{Label: "b0", Entry: true, NonPseudo: 2, Successors: []string{"b1", "b2"}},
			{Label: "b1", NonPseudo: 1},
			{Label: "b2", NonPseudo: 1},
		},
	}))
	return bctx
}

func run(ctx context.Context) error {
	var (
		profilePath             string
		binaryName              string
		profileIgnoreHash       bool
		matchWithFunctionHash   bool
		profileUseDFS           bool
		inferStaleProfile       bool
		lite                    bool
		nameSimilarityThreshold int
		verbosity               int
	)

	pflag.StringVar(&profilePath, "profile", "", "Path to the profile document to attach.")
	pflag.StringVar(&binaryName, "binary-function", "", "Name of the demo binary function to attach the profile to.")
	pflag.BoolVar(&profileIgnoreHash, "profile-ignore-hash", false, "Skip hash computation and comparison; match on shape alone.")
	pflag.BoolVar(&matchWithFunctionHash, "match-profile-with-function-hash", false, "Enable hash-only matching (stage S3).")
	pflag.BoolVar(&profileUseDFS, "profile-use-dfs", false, "Treat profile block indices as DFS pre-order.")
	pflag.BoolVar(&inferStaleProfile, "infer-stale-profile", false, "Invoke stale-profile inference on mismatched functions.")
	pflag.BoolVar(&lite, "lite", false, "Mark unprofiled functions as ignored (requires infer-stale-profile).")
	pflag.IntVar(&nameSimilarityThreshold, "name-similarity-function-matching-threshold", 0, "Edit-distance threshold for similarity matching; 0 disables it.")
	pflag.IntVar(&verbosity, "verbosity", 0, "Diagnostics verbosity; never affects matching outcomes.")
	pflag.Parse()

	if profilePath == "" {
		return fmt.Errorf("usage: profattach --profile <path/to/profile.yaml>")
	}

	prog := &program{
		profilePath: profilePath,
		binaryName:  binaryName,
		cfg: profattach.Config{
			ProfileIgnoreHash:            profileIgnoreHash,
			MatchProfileWithFunctionHash: matchWithFunctionHash,
			ProfileUseDFS:                profileUseDFS,
			InferStaleProfile:            inferStaleProfile,
			Lite:                         lite,
			NameSimilarityThreshold:      nameSimilarityThreshold,
			Verbosity:                    verbosity,
		},
	}
	return prog.run(ctx)
}
