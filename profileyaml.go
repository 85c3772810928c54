package profattach

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// This file is the concrete binding for the external collaborator spec §1
// calls out of scope: "parsing the profile file into an in-memory
// document". It is not part of the core; PreprocessProfile never calls
// into it directly, and the core's own fatal checks (schema version,
// single-event) run after LoadDocument returns, in PreprocessProfile.

type rawHeader struct {
	Version      int      `yaml:"profile-version"`
	Flags        []string `yaml:"profile-flags"`
	EventNames   string   `yaml:"event-names"`
	HashFunction string   `yaml:"hash-func"`
	DFSOrder     bool     `yaml:"dfs-order"`
}

type rawSuccessor struct {
	Index    int    `yaml:"bid"`
	Count    uint64 `yaml:"count"`
	Mispreds uint64 `yaml:"mispreds"`
}

type rawCallSite struct {
	DestId             int    `yaml:"fid"`
	EntryDiscriminator uint32 `yaml:"disc"`
	Offset             uint64 `yaml:"offset"`
	Count              uint64 `yaml:"count"`
	Mispreds           uint64 `yaml:"mispreds"`
}

type rawBlock struct {
	Index      int            `yaml:"bid"`
	ExecCount  uint64         `yaml:"insns,omitempty"`
	EventCount *uint64        `yaml:"event,omitempty"`
	CallSites  []rawCallSite  `yaml:"calls,omitempty"`
	Successors []rawSuccessor `yaml:"succ,omitempty"`
}

type rawFunction struct {
	Id             int        `yaml:"id"`
	Name           string     `yaml:"name"`
	Hash           uint64     `yaml:"hash"`
	NumBasicBlocks int        `yaml:"numblocks"`
	ExecCount      uint64     `yaml:"execcount"`
	Blocks         []rawBlock `yaml:"blocks"`
}

type rawDocument struct {
	Header    rawHeader     `yaml:"header"`
	Functions []rawFunction `yaml:"functions"`
}

// LoadDocument reads and decodes a profile document from path, returning a
// populated ProfileDocument or a syntax error (spec §6). It performs no
// validation beyond what the YAML decoder itself requires; the two
// semantic fatal checks (schema version, single event) belong to
// PreprocessProfile.
func LoadDocument(path string) (*ProfileDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("profattach: reading %s: %w", path, err)
	}

	var raw rawDocument
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("profattach: parsing %s: %w", path, err)
	}

	return documentFromRaw(raw), nil
}

func documentFromRaw(raw rawDocument) *ProfileDocument {
	hashFn, ok := ParseHashFunction(raw.Header.HashFunction)
	if !ok {
		hashFn = HashStd
	}

	var flags HeaderFlags
	for _, f := range raw.Header.Flags {
		if f == "SAMPLE" || f == "sample" {
			flags |= FlagSample
		}
	}

	doc := &ProfileDocument{
		Header: Header{
			Version:      raw.Header.Version,
			Flags:        flags,
			EventNames:   raw.Header.EventNames,
			HashFunction: hashFn,
			IsDFSOrder:   raw.Header.DFSOrder,
		},
		Functions: make([]ProfiledFunction, len(raw.Functions)),
	}

	for i, rf := range raw.Functions {
		pf := ProfiledFunction{
			Id:             rf.Id,
			Name:           rf.Name,
			Hash:           rf.Hash,
			NumBasicBlocks: rf.NumBasicBlocks,
			ExecCount:      rf.ExecCount,
			Blocks:         make([]ProfiledBlock, len(rf.Blocks)),
		}
		for j, rb := range rf.Blocks {
			block := ProfiledBlock{
				Index:     rb.Index,
				ExecCount: rb.ExecCount,
			}
			if rb.EventCount != nil {
				block.EventCount = *rb.EventCount
				block.HasEventCount = true
			}
			for _, rc := range rb.CallSites {
				block.CallSites = append(block.CallSites, CallSite{
					DestId:             rc.DestId,
					EntryDiscriminator: rc.EntryDiscriminator,
					Offset:             rc.Offset,
					Count:              rc.Count,
					Mispreds:           rc.Mispreds,
				})
			}
			for _, rs := range rb.Successors {
				block.Successors = append(block.Successors, Successor{
					Index:    rs.Index,
					Count:    rs.Count,
					Mispreds: rs.Mispreds,
				})
			}
			pf.Blocks[j] = block
		}
		doc.Functions[i] = pf
	}

	return doc
}
