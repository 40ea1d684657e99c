// Copyright 2024 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package bundle groups candidate filesystem paths into StarDict file
// triples ({.ifo, .idx, .dict}), tolerating unrelated files in the same
// directory.
package bundle

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// recognizedSuffixes are checked in priority order: a path is classified
// by its longest matching suffix.
var recognizedSuffixes = []string{".ifo", ".idx.gz", ".idx", ".dict.dz", ".dict"}

// Triple is one dictionary's three file roles. Dict and Idx may each be
// either the plain or gzip/dictzip-compressed variant.
type Triple struct {
	Stem string
	Ifo  string
	Idx  string
	Dict string
}

// Collector groups paths added via [Collector.Add] by stem, so they can be
// enumerated into [Triple] values once the caller has finished presenting
// candidate paths (e.g. from a directory listing).
type Collector struct {
	groups map[string]map[string]string // stem -> suffix -> path
	order  []string
}

// NewCollector returns an empty Collector.
func NewCollector() *Collector {
	return &Collector{groups: map[string]map[string]string{}}
}

// Add classifies path by its longest recognized suffix and records it
// under the corresponding stem. It reports whether path was recognized at
// all; unrecognized paths are ignored, which is the expected outcome for
// a directory scan that encounters unrelated files.
func (c *Collector) Add(path string) bool {
	suffix := longestSuffix(path)
	if suffix == "" {
		return false
	}

	stem := strings.TrimSuffix(path, suffix)
	roles, ok := c.groups[stem]
	if !ok {
		roles = map[string]string{}
		c.groups[stem] = roles
		c.order = append(c.order, stem)
	}
	roles[suffix] = path
	return true
}

// Triples returns one [Triple] per stem that has exactly one .ifo and at
// least one of each of {.idx, .idx.gz} and {.dict, .dict.dz}. Stems with
// fewer than all three roles are silently skipped. Output order matches
// the order stems were first seen.
func (c *Collector) Triples() []Triple {
	var triples []Triple
	for _, stem := range c.order {
		roles := c.groups[stem]

		ifoPath, ok := roles[".ifo"]
		if !ok {
			continue
		}

		idxPath, ok := roles[".idx"]
		if !ok {
			idxPath, ok = roles[".idx.gz"]
			if !ok {
				continue
			}
		}

		dictPath, ok := roles[".dict"]
		if !ok {
			dictPath, ok = roles[".dict.dz"]
			if !ok {
				continue
			}
		}

		triples = append(triples, Triple{
			Stem: stem,
			Ifo:  ifoPath,
			Idx:  idxPath,
			Dict: dictPath,
		})
	}
	return triples
}

func longestSuffix(path string) string {
	var best string
	for _, suf := range recognizedSuffixes {
		if strings.HasSuffix(path, suf) && len(suf) > len(best) {
			best = suf
		}
	}
	return best
}

// Collect is a convenience wrapper around [Collector] for a fixed slice of
// candidate paths.
func Collect(paths []string) []Triple {
	c := NewCollector()
	for _, p := range paths {
		c.Add(p)
	}
	return c.Triples()
}

// Walk scans dir for StarDict file triples, the same way the upstream
// ianlewis/go-stardict project's Stardict.OpenAll walks a directory for
// .ifo files, generalized here to collect all three roles per stem rather
// than just the .ifo.
func Walk(dir string) ([]Triple, error) {
	var paths []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	triples := Collect(paths)
	sort.Slice(triples, func(i, j int) bool { return triples[i].Stem < triples[j].Stem })
	return triples, nil
}
