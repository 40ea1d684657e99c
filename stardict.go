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

// Package stardict composes the bundle, ifo, idx, and dictdata components
// into a single per-dictionary façade. A SQL store, autocomplete/history
// store, XDXF visitor, or terminal/desktop UI built on top of a Dictionary
// remains an external collaborator, not a part of this package.
package stardict

import (
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/ianlewis/go-stardict/bundle"
	"github.com/ianlewis/go-stardict/dictdata"
	"github.com/ianlewis/go-stardict/idx"
	"github.com/ianlewis/go-stardict/ifo"
	"github.com/ianlewis/go-stardict/stardicterr"
)

// Dictionary is one opened StarDict dictionary: its descriptor, its index,
// and a reader over its dict data.
type Dictionary struct {
	Info   *ifo.Info
	Triple bundle.Triple

	index  idx.Entries
	reader *dictdata.Reader
}

// Open parses the .ifo descriptor at ifoPath and locates its companion
// .idx/.idx.gz and .dict/.dict.dz files by shared stem, mirroring the
// upstream ianlewis/go-stardict project's Open.
func Open(ifoPath string) (*Dictionary, error) {
	ext := filepath.Ext(ifoPath)
	if !strings.EqualFold(ext, ".ifo") {
		return nil, stardicterr.Named(stardicterr.BadField, "ifoPath")
	}

	info, err := ifo.ParseFile(ifoPath)
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(ifoPath)
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, stardicterr.Wrap(stardicterr.IO, err)
	}

	var paths []string
	for _, de := range dirEntries {
		if !de.IsDir() {
			paths = append(paths, filepath.Join(dir, de.Name()))
		}
	}

	triples := bundle.Collect(paths)
	var triple bundle.Triple
	found := false
	for _, t := range triples {
		if t.Ifo == ifoPath {
			triple = t
			found = true
			break
		}
	}
	if !found {
		return nil, stardicterr.New(stardicterr.IO)
	}

	return &Dictionary{
		Info:   info,
		Triple: triple,
		reader: dictdata.NewReader(triple.Dict),
	}, nil
}

// OpenAll walks dir for complete StarDict triples (an .ifo with its .idx and
// .dict companions) and opens each as a Dictionary,
// collecting every error encountered along the way rather than stopping
// at the first one (mirroring the upstream project's OpenAll).
func OpenAll(dir string) ([]*Dictionary, []error) {
	triples, err := bundle.Walk(dir)
	if err != nil {
		return nil, []error{err}
	}

	var dicts []*Dictionary
	var errs []error
	for _, t := range triples {
		d, err := Open(t.Ifo)
		if err != nil {
			errs = append(errs, fmt.Errorf("opening %q: %w", t.Ifo, err))
			continue
		}
		dicts = append(dicts, d)
	}
	return dicts, errs
}

// Index returns the dictionary's parsed index, reading it on first use.
func (d *Dictionary) Index() (idx.Entries, error) {
	if d.index != nil {
		return d.index, nil
	}
	entries, err := idx.ParseFile(d.Triple.Idx, d.Info.IdxOffsetBits)
	if err != nil {
		return nil, err
	}
	d.index = entries
	return d.index, nil
}

// Lookup performs an exact-match search for word and returns its framed
// dict entries, or ok=false if the word is not present.
func (d *Dictionary) Lookup(word string) (entries []dictdata.Entry, ok bool, err error) {
	index, err := d.Index()
	if err != nil {
		return nil, false, err
	}

	e, found := index.Find(word)
	if !found {
		return nil, false, nil
	}

	results, err := d.reader.ReadAll([]idx.Entry{e}, d.Info.SameTypeSequence)
	if err != nil {
		return nil, false, err
	}
	return results[0].Entries, true, nil
}

// Entries streams every dict entry in the dictionary in ascending offset
// order, suitable for bulk import.
func (d *Dictionary) Entries(opts dictdata.IterateOptions) (iter.Seq2[dictdata.Result, error], error) {
	index, err := d.Index()
	if err != nil {
		return nil, err
	}
	return d.reader.Iterate(index, d.Info.SameTypeSequence, opts), nil
}
