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

// Package idx parses the StarDict .idx binary word index.
package idx

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/ianlewis/go-stardict/stardicterr"
)

// muellerPrologue is the 4-byte prologue some historically shipped
// dictionaries (e.g. "mueller") place before the first index record. It is
// skipped, and only at position zero.
var muellerPrologue = []byte{0x00, 0x00, 0xb4, 0x97}

// Entry is a single parsed index record.
type Entry struct {
	Word   string
	Offset uint64
	Size   uint32
}

// ParseFile reads and parses a .idx or .idx.gz file at path, given the
// idxoffsetbits width from the dictionary's .ifo descriptor.
func ParseFile(path string, offsetBits int) ([]Entry, error) {
	data, err := readIdxBytes(path)
	if err != nil {
		return nil, err
	}
	return Parse(data, offsetBits)
}

func readIdxBytes(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, stardicterr.Wrap(stardicterr.IO, err)
	}
	defer f.Close()

	raw, err := io.ReadAll(f)
	if err != nil {
		return nil, stardicterr.Wrap(stardicterr.IO, err)
	}

	if !strings.HasSuffix(path, ".gz") {
		return raw, nil
	}

	gr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, stardicterr.Wrap(stardicterr.IO, err)
	}
	defer gr.Close()

	decompressed, err := io.ReadAll(gr)
	if err != nil {
		return nil, stardicterr.Wrap(stardicterr.IO, err)
	}
	return decompressed, nil
}

// Parse parses already-decompressed .idx bytes into a list of entries,
// given the idxoffsetbits width.
func Parse(data []byte, offsetBits int) ([]Entry, error) {
	suffixBytes := offsetBits/8 + 4

	pos := 0
	if len(data) >= 4 && bytes.Equal(data[:4], muellerPrologue) {
		pos = 4
	}

	var entries []Entry
	for {
		nul := bytes.IndexByte(data[pos:], 0)
		if nul < 0 {
			break
		}
		wordEnd := pos + nul
		suffixStart := wordEnd + 1
		end := suffixStart + suffixBytes
		if end > len(data) {
			break
		}

		word := string(data[pos:wordEnd])
		var offset uint64
		var size uint32
		if offsetBits == 64 {
			offset = binary.BigEndian.Uint64(data[suffixStart : suffixStart+8])
			size = binary.BigEndian.Uint32(data[suffixStart+8 : end])
		} else {
			offset = uint64(binary.BigEndian.Uint32(data[suffixStart : suffixStart+4]))
			size = binary.BigEndian.Uint32(data[suffixStart+4 : end])
		}

		entries = append(entries, Entry{Word: word, Offset: offset, Size: size})
		pos = end
	}

	return entries, nil
}

// Entries is a parsed index with convenience lookup helpers.
type Entries []Entry

// Find performs an exact-match lookup for word, using a sort of the
// entries by word. It is a narrow, exact-match companion to the upstream
// go-stardict project's fuzzy FullTextSearch.
func (e Entries) Find(word string) (Entry, bool) {
	sorted := make(Entries, len(e))
	copy(sorted, e)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Word < sorted[j].Word })

	i := sort.Search(len(sorted), func(i int) bool { return sorted[i].Word >= word })
	if i < len(sorted) && sorted[i].Word == word {
		return sorted[i], true
	}
	return Entry{}, false
}

// SortedByOffset returns a copy of e sorted ascending by Offset, the order
// [dictdata.Reader.Iterate] traverses entries in.
func (e Entries) SortedByOffset() Entries {
	sorted := make(Entries, len(e))
	copy(sorted, e)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Offset < sorted[j].Offset })
	return sorted
}
