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

// Package dictdata reads and frames the per-word payloads of a StarDict
// .dict/.dict.dz file.
package dictdata

import (
	"bytes"
	"encoding/binary"

	"github.com/ianlewis/go-stardict/ifo"
	"github.com/ianlewis/go-stardict/stardicterr"
)

// Entry is one typed sub-entry of a word's payload.
type Entry struct {
	Type ifo.EntryType
	Data []byte
}

// Frame splits payload into its typed sub-entries.
//
// When sameTypeSequence is non-empty, every sub-entry's type comes from
// that sequence in order and carries no type byte of its own; the final
// non-size-prefixed sub-entry's payload runs to the end of the slice
// whether or not it ends with a trailing NUL (a trailing NUL on the last
// sub-entry is tolerated and stripped, not just an omitted one).
//
// When sameTypeSequence is empty, each sub-entry begins with a 1-byte type
// code.
func Frame(payload []byte, sameTypeSequence []ifo.EntryType) ([]Entry, error) {
	var entries []Entry
	cursor := 0
	i := 0
	for cursor < len(payload) {
		var t ifo.EntryType
		if len(sameTypeSequence) > 0 {
			if i >= len(sameTypeSequence) {
				break
			}
			t = sameTypeSequence[i]
		} else {
			t = ifo.EntryType(payload[cursor])
			if !validEntryType(t) {
				return nil, stardicterr.Named(stardicterr.UnknownEntryType, string(rune(t)))
			}
			cursor++
		}
		i++

		if t.SizePrefixed() {
			if cursor+4 > len(payload) {
				return nil, stardicterr.New(stardicterr.TruncatedData)
			}
			n := binary.BigEndian.Uint32(payload[cursor : cursor+4])
			cursor += 4
			end := cursor + int(n)
			if end > len(payload) {
				return nil, stardicterr.New(stardicterr.TruncatedData)
			}
			entries = append(entries, Entry{Type: t, Data: payload[cursor:end]})
			cursor = end
		} else {
			nulOffset := bytes.IndexByte(payload[cursor:], 0)
			var end int
			if nulOffset < 0 {
				end = len(payload)
				entries = append(entries, Entry{Type: t, Data: payload[cursor:end]})
				cursor = end
			} else {
				end = cursor + nulOffset
				entries = append(entries, Entry{Type: t, Data: payload[cursor:end]})
				cursor = end + 1
			}
		}
	}

	return entries, nil
}

func validEntryType(t ifo.EntryType) bool {
	switch t {
	case ifo.UTFText, ifo.LocaleText, ifo.Pango, ifo.Phonetic, ifo.XDXF,
		ifo.YinBiaoKana, ifo.PowerWord, ifo.MediaWiki, ifo.HTML, ifo.WordNet,
		ifo.Resources, ifo.Wav, ifo.Picture, ifo.Extension:
		return true
	default:
		return false
	}
}
