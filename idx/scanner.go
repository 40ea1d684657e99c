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

package idx

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/ianlewis/go-stardict/stardicterr"
)

// Scanner reads index records incrementally from r, so bulk import of a
// large .idx doesn't need to materialize the whole decoded slice the way
// [Parse] does. The caller is responsible for decompressing a .idx.gz
// stream before handing it to NewScanner (e.g. via [compress/gzip.NewReader]).
//
// Scanner is grounded on the upstream ianlewis/go-stardict project's
// idx.Scanner, which StarDict.IndexScanner exposes for the same reason:
// avoiding a full in-memory index for large dictionaries.
type Scanner struct {
	br          *bufio.Reader
	suffixBytes int
	offsetBits  int

	entry Entry
	err   error
	pos   int64
	first bool
}

// NewScanner returns a Scanner reading index records from r.
func NewScanner(r io.Reader, offsetBits int) (*Scanner, error) {
	if offsetBits != 32 && offsetBits != 64 {
		return nil, stardicterr.Named(stardicterr.BadField, "idxoffsetbits")
	}
	return &Scanner{
		br:          bufio.NewReader(r),
		suffixBytes: offsetBits/8 + 4,
		offsetBits:  offsetBits,
		first:       true,
	}, nil
}

// Scan advances the scanner to the next entry. It returns false when there
// are no more complete records or an error occurred; callers should check
// [Scanner.Err] after Scan returns false.
func (s *Scanner) Scan() bool {
	if s.err != nil {
		return false
	}

	if s.first {
		s.first = false
		peeked, err := s.br.Peek(4)
		if err == nil && len(peeked) == 4 && peeked[0] == 0x00 && peeked[1] == 0x00 &&
			peeked[2] == 0xb4 && peeked[3] == 0x97 {
			prefix := make([]byte, 4)
			if _, err := io.ReadFull(s.br, prefix); err != nil {
				s.err = stardicterr.Wrap(stardicterr.IO, err)
				return false
			}
			s.pos += 4
		}
	}

	word, err := s.br.ReadString(0)
	if err == io.EOF {
		return false
	}
	if err != nil {
		s.err = stardicterr.Wrap(stardicterr.IO, err)
		return false
	}
	word = word[:len(word)-1] // strip the NUL terminator
	s.pos += int64(len(word)) + 1

	suffix := make([]byte, s.suffixBytes)
	n, err := io.ReadFull(s.br, suffix)
	if err != nil {
		if n < s.suffixBytes {
			// Fewer than a full record remains; stop cleanly, no error.
			return false
		}
		s.err = stardicterr.Wrap(stardicterr.IO, err)
		return false
	}
	s.pos += int64(s.suffixBytes)

	var offset uint64
	var size uint32
	if s.offsetBits == 64 {
		offset = binary.BigEndian.Uint64(suffix[0:8])
		size = binary.BigEndian.Uint32(suffix[8:12])
	} else {
		offset = uint64(binary.BigEndian.Uint32(suffix[0:4]))
		size = binary.BigEndian.Uint32(suffix[4:8])
	}

	s.entry = Entry{Word: word, Offset: offset, Size: size}
	return true
}

// Entry returns the most recently scanned entry.
func (s *Scanner) Entry() Entry {
	return s.entry
}

// Err returns the first non-EOF error encountered by the scanner, if any.
func (s *Scanner) Err() error {
	return s.err
}
