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

// Package ifo parses the StarDict .ifo dictionary descriptor file.
package ifo

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ianlewis/go-stardict/stardicterr"
)

// Magic is the literal first line of every .ifo file, without the trailing
// line-feed.
const Magic = "StarDict's dict ifo file"

// Key names recognized in a .ifo file.
const (
	KeyVersion          = "version"
	KeyBookname         = "bookname"
	KeyWordcount        = "wordcount"
	KeySynwordcount     = "synwordcount"
	KeyIdxfilesize      = "idxfilesize"
	KeyIdxoffsetbits    = "idxoffsetbits"
	KeyAuthor           = "author"
	KeyEmail            = "email"
	KeyWebsite          = "website"
	KeyDescription      = "description"
	KeyDate             = "date"
	KeySametypesequence = "sametypesequence"
	KeyDicttype         = "dicttype"
)

// EntryType is a single dict entry data type code.
type EntryType byte

// Recognized entry type codes.
const (
	UTFText     EntryType = 'm'
	LocaleText  EntryType = 'l'
	Pango       EntryType = 'g'
	Phonetic    EntryType = 't'
	XDXF        EntryType = 'x'
	YinBiaoKana EntryType = 'y'
	PowerWord   EntryType = 'k'
	MediaWiki   EntryType = 'w'
	HTML        EntryType = 'h'
	WordNet     EntryType = 'n'
	Resources   EntryType = 'r'
	Wav         EntryType = 'W'
	Picture     EntryType = 'P'
	Extension   EntryType = 'X'
)

// valid reports whether t is one of the 14 recognized entry type codes.
func (t EntryType) valid() bool {
	switch t {
	case UTFText, LocaleText, Pango, Phonetic, XDXF, YinBiaoKana, PowerWord,
		MediaWiki, HTML, WordNet, Resources, Wav, Picture, Extension:
		return true
	default:
		return false
	}
}

// SizePrefixed reports whether t's sub-entries are framed with a 4-byte
// big-endian length prefix rather than a NUL terminator.
func (t EntryType) SizePrefixed() bool {
	switch t {
	case Wav, Picture, Extension:
		return true
	default:
		return false
	}
}

// String implements [fmt.Stringer].
func (t EntryType) String() string {
	return string(rune(t))
}

// Info is the parsed .ifo descriptor.
type Info struct {
	Version          string
	Bookname         string
	Wordcount        uint64
	IdxFileSize      uint64
	IdxOffsetBits    int
	SynWordCount     *uint64
	Author           string
	Email            string
	Website          string
	Description      string
	Date             string
	SameTypeSequence []EntryType
	DictType         string

	// raw holds every key=value pair seen in the file, including unknown
	// keys, which are retained but otherwise ignored.
	raw map[string]string
}

// Raw returns the value for a raw .ifo key, including keys not otherwise
// exposed as a typed field, and whether it was present.
func (info *Info) Raw(key string) (string, bool) {
	v, ok := info.raw[key]
	return v, ok
}

// ParseFile reads and parses a .ifo file at path.
func ParseFile(path string) (*Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, stardicterr.Wrap(stardicterr.IO, err)
	}
	defer f.Close()

	return Parse(f)
}

// Parse parses a .ifo descriptor from r.
func Parse(r io.Reader) (*Info, error) {
	items, err := readItems(r)
	if err != nil {
		return nil, err
	}

	info := &Info{raw: items}

	info.Version, err = parseVersion(items)
	if err != nil {
		return nil, err
	}

	info.Bookname, err = requireString(items, KeyBookname)
	if err != nil {
		return nil, err
	}

	info.Wordcount, err = requireUint(items, KeyWordcount)
	if err != nil {
		return nil, err
	}

	info.IdxFileSize, err = requireUint(items, KeyIdxfilesize)
	if err != nil {
		return nil, err
	}

	info.IdxOffsetBits, err = parseIdxOffsetBits(items)
	if err != nil {
		return nil, err
	}

	if v, ok := items[KeySynwordcount]; ok {
		n, err := parseUint(KeySynwordcount, v)
		if err != nil {
			return nil, err
		}
		info.SynWordCount = &n
	}

	info.Author = items[KeyAuthor]
	info.Email = items[KeyEmail]
	info.Website = items[KeyWebsite]
	info.Description = items[KeyDescription]
	info.Date = items[KeyDate]
	info.DictType = items[KeyDicttype]

	if v, ok := items[KeySametypesequence]; ok {
		seq, err := ParseSameTypeSequence(v)
		if err != nil {
			return nil, err
		}
		info.SameTypeSequence = seq
	}

	return info, nil
}

// ParseSameTypeSequence parses a sametypesequence field value into its
// per-character entry types, failing with UnknownEntryType on the first
// unrecognized character.
func ParseSameTypeSequence(value string) ([]EntryType, error) {
	if value == "" {
		return nil, nil
	}
	seq := make([]EntryType, 0, len(value))
	for _, ch := range []byte(value) {
		t := EntryType(ch)
		if !t.valid() {
			return nil, stardicterr.Named(stardicterr.UnknownEntryType, string(rune(ch)))
		}
		seq = append(seq, t)
	}
	return seq, nil
}

// readItems reads the magic line followed by key=value lines, splitting
// each line on the first '=' only.
func readItems(r io.Reader) (map[string]string, error) {
	br := bufio.NewReader(r)

	magicLine, err := br.ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, stardicterr.Wrap(stardicterr.IO, err)
	}
	magicLine = strings.TrimSuffix(magicLine, "\n")
	if magicLine != Magic {
		return nil, stardicterr.New(stardicterr.BadMagic)
	}

	items := map[string]string{}
	for {
		line, err := br.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, stardicterr.Wrap(stardicterr.IO, err)
		}
		trimmed := strings.TrimSuffix(line, "\n")
		if trimmed != "" {
			name, value, found := strings.Cut(trimmed, "=")
			if found {
				items[name] = value
			}
		}
		if err == io.EOF {
			break
		}
	}

	return items, nil
}

func requireString(items map[string]string, key string) (string, error) {
	v, ok := items[key]
	if !ok {
		return "", stardicterr.Named(stardicterr.MissingField, key)
	}
	return v, nil
}

func requireUint(items map[string]string, key string) (uint64, error) {
	v, ok := items[key]
	if !ok {
		return 0, stardicterr.Named(stardicterr.MissingField, key)
	}
	return parseUint(key, v)
}

func parseUint(key, value string) (uint64, error) {
	n, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, stardicterr.WrapNamed(stardicterr.BadField, key, err)
	}
	return n, nil
}

func parseVersion(items map[string]string) (string, error) {
	v, ok := items[KeyVersion]
	if !ok {
		return "", stardicterr.Named(stardicterr.MissingField, KeyVersion)
	}
	switch v {
	case "2.4.2", "3.0.0":
		return v, nil
	default:
		return "", stardicterr.Named(stardicterr.BadField, KeyVersion)
	}
}

func parseIdxOffsetBits(items map[string]string) (int, error) {
	v, ok := items[KeyIdxoffsetbits]
	if !ok {
		return 32, nil
	}
	switch v {
	case "32":
		return 32, nil
	case "64":
		return 64, nil
	default:
		return 0, stardicterr.Named(stardicterr.BadField, KeyIdxoffsetbits)
	}
}
