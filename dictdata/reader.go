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

package dictdata

import (
	"bufio"
	"compress/flate"
	"errors"
	"io"
	"iter"
	"os"
	"strings"

	"github.com/ianlewis/go-stardict/dictzip"
	"github.com/ianlewis/go-stardict/idx"
	"github.com/ianlewis/go-stardict/ifo"
	"github.com/ianlewis/go-stardict/stardicterr"
)

// wrapDictzipErr maps an error from the dictzip package onto the tagged
// error kind a caller should see: a declared random access version other
// than 1 is BadRandomAccessVersion, anything else reading the gzip+RA
// header or DEFLATE stream is CorruptCompressed.
func wrapDictzipErr(err error) error {
	if errors.Is(err, dictzip.ErrUnsupportedVersion) {
		return stardicterr.Wrap(stardicterr.BadRandomAccessVersion, err)
	}
	return stardicterr.Wrap(stardicterr.CorruptCompressed, err)
}

// Default batch and buffer sizes for [Reader.Iterate].
const (
	DefaultBatchSize  = 1000
	DefaultBufferSize = 8 * 1024 * 1024
)

// Result pairs an index entry with its framed dict sub-entries.
type Result struct {
	Index   idx.Entry
	Entries []Entry
}

// IterateOptions configures [Reader.Iterate].
type IterateOptions struct {
	// BatchSize bounds the number of index entries coalesced per
	// underlying read. Zero means [DefaultBatchSize].
	BatchSize int

	// BufferSize bounds the input buffer used when reading the underlying
	// file. Zero means [DefaultBufferSize].
	BufferSize int
}

// Reader streams or materializes per-word payloads from a .dict or
// .dict.dz file.
type Reader struct {
	path       string
	dictzipped bool
}

// NewReader prepares a Reader for the .dict/.dict.dz file at path. The file
// itself is opened lazily by [Reader.ReadAll] and [Reader.Iterate]; NewReader
// never holds a file handle open, so it has nothing to release and no
// Close method.
func NewReader(path string) *Reader {
	return &Reader{
		path:       path,
		dictzipped: strings.HasSuffix(path, ".dz"),
	}
}

// ReadAll materializes every payload named by indexes, in the same order as
// the input.
func (r *Reader) ReadAll(indexes []idx.Entry, sameTypeSequence []ifo.EntryType) ([]Result, error) {
	data, err := r.readAllBytes()
	if err != nil {
		return nil, err
	}

	results := make([]Result, len(indexes))
	for i, e := range indexes {
		end := e.Offset + uint64(e.Size)
		if end > uint64(len(data)) {
			return nil, stardicterr.New(stardicterr.IndexOutOfBounds)
		}
		payload := data[e.Offset:end]
		entries, err := Frame(payload, sameTypeSequence)
		if err != nil {
			return nil, err
		}
		results[i] = Result{Index: e, Entries: entries}
	}
	return results, nil
}

func (r *Reader) readAllBytes() ([]byte, error) {
	f, err := os.Open(r.path)
	if err != nil {
		return nil, stardicterr.Wrap(stardicterr.IO, err)
	}
	defer f.Close()

	if !r.dictzipped {
		data, err := io.ReadAll(f)
		if err != nil {
			return nil, stardicterr.Wrap(stardicterr.IO, err)
		}
		return data, nil
	}

	z, err := dictzip.NewReader(f)
	if err != nil {
		return nil, wrapDictzipErr(err)
	}
	defer z.Close()

	data, err := io.ReadAll(z)
	if err != nil {
		return nil, stardicterr.Wrap(stardicterr.CorruptCompressed, err)
	}
	return data, nil
}

// Iterate streams framed payloads for indexes, sorted ascending by offset.
// The returned sequence is single-use and not safe for concurrent
// iteration; a range loop that breaks early releases the underlying file
// handle and decoder.
func (r *Reader) Iterate(indexes []idx.Entry, sameTypeSequence []ifo.EntryType, opts IterateOptions) iter.Seq2[Result, error] {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	bufferSize := opts.BufferSize
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}

	entries := idx.Entries(indexes).SortedByOffset()

	return func(yield func(Result, error) bool) {
		dec, closeFn, err := r.openSequential(bufferSize)
		if err != nil {
			yield(Result{}, err)
			return
		}
		defer closeFn()

		for i := 0; i < len(entries); i += batchSize {
			next := i + batchSize
			if next > len(entries) {
				next = len(entries)
			}

			var raw []byte
			var err error
			if next < len(entries) {
				raw, err = dec.readWindow(int(entries[next].Offset - entries[i].Offset))
			} else {
				raw, err = dec.readToEOF()
			}
			if err != nil {
				yield(Result{}, err)
				return
			}

			for j := i; j < next; j++ {
				start := entries[j].Offset - entries[i].Offset
				end := start + uint64(entries[j].Size)
				if end > uint64(len(raw)) {
					yield(Result{}, stardicterr.New(stardicterr.IndexOutOfBounds))
					return
				}
				framed, err := Frame(raw[start:end], sameTypeSequence)
				if err != nil {
					yield(Result{}, err)
					return
				}
				if !yield(Result{Index: entries[j], Entries: framed}, nil) {
					return
				}
			}
		}
	}
}

// openSequential opens the underlying file and, for dictzipped data,
// positions it at the start of the raw DEFLATE stream and wraps it in a
// plain [compress/flate] decoder. Unlike [Reader.ReadAll], this path never
// consults the dictzip random access chunk table: it decodes forward only,
// so it keeps working even for a dictzip file whose RA table were absent.
func (r *Reader) openSequential(bufferSize int) (*windowedDecoder, func(), error) {
	f, err := os.Open(r.path)
	if err != nil {
		return nil, nil, stardicterr.Wrap(stardicterr.IO, err)
	}

	if !r.dictzipped {
		// A plain .dict is the logical byte stream itself: read it directly.
		return &windowedDecoder{fr: io.NopCloser(bufio.NewReaderSize(f, bufferSize))}, func() { f.Close() }, nil
	}

	z, err := dictzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, nil, wrapDictzipErr(err)
	}
	headerLength := z.HeaderLength()
	if err := z.Close(); err != nil {
		f.Close()
		return nil, nil, stardicterr.Wrap(stardicterr.IO, err)
	}

	if _, err := f.Seek(headerLength, io.SeekStart); err != nil {
		f.Close()
		return nil, nil, stardicterr.Wrap(stardicterr.IO, err)
	}

	return newWindowedDecoder(f, bufferSize), func() { f.Close() }, nil
}

// windowedDecoder reads the logical byte stream sequentially and buffers it
// between windowed reads. For dictzipped data it threads one long-lived
// [compress/flate] reader forward over the file; for a plain .dict it reads
// the file bytes as they are. It does not need to separately
// track an "unconsumed compressed tail": [flate.Reader] already owns
// buffering of its underlying input, so only the decoded output buffer
// needs to be carried between calls.
type windowedDecoder struct {
	fr  io.ReadCloser
	buf []byte
	eof bool
}

func newWindowedDecoder(r io.Reader, bufferSize int) *windowedDecoder {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &windowedDecoder{fr: flate.NewReader(bufio.NewReaderSize(r, bufferSize))}
}

// readWindow returns exactly the next n logical (decompressed) bytes,
// starting with whatever tail remains buffered from a previous call.
func (d *windowedDecoder) readWindow(n int) ([]byte, error) {
	if err := d.fill(n); err != nil {
		return nil, err
	}
	if len(d.buf) < n {
		return nil, stardicterr.New(stardicterr.TruncatedData)
	}
	out := d.buf[:n]
	d.buf = d.buf[n:]
	return out, nil
}

// readToEOF reads all remaining logical bytes through end of stream.
func (d *windowedDecoder) readToEOF() ([]byte, error) {
	for !d.eof {
		if err := d.fillOnce(); err != nil {
			return nil, err
		}
	}
	out := d.buf
	d.buf = nil
	return out, nil
}

func (d *windowedDecoder) fill(n int) error {
	for len(d.buf) < n && !d.eof {
		if err := d.fillOnce(); err != nil {
			return err
		}
	}
	return nil
}

func (d *windowedDecoder) fillOnce() error {
	chunk := make([]byte, 32*1024)
	n, err := d.fr.Read(chunk)
	if n > 0 {
		d.buf = append(d.buf, chunk[:n]...)
	}
	if err == io.EOF {
		d.eof = true
		return nil
	}
	if err != nil {
		return stardicterr.Wrap(stardicterr.CorruptCompressed, err)
	}
	return nil
}

func (d *windowedDecoder) Close() error {
	return d.fr.Close()
}
