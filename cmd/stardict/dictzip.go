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

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rodaine/table"
	"github.com/urfave/cli/v2"

	"github.com/ianlewis/go-stardict/dictzip"
)

// ErrDictzip is the error dictzip subcommands wrap.
var ErrDictzip = errors.New("dictzip")

var errTruncate = errors.New("cannot truncate filename")

// newDictzipCommand exposes dictzip(1)-style compress/decompress/list
// operations on dictzip files such as a StarDict bundle's .dict.dz,
// independent of any .ifo/.idx framing. Plain gzip files without the
// dictzip random access field are rejected by the reader.
func newDictzipCommand() *cli.Command {
	return &cli.Command{
		Name:  "dictzip",
		Usage: "compress, decompress, or inspect a dictzip (.dz) file",
		Subcommands: []*cli.Command{
			{
				Name:      "compress",
				Usage:     "dictzip-compress a file",
				ArgsUsage: "<path>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "force", Aliases: []string{"f"}, Usage: "force overwrite of output file", DisableDefaultText: true},
					&cli.BoolFlag{Name: "keep", Aliases: []string{"k"}, Usage: "do not delete original file", DisableDefaultText: true},
					&cli.BoolFlag{Name: "verbose", Aliases: []string{"V"}, Usage: "print per-chunk compression stats", DisableDefaultText: true},
				},
				Action: func(c *cli.Context) error {
					if c.Args().Len() != 1 {
						return fmt.Errorf("%w: compress requires exactly one path", ErrFlagParse)
					}
					z := dzCompress{
						path:    c.Args().First(),
						force:   c.Bool("force"),
						keep:    c.Bool("keep"),
						verbose: c.Bool("verbose"),
					}
					return z.Run(c)
				},
			},
			{
				Name:      "decompress",
				Usage:     "decompress a dictzip file",
				ArgsUsage: "<path.dz>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "force", Aliases: []string{"f"}, Usage: "force overwrite of output file", DisableDefaultText: true},
				},
				Action: func(c *cli.Context) error {
					if c.Args().Len() != 1 {
						return fmt.Errorf("%w: decompress requires exactly one path", ErrFlagParse)
					}
					z := dzDecompress{
						path:  c.Args().First(),
						force: c.Bool("force"),
					}
					return z.Run()
				},
			},
			{
				Name:      "list",
				Usage:     "print a dictzip file's header information",
				ArgsUsage: "<path.dz>",
				Action: func(c *cli.Context) error {
					if c.Args().Len() != 1 {
						return fmt.Errorf("%w: list requires exactly one path", ErrFlagParse)
					}
					z := dzList{path: c.Args().First()}
					return z.Run()
				},
			},
		},
	}
}

type dzCompress struct {
	path    string
	force   bool
	keep    bool
	verbose bool
}

func (z *dzCompress) Run(c *cli.Context) error {
	newPath := z.path + ".dz"

	from, err := os.Open(z.path)
	if err != nil {
		return fmt.Errorf("%w: opening file: %w", ErrDictzip, err)
	}
	defer from.Close()

	fInfo, err := from.Stat()
	if err != nil {
		return fmt.Errorf("%w: stat %q: %w", ErrDictzip, from.Name(), err)
	}
	modTime := fInfo.ModTime()
	fName := filepath.Base(from.Name())

	flags := os.O_CREATE | os.O_WRONLY
	if !z.force {
		flags |= os.O_EXCL
	}

	dst, err := os.OpenFile(newPath, flags, 0o644)
	if err != nil {
		return fmt.Errorf("%w: opening target file: %w", ErrDictzip, err)
	}
	defer dst.Close()

	uncompressedSize, sizes, err := z.compress(dst, from, fName, modTime)
	if err != nil {
		return err
	}

	if z.verbose {
		remaining := uncompressedSize
		chunkSize := int64(dictzip.DefaultChunkSize)
		for i, size := range sizes {
			if remaining < chunkSize {
				chunkSize = remaining
			}
			remaining -= chunkSize
			_ = must(fmt.Fprintf(c.App.Writer, "chunk %d: %d -> %d (%.2f%%) of %d total\n", i+1, chunkSize, size,
				(1-float64(size)/float64(chunkSize))*100, uncompressedSize))
		}
	}

	if !z.keep {
		if err := os.Remove(z.path); err != nil {
			return fmt.Errorf("%w: removing file: %w", ErrDictzip, err)
		}
	}

	return nil
}

func (z *dzCompress) compress(dst io.Writer, src *os.File, name string, modTime time.Time) (n int64, sizes []int, err error) {
	w, err := dictzip.NewWriter(dst)
	if err != nil {
		err = fmt.Errorf("%w: creating writer: %w", ErrDictzip, err)
		return
	}
	w.ModTime = modTime
	w.Name = name
	defer func() {
		clsErr := w.Close()
		if err == nil {
			err = clsErr
		}
		if clsErr != nil {
			return
		}
		sizes = w.Sizes()
	}()

	n, err = io.Copy(w, src)
	if err != nil {
		err = fmt.Errorf("%w: compressing file %q: %w", ErrDictzip, src.Name(), err)
		return
	}
	return
}

type dzDecompress struct {
	path  string
	force bool
}

func (z *dzDecompress) Run() error {
	newPath := strings.TrimSuffix(z.path, filepath.Ext(z.path))
	if newPath == z.path {
		return fmt.Errorf("%w: %q", errTruncate, z.path)
	}

	from, err := os.Open(z.path)
	if err != nil {
		return fmt.Errorf("%w: opening file: %w", ErrDictzip, err)
	}
	defer from.Close()

	flags := os.O_CREATE | os.O_WRONLY
	if !z.force {
		flags |= os.O_EXCL
	}
	dst, err := os.OpenFile(newPath, flags, 0o644)
	if err != nil {
		return fmt.Errorf("%w: opening target file: %w", ErrDictzip, err)
	}
	defer dst.Close()

	r, err := dictzip.NewReader(from)
	if err != nil {
		return fmt.Errorf("%w: reading archive: %w", ErrDictzip, err)
	}

	if _, err := io.Copy(dst, r); err != nil {
		return fmt.Errorf("%w: decompressing file %q: %w", ErrDictzip, from.Name(), err)
	}

	if err := os.Remove(z.path); err != nil {
		return fmt.Errorf("%w: removing file: %w", ErrDictzip, err)
	}
	return nil
}

type dzList struct {
	path string
}

func (z *dzList) Run() error {
	f, err := os.Open(z.path)
	if err != nil {
		return fmt.Errorf("%w: opening file: %w", ErrDictzip, err)
	}
	defer f.Close()

	r, err := dictzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("%w: reading archive: %w", ErrDictzip, err)
	}
	defer r.Close()

	fInfo, err := f.Stat()
	if err != nil {
		return fmt.Errorf("%w: stat: %w", ErrDictzip, err)
	}

	compressed := fInfo.Size()
	uncompressed, err := io.Copy(io.Discard, r)
	if err != nil {
		return fmt.Errorf("%w: reading archive: %w", ErrDictzip, err)
	}

	tbl := table.New("type", "date", "time", "chunks", "chunk size", "compressed", "uncompressed", "ratio", "name")
	tbl.AddRow(
		"dzip",
		r.ModTime.Format("2006-01-02"),
		r.ModTime.Format("15:04:05"),
		len(r.Sizes()),
		r.ChunkSize(),
		fmt.Sprintf("%d", compressed),
		fmt.Sprintf("%d", uncompressed),
		fmt.Sprintf("%.1f%%", (1-float64(compressed)/float64(uncompressed))*100),
		r.Name,
	)
	tbl.Print()

	return nil
}
