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
	"fmt"

	"github.com/rodaine/table"
	"github.com/urfave/cli/v2"

	"github.com/ianlewis/go-stardict"
)

func newListCommand() *cli.Command {
	return &cli.Command{
		Name:      "list",
		Usage:     "list StarDict dictionaries found under a directory",
		ArgsUsage: "<dir>",
		Action: func(c *cli.Context) error {
			if c.Args().Len() != 1 {
				return fmt.Errorf("%w: list requires exactly one directory argument", ErrFlagParse)
			}
			l := list{dir: c.Args().First()}
			return l.Run(c)
		},
	}
}

type list struct {
	dir string
}

func (l *list) Run(c *cli.Context) error {
	dicts, errs := stardict.OpenAll(l.dir)
	for _, err := range errs {
		_ = must(fmt.Fprintf(c.App.ErrWriter, "%s: %v\n", c.App.Name, err))
	}

	tbl := table.New("bookname", "version", "wordcount", "sametypesequence", "ifo")
	for _, d := range dicts {
		seq := "-"
		if len(d.Info.SameTypeSequence) > 0 {
			var b []byte
			for _, t := range d.Info.SameTypeSequence {
				b = append(b, byte(t))
			}
			seq = string(b)
		}
		tbl.AddRow(d.Info.Bookname, d.Info.Version, d.Info.Wordcount, seq, d.Triple.Ifo)
	}
	tbl.Print()

	if len(errs) > 0 {
		return fmt.Errorf("%w: %d dictionaries failed to open", ErrStardict, len(errs))
	}
	return nil
}
