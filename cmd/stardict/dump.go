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

	"github.com/urfave/cli/v2"

	"github.com/ianlewis/go-stardict"
	"github.com/ianlewis/go-stardict/dictdata"
)

func newDumpCommand() *cli.Command {
	return &cli.Command{
		Name:      "dump",
		Usage:     "stream every entry in a StarDict dictionary, in offset order",
		ArgsUsage: "<ifo-file>",
		Action: func(c *cli.Context) error {
			if c.Args().Len() != 1 {
				return fmt.Errorf("%w: dump requires an .ifo path", ErrFlagParse)
			}
			d := dump{ifoPath: c.Args().First()}
			return d.Run(c)
		},
	}
}

type dump struct {
	ifoPath string
}

func (d *dump) Run(c *cli.Context) error {
	dict, err := stardict.Open(d.ifoPath)
	if err != nil {
		return fmt.Errorf("%w: opening %q: %w", ErrStardict, d.ifoPath, err)
	}

	seq, err := dict.Entries(dictdata.IterateOptions{})
	if err != nil {
		return fmt.Errorf("%w: reading index: %w", ErrStardict, err)
	}

	for res, err := range seq {
		if err != nil {
			return fmt.Errorf("%w: iterating entries: %w", ErrStardict, err)
		}
		for _, e := range res.Entries {
			_ = must(fmt.Fprintf(c.App.Writer, "%s\t[%s] %s\n", res.Index.Word, e.Type, e.Data))
		}
	}
	return nil
}
