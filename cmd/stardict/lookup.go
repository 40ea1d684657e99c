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
)

func newLookupCommand() *cli.Command {
	return &cli.Command{
		Name:      "lookup",
		Usage:     "look up a word in a StarDict dictionary",
		ArgsUsage: "<ifo-file> <word>",
		Action: func(c *cli.Context) error {
			if c.Args().Len() != 2 {
				return fmt.Errorf("%w: lookup requires an .ifo path and a word", ErrFlagParse)
			}
			l := lookup{
				ifoPath: c.Args().Get(0),
				word:    c.Args().Get(1),
			}
			return l.Run(c)
		},
	}
}

type lookup struct {
	ifoPath string
	word    string
}

func (l *lookup) Run(c *cli.Context) error {
	d, err := stardict.Open(l.ifoPath)
	if err != nil {
		return fmt.Errorf("%w: opening %q: %w", ErrStardict, l.ifoPath, err)
	}

	entries, ok, err := d.Lookup(l.word)
	if err != nil {
		return fmt.Errorf("%w: looking up %q: %w", ErrStardict, l.word, err)
	}
	if !ok {
		return fmt.Errorf("%w: %q not found in %s", ErrStardict, l.word, d.Info.Bookname)
	}

	for _, e := range entries {
		_ = must(fmt.Fprintf(c.App.Writer, "[%s] %s\n", e.Type, e.Data))
	}
	return nil
}
