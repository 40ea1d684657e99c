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
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"
)

const (
	// ExitCodeSuccess is successful error code.
	ExitCodeSuccess int = iota

	// ExitCodeFlagParseError is the exit code for a flag parsing error.
	ExitCodeFlagParseError

	// ExitCodeUnknownError is the exit code for an unknown error.
	ExitCodeUnknownError
)

// ErrFlagParse is a flag parsing error.
var ErrFlagParse = errors.New("parsing flags")

// ErrStardict is a generic error returned by stardict subcommands.
var ErrStardict = errors.New("stardict")

func init() {
	// Set the HelpFlag to a random name so that it isn't used. `cli` handles
	// the flag with the root command such that it takes a command name
	// argument, but `stardict --help <word>` should always show help, not a
	// "command <word> not found" error.
	//
	// See: github.com/urfave/cli/issues/1809
	cli.HelpFlag = &cli.BoolFlag{
		Name:               "d41d8cd98f00b204e980",
		DisableDefaultText: true,
	}
}

// check panics if err is not nil.
func check(err error) {
	if err != nil {
		panic(err)
	}
}

// must panics if err is not nil, otherwise returns val.
func must[T any](val T, err error) T {
	if err != nil {
		panic(err)
	}
	return val
}

func newStardictApp() *cli.App {
	return &cli.App{
		Name:  filepath.Base(os.Args[0]),
		Usage: "Inspect and query StarDict dictionary files.",
		Description: strings.Join([]string{
			"stardict(1) reads StarDict .ifo/.idx/.dict dictionary bundles.",
			"https://github.com/huzheng001/stardict-3",
		}, "\n"),
		Commands: []*cli.Command{
			newListCommand(),
			newLookupCommand(),
			newDumpCommand(),
			newVersionCommand(),
			newDictzipCommand(),
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:               "help",
				Usage:              "print this help text and exit",
				Aliases:            []string{"h"},
				DisableDefaultText: true,
			},
		},
		ArgsUsage:       "<command> [arguments]",
		Copyright:       "Google LLC",
		HideHelp:        true,
		HideHelpCommand: true,
		Action: func(c *cli.Context) error {
			if c.Bool("help") || c.Args().Len() == 0 {
				check(cli.ShowAppHelp(c))
				return nil
			}
			return fmt.Errorf("%w: unknown command %q", ErrStardict, c.Args().First())
		},
		ExitErrHandler: func(c *cli.Context, err error) {
			if err == nil {
				return
			}

			_ = must(fmt.Fprintf(c.App.ErrWriter, "%s: %v\n", c.App.Name, err))
			if errors.Is(err, ErrFlagParse) {
				cli.OsExiter(ExitCodeFlagParseError)
				return
			}

			cli.OsExiter(ExitCodeUnknownError)
		},
	}
}
