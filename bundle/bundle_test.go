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

package bundle

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCollect(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		paths []string
		want  []Triple
	}{
		{
			name: "plain triple",
			paths: []string{
				"/dicts/english/english.ifo",
				"/dicts/english/english.idx",
				"/dicts/english/english.dict",
			},
			want: []Triple{
				{
					Stem: "/dicts/english/english",
					Ifo:  "/dicts/english/english.ifo",
					Idx:  "/dicts/english/english.idx",
					Dict: "/dicts/english/english.dict",
				},
			},
		},
		{
			name: "compressed idx and dict",
			paths: []string{
				"/dicts/fr/fr.ifo",
				"/dicts/fr/fr.idx.gz",
				"/dicts/fr/fr.dict.dz",
			},
			want: []Triple{
				{
					Stem: "/dicts/fr/fr",
					Ifo:  "/dicts/fr/fr.ifo",
					Idx:  "/dicts/fr/fr.idx.gz",
					Dict: "/dicts/fr/fr.dict.dz",
				},
			},
		},
		{
			name: "unrelated files ignored",
			paths: []string{
				"/dicts/x/x.ifo",
				"/dicts/x/x.idx",
				"/dicts/x/x.dict",
				"/dicts/x/README.md",
				"/dicts/x/.DS_Store",
			},
			want: []Triple{
				{
					Stem: "/dicts/x/x",
					Ifo:  "/dicts/x/x.ifo",
					Idx:  "/dicts/x/x.idx",
					Dict: "/dicts/x/x.dict",
				},
			},
		},
		{
			name: "incomplete triple skipped",
			paths: []string{
				"/dicts/y/y.ifo",
				"/dicts/y/y.idx",
			},
			want: nil,
		},
		{
			name: "plain dict preferred when both present",
			paths: []string{
				"/dicts/z/z.ifo",
				"/dicts/z/z.idx",
				"/dicts/z/z.dict",
				"/dicts/z/z.dict.dz",
			},
			want: []Triple{
				{
					Stem: "/dicts/z/z",
					Ifo:  "/dicts/z/z.ifo",
					Idx:  "/dicts/z/z.idx",
					Dict: "/dicts/z/z.dict",
				},
			},
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := Collect(tc.paths)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("Collect() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestWalk(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, name := range []string{"a.ifo", "a.idx", "a.dict", "b.ifo", "b.idx.gz", "b.dict.dz", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("WriteFile(%s) error: %v", name, err)
		}
	}

	got, err := Walk(dir)
	if err != nil {
		t.Fatalf("Walk() error: %v", err)
	}

	want := []Triple{
		{
			Stem: filepath.Join(dir, "a"),
			Ifo:  filepath.Join(dir, "a.ifo"),
			Idx:  filepath.Join(dir, "a.idx"),
			Dict: filepath.Join(dir, "a.dict"),
		},
		{
			Stem: filepath.Join(dir, "b"),
			Ifo:  filepath.Join(dir, "b.ifo"),
			Idx:  filepath.Join(dir, "b.idx.gz"),
			Dict: filepath.Join(dir, "b.dict.dz"),
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Walk() mismatch (-want +got):\n%s", diff)
	}
}

func TestCollectorAddUnrecognized(t *testing.T) {
	t.Parallel()

	c := NewCollector()
	if c.Add("/dicts/x/README.md") {
		t.Errorf("Add() = true for unrecognized suffix, want false")
	}
	if !c.Add("/dicts/x/x.ifo") {
		t.Errorf("Add() = false for recognized suffix, want true")
	}
}
