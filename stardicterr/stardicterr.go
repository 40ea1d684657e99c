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

// Package stardicterr defines the single error kind shared by every
// StarDict reader component.
package stardicterr

import (
	"errors"
	"fmt"
)

// Kind discriminates the variant of a StarDict parsing error.
type Kind int

const (
	// Unknown is the zero value and should not be produced by this package.
	Unknown Kind = iota

	// BadMagic indicates a file's leading magic bytes did not match.
	BadMagic

	// MissingField indicates a required .ifo field was absent.
	MissingField

	// BadField indicates a .ifo field had a malformed value.
	BadField

	// UnknownEntryType indicates an unrecognized dict entry type code.
	UnknownEntryType

	// BadRandomAccessVersion indicates an unsupported dictzip RA version.
	BadRandomAccessVersion

	// TruncatedData indicates a read produced fewer bytes than required.
	TruncatedData

	// CorruptCompressed indicates the DEFLATE stream could not be decoded.
	CorruptCompressed

	// IndexOutOfBounds indicates an index entry addresses bytes beyond the
	// logical data stream.
	IndexOutOfBounds

	// IO indicates an underlying I/O failure unrelated to format validity.
	IO
)

// String implements [fmt.Stringer].
func (k Kind) String() string {
	switch k {
	case BadMagic:
		return "BadMagic"
	case MissingField:
		return "MissingField"
	case BadField:
		return "BadField"
	case UnknownEntryType:
		return "UnknownEntryType"
	case BadRandomAccessVersion:
		return "BadRandomAccessVersion"
	case TruncatedData:
		return "TruncatedData"
	case CorruptCompressed:
		return "CorruptCompressed"
	case IndexOutOfBounds:
		return "IndexOutOfBounds"
	case IO:
		return "Io"
	default:
		return "Unknown"
	}
}

// Error is the single error type every StarDict reader component returns.
// Name carries the field name or entry type character the Kind refers to,
// when applicable, and is otherwise empty. Cause, when non-nil, is the
// underlying error that triggered this one and is reachable via
// [errors.Unwrap].
type Error struct {
	Kind  Kind
	Name  string
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Name != "" && e.Cause != nil:
		return fmt.Sprintf("stardict: %s(%s): %v", e.Kind, e.Name, e.Cause)
	case e.Name != "":
		return fmt.Sprintf("stardict: %s(%s)", e.Kind, e.Name)
	case e.Cause != nil:
		return fmt.Sprintf("stardict: %s: %v", e.Kind, e.Cause)
	default:
		return fmt.Sprintf("stardict: %s", e.Kind)
	}
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an Error of the given kind with no name or cause.
func New(kind Kind) *Error {
	return &Error{Kind: kind}
}

// Named creates an Error of the given kind carrying a field/type name.
func Named(kind Kind, name string) *Error {
	return &Error{Kind: kind, Name: name}
}

// Wrap creates an Error of the given kind wrapping a lower-level cause.
func Wrap(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Cause: cause}
}

// WrapNamed creates an Error of the given kind, carrying both a name and a
// wrapped cause.
func WrapNamed(kind Kind, name string, cause error) *Error {
	return &Error{Kind: kind, Name: name, Cause: cause}
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
