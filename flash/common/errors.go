//
// Copyright (c) 2014-2019 Cesanta Software Limited
// All rights reserved
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
package common

import (
	"fmt"

	"github.com/juju/errors"
)

// ErrCommitted is returned by a boot handoff that has already given control away.
var ErrCommitted = errors.New("control has already been transferred to the image")

// OutOfRangeError is returned when a request does not fit the writable region.
// Nothing has been modified when it is returned.
type OutOfRangeError struct {
	Addr     uint32
	NumWords int
	Region   Region
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("%d words @ 0x%08x do not fit in %s", e.NumWords, e.Addr, e.Region)
}

// MisalignedError is returned for addresses that are not word-aligned.
type MisalignedError struct {
	Addr uint32
}

func (e *MisalignedError) Error() string {
	return fmt.Sprintf("address 0x%08x is not word-aligned", e.Addr)
}

// IncompleteWordError is returned when an image stream ends in the middle of a word.
// All complete words have been written when it is returned.
type IncompleteWordError struct {
	Trailing int
	Written  int64
}

func (e *IncompleteWordError) Error() string {
	return fmt.Sprintf("stream ended with %d dangling byte(s) after %d bytes", e.Trailing, e.Written)
}

// InvalidImageError is returned when the initial stack pointer of an image is implausible.
type InvalidImageError struct {
	Addr uint32
	SP   uint32
}

func (e *InvalidImageError) Error() string {
	return fmt.Sprintf("no valid image @ 0x%08x (SP 0x%08x)", e.Addr, e.SP)
}

// MediumFaultError wraps a failure of a medium primitive.
type MediumFaultError struct {
	Op   string
	Page int
	Addr uint32
	Err  error
}

func (e *MediumFaultError) Error() string {
	return fmt.Sprintf("%s failed (page %d @ 0x%08x): %s", e.Op, e.Page, e.Addr, e.Err)
}

func (e *MediumFaultError) Unwrap() error {
	return e.Err
}

// TransferError wraps a failure to hand control over to an image.
type TransferError struct {
	Op  string
	Err error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Op, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

func IsOutOfRange(err error) bool {
	_, ok := errors.Cause(err).(*OutOfRangeError)
	return ok
}

func IsMisaligned(err error) bool {
	_, ok := errors.Cause(err).(*MisalignedError)
	return ok
}

func IsIncompleteWord(err error) bool {
	_, ok := errors.Cause(err).(*IncompleteWordError)
	return ok
}

func IsInvalidImage(err error) bool {
	_, ok := errors.Cause(err).(*InvalidImageError)
	return ok
}

func IsMediumFault(err error) bool {
	_, ok := errors.Cause(err).(*MediumFaultError)
	return ok
}

func IsTransferFailed(err error) bool {
	_, ok := errors.Cause(err).(*TransferError)
	return ok
}

func IsCommitted(err error) bool {
	return errors.Cause(err) == ErrCommitted
}
