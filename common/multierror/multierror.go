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
package multierror

import (
	"bytes"
	"fmt"
)

// Error collects independent failures, e.g. every mismatching range found by a verify pass.
type Error struct {
	errs []error
}

func (e *Error) Error() string {
	buf := bytes.NewBuffer(nil)

	fmt.Fprintf(buf, "%d error(s) occurred:", len(e.errs))
	for _, err := range e.errs {
		fmt.Fprintf(buf, "\n%s", err)
	}
	return buf.String()
}

// Errors returns the collected errors in the order they were added.
func (e *Error) Errors() []error {
	return e.errs
}

func (e *Error) Len() int {
	return len(e.errs)
}

// Append adds errs to err, which may be nil, a plain error or an *Error.
// nil values in errs are skipped; nested *Error values are flattened.
// The result is nil if there is nothing to report.
func Append(err error, errs ...error) error {
	res, ok := err.(*Error)
	if !ok {
		res = &Error{}
		if err != nil {
			res.errs = append(res.errs, err)
		}
	}
	for _, e := range errs {
		switch e := e.(type) {
		case nil:
		case *Error:
			res.errs = append(res.errs, e.errs...)
		default:
			res.errs = append(res.errs, e)
		}
	}
	if len(res.errs) == 0 {
		return nil
	}
	return res
}
