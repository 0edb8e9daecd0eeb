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
package boot

import (
	"context"

	"github.com/golang/glog"
)

// Recorder is a Transfer that only records what it was asked to do.
type Recorder struct {
	SP      uint32
	Entry   uint32
	SPSet   bool
	Jumped  bool
	SPErr   error
	JumpErr error
}

func (r *Recorder) SetStackPointer(ctx context.Context, sp uint32) error {
	if r.SPErr != nil {
		return r.SPErr
	}
	glog.V(1).Infof("MSP <- 0x%08x", sp)
	r.SP = sp
	r.SPSet = true
	return nil
}

func (r *Recorder) Jump(ctx context.Context, entry uint32) error {
	if r.JumpErr != nil {
		return r.JumpErr
	}
	glog.V(1).Infof("PC <- 0x%08x", entry)
	r.Entry = entry
	r.Jumped = true
	return nil
}
