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
// Package boot validates a staged image and hands control over to it.
package boot

import (
	"context"
	"fmt"

	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/mongoose-os/iap/flash/common"
)

const (
	// Default stack pointer check: SP must point into SRAM at 0x20000000.
	DefaultSPMask    = 0x2ffe0000
	DefaultSPPattern = 0x20000000
)

type State int

const (
	StateIdle State = iota
	StateValidating
	// StateCommitted is terminal: control has left the caller.
	StateCommitted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StateCommitted:
		return "committed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Transfer moves execution to another image.
type Transfer interface {
	// SetStackPointer loads the main stack pointer.
	SetStackPointer(ctx context.Context, sp uint32) error
	// Jump transfers control to entry. On success control never comes back to the image
	// that issued it.
	Jump(ctx context.Context, entry uint32) error
}

// Vectors are the first two words of an image.
type Vectors struct {
	SP    uint32
	Entry uint32
}

type Config struct {
	SPMask    uint32
	SPPattern uint32
}

type Option func(*Config)

// WithStackCheck sets the mask and pattern the initial SP must match.
func WithStackCheck(mask, pattern uint32) Option {
	return func(c *Config) {
		c.SPMask = mask
		c.SPPattern = pattern
	}
}

type Handoff struct {
	r     common.MemReader
	t     Transfer
	cfg   Config
	state State
}

func New(r common.MemReader, t Transfer, opts ...Option) *Handoff {
	h := &Handoff{
		r: r,
		t: t,
		cfg: Config{
			SPMask:    DefaultSPMask,
			SPPattern: DefaultSPPattern,
		},
	}
	for _, opt := range opts {
		opt(&h.cfg)
	}
	return h
}

func (h *Handoff) State() State {
	return h.state
}

// ValidSP returns true if sp looks like an initial stack pointer.
func (h *Handoff) ValidSP(sp uint32) bool {
	return sp&h.cfg.SPMask == h.cfg.SPPattern
}

// Inspect reads the vectors of the image at base and checks the stack pointer.
// Vectors are returned even if the check fails.
func (h *Handoff) Inspect(ctx context.Context, base uint32) (Vectors, error) {
	var v Vectors
	words, err := h.r.ReadWords(ctx, base, 1)
	if err != nil {
		return v, errors.Trace(&common.MediumFaultError{Op: "read", Addr: base, Err: err})
	}
	v.SP = words[0]
	if !h.ValidSP(v.SP) {
		return v, errors.Trace(&common.InvalidImageError{Addr: base, SP: v.SP})
	}
	words, err = h.r.ReadWords(ctx, base+common.WordSize, 1)
	if err != nil {
		return v, errors.Trace(&common.MediumFaultError{Op: "read", Addr: base + common.WordSize, Err: err})
	}
	v.Entry = words[0]
	return v, nil
}

// Attempt validates the image at base and transfers control to it.
// Only the initial stack pointer is checked. An image with a plausible SP
// and garbage after it will be jumped into.
//
// On any failure the handoff is back in StateIdle and may be retried.
func (h *Handoff) Attempt(ctx context.Context, base uint32) error {
	if h.state == StateCommitted {
		return errors.Trace(common.ErrCommitted)
	}
	h.state = StateValidating
	v, err := h.Inspect(ctx, base)
	if err != nil {
		h.state = StateIdle
		return errors.Annotatef(err, "boot @ 0x%08x", base)
	}
	glog.Infof("Image @ 0x%08x: SP 0x%08x, entry 0x%08x", base, v.SP, v.Entry)
	if err := h.t.SetStackPointer(ctx, v.SP); err != nil {
		h.state = StateIdle
		return errors.Trace(&common.TransferError{Op: "set stack pointer", Err: err})
	}
	if err := h.t.Jump(ctx, v.Entry); err != nil {
		h.state = StateIdle
		return errors.Trace(&common.TransferError{Op: "jump", Err: err})
	}
	h.state = StateCommitted
	return nil
}
