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
// Package config describes IAP targets: flash layout, application slot and bootloader parameters.
package config

import (
	"fmt"
	"sort"

	"github.com/juju/errors"

	"github.com/mongoose-os/iap/flash/boot"
	"github.com/mongoose-os/iap/flash/common"
)

type FlashConfig struct {
	Base     uint32 `yaml:"base"`
	PageSize uint32 `yaml:"page_size"`
	Size     uint32 `yaml:"size"`
}

type StackConfig struct {
	Mask    uint32 `yaml:"mask"`
	Pattern uint32 `yaml:"pattern"`
}

type BootloaderConfig struct {
	PIDs        []uint16 `yaml:"pids,omitempty"`
	ScratchAddr uint32   `yaml:"scratch_addr,omitempty"`
	MinVersion  string   `yaml:"min_version,omitempty"`
}

// Profile describes one target.
type Profile struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description,omitempty"`
	Flash       FlashConfig `yaml:"flash"`
	// AppAddr is where images are staged by default.
	AppAddr uint32 `yaml:"app_addr"`
	// ProtectBelow is the start of the writable region, protecting the IAP loader itself.
	ProtectBelow uint32           `yaml:"protect_below,omitempty"`
	Stack        StackConfig      `yaml:"stack"`
	Bootloader   BootloaderConfig `yaml:"bootloader,omitempty"`
}

func (p *Profile) String() string {
	return fmt.Sprintf("%s (%s)", p.Name, p.Geometry())
}

func (p *Profile) Geometry() common.Geometry {
	return common.Geometry{Base: p.Flash.Base, PageSize: p.Flash.PageSize, TotalSize: p.Flash.Size}
}

// WritableRegion returns the part of flash images may be written to.
func (p *Profile) WritableRegion() common.Region {
	g := p.Geometry()
	start := g.Base
	if p.ProtectBelow > start {
		start = p.ProtectBelow
	}
	return common.NewRegion(start, g.End())
}

// BootOptions returns the handoff options matching the target's RAM.
func (p *Profile) BootOptions() []boot.Option {
	if p.Stack.Mask == 0 {
		return nil
	}
	return []boot.Option{boot.WithStackCheck(p.Stack.Mask, p.Stack.Pattern)}
}

func (p *Profile) HasPID(pid uint16) bool {
	for _, v := range p.Bootloader.PIDs {
		if v == pid {
			return true
		}
	}
	return false
}

func (p *Profile) Validate() error {
	if p.Name == "" {
		return errors.Errorf("profile has no name")
	}
	g := p.Geometry()
	if err := g.Validate(); err != nil {
		return errors.Annotatef(err, "%s: invalid flash config", p.Name)
	}
	r := p.WritableRegion()
	if r.Start >= r.End {
		return errors.Errorf("%s: protect_below 0x%08x leaves no writable flash", p.Name, p.ProtectBelow)
	}
	if p.AppAddr%common.WordSize != 0 || !r.Contains(p.AppAddr, 2) {
		return errors.Errorf("%s: app_addr 0x%08x is not in the writable region %s", p.Name, p.AppAddr, r)
	}
	if p.Stack.Mask != 0 && p.Stack.Pattern&^p.Stack.Mask != 0 {
		return errors.Errorf("%s: stack pattern 0x%08x has bits outside the mask 0x%08x", p.Name, p.Stack.Pattern, p.Stack.Mask)
	}
	return nil
}

// Profiles is a set of profiles keyed by name.
type Profiles map[string]*Profile

// Names returns sorted profile names.
func (ps Profiles) Names() []string {
	var res []string
	for n := range ps {
		res = append(res, n)
	}
	sort.Strings(res)
	return res
}

func (ps Profiles) Get(name string) (*Profile, error) {
	p, ok := ps[name]
	if !ok {
		return nil, errors.NotFoundf("profile %q", name)
	}
	return p, nil
}

// ForPID returns the profile claiming the given bootloader product ID.
func (ps Profiles) ForPID(pid uint16) (*Profile, error) {
	for _, n := range ps.Names() {
		if ps[n].HasPID(pid) {
			return ps[n], nil
		}
	}
	return nil, errors.NotFoundf("profile for PID 0x%03x", pid)
}

// Merge adds profiles from other, replacing profiles with the same name.
func (ps Profiles) Merge(other Profiles) {
	for n, p := range other {
		ps[n] = p
	}
}
