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
package main

import (
	"context"
	"io"
	"strings"

	"github.com/golang/glog"
	"github.com/juju/errors"
	flag "github.com/spf13/pflag"

	"github.com/mongoose-os/iap/cli/devutil"
	"github.com/mongoose-os/iap/cli/flags"
	"github.com/mongoose-os/iap/config"
	"github.com/mongoose-os/iap/flash/boot"
	"github.com/mongoose-os/iap/flash/common"
	"github.com/mongoose-os/iap/flash/sim"
	"github.com/mongoose-os/iap/flash/stm32"
	"github.com/mongoose-os/iap/flash/writer"
)

const filePrefix = "file:"

// target is the flash medium selected by --medium, with the profile describing it.
type target struct {
	profile  *config.Profile
	medium   common.Medium
	transfer boot.Transfer
	// recorder is set when the jump is only simulated.
	recorder *boot.Recorder
	bl       *devutil.Bootloader
	closer   io.Closer
}

func (t *target) Close() error {
	if t.closer == nil {
		return nil
	}
	return t.closer.Close()
}

func (t *target) simulated() *target {
	t.recorder = &boot.Recorder{}
	t.transfer = t.recorder
	return t
}

func openTarget(ctx context.Context) (*target, error) {
	ps, err := config.Load(*flags.Profiles)
	if err != nil {
		return nil, errors.Trace(err)
	}
	m := *flags.Medium
	switch {
	case m == "sim":
		p, err := ps.Get(*flags.Profile)
		if err != nil {
			return nil, errors.Trace(err)
		}
		s, err := sim.New(p.Geometry())
		if err != nil {
			return nil, errors.Trace(err)
		}
		return (&target{profile: p, medium: s}).simulated(), nil
	case strings.HasPrefix(m, filePrefix):
		p, err := ps.Get(*flags.Profile)
		if err != nil {
			return nil, errors.Trace(err)
		}
		fm, err := sim.OpenFile(strings.TrimPrefix(m, filePrefix), p.Geometry())
		if err != nil {
			return nil, errors.Trace(err)
		}
		return (&target{profile: p, medium: fm, closer: fm}).simulated(), nil
	case m == "serial":
		return openSerialTarget(ctx, ps)
	}
	return nil, errors.NotValidf("--medium %q", m)
}

func openSerialTarget(ctx context.Context, ps config.Profiles) (*target, error) {
	bl, err := devutil.OpenBootloader(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	p, err := selectProfile(ps, bl.PID())
	if err == nil {
		err = bl.CheckVersion(p.Bootloader.MinVersion)
	}
	if err != nil {
		bl.Close()
		return nil, errors.Trace(err)
	}
	scratch := p.Bootloader.ScratchAddr
	if scratch == 0 {
		scratch = stm32.DefaultScratchAddr
	}
	t := &target{
		profile:  p,
		medium:   stm32.NewMedium(bl.Client, p.Geometry()),
		transfer: stm32.NewTransfer(bl.Client, scratch),
		bl:       bl,
		closer:   bl,
	}
	if *flags.DryRun {
		t.simulated()
	}
	return t, nil
}

// selectProfile uses --profile if it was given, otherwise the profile matching the product ID.
func selectProfile(ps config.Profiles, pid uint16) (*config.Profile, error) {
	if f := flag.Lookup("profile"); f == nil || !f.Changed {
		p, err := ps.ForPID(pid)
		if err != nil {
			return nil, errors.Annotatef(err, "use --profile to select one")
		}
		return p, nil
	}
	p, err := ps.Get(*flags.Profile)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if !p.HasPID(pid) {
		reportWarning("Profile %s does not list PID 0x%03x", p.Name, pid)
	}
	return p, nil
}

func (t *target) newWriter() *writer.Writer {
	var opts []writer.Option
	if !*flags.Unprotect {
		r := t.profile.WritableRegion()
		opts = append(opts, writer.WithRegion(r.Start, r.End))
	}
	opts = append(opts, writer.WithProgress(func(p writer.Progress) {
		glog.V(1).Infof("page %d @ 0x%08x: %d words, erased: %t (%d/%d)", p.Page, p.Addr, p.Words, p.Erased, p.WordsDone, p.WordsTotal)
	}))
	return writer.New(t.medium, opts...)
}
