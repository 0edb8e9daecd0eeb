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
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/juju/errors"
	flag "github.com/spf13/pflag"

	"github.com/mongoose-os/iap/cli/flags"
	"github.com/mongoose-os/iap/config"
	"github.com/mongoose-os/iap/image"
)

func parseAddr(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, errors.Annotatef(err, "invalid address %q", s)
	}
	return uint32(v), nil
}

func parseLength(s string) (int, error) {
	v, err := strconv.ParseInt(s, 0, 64)
	if err != nil || v <= 0 || v > 1<<32 {
		return 0, errors.NotValidf("length %q", s)
	}
	return int(v), nil
}

// optAddr returns the address given as positional argument i, or def if there is none.
func optAddr(i int, def uint32) (uint32, error) {
	if flag.NArg() <= i {
		return def, nil
	}
	return parseAddr(flag.Arg(i))
}

// imageAddr picks the staging address: explicit argument, then the image's own, then the profile's.
func imageAddr(p *config.Profile, im *image.Image, argIdx int) (uint32, error) {
	def := p.AppAddr
	if im.HasAddr {
		def = im.Addr
	}
	addr, err := optAddr(argIdx, def)
	if err != nil {
		return 0, errors.Trace(err)
	}
	if im.HasAddr && addr != im.Addr {
		reportWarning("Image is linked for 0x%08x but is being placed at 0x%08x", im.Addr, addr)
	}
	return addr, nil
}

func loadOpts() *image.LoadOpts {
	opts := image.DefaultLoadOpts()
	opts.Format = image.Format(*flags.Format)
	opts.Fill = *flags.Fill
	opts.MaxGap = *flags.MaxGap
	opts.UF2Family = *flags.UF2Family
	return opts
}

func reportOK(f string, args ...interface{}) {
	color.New(color.FgGreen).Fprintf(os.Stderr, f+"\n", args...)
}

func reportWarning(f string, args ...interface{}) {
	color.New(color.FgYellow).Fprintf(os.Stderr, "Warning: "+f+"\n", args...)
}
