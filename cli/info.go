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
	"fmt"
	"os"
	"strings"

	"github.com/juju/errors"
	yaml "gopkg.in/yaml.v2"

	"github.com/mongoose-os/iap/flash/boot"
	"github.com/mongoose-os/iap/flash/common"
	"github.com/mongoose-os/iap/flash/stm32"
)

func info(ctx context.Context) error {
	t, err := openTarget(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	defer t.Close()

	p := t.profile
	pd, err := yaml.Marshal(p)
	if err != nil {
		return errors.Trace(err)
	}
	fmt.Printf("Profile: %s\n%s\n", p, pd)
	fmt.Printf("Writable region: %s, %d pages of %d bytes\n", p.WritableRegion(), p.Geometry().NumPages(), p.Geometry().PageSize)
	if t.bl != nil {
		cmds := make([]string, 0, len(t.bl.Commands()))
		for _, c := range t.bl.Commands() {
			cmds = append(cmds, fmt.Sprintf("0x%02x", c))
		}
		fmt.Printf("Bootloader: %s on %s, PID 0x%03x (%s), commands: %s\n",
			t.bl.Version(), t.bl.Port, t.bl.PID(), stm32.DeviceName(t.bl.PID()), strings.Join(cmds, " "))
	}

	addr, err := optAddr(1, p.AppAddr)
	if err != nil {
		return errors.Trace(err)
	}
	h := boot.New(t.medium, t.transfer, p.BootOptions()...)
	v, err := h.Inspect(ctx, addr)
	switch {
	case err == nil:
		fmt.Printf("Image @ 0x%08x: SP 0x%08x, entry 0x%08x\n", addr, v.SP, v.Entry)
	case common.IsInvalidImage(err):
		fmt.Fprintf(os.Stderr, "No valid image @ 0x%08x: %s\n", addr, err)
	default:
		return errors.Trace(err)
	}
	return nil
}
