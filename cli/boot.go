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

	"github.com/juju/errors"

	"github.com/mongoose-os/iap/cli/ourutil"
	"github.com/mongoose-os/iap/flash/boot"
)

func bootImage(ctx context.Context) error {
	t, err := openTarget(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	defer t.Close()
	addr, err := optAddr(1, t.profile.AppAddr)
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(attemptBoot(ctx, t, addr))
}

func attemptBoot(ctx context.Context, t *target, addr uint32) error {
	h := boot.New(t.medium, t.transfer, t.profile.BootOptions()...)
	ourutil.Reportf("Booting image @ 0x%08x...", addr)
	if err := h.Attempt(ctx, addr); err != nil {
		return errors.Annotatef(err, "boot failed")
	}
	if t.recorder != nil {
		reportOK("Would jump to 0x%08x with SP 0x%08x", t.recorder.Entry, t.recorder.SP)
	} else {
		reportOK("Jumped to the image @ 0x%08x", addr)
	}
	return nil
}
