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

	"github.com/juju/errors"
	flag "github.com/spf13/pflag"

	"github.com/mongoose-os/iap/cli/devutil"
	"github.com/mongoose-os/iap/cli/flags"
	"github.com/mongoose-os/iap/common/ourio"
	"github.com/mongoose-os/iap/config"
)

func dumpProfiles(ctx context.Context) error {
	ps, err := config.Load(*flags.Profiles)
	if err != nil {
		return errors.Trace(err)
	}
	outFile := "-"
	if flag.NArg() > 1 {
		outFile = flag.Arg(1)
	}
	data, err := config.Marshal(ps)
	if err != nil {
		return errors.Trace(err)
	}
	if outFile == "-" {
		return errors.Trace(ourio.WriteOutput(outFile, data))
	}
	changed, err := ourio.WriteFileIfDifferent(outFile, data, 0644)
	if err != nil {
		return errors.Trace(err)
	}
	if !changed {
		reportOK("%s is up to date", outFile)
	}
	return nil
}

func listPorts(ctx context.Context) error {
	for _, p := range devutil.EnumerateSerialPorts() {
		fmt.Println(p)
	}
	return nil
}
