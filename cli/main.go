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

	"github.com/fatih/color"
	"github.com/golang/glog"
	"github.com/juju/errors"
	flag "github.com/spf13/pflag"

	"github.com/mongoose-os/iap/common/pflagenv"
	"github.com/mongoose-os/iap/version"
)

const (
	envPrefix = "IAP_"
)

var (
	verbose      = flag.Bool("verbose", false, "Verbose output")
	versionFlag  = flag.Bool("version", false, "Print version and exit")
	helpFull     = flag.Bool("helpfull", false, "Show full help, including advanced flags")
	extendedMode = false
)

var targetFlags = []string{"medium", "profile", "profiles", "port", "baud-rate", "reset-into-bootloader"}

func withTargetFlags(fs ...string) []string {
	return append(append([]string{}, targetFlags...), fs...)
}

var (
	// put all commands here
	commands = []command{
		{"info", info, "[addr]", `Show the target profile, bootloader details and the image vectors at addr`, nil, withTargetFlags(), false},
		{"read", flashRead, "[<addr> <length>] <file|->", `Read flash contents; the whole flash if no address is given`, nil, withTargetFlags(), false},
		{"write", flashWrite, "<addr> <file|->", `Write raw data to flash, erasing pages only as needed`, nil, withTargetFlags("tail", "unprotect"), false},
		{"stage", stage, "<image> [addr]", `Stage a bin, hex or uf2 image, verify it and optionally boot it`, nil, withTargetFlags("format", "tail", "buffer-words", "no-verify", "unprotect", "boot", "dry-run"), false},
		{"verify", verify, "<image> [addr]", `Compare flash contents with an image`, nil, withTargetFlags("format"), false},
		{"boot", bootImage, "[addr]", `Transfer control to the image at addr, the profile's app address by default`, nil, withTargetFlags("dry-run"), false},
	}
	// These commands are only available when invoked with -X
	extendedCommands = []command{
		{"profiles", dumpProfiles, "[file|-]", `Write the effective target profiles as YAML`, nil, []string{"profiles"}, true},
		{"ports", listPorts, "", `List serial ports`, nil, nil, true},
	}
)

type command struct {
	name     string
	handler  handler
	args     string
	short    string
	required []string
	optional []string
	extended bool
}

type handler func(ctx context.Context) error

func run(ctx context.Context) error {
	for _, c := range commands {
		if c.name == flag.Arg(0) {
			// check required flags
			if err := checkFlags(c.required); err != nil {
				return errors.Trace(err)
			}
			// run the handler
			if err := c.handler(ctx); err != nil {
				return errors.Trace(err)
			}
			return nil
		}
	}
	// not found
	usage()
	return nil
}

func main() {
	// -X, if given, must be the first arg.
	if len(os.Args) > 1 && os.Args[1] == "-X" {
		os.Args = append(os.Args[:1], os.Args[2:]...)
		extendedMode = true
		commands = append(commands, extendedCommands...)
	}
	initFlags()
	flag.Parse()
	if _, err := pflagenv.Parse(envPrefix); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	if *verbose {
		flag.Set("v", "1")
	}

	if *helpFull {
		setFlagsHidden(false)
		usage()
		return
	} else if *versionFlag {
		fmt.Printf(
			"%s\nVersion: %s\nBuild ID: %s\n",
			"The in-application flash programmer", version.Version, version.BuildId,
		)
		return
	}

	if err := run(context.Background()); err != nil {
		glog.Infof("Error: %+v", err)
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %s\n", err)
		glog.Flush()
		os.Exit(1)
	}
	glog.Flush()
}
