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
package flags

import (
	"time"

	flag "github.com/spf13/pflag"

	"github.com/mongoose-os/iap/config"
)

var (
	Port                 = flag.String("port", "auto", "Serial port where the target bootloader is connected")
	BaudRate             = flag.Uint("baud-rate", 115200, "Serial port speed")
	Timeout              = flag.Duration("timeout", 1*time.Second, "Timeout for a single bootloader response")
	EraseTimeout         = flag.Duration("erase-timeout", 30*time.Second, "Timeout for a page erase")
	ResetIntoBootloader  = flag.Bool("reset-into-bootloader", false, "Use RTS (BOOT0) and DTR (reset) to enter the ROM bootloader")
	InvertedControlLines = flag.Bool("inverted-control-lines", false, "Control lines are active high")

	Medium   = flag.String("medium", "sim", `Flash medium: "sim", "file:<path>" or "serial"`)
	Profile  = flag.String("profile", config.DefaultProfile, "Target profile name")
	Profiles = flag.String("profiles", "", "YAML file with additional target profiles")

	Format      = flag.String("format", "", `Image format: "bin", "hex" or "uf2". Detected if not set.`)
	Fill        = flag.Uint8("fill", 0xff, "Value used to fill gaps between image segments")
	MaxGap      = flag.Int("max-gap", 1024, "Largest gap between image segments that will be filled")
	UF2Family   = flag.Uint32("uf2-family", 0, "Only use UF2 blocks of this family ID")
	Tail        = flag.String("tail", "reject", `What to do with a trailing partial word: "reject" or "zero-pad"`)
	BufferWords = flag.Int("buffer-words", 0, "Stager buffer size in words. Defaults to one page.")
	NoVerify    = flag.Bool("no-verify", false, "Do not read back and verify the staged image")
	Unprotect   = flag.Bool("unprotect", false, "Allow writes below the profile's protect_below address")
	Boot        = flag.Bool("boot", false, "Transfer control to the image after staging")
	DryRun      = flag.Bool("dry-run", false, "Do not jump, only report what would be done")
)
