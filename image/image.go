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
// Package image loads firmware images in raw binary, Intel HEX and UF2 formats.
package image

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/juju/errors"

	"github.com/mongoose-os/iap/common/ourio"
)

type Format string

const (
	FormatBin Format = "bin"
	FormatHex Format = "hex"
	FormatUF2 Format = "uf2"
)

// Image is a single contiguous firmware image.
type Image struct {
	Format Format
	// Addr is the load address. Raw binaries do not carry one.
	Addr    uint32
	HasAddr bool
	// Start is the entry point recorded in the file, if any.
	Start uint32
	Data  []byte
}

func (im *Image) String() string {
	if !im.HasAddr {
		return fmt.Sprintf("%s, %d bytes", im.Format, len(im.Data))
	}
	return fmt.Sprintf("%s, %d bytes @ 0x%08x", im.Format, len(im.Data), im.Addr)
}

func (im *Image) Reader() io.Reader {
	return bytes.NewReader(im.Data)
}

type LoadOpts struct {
	// Format overrides detection by extension and content.
	Format Format
	// Fill is used for gaps shorter than MaxGap.
	Fill   byte
	MaxGap int
	// UF2Family, if set, selects blocks of one family.
	UF2Family uint32
}

func DefaultLoadOpts() *LoadOpts {
	return &LoadOpts{Fill: 0xff, MaxGap: 1024}
}

// LoadFile reads an image from a file, "-" means stdin.
func LoadFile(name string, opts *LoadOpts) (*Image, error) {
	data, err := ourio.ReadInput(name)
	if err != nil {
		return nil, errors.Trace(err)
	}
	o := *opts
	if o.Format == "" {
		o.Format = DetectFormat(name, data)
	}
	im, err := Parse(data, &o)
	if err != nil {
		return nil, errors.Annotatef(err, "%s", name)
	}
	return im, nil
}

// DetectFormat guesses the format from the file name and contents.
func DetectFormat(name string, data []byte) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".hex", ".ihex", ".ihx":
		return FormatHex
	case ".uf2":
		return FormatUF2
	}
	if IsUF2(data) {
		return FormatUF2
	}
	return FormatBin
}

func Parse(data []byte, opts *LoadOpts) (*Image, error) {
	var segs []*Segment
	var err error
	im := &Image{Format: opts.Format}
	switch opts.Format {
	case FormatBin, "":
		im.Format = FormatBin
		im.Data = data
		return im, nil
	case FormatHex:
		segs, im.Start, err = ParseHex(data, opts.Fill, opts.MaxGap)
	case FormatUF2:
		segs, err = ParseUF2(data, opts.UF2Family, opts.Fill, opts.MaxGap)
	default:
		return nil, errors.NotSupportedf("image format %q", opts.Format)
	}
	if err != nil {
		return nil, errors.Trace(err)
	}
	switch len(segs) {
	case 0:
		return nil, errors.Errorf("no data")
	case 1:
	default:
		return nil, errors.Errorf("image is not contiguous: %d segments, gap after 0x%08x", len(segs), segs[0].End())
	}
	im.Addr = segs[0].Addr
	im.HasAddr = true
	im.Data = segs[0].Data
	return im, nil
}
