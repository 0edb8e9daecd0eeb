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
package config

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mongoose-os/iap/flash/common"
)

func TestBuiltin(t *testing.T) {
	ps := Builtin()
	assert.Equal(t, []string{"stm32f103x8", "stm32f103xe", "stm32f105xc"}, ps.Names())

	p, err := ps.Get(DefaultProfile)
	require.NoError(t, err)
	assert.Equal(t, common.Geometry{Base: 0x08000000, PageSize: 2048, TotalSize: 512 * 1024}, p.Geometry())
	assert.Equal(t, 512, p.Geometry().WordsPerPage())
	assert.Equal(t, common.NewRegion(0x08010000, 0x08080000), p.WritableRegion())
	assert.Equal(t, uint32(0x2ffe0000), p.Stack.Mask)
	assert.Len(t, p.BootOptions(), 1)

	p, err = ps.ForPID(0x410)
	require.NoError(t, err)
	assert.Equal(t, "stm32f103x8", p.Name)

	_, err = ps.ForPID(0x999)
	assert.True(t, errors.IsNotFound(err))
	_, err = ps.Get("nope")
	assert.True(t, errors.IsNotFound(err))
}

func TestLoadOverrides(t *testing.T) {
	dir, err := ioutil.TempDir("", "iap-config")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	fn := filepath.Join(dir, "profiles.yaml")
	require.NoError(t, ioutil.WriteFile(fn, []byte(`
profiles:
  - name: stm32f103xe
    flash: {base: 0x08000000, page_size: 2048, size: 0x80000}
    app_addr: 0x08008000
    stack: {mask: 0x2ffe0000, pattern: 0x20000000}
  - name: sim
    flash: {base: 0, page_size: 1024, size: 0x4000}
    app_addr: 0x1000
`), 0644))

	ps, err := Load(fn)
	require.NoError(t, err)
	assert.Len(t, ps, 4)
	p, err := ps.Get("stm32f103xe")
	require.NoError(t, err)
	assert.Equal(t, uint32(0x08008000), p.AppAddr)
	assert.Equal(t, common.NewRegion(0x08000000, 0x08080000), p.WritableRegion())

	p, err = ps.Get("sim")
	require.NoError(t, err)
	assert.Nil(t, p.BootOptions())

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestParseInvalid(t *testing.T) {
	cases := []string{
		// unknown field
		"profiles:\n  - name: x\n    flash: {base: 0, page_size: 1024, size: 0x4000}\n    app_addr: 0\n    bogus: 1\n",
		// page size is not a power of two
		"profiles:\n  - name: x\n    flash: {base: 0, page_size: 1000, size: 4000}\n    app_addr: 0\n",
		// app outside the writable region
		"profiles:\n  - name: x\n    flash: {base: 0, page_size: 1024, size: 0x4000}\n    protect_below: 0x1000\n    app_addr: 0x800\n",
		// duplicate
		"profiles:\n  - name: x\n    flash: {base: 0, page_size: 1024, size: 0x4000}\n    app_addr: 0\n  - name: x\n    flash: {base: 0, page_size: 1024, size: 0x4000}\n    app_addr: 0\n",
		// no name
		"profiles:\n  - flash: {base: 0, page_size: 1024, size: 0x4000}\n    app_addr: 0\n",
		// pattern outside mask
		"profiles:\n  - name: x\n    flash: {base: 0, page_size: 1024, size: 0x4000}\n    app_addr: 0\n    stack: {mask: 0xff000000, pattern: 0x20000001}\n",
	}
	for i, c := range cases {
		_, err := Parse([]byte(c))
		assert.Errorf(t, err, "case %d", i)
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	ps := Builtin()
	data, err := Marshal(ps)
	require.NoError(t, err)
	ps2, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, ps, ps2)
}
