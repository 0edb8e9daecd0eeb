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
package sim

import (
	"context"
	"io"
	"os"

	"github.com/gofrs/flock"
	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/mongoose-os/iap/flash/common"
)

// File is a Sim whose contents are persisted to an image file.
// The file holds the raw medium contents, starting at Base.
type File struct {
	*Sim
	f    *os.File
	lock *flock.Flock
}

// OpenFile opens or creates the image file at path.
// A new file is created fully erased. Only one process may have the file open.
func OpenFile(path string, g common.Geometry) (*File, error) {
	s, err := New(g)
	if err != nil {
		return nil, errors.Trace(err)
	}
	lock := flock.NewFlock(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, errors.Annotatef(err, "failed to lock %s", path)
	}
	if !locked {
		return nil, errors.Errorf("%s is in use by another process", path)
	}
	ok := false
	defer func() {
		if !ok {
			lock.Unlock()
		}
	}()
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, errors.Annotatef(err, "failed to open %s", path)
	}
	fm := &File{Sim: s, f: f, lock: lock}
	if err := fm.load(); err != nil {
		f.Close()
		return nil, errors.Annotatef(err, "%s", path)
	}
	ok = true
	return fm, nil
}

func (fm *File) load() error {
	st, err := fm.f.Stat()
	if err != nil {
		return errors.Trace(err)
	}
	switch st.Size() {
	case 0:
		glog.Infof("Creating erased image (%s)", fm.geom)
		return errors.Trace(fm.persist(0, len(fm.mem)))
	case int64(fm.geom.TotalSize):
	default:
		return errors.Errorf("image size %d does not match medium size %d", st.Size(), fm.geom.TotalSize)
	}
	data := make([]byte, fm.geom.TotalSize)
	if _, err := io.ReadFull(fm.f, data); err != nil {
		return errors.Annotatef(err, "failed to read image")
	}
	copy(fm.mem, common.WordsFromBytes(data))
	return nil
}

// persist writes count words starting at word index start back to the file.
func (fm *File) persist(start, count int) error {
	data := common.BytesFromWords(fm.mem[start : start+count])
	if _, err := fm.f.WriteAt(data, int64(start*common.WordSize)); err != nil {
		return errors.Annotatef(err, "failed to write image")
	}
	return nil
}

func (fm *File) ErasePage(ctx context.Context, page int) error {
	if err := fm.Sim.ErasePage(ctx, page); err != nil {
		return errors.Trace(err)
	}
	return fm.persist(fm.index(fm.geom.PageAddr(page)), fm.geom.WordsPerPage())
}

func (fm *File) ProgramWords(ctx context.Context, addr uint32, words []uint32) error {
	if err := fm.Sim.ProgramWords(ctx, addr, words); err != nil {
		return errors.Trace(err)
	}
	return fm.persist(fm.index(addr), len(words))
}

func (fm *File) Close() error {
	defer fm.lock.Unlock()
	if err := fm.f.Sync(); err != nil {
		fm.f.Close()
		return errors.Trace(err)
	}
	return errors.Trace(fm.f.Close())
}
