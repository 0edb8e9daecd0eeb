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
package ourio

import (
	"bytes"
	"io/ioutil"
	"os"

	"github.com/juju/errors"
	yaml "gopkg.in/yaml.v2"
)

// WriteFileIfDifferent writes data to file but avoids overwriting a file with the same contents.
// Returns true if the file was written.
func WriteFileIfDifferent(filename string, data []byte, perm os.FileMode) (bool, error) {
	exData, err := ioutil.ReadFile(filename)

	if err == nil && bytes.Equal(exData, data) {
		return false, nil
	}

	if err2 := ioutil.WriteFile(filename, data, perm); err2 != nil {
		return false, errors.Trace(err2)
	}

	return true, nil
}

// WriteYAMLFileIfDifferent writes s as YAML to file but avoids overwriting a file with the same contents.
// Returns true if the file was written.
func WriteYAMLFileIfDifferent(filename string, s interface{}, perm os.FileMode) (bool, error) {
	data, err := yaml.Marshal(s)
	if err != nil {
		return false, errors.Trace(err)
	}
	return WriteFileIfDifferent(filename, data, perm)
}

// WriteOutput writes data to filename, "-" means stdout.
func WriteOutput(filename string, data []byte) error {
	if filename == "-" {
		_, err := os.Stdout.Write(data)
		return errors.Trace(err)
	}
	_, err := WriteFileIfDifferent(filename, data, 0644)
	return errors.Annotatef(err, "failed to write %s", filename)
}

// ReadInput reads filename, "-" means stdin.
func ReadInput(filename string) ([]byte, error) {
	var data []byte
	var err error
	if filename == "-" {
		data, err = ioutil.ReadAll(os.Stdin)
	} else {
		data, err = ioutil.ReadFile(filename)
	}
	if err != nil {
		return nil, errors.Annotatef(err, "failed to read %s", filename)
	}
	return data, nil
}
