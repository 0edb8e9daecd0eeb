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

	"github.com/golang/glog"
	"github.com/juju/errors"
	yaml "gopkg.in/yaml.v2"
)

type profilesFile struct {
	Profiles []*Profile `yaml:"profiles"`
}

// Parse parses a YAML document with a list of profiles.
func Parse(data []byte) (Profiles, error) {
	var pf profilesFile
	if err := yaml.UnmarshalStrict(data, &pf); err != nil {
		return nil, errors.Annotatef(err, "invalid profiles")
	}
	res := Profiles{}
	for _, p := range pf.Profiles {
		if err := p.Validate(); err != nil {
			return nil, errors.Trace(err)
		}
		if _, ok := res[p.Name]; ok {
			return nil, errors.Errorf("duplicate profile %q", p.Name)
		}
		res[p.Name] = p
	}
	return res, nil
}

// Marshal is the inverse of Parse.
func Marshal(ps Profiles) ([]byte, error) {
	var pf profilesFile
	for _, n := range ps.Names() {
		pf.Profiles = append(pf.Profiles, ps[n])
	}
	data, err := yaml.Marshal(&pf)
	return data, errors.Trace(err)
}

// Builtin returns the compiled-in profiles.
func Builtin() Profiles {
	ps, err := Parse([]byte(builtinProfiles))
	if err != nil {
		panic(errors.ErrorStack(err))
	}
	return ps
}

// Load returns built-in profiles, extended or overridden by those in fileName, if given.
func Load(fileName string) (Profiles, error) {
	ps := Builtin()
	if fileName == "" {
		return ps, nil
	}
	data, err := ioutil.ReadFile(fileName)
	if err != nil {
		return nil, errors.Annotatef(err, "failed to read profiles")
	}
	ups, err := Parse(data)
	if err != nil {
		return nil, errors.Annotatef(err, "%s", fileName)
	}
	glog.V(1).Infof("%d profile(s) from %s: %v", len(ups), fileName, ups.Names())
	ps.Merge(ups)
	return ps, nil
}
