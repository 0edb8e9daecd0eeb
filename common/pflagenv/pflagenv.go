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
package pflagenv

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/golang/glog"
	"github.com/spf13/pflag"
)

// ParseFlagSet sets every flag of fs that was not given on the command line
// from the environment variable named envPrefix + upper-cased flag name, with
// dashes replaced by underscores (--baud-rate -> IAP_BAUD_RATE).
// It returns the names of the flags taken from the environment.
//
// It should be called after Parse is called for the given FlagSet.
func ParseFlagSet(fs *pflag.FlagSet, envPrefix string) ([]string, error) {
	// pflag can't tell a flag explicitly set to its default from one that was
	// not set at all, so collect all flags and drop the visited ones.
	nonset := make(map[string]*pflag.Flag)

	fs.VisitAll(func(f *pflag.Flag) {
		nonset[f.Name] = f
	})
	fs.Visit(func(f *pflag.Flag) {
		delete(nonset, f.Name)
	})

	return setFromEnv(nonset, envPrefix)
}

// The same as ParseFlagSet, but operates on a default FlagSet: pflag.CommandLine
func Parse(envPrefix string) ([]string, error) {
	return ParseFlagSet(pflag.CommandLine, envPrefix)
}

func setFromEnv(nonset map[string]*pflag.Flag, envPrefix string) ([]string, error) {
	var set []string
	for name, f := range nonset {
		envName := GetEnvName(name, envPrefix)
		envVar := os.Getenv(envName)
		if envVar == "" {
			continue
		}
		if err := f.Value.Set(envVar); err != nil {
			return set, fmt.Errorf("invalid value %q in %s: %s", envVar, envName, err)
		}
		f.Changed = true
		glog.V(1).Infof("--%s=%q from %s", name, envVar, envName)
		set = append(set, name)
	}
	sort.Strings(set)
	return set, nil
}

func GetEnvName(flagName, envPrefix string) string {
	flagName = strings.ToUpper(flagName)
	flagName = strings.Replace(flagName, "-", "_", -1)
	return fmt.Sprint(envPrefix, flagName)
}
