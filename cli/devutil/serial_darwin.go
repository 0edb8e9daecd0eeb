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
package devutil

import (
	"path/filepath"
	"sort"
	"strings"
)

var darwinIgnoredPorts = []string{"Bluetooth-", "-SPPDev", "-WirelessiAP", "debug-console"}

func EnumerateSerialPorts() []string {
	list, _ := filepath.Glob("/dev/cu.*")
	var filteredList []string
outer:
	for _, s := range list {
		for _, ign := range darwinIgnoredPorts {
			if strings.Contains(s, ign) {
				continue outer
			}
		}
		filteredList = append(filteredList, s)
	}
	sort.Strings(filteredList)
	return filteredList
}
