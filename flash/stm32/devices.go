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
package stm32

import "fmt"

var deviceNames = map[uint16]string{
	0x410: "STM32F10xxx medium-density",
	0x412: "STM32F10xxx low-density",
	0x414: "STM32F10xxx high-density",
	0x418: "STM32F105/107 connectivity line",
	0x420: "STM32F100xx value line",
	0x430: "STM32F10xxx XL-density",
	0x413: "STM32F405/407/415/417",
	0x419: "STM32F42xxx/43xxx",
}

// DeviceName returns a human-readable name for a product ID.
func DeviceName(pid uint16) string {
	if n, ok := deviceNames[pid]; ok {
		return n
	}
	return fmt.Sprintf("unknown (PID 0x%03x)", pid)
}
