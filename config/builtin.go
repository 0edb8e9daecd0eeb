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

const DefaultProfile = "stm32f103xe"

// Application slot starts at 64K, the loader lives below it.
const builtinProfiles = `
profiles:
  - name: stm32f103xe
    description: STM32F103 high-density, 512K flash, 2K pages
    flash:
      base: 0x08000000
      page_size: 2048
      size: 0x80000
    app_addr: 0x08010000
    protect_below: 0x08010000
    stack:
      mask: 0x2ffe0000
      pattern: 0x20000000
    bootloader:
      pids: [0x414]
      scratch_addr: 0x20000200
      min_version: "2.0"
  - name: stm32f103x8
    description: STM32F103 medium-density, 64K flash, 1K pages
    flash:
      base: 0x08000000
      page_size: 1024
      size: 0x10000
    app_addr: 0x08004000
    protect_below: 0x08004000
    stack:
      mask: 0x2ffe0000
      pattern: 0x20000000
    bootloader:
      pids: [0x410, 0x412]
      scratch_addr: 0x20000200
      min_version: "2.0"
  - name: stm32f105xc
    description: STM32F105/107 connectivity line, 256K flash, 2K pages
    flash:
      base: 0x08000000
      page_size: 2048
      size: 0x40000
    app_addr: 0x08010000
    protect_below: 0x08010000
    stack:
      mask: 0x2ffe0000
      pattern: 0x20000000
    bootloader:
      pids: [0x418]
      scratch_addr: 0x20001000
      min_version: "2.0"
`
