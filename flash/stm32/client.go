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
// Package stm32 talks to the STM32 system memory bootloader over USART (ST AN3155).
package stm32

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/golang/glog"
	"github.com/juju/errors"
	goversion "github.com/mcuadros/go-version"
)

const (
	ack      byte = 0x79
	nack     byte = 0x1f
	syncByte byte = 0x7f

	cmdGet          byte = 0x00
	cmdGetID        byte = 0x02
	cmdReadMemory   byte = 0x11
	cmdGo           byte = 0x21
	cmdWriteMemory  byte = 0x31
	cmdErase        byte = 0x43
	cmdExtErase     byte = 0x44
	maxTransferSize      = 256

	syncAttempts = 10
)

var ErrNACK = errors.New("NACK from bootloader")

type ClientOpts struct {
	// Timeout for a single response from the bootloader.
	Timeout time.Duration
	// EraseTimeout applies to erase commands, which take much longer.
	EraseTimeout time.Duration
}

// Client is a connection to the ROM bootloader.
type Client struct {
	rw       io.ReadWriter
	opts     ClientOpts
	version  byte
	commands []byte
	pid      uint16
}

// Connect synchronizes with the bootloader and retrieves its version, supported commands and product ID.
func Connect(ctx context.Context, rw io.ReadWriter, opts *ClientOpts) (*Client, error) {
	c := &Client{rw: rw, opts: *opts}
	if c.opts.Timeout == 0 {
		c.opts.Timeout = 1 * time.Second
	}
	if c.opts.EraseTimeout == 0 {
		c.opts.EraseTimeout = 30 * time.Second
	}
	if err := c.sync(ctx); err != nil {
		return nil, errors.Annotatef(err, "failed to sync with bootloader")
	}
	if err := c.get(ctx); err != nil {
		return nil, errors.Annotatef(err, "Get failed")
	}
	if err := c.getID(ctx); err != nil {
		return nil, errors.Annotatef(err, "Get ID failed")
	}
	glog.Infof("Bootloader %s, PID 0x%03x, commands: % x", c.Version(), c.pid, c.commands)
	return c, nil
}

// Version returns bootloader protocol version as "major.minor".
func (c *Client) Version() string {
	return fmt.Sprintf("%d.%d", c.version>>4, c.version&0xf)
}

// CheckVersion returns an error if the bootloader is older than minVersion.
func (c *Client) CheckVersion(minVersion string) error {
	if minVersion == "" {
		return nil
	}
	if !goversion.Compare(c.Version(), minVersion, ">=") {
		return errors.Errorf("bootloader version %s is too old, %s or newer is required", c.Version(), minVersion)
	}
	return nil
}

func (c *Client) PID() uint16 {
	return c.pid
}

func (c *Client) Commands() []byte {
	return c.commands
}

func (c *Client) supports(cmd byte) bool {
	for _, sc := range c.commands {
		if sc == cmd {
			return true
		}
	}
	return false
}

func (c *Client) readByte(ctx context.Context, timeout time.Duration) (byte, error) {
	var buf [1]byte
	deadline := time.Now().Add(timeout)
	for {
		n, err := c.rw.Read(buf[:])
		if n == 1 {
			return buf[0], nil
		}
		if err != nil && err != io.EOF {
			return 0, errors.Trace(err)
		}
		if err := ctx.Err(); err != nil {
			return 0, errors.Trace(err)
		}
		if time.Now().After(deadline) {
			return 0, errors.Timeoutf("bootloader response")
		}
	}
}

func (c *Client) readN(ctx context.Context, n int) ([]byte, error) {
	res := make([]byte, n)
	for i := range res {
		b, err := c.readByte(ctx, c.opts.Timeout)
		if err != nil {
			return nil, errors.Annotatef(err, "read %d of %d", i, n)
		}
		res[i] = b
	}
	return res, nil
}

func (c *Client) readAck(ctx context.Context, timeout time.Duration) error {
	b, err := c.readByte(ctx, timeout)
	if err != nil {
		return errors.Trace(err)
	}
	switch b {
	case ack:
		return nil
	case nack:
		return ErrNACK
	}
	return errors.Errorf("expected ACK, got 0x%02x", b)
}

// send writes data followed by its XOR checksum and waits for ACK.
// Single command bytes are sent with the complement, i.e. seed 0xff.
func (c *Client) send(ctx context.Context, seed byte, timeout time.Duration, data ...byte) error {
	cs := seed
	for _, b := range data {
		cs ^= b
	}
	frame := append(append([]byte(nil), data...), cs)
	glog.V(4).Infof(">> % x", frame)
	if _, err := c.rw.Write(frame); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(c.readAck(ctx, timeout))
}

func (c *Client) sendCmd(ctx context.Context, cmd byte) error {
	if err := c.send(ctx, 0xff, c.opts.Timeout, cmd); err != nil {
		return errors.Annotatef(err, "command 0x%02x", cmd)
	}
	return nil
}

func (c *Client) sendAddr(ctx context.Context, addr uint32) error {
	if err := c.send(ctx, 0, c.opts.Timeout, byte(addr>>24), byte(addr>>16), byte(addr>>8), byte(addr)); err != nil {
		return errors.Annotatef(err, "address 0x%08x", addr)
	}
	return nil
}

func (c *Client) sync(ctx context.Context) error {
	var err error
	for i := 0; i < syncAttempts; i++ {
		glog.V(2).Infof("sync attempt %d", i+1)
		if _, err = c.rw.Write([]byte{syncByte}); err != nil {
			return errors.Trace(err)
		}
		err = c.readAck(ctx, c.opts.Timeout)
		switch {
		case err == nil:
			return nil
		case errors.Cause(err) == ErrNACK:
			// Already synchronized, the sync byte was taken as a command.
			glog.V(1).Infof("bootloader is already synced")
			return nil
		case errors.Cause(err) == context.Canceled || errors.Cause(err) == context.DeadlineExceeded:
			return errors.Trace(err)
		}
	}
	return errors.Trace(err)
}

func (c *Client) get(ctx context.Context) error {
	if err := c.sendCmd(ctx, cmdGet); err != nil {
		return errors.Trace(err)
	}
	n, err := c.readByte(ctx, c.opts.Timeout)
	if err != nil {
		return errors.Trace(err)
	}
	data, err := c.readN(ctx, int(n)+1)
	if err != nil {
		return errors.Trace(err)
	}
	c.version = data[0]
	c.commands = data[1:]
	return errors.Trace(c.readAck(ctx, c.opts.Timeout))
}

func (c *Client) getID(ctx context.Context) error {
	if err := c.sendCmd(ctx, cmdGetID); err != nil {
		return errors.Trace(err)
	}
	n, err := c.readByte(ctx, c.opts.Timeout)
	if err != nil {
		return errors.Trace(err)
	}
	data, err := c.readN(ctx, int(n)+1)
	if err != nil {
		return errors.Trace(err)
	}
	if len(data) < 2 {
		return errors.Errorf("short PID (%d bytes)", len(data))
	}
	c.pid = uint16(data[0])<<8 | uint16(data[1])
	return errors.Trace(c.readAck(ctx, c.opts.Timeout))
}

func (c *Client) readMemory(ctx context.Context, addr uint32, n int) ([]byte, error) {
	if n < 1 || n > maxTransferSize {
		return nil, errors.Errorf("invalid read size %d", n)
	}
	if err := c.sendCmd(ctx, cmdReadMemory); err != nil {
		return nil, errors.Trace(err)
	}
	if err := c.sendAddr(ctx, addr); err != nil {
		return nil, errors.Trace(err)
	}
	if err := c.send(ctx, 0xff, c.opts.Timeout, byte(n-1)); err != nil {
		return nil, errors.Annotatef(err, "size")
	}
	return c.readN(ctx, n)
}

func (c *Client) writeMemory(ctx context.Context, addr uint32, data []byte) error {
	if len(data) < 1 || len(data) > maxTransferSize || len(data)%4 != 0 {
		return errors.Errorf("invalid write size %d", len(data))
	}
	if err := c.sendCmd(ctx, cmdWriteMemory); err != nil {
		return errors.Trace(err)
	}
	if err := c.sendAddr(ctx, addr); err != nil {
		return errors.Trace(err)
	}
	payload := append([]byte{byte(len(data) - 1)}, data...)
	if err := c.send(ctx, 0, c.opts.Timeout, payload...); err != nil {
		return errors.Annotatef(err, "data")
	}
	return nil
}

// ReadMemory reads n bytes starting at addr.
func (c *Client) ReadMemory(ctx context.Context, addr uint32, n int) ([]byte, error) {
	res := make([]byte, 0, n)
	for len(res) < n {
		chunk := n - len(res)
		if chunk > maxTransferSize {
			chunk = maxTransferSize
		}
		data, err := c.readMemory(ctx, addr+uint32(len(res)), chunk)
		if err != nil {
			return nil, errors.Annotatef(err, "failed to read %d bytes @ 0x%08x", chunk, addr+uint32(len(res)))
		}
		res = append(res, data...)
	}
	return res, nil
}

// WriteMemory writes data at addr. Flash must be erased beforehand.
func (c *Client) WriteMemory(ctx context.Context, addr uint32, data []byte) error {
	for len(data) > 0 {
		chunk := len(data)
		if chunk > maxTransferSize {
			chunk = maxTransferSize
		}
		if err := c.writeMemory(ctx, addr, data[:chunk]); err != nil {
			return errors.Annotatef(err, "failed to write %d bytes @ 0x%08x", chunk, addr)
		}
		data = data[chunk:]
		addr += uint32(chunk)
	}
	return nil
}

// ErasePages erases the given flash pages, using Extended Erase if the bootloader supports it.
func (c *Client) ErasePages(ctx context.Context, pages []int) error {
	if len(pages) == 0 {
		return nil
	}
	if c.supports(cmdExtErase) {
		if len(pages) > 0xfff0 {
			return errors.Errorf("too many pages (%d)", len(pages))
		}
		if err := c.sendCmd(ctx, cmdExtErase); err != nil {
			return errors.Trace(err)
		}
		n := len(pages) - 1
		payload := []byte{byte(n >> 8), byte(n)}
		for _, p := range pages {
			payload = append(payload, byte(p>>8), byte(p))
		}
		return errors.Annotatef(c.send(ctx, 0, c.opts.EraseTimeout, payload...), "extended erase of %d pages", len(pages))
	}
	if len(pages) > 255 {
		return errors.Errorf("too many pages (%d)", len(pages))
	}
	payload := []byte{byte(len(pages) - 1)}
	for _, p := range pages {
		if p > 0xff {
			return errors.Errorf("page %d cannot be erased with legacy Erase", p)
		}
		payload = append(payload, byte(p))
	}
	if err := c.sendCmd(ctx, cmdErase); err != nil {
		return errors.Trace(err)
	}
	return errors.Annotatef(c.send(ctx, 0, c.opts.EraseTimeout, payload...), "erase of %d pages", len(pages))
}

// Go makes the bootloader load MSP from addr and jump to the address stored at addr+4.
func (c *Client) Go(ctx context.Context, addr uint32) error {
	if err := c.sendCmd(ctx, cmdGo); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(c.sendAddr(ctx, addr))
}
