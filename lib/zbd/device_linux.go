// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

//go:build linux

package zbd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"unsafe"

	"github.com/datawire/dlib/dlog"
	"golang.org/x/sys/unix"

	"git.lukeshu.com/zbd-progs-ng/lib/linux"
)

type blockDevice struct {
	fh   *os.File
	info DeviceInfo
}

var _ Device = (*blockDevice)(nil)

func openBlockDevice(ctx context.Context, filename string, direct bool) (_ Device, err error) {
	flags := os.O_RDONLY
	if direct {
		flags |= unix.O_DIRECT
	}
	fh, err := os.OpenFile(filename, flags, 0)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = fh.Close()
		}
	}()
	fd := int(fh.Fd())

	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return nil, &fs.PathError{Op: "fstat", Path: filename, Err: err}
	}
	if mode := linux.StatMode(st.Mode); !mode.IsBlockDevice() {
		return nil, &fs.PathError{Op: "open", Path: filename,
			Err: fmt.Errorf("%w: it is a %s", ErrNotZoned, mode.FileType())}
	}

	model, err := readModel(ctx, unix.Major(uint64(st.Rdev)), unix.Minor(uint64(st.Rdev)))
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: filename, Err: err}
	}
	if !model.Zoned() {
		return nil, &fs.PathError{Op: "open", Path: filename, Err: ErrNotZoned}
	}

	info := DeviceInfo{
		Name:       filename,
		Model:      model,
		SectorSize: linux.SectorSize,
	}
	if info.LogicalBlockSize, err = unix.IoctlGetInt(fd, linux.BLKSSZGET); err != nil {
		return nil, &fs.PathError{Op: "BLKSSZGET", Path: filename, Err: err}
	}
	pbs, err := unix.IoctlGetUint32(fd, linux.BLKPBSZGET)
	if err != nil {
		return nil, &fs.PathError{Op: "BLKPBSZGET", Path: filename, Err: err}
	}
	info.PhysicalBlockSize = int(pbs)
	var size uint64
	if err := ioctlPtr(fd, linux.BLKGETSIZE64, unsafe.Pointer(&size)); err != nil {
		return nil, &fs.PathError{Op: "BLKGETSIZE64", Path: filename, Err: err}
	}
	info.Sectors = SectorsIn(int64(size), info.SectorSize)
	zsz, err := unix.IoctlGetUint32(fd, linux.BLKGETZONESZ)
	if err != nil {
		return nil, &fs.PathError{Op: "BLKGETZONESZ", Path: filename, Err: err}
	}
	info.ZoneSectors = Sector(zsz)
	if info.NrZones, err = unix.IoctlGetUint32(fd, linux.BLKGETNRZONES); err != nil {
		return nil, &fs.PathError{Op: "BLKGETNRZONES", Path: filename, Err: err}
	}

	return &blockDevice{fh: fh, info: info}, nil
}

func ioctlPtr(fd int, req uint, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(req), uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

func readModel(ctx context.Context, major, minor uint32) (Model, error) {
	dir := fmt.Sprintf("/sys/dev/block/%d:%d", major, minor)
	dat, err := os.ReadFile(dir + "/queue/zoned")
	if errors.Is(err, fs.ErrNotExist) {
		// Partitions have no queue directory of their own.
		dlog.Tracef(ctx, "%s has no queue, trying the parent device", dir)
		dat, err = os.ReadFile(dir + "/../queue/zoned")
	}
	if errors.Is(err, fs.ErrNotExist) {
		return ModelNone, nil
	}
	if err != nil {
		return "", err
	}
	return parseModel(string(dat))
}

func (dev *blockDevice) Name() string     { return dev.info.Name }
func (dev *blockDevice) Info() DeviceInfo { return dev.info }
func (dev *blockDevice) Close() error     { return dev.fh.Close() }

func (dev *blockDevice) ReportZones(ctx context.Context) ([]Zone, error) {
	fd := int(dev.fh.Fd())
	zones := make([]Zone, 0, dev.info.NrZones)
	for sector := Sector(0); sector < dev.info.Sectors; {
		if err := ctx.Err(); err != nil {
			return zones, err
		}
		buf, err := newZoneReport(sector, reportBatchSize)
		if err != nil {
			return zones, err
		}
		if err := ioctlPtr(fd, linux.BLKREPORTZONE, unsafe.Pointer(&buf[0])); err != nil {
			return zones, &fs.PathError{Op: "BLKREPORTZONE", Path: dev.info.Name, Err: err}
		}
		batch, err := parseZoneReport(buf)
		if err != nil {
			return zones, &fs.PathError{Op: "BLKREPORTZONE", Path: dev.info.Name, Err: err}
		}
		if len(batch) == 0 {
			break
		}
		dlog.Tracef(ctx, "report at sector %v: %d zones", sector, len(batch))
		zones = append(zones, batch...)
		sector = batch[len(batch)-1].End()
	}
	return zones, nil
}

func (dev *blockDevice) Pread(buf []byte, sector Sector) (Sector, error) {
	n, err := unix.Pread(int(dev.fh.Fd()), buf, sector.Bytes(dev.info.SectorSize))
	if err != nil {
		return 0, &fs.PathError{Op: "pread", Path: dev.info.Name, Err: err}
	}
	return SectorsIn(int64(n), dev.info.SectorSize), nil
}

func (dev *blockDevice) Preadv(bufs [][]byte, sector Sector) (Sector, error) {
	n, err := unix.Preadv(int(dev.fh.Fd()), bufs, sector.Bytes(dev.info.SectorSize))
	if err != nil {
		return 0, &fs.PathError{Op: "preadv", Path: dev.info.Name, Err: err}
	}
	return SectorsIn(int64(n), dev.info.SectorSize), nil
}
