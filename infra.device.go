package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/browser"
)

// This file groups the device-level collaborators the download
// coordinator consumes: filesystem access, the shared-storage write
// permission and the platform file opener. Each hides behind a small
// interface so tests can refuse permissions or observe moves.

// DeviceStorage abstracts the device filesystem operations needed to
// persist and probe downloaded files.
type DeviceStorage interface {
	Exists(path string) bool
	EnsureDir(path string) error
	Move(src, dst string) error
	Remove(path string) error
}

// PermissionGuard models the platform write-permission prompt guarding
// shared storage. A refusal surfaces as ErrPermissionDenied.
type PermissionGuard interface {
	RequestWrite(dir string) error
}

// FileOpener hands a local file to the OS for viewing or sharing.
type FileOpener interface {
	Open(path string) error
}

var (
	_ DeviceStorage   = (*osDeviceStorage)(nil)
	_ PermissionGuard = (*osPermissionGuard)(nil)
	_ FileOpener      = (*platformFileOpener)(nil)
)

type osDeviceStorage struct{}

// NewOSDeviceStorage provides the real filesystem implementation.
func NewOSDeviceStorage() *osDeviceStorage {
	return &osDeviceStorage{}
}

func (ds *osDeviceStorage) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (ds *osDeviceStorage) EnsureDir(path string) error {
	return os.MkdirAll(path, 0o755)
}

// Move relocates a finished temp file into shared storage. The rename
// fast path fails across filesystems, in which case the file is copied
// then the source removed.
func (ds *osDeviceStorage) Move(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err = io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err = out.Close(); err != nil {
		os.Remove(dst)
		return err
	}
	return os.Remove(src)
}

func (ds *osDeviceStorage) Remove(path string) error {
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

type osPermissionGuard struct {
	ask bool
}

// NewOSPermissionGuard provides the process-level stand-in for the
// platform permission prompt. With ask disabled every request is
// granted without probing.
func NewOSPermissionGuard(ask bool) *osPermissionGuard {
	return &osPermissionGuard{ask: ask}
}

// RequestWrite verifies the shared directory accepts writes by dropping
// a probe file. An EACCES-style refusal maps to ErrPermissionDenied.
func (pg *osPermissionGuard) RequestWrite(dir string) error {
	if !pg.ask {
		return nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		if os.IsPermission(err) {
			return fmt.Errorf("%w: %s", ErrPermissionDenied, dir)
		}
		return err
	}

	probe := filepath.Join(dir, ".freelit-probe")
	f, err := os.OpenFile(probe, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsPermission(err) {
			return fmt.Errorf("%w: %s", ErrPermissionDenied, dir)
		}
		return err
	}
	f.Close()
	return os.Remove(probe)
}

type platformFileOpener struct{}

// NewPlatformFileOpener provides the OS file opener.
func NewPlatformFileOpener() *platformFileOpener {
	return &platformFileOpener{}
}

func (fo *platformFileOpener) Open(path string) error {
	return browser.OpenFile(path)
}
