// Package ota accepts firmware packages as an MD5-verified file drop. The
// actual binary swap happens outside this service; apply only hands the
// verified package to the device install script when one exists.
package ota

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/soyea/cpe-manager/pkg/shell"
)

const (
	packagePath   = "/tmp/ota.pkg"
	installScript = "/usr/bin/ota-install.sh"
)

// State is the upload lifecycle.
type State string

const (
	StateIdle     State = "idle"
	StateUploaded State = "uploaded"
	StateApplying State = "applying"
)

// Status is the externally visible OTA state.
type Status struct {
	State       State  `json:"state"`
	PackageSize int64  `json:"package_size"`
	MD5         string `json:"md5,omitempty"`
}

// Manager tracks one package at a time.
type Manager struct {
	mu     sync.Mutex
	state  State
	size   int64
	md5sum string
}

// NewManager starts idle; a leftover package from a previous run is
// discarded.
func NewManager() *Manager {
	_ = os.Remove(packagePath)
	return &Manager{state: StateIdle}
}

// Status returns the current state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{State: m.state, PackageSize: m.size, MD5: m.md5sum}
}

// Upload stores the package and verifies it against the expected MD5.
// A mismatch discards the file.
func (m *Manager) Upload(r io.Reader, expectedMD5 string) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateApplying {
		return Status{}, fmt.Errorf("OTA apply in progress")
	}

	f, err := os.Create(packagePath)
	if err != nil {
		return Status{}, fmt.Errorf("failed to create package file: %w", err)
	}

	hasher := md5.New()
	size, err := io.Copy(io.MultiWriter(f, hasher), r)
	closeErr := f.Close()
	if err != nil {
		os.Remove(packagePath)
		return Status{}, fmt.Errorf("failed to store package: %w", err)
	}
	if closeErr != nil {
		os.Remove(packagePath)
		return Status{}, fmt.Errorf("failed to store package: %w", closeErr)
	}

	sum := hex.EncodeToString(hasher.Sum(nil))
	if expectedMD5 != "" && !strings.EqualFold(sum, expectedMD5) {
		os.Remove(packagePath)
		m.state = StateIdle
		m.size = 0
		m.md5sum = ""
		return Status{}, fmt.Errorf("MD5 mismatch: got %s, expected %s", sum, expectedMD5)
	}

	m.state = StateUploaded
	m.size = size
	m.md5sum = sum
	return Status{State: m.state, PackageSize: size, MD5: sum}, nil
}

// Apply hands the verified package to the device install script. Without a
// script the request is rejected; this service never swaps binaries itself.
func (m *Manager) Apply() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateUploaded {
		return fmt.Errorf("no verified package uploaded")
	}
	if _, err := os.Stat(installScript); err != nil {
		return fmt.Errorf("no install script at %s; apply is not supported on this image", installScript)
	}

	m.state = StateApplying
	res, err := shell.Run("/bin/sh", installScript, packagePath)
	if err != nil {
		m.state = StateUploaded
		return err
	}
	if !res.Ok() {
		m.state = StateUploaded
		return fmt.Errorf("install script failed: %s", strings.TrimSpace(res.Stderr))
	}
	return nil
}

// Cancel discards the pending package.
func (m *Manager) Cancel() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateApplying {
		return fmt.Errorf("OTA apply in progress")
	}
	_ = os.Remove(packagePath)
	m.state = StateIdle
	m.size = 0
	m.md5sum = ""
	return nil
}
