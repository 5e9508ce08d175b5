// File: internal/daemon/daemon.go
// License: Apache-2.0
//
// Package daemon performs the bootstrap of --daemon mode: switch to the
// working directory, run the privileged bind, record the pid and drop to an
// unprivileged identity. Detaching from the terminal is left to the service
// manager.
package daemon

import (
	"errors"
	"fmt"
	"os"
	"os/user"
	"strconv"

	"github.com/rs/zerolog"
)

// ErrLocked is returned when another process holds the pid file.
var ErrLocked = errors.New("pid file is locked by another process")

// Config describes the daemon bootstrap.
type Config struct {
	WorkingDirectory string
	PIDFile          string
	User             string // empty keeps the current user
	Group            string // empty keeps the current group
	Logger           zerolog.Logger
}

// Process is a started daemon. It holds the locked pid file.
type Process struct {
	pidPath string
	pidFile *os.File
}

type identity struct {
	uid, gid int // -1 when unchanged
}

// Start runs the bootstrap. bind is the privileged action: it runs after the
// working directory change and before privileges are dropped, and its result
// is returned unchanged. Any failure aborts startup.
func Start[T any](cfg Config, bind func() (T, error)) (T, *Process, error) {
	var zero T

	id, err := lookupIdentity(cfg.User, cfg.Group)
	if err != nil {
		return zero, nil, err
	}
	if cfg.WorkingDirectory != "" {
		if err := os.Chdir(cfg.WorkingDirectory); err != nil {
			return zero, nil, fmt.Errorf("change working directory: %w", err)
		}
	}

	bound, err := bind()
	if err != nil {
		return zero, nil, fmt.Errorf("privileged action: %w", err)
	}

	p, err := writePIDFile(cfg.PIDFile)
	if err != nil {
		return zero, nil, err
	}
	if err := chown(p.pidFile, id); err != nil {
		_ = p.Release()
		return zero, nil, fmt.Errorf("chown pid file: %w", err)
	}
	if err := dropPrivileges(id); err != nil {
		_ = p.Release()
		return zero, nil, fmt.Errorf("drop privileges: %w", err)
	}

	cfg.Logger.Info().
		Int("pid", os.Getpid()).
		Str("pid_file", cfg.PIDFile).
		Int("uid", os.Getuid()).
		Int("gid", os.Getgid()).
		Msg("server daemonized")
	return bound, p, nil
}

// PIDFile returns the pid file path.
func (p *Process) PIDFile() string { return p.pidPath }

// Release unlocks and removes the pid file.
func (p *Process) Release() error {
	if p == nil || p.pidFile == nil {
		return nil
	}
	err := p.pidFile.Close()
	p.pidFile = nil
	if rmErr := os.Remove(p.pidPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
		err = errors.Join(err, rmErr)
	}
	return err
}

func writePIDFile(path string) (*Process, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open pid file: %w", err)
	}
	if err := lock(f); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.Truncate(0); err != nil {
		f.Close()
		return nil, fmt.Errorf("truncate pid file: %w", err)
	}
	if _, err := f.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("write pid file: %w", err)
	}
	return &Process{pidPath: path, pidFile: f}, nil
}

func lookupIdentity(userName, groupName string) (identity, error) {
	id := identity{uid: -1, gid: -1}
	if userName != "" {
		u, err := user.Lookup(userName)
		if err != nil {
			return id, fmt.Errorf("look up user %q: %w", userName, err)
		}
		if id.uid, err = strconv.Atoi(u.Uid); err != nil {
			return id, fmt.Errorf("user %q uid %q: %w", userName, u.Uid, err)
		}
	}
	if groupName != "" {
		g, err := user.LookupGroup(groupName)
		if err != nil {
			return id, fmt.Errorf("look up group %q: %w", groupName, err)
		}
		if id.gid, err = strconv.Atoi(g.Gid); err != nil {
			return id, fmt.Errorf("group %q gid %q: %w", groupName, g.Gid, err)
		}
	}
	return id, nil
}
