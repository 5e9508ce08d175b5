package certs

import (
	"context"
	"crypto/tls"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// reloadDelay coalesces the burst of events a certificate renewal produces.
const reloadDelay = 200 * time.Millisecond

// Store holds the current server TLS configuration and swaps it when the
// material on disk changes. Sessions bind the configuration that was current
// when they were created; a reload never affects them.
type Store struct {
	material Material
	log      zerolog.Logger
	current  atomic.Pointer[tls.Config]
	reloads  atomic.Uint64
}

// NewStore builds the initial configuration. An error here is fatal at startup.
func NewStore(m Material, log zerolog.Logger) (*Store, error) {
	s := &Store{material: m, log: log}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Current returns the configuration new sessions should use.
func (s *Store) Current() *tls.Config {
	return s.current.Load()
}

// Reloads returns how many times the configuration was replaced after startup.
func (s *Store) Reloads() uint64 {
	return s.reloads.Load()
}

// Reload rebuilds the configuration from disk. On failure the previous one stays current.
func (s *Store) Reload() error {
	cfg, err := s.material.Build(s.log)
	if err != nil {
		return err
	}
	if s.current.Swap(cfg) != nil {
		s.reloads.Add(1)
	}
	return nil
}

// Watch reloads the configuration whenever one of the material files is
// written, created or renamed over. It returns when ctx is done.
func (s *Store) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	files := make(map[string]struct{})
	dirs := make(map[string]struct{})
	for _, f := range []string{s.material.CertFile, s.material.KeyFile, s.material.OCSPFile} {
		if f == "" {
			continue
		}
		abs, err := filepath.Abs(f)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", f, err)
		}
		files[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}
	// Directories rather than files, so atomic replacement by rename is seen.
	for dir := range dirs {
		if err := w.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			abs, err := filepath.Abs(ev.Name)
			if err != nil {
				continue
			}
			if _, ok := files[abs]; !ok {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDelay)
			} else {
				timer.Reset(reloadDelay)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			if err := s.Reload(); err != nil {
				s.log.Error().Err(err).Msg("certificate reload failed, keeping previous configuration")
				continue
			}
			s.log.Info().Str("cert_file", s.material.CertFile).Msg("certificate reloaded")

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.log.Warn().Err(err).Msg("certificate watcher error")
		}
	}
}
