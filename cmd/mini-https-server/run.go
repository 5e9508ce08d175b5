package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/NunoDasNeves/mini-https-server/internal/certs"
	"github.com/NunoDasNeves/mini-https-server/internal/config"
	"github.com/NunoDasNeves/mini-https-server/internal/daemon"
	"github.com/NunoDasNeves/mini-https-server/internal/fileserver"
	"github.com/NunoDasNeves/mini-https-server/internal/logging"
	"github.com/NunoDasNeves/mini-https-server/internal/metrics"
	"github.com/NunoDasNeves/mini-https-server/server"
)

// bound is what the privileged setup produces: the TLS material is read and
// the port bound before any privilege drop.
type bound struct {
	ln    server.Acceptor
	store *certs.Store
}

func run(ctx context.Context, flags rootFlags) error {
	cfg, err := config.LoadWithEnv(flags.configFile)
	if err != nil {
		return err
	}

	logCfg := logging.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	}
	if flags.daemon && logCfg.File == "" {
		logCfg.File = inDir(cfg.Daemon.WorkingDirectory, cfg.Daemon.LogFile)
	}
	log, logCloser, err := logging.New(logCfg)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	material := certs.Material{
		CertFile:     cfg.TLS.CertFile,
		KeyFile:      cfg.TLS.KeyFile,
		OCSPFile:     cfg.TLS.OCSPFile,
		MinVersion:   cfg.TLS.MinVersion,
		CipherSuites: cfg.TLS.CipherSuites,
	}
	if cfg.TLS.KeyLogFile != "" {
		f, err := os.OpenFile(cfg.TLS.KeyLogFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("open key log file: %w", err)
		}
		defer f.Close()
		material.KeyLog = f
		log.Warn().Str("file", cfg.TLS.KeyLogFile).Msg("TLS key logging enabled")
	}

	srvCfg := &server.Config{
		ListenAddr:      cfg.ListenAddress(flags.daemon),
		Backlog:         cfg.Server.Backlog,
		EventCapacity:   cfg.Server.EventCapacity,
		Vectored:        cfg.Server.Vectored,
		MaxBatch:        cfg.Server.MaxBatch,
		MaxRequestBytes: cfg.Server.MaxRequestBytes,
		IdleTimeout:     cfg.Server.IdleTimeout,
		SweepInterval:   cfg.Server.SweepInterval,
	}

	setup := func() (bound, error) {
		store, err := certs.NewStore(material, log)
		if err != nil {
			return bound{}, fmt.Errorf("load TLS material: %w", err)
		}
		ln, err := server.Listen(srvCfg)
		if err != nil {
			return bound{}, fmt.Errorf("bind %s: %w", srvCfg.ListenAddr, err)
		}
		return bound{ln: ln, store: store}, nil
	}

	var b bound
	if flags.daemon {
		var proc *daemon.Process
		b, proc, err = daemon.Start(daemon.Config{
			WorkingDirectory: cfg.Daemon.WorkingDirectory,
			PIDFile:          cfg.Daemon.PIDFile,
			User:             cfg.Daemon.User,
			Group:            cfg.Daemon.Group,
			Logger:           log,
		}, setup)
		if err != nil {
			log.Error().Err(err).Msg("daemonize failed")
			return err
		}
		defer func() {
			if err := proc.Release(); err != nil {
				log.Warn().Err(err).Msg("release pid file")
			}
		}()
	} else if b, err = setup(); err != nil {
		return err
	}

	return serve(ctx, cfg, srvCfg, b, log)
}

func serve(ctx context.Context, cfg *config.Config, srvCfg *server.Config, b bound, log zerolog.Logger) (err error) {
	handler := fileserver.New(cfg.HTTP.DocumentRoot,
		fileserver.WithLogger(log),
		fileserver.WithIndex(cfg.HTTP.Index),
		fileserver.WithMaxFileSize(cfg.HTTP.MaxFileSize))

	collector := metrics.NewCollector(prometheus.NewRegistry())
	collector.TrackCertReloads(b.store.Reloads)

	srv, err := server.New(srvCfg, b.ln, b.store, handler,
		server.WithLogger(log),
		server.WithMetrics(collector))
	if err != nil {
		return multierr.Append(err, b.ln.Close())
	}
	defer func() {
		err = multierr.Append(err, srv.Close())
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	if cfg.TLS.Watch {
		g.Go(func() error {
			return b.store.Watch(gctx)
		})
	}
	if cfg.Metrics.ListenAddress != "" {
		g.Go(func() error {
			log.Info().Str("addr", cfg.Metrics.ListenAddress).Str("path", cfg.Metrics.Path).Msg("metrics listening")
			return collector.Serve(gctx, cfg.Metrics.ListenAddress, cfg.Metrics.Path)
		})
	}

	err = g.Wait()
	log.Info().Err(err).Msg("server stopped")
	return err
}

// inDir resolves a relative daemon path against the working directory the
// daemon will switch to.
func inDir(dir, path string) string {
	if path == "" || filepath.IsAbs(path) || dir == "" {
		return path
	}
	return filepath.Join(dir, path)
}
