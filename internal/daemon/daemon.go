// Package daemon implements the router process lifecycle.
package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"firestige.xyz/vrouter/internal/config"
	"firestige.xyz/vrouter/internal/core"
	"firestige.xyz/vrouter/internal/iface"
	"firestige.xyz/vrouter/internal/link"
	logpkg "firestige.xyz/vrouter/internal/log"
	"firestige.xyz/vrouter/internal/metrics"
	"firestige.xyz/vrouter/internal/route"
	"firestige.xyz/vrouter/internal/router"
)

const engineStopTimeout = 5 * time.Second

// Daemon manages the vrouter process lifecycle.
type Daemon struct {
	// Configuration
	config     *config.GlobalConfig
	configPath string
	pidFile    string

	// Core components
	ifaces        *iface.Table
	link          link.Link
	engine        *router.Engine
	metricsServer *metrics.Server // nil if metrics disabled

	// Lifecycle management
	ctx        context.Context
	cancel     context.CancelFunc
	engineDone chan struct{} // closed when the engine returns; nil until Start
	engineErr  error
	stopOnce   sync.Once
	sigChan    chan os.Signal
}

// New loads the configuration; nothing is opened until Start.
func New(configPath, pidFile string) (*Daemon, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	d := &Daemon{
		config:     cfg,
		configPath: configPath,
		pidFile:    pidFile,
	}
	d.ctx, d.cancel = context.WithCancel(context.Background())
	return d, nil
}

// Start brings up logging, the route table, the ports and the forwarding
// engine. Any failure here is a fatal startup error.
func (d *Daemon) Start() error {
	if err := d.initLogging(); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger := logpkg.GetLogger()
	logger.WithField("config", d.configPath).Info("starting vrouter")

	if err := d.writePIDFile(); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}

	entries, err := route.Load(d.config.Routes)
	if err != nil {
		return fmt.Errorf("failed to load route table: %w", err)
	}
	table, err := route.Build(entries)
	if err != nil {
		return fmt.Errorf("failed to build route table: %w", err)
	}

	d.ifaces, err = iface.Resolve(d.config.Interfaces)
	if err != nil {
		return fmt.Errorf("failed to resolve interfaces: %w", err)
	}
	for _, ifc := range d.ifaces.Interfaces() {
		logger.WithFields(map[string]interface{}{
			"name": ifc.Name,
			"mac":  ifc.MAC.String(),
			"ip":   core.FormatIPv4(ifc.IP),
		}).Info("interface configured")
	}

	d.link, err = link.New(d.config.Link, d.ifaces)
	if err != nil {
		return fmt.Errorf("failed to open %s link: %w", d.config.Link.Type, err)
	}

	d.engine, err = router.NewEngine(table, d.ifaces, d.link)
	if err != nil {
		d.link.Close()
		return fmt.Errorf("failed to create forwarding engine: %w", err)
	}

	if err := d.startMetrics(); err != nil {
		d.link.Close()
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	d.engineDone = make(chan struct{})
	go func() {
		defer close(d.engineDone)
		d.engineErr = d.engine.Run(d.ctx)
	}()

	logger.WithFields(map[string]interface{}{
		"routes":     table.Len(),
		"interfaces": d.ifaces.Len(),
		"link":       d.config.Link.Type,
	}).Info("vrouter started")
	return nil
}

// Stop tears the components down in reverse order. It is safe to call more
// than once.
func (d *Daemon) Stop() {
	d.stopOnce.Do(func() {
		logger := logpkg.GetLogger()
		logger.Info("initiating graceful shutdown")

		// 1. Stop the engine, then close the link it was using
		d.cancel()
		if d.engineDone != nil {
			select {
			case <-d.engineDone:
			case <-time.After(engineStopTimeout):
				logger.Warn("forwarding engine did not stop in time, closing link")
			}
		}
		if d.link != nil {
			if err := d.link.Close(); err != nil {
				logger.WithError(err).Error("error closing link")
			}
		}

		// 2. Stop metrics server
		if d.metricsServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := d.metricsServer.Stop(shutdownCtx); err != nil {
				logger.WithError(err).Error("error stopping metrics server")
			}
		}

		// 3. Unregister signal handler to prevent goroutine leak
		if d.sigChan != nil {
			signal.Stop(d.sigChan)
		}

		// 4. Remove PID file
		if err := d.removePIDFile(); err != nil {
			logger.WithError(err).Error("error removing PID file")
		}

		logger.Info("vrouter stopped")
	})
}

// Run blocks until a shutdown signal arrives or the engine stops. An engine
// that stops on a receive or transmit failure makes Run return that error.
// SIGHUP reloads the configuration.
func (d *Daemon) Run() error {
	d.sigChan = make(chan os.Signal, 1)
	signal.Notify(d.sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)

	logger := logpkg.GetLogger()
	for {
		select {
		case sig := <-d.sigChan:
			switch sig {
			case syscall.SIGTERM, syscall.SIGINT:
				logger.WithField("signal", sig.String()).Info("received shutdown signal")
				d.Stop()
				<-d.engineDone
				return d.engineErr

			case syscall.SIGHUP:
				if err := d.Reload(); err != nil {
					logpkg.GetLogger().WithError(err).Error("failed to reload config")
				}
			}

		case <-d.engineDone:
			err := d.engineErr
			if err != nil {
				logger.WithError(err).Error("forwarding engine failed")
			} else {
				logger.Info("link exhausted, forwarding engine finished")
			}
			d.Stop()
			return err
		}
	}
}

// Reload re-reads the configuration file.
// Hot-reloadable: log settings. Everything else requires a restart.
func (d *Daemon) Reload() error {
	logpkg.GetLogger().WithField("path", d.configPath).Info("reloading configuration")

	newConfig, err := config.Load(d.configPath)
	if err != nil {
		return fmt.Errorf("failed to load new config: %w", err)
	}

	hotReloaded := []string{}
	if newConfig.Log != d.config.Log {
		if err := logpkg.Init(newConfig.Log); err != nil {
			return fmt.Errorf("failed to reinitialize logging: %w", err)
		}
		d.config.Log = newConfig.Log
		hotReloaded = append(hotReloaded, "log")
	}

	requiresRestart := []string{}
	if newConfig.Routes != d.config.Routes {
		requiresRestart = append(requiresRestart, "routes")
	}
	if newConfig.Link.Type != d.config.Link.Type {
		requiresRestart = append(requiresRestart, "link.type")
	}
	if len(newConfig.Interfaces) != len(d.config.Interfaces) {
		requiresRestart = append(requiresRestart, "interfaces")
	}
	if newConfig.Metrics != d.config.Metrics {
		requiresRestart = append(requiresRestart, "metrics")
	}

	logpkg.GetLogger().WithFields(map[string]interface{}{
		"hot_reloaded":     hotReloaded,
		"requires_restart": requiresRestart,
	}).Info("configuration reloaded")
	return nil
}

func (d *Daemon) initLogging() error {
	if err := logpkg.Init(d.config.Log); err != nil {
		return err
	}
	logpkg.GetLogger().WithField("level", d.config.Log.Level).Debug("logging initialized")
	return nil
}

func (d *Daemon) startMetrics() error {
	if !d.config.Metrics.Enabled {
		logpkg.GetLogger().Info("metrics server disabled")
		return nil
	}

	d.metricsServer = metrics.NewServer(d.config.Metrics.Listen, d.config.Metrics.Path)
	return d.metricsServer.Start(d.ctx)
}

func (d *Daemon) writePIDFile() error {
	if d.pidFile == "" {
		return nil
	}

	pid := os.Getpid()
	data := []byte(strconv.Itoa(pid) + "\n")
	if err := os.WriteFile(d.pidFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write PID file %s: %w", d.pidFile, err)
	}
	return nil
}

func (d *Daemon) removePIDFile() error {
	if d.pidFile == "" {
		return nil
	}

	if err := os.Remove(d.pidFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file %s: %w", d.pidFile, err)
	}
	return nil
}
