// Command cangwd is the CAN frame gateway daemon: it forwards frames
// between CAN interfaces according to jobs created over a Unix domain
// control socket, the same way the teacher's direwolf binary parses flags,
// loads a config file, and starts a listener thread.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/canfleet/cangw/internal/canframe"
	"github.com/canfleet/cangw/internal/checksum"
	"github.com/canfleet/cangw/internal/config"
	"github.com/canfleet/cangw/internal/device"
	"github.com/canfleet/cangw/internal/gw"
	"github.com/canfleet/cangw/internal/job"
)

func main() {
	configFile := pflag.StringP("config-file", "c", "/etc/cangwd.yaml", "Configuration file name.")
	socketPath := pflag.StringP("socket", "s", "", "Control-plane Unix domain socket path (overrides config).")
	logLevel := pflag.StringP("log-level", "l", "", "Log level: debug, info, warn, error (overrides config).")
	help := pflag.BoolP("help", "h", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s - CAN frame gateway daemon.\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Usage: cangwd [options]\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if *help {
		pflag.Usage()
		os.Exit(0)
	}

	cfg := config.Default()
	if _, err := os.Stat(*configFile); err == nil {
		loaded, err := config.Load(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "cangwd: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *socketPath != "" {
		cfg.SocketPath = *socketPath
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      cfg.TimeFormat,
	})
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	logger.SetLevel(level)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	registry := device.NewNetlinkRegistry()
	core := gw.NewCore(registry, logger)

	srv, err := NewServer(core, cfg.SocketPath, logger)
	if err != nil {
		logger.Fatal("listen failed", "socket", cfg.SocketPath, "err", err)
	}

	watcher, err := device.Watch(ctx)
	if err != nil {
		logger.Warn("udev watch unavailable, device-unregister events disabled", "err", err)
	} else {
		go reactToUnregister(ctx, core, watcher, logger)
	}

	if err := seedJobs(core, cfg.Seed); err != nil {
		logger.Warn("seed jobs incomplete", "err", err)
	}

	go srv.Serve(ctx)
	logger.Info("cangwd started", "socket", cfg.SocketPath)

	<-ctx.Done()
	logger.Info("shutting down")
	srv.Close()
}

func reactToUnregister(ctx context.Context, core *gw.Core, w *device.UdevWatcher, logger *log.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events():
			if !ok {
				return
			}
			core.HandleDeviceUnregister(ev)
		}
	}
}

func seedJobs(core *gw.Core, seeds []config.SeedJob) error {
	for _, s := range seeds {
		srcIdx, err := resolveIfIndex(s.SrcIF)
		if err != nil {
			return fmt.Errorf("seed %s->%s: %w", s.SrcIF, s.DstIF, err)
		}
		dstIdx, err := resolveIfIndex(s.DstIF)
		if err != nil {
			return fmt.Errorf("seed %s->%s: %w", s.SrcIF, s.DstIF, err)
		}

		var flags job.Flags
		if s.Echo {
			flags |= job.FlagECHO
		}

		req := gw.CreateRequest{
			Family: gw.FamilyCAN,
			GWType: job.GWTypeCANCAN,
			Flags:  flags,
			Filter: canframe.Filter{CANID: s.CANID, Mask: s.Mask},
			XOR:    checksum.XORSpec{FromIdx: checksum.Disabled},
			CRC8:   checksum.CRC8Spec{FromIdx: checksum.Disabled},
			SrcIdx: srcIdx,
			DstIdx: dstIdx,
		}
		if _, err := core.Create(req); err != nil {
			return fmt.Errorf("seed %s->%s: %w", s.SrcIF, s.DstIF, err)
		}
	}
	return nil
}

func resolveIfIndex(name string) (uint32, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return 0, err
	}
	return uint32(iface.Index), nil
}
