// Command lltf-device-plugin advertises LLTF filter systems to kubelet as
// an extended resource. Each configured system is one device.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	pluginapi "k8s.io/kubelet/pkg/apis/deviceplugin/v1beta1"

	"github.com/photonetc/lltf-device-plugin/pefilter"
)

// Args are the command line flags of the plugin.
type Args struct {
	Config          string        `help:"Filter XML configuration on the host." type:"path" env:"PEFILTER_CONFIG" default:"/etc/pefilter/filter.xml"`
	ContainerConfig string        `help:"Path of the configuration inside containers." default:"/etc/pefilter/filter.xml"`
	ResourceName    string        `help:"Extended resource name." default:"photonetc.com/lltf"`
	PluginDir       string        `help:"Kubelet device plugin directory." default:"/var/lib/kubelet/device-plugins/"`
	MetricsAddr     string        `help:"Address of the /metrics endpoint, empty to disable." default:":9400"`
	HealthInterval  time.Duration `help:"Interval between health probes, 0 to disable." default:"30s"`
	IOTimeout       time.Duration `help:"Hardware I/O timeout." default:"5s"`
	LogLevel        string        `help:"Log level." enum:"debug,info,warn,error" default:"info"`
	LogFormat       string        `help:"Log format." enum:"text,json" default:"text"`
}

func newLogger(level, format string) *slog.Logger {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		l = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: l}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func (a *Args) pluginConfig() PluginConfig {
	return PluginConfig{
		ResourceName:    a.ResourceName,
		SocketDir:       a.PluginDir,
		KubeletSocket:   filepath.Join(a.PluginDir, filepath.Base(pluginapi.KubeletSocket)),
		ConfigPath:      a.Config,
		ContainerConfig: a.ContainerConfig,
		HealthInterval:  a.HealthInterval,
	}
}

func main() {
	var args Args
	kctx := kong.Parse(&args,
		kong.Name("lltf-device-plugin"),
		kong.Description("Kubernetes device plugin for LLTF tunable filters."),
		kong.UsageOnError(),
	)

	log := newLogger(args.LogLevel, args.LogFormat)
	slog.SetDefault(log)
	log.Info("Starting LLTF device plugin", "version", pefilter.VersionString(pefilter.LibraryVersion()), "native", pefilter.Native)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	kctx.FatalIfErrorf(run(ctx, log, &args))
}

// run serves the plugin until ctx is done, restarting it when kubelet
// recreates its socket or the configuration file changes.
func run(ctx context.Context, log *slog.Logger, args *Args) error {
	cfg := args.pluginConfig()

	log.Info("Starting FS watcher", "plugin_dir", cfg.SocketDir, "config", cfg.ConfigPath)
	watcher, err := newFSWatcher(cfg.SocketDir, filepath.Dir(cfg.ConfigPath))
	if err != nil {
		return fmt.Errorf("failed to create FS watcher: %w", err)
	}
	defer watcher.Close()

	if args.MetricsAddr != "" {
		go serveMetrics(ctx, log, args.MetricsAddr)
	}

	rm := NewFilterManager(log, cfg.ConfigPath,
		pefilter.WithIOTimeout(args.IOTimeout),
		pefilter.WithObserver(observeFilterOp),
	)

	var plugin *FilterDevicePlugin
	defer func() {
		if plugin != nil {
			plugin.Stop()
		}
	}()

	retry := time.NewTimer(0)
	defer retry.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("Shutting down")
			return nil

		case <-retry.C:
			if plugin != nil {
				plugin.Stop()
			}
			plugin = NewFilterDevicePlugin(log, rm, cfg)
			if err := plugin.Serve(ctx); err != nil {
				log.Error("Could not start device plugin, retrying", "error", err, "retry_in", "30s")
				plugin = nil
				retry.Reset(30 * time.Second)
			}

		case ev, ok := <-watcher.Events:
			if !ok {
				return errors.New("FS watcher closed")
			}
			switch {
			case isCreate(ev, cfg.KubeletSocket):
				log.Info("Kubelet socket created, restarting", "socket", ev.Name)
			case isChange(ev, cfg.ConfigPath):
				log.Info("Filter configuration changed, restarting", "config", ev.Name, "op", ev.Op.String())
			default:
				continue
			}
			if !retry.Stop() {
				select {
				case <-retry.C:
				default:
				}
			}
			retry.Reset(time.Second)

		case err, ok := <-watcher.Errors:
			if !ok {
				return errors.New("FS watcher closed")
			}
			log.Warn("FS watcher error", "error", err)
		}
	}
}
