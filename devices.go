package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	pluginapi "k8s.io/kubelet/pkg/apis/deviceplugin/v1beta1"

	"github.com/photonetc/lltf-device-plugin/pefilter"
)

// ResourceManager discovers plugin devices and probes their health.
type ResourceManager interface {
	Devices() ([]*pluginapi.Device, error)
	Check(ctx context.Context, ids []string) map[string]error
}

// FilterManager exposes the systems of a filter configuration file as
// plugin devices. The device ID is the system name.
type FilterManager struct {
	log        *slog.Logger
	configPath string
	opts       []pefilter.Option
}

// NewFilterManager Init Manager
func NewFilterManager(log *slog.Logger, configPath string, opts ...pefilter.Option) *FilterManager {
	opts = append([]pefilter.Option{pefilter.WithLogger(log)}, opts...)
	return &FilterManager{log: log, configPath: configPath, opts: opts}
}

func (fm *FilterManager) newFilter() (pefilter.Filter, error) {
	return pefilter.New(fm.configPath, fm.opts...)
}

// Devices lists the configured filter systems, all initially healthy.
func (fm *FilterManager) Devices() ([]*pluginapi.Device, error) {
	f, err := fm.newFilter()
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", fm.configPath, err)
	}
	defer f.Destroy()

	var devs []*pluginapi.Device

	fm.log.Info("Discovering filter systems...", "config", fm.configPath)
	for i := 0; i < f.SystemCount(); i++ {
		name, err := f.SystemName(i)
		if err != nil {
			return nil, err
		}
		fm.log.Info("Filter system found", "index", i, "system", name)
		devs = append(devs, &pluginapi.Device{
			ID:     name,
			Health: pluginapi.Healthy,
		})
	}

	return devs, nil
}

// Check pings every system in ids on a fresh handle. A system is healthy
// when its entry in the result is nil. Units held by another connection,
// typically a pod they were allocated to, count as healthy.
func (fm *FilterManager) Check(ctx context.Context, ids []string) map[string]error {
	results := make(map[string]error, len(ids))

	f, err := fm.newFilter()
	if err != nil {
		for _, id := range ids {
			results[id] = err
		}
		return results
	}
	defer f.Destroy()

	for _, id := range ids {
		err := ping(ctx, f, id)
		if errors.Is(err, pefilter.ErrDeviceBusy) {
			fm.log.Debug("Filter system in use, skipping health check", "device_id", id)
			err = nil
		}
		results[id] = err
	}
	return results
}

// ping prefers a check that leaves the unit's tuning alone. Backends
// without one are opened and closed, which resets the unit.
func ping(ctx context.Context, f pefilter.Filter, id string) error {
	if p, ok := f.(pefilter.Pinger); ok {
		return p.Ping(ctx, id)
	}
	err := f.Open(ctx, id)
	if err == nil {
		err = f.Close(ctx)
	}
	return err
}

func getDevice(devs []*pluginapi.Device, id string) *pluginapi.Device {
	for _, d := range devs {
		if d.ID == id {
			return d
		}
	}
	return nil
}

// watchHealth probes devs every interval and reports health transitions
// through update until ctx is done.
func watchHealth(ctx context.Context, log *slog.Logger, rm ResourceManager, devs []*pluginapi.Device, interval time.Duration, update func(id, health string)) {
	ids := make([]string, len(devs))
	last := make(map[string]string, len(devs))
	for i, d := range devs {
		ids[i] = d.ID
		last[d.ID] = d.Health
	}

	check := func() {
		for id, err := range rm.Check(ctx, ids) {
			if ctx.Err() != nil {
				return
			}
			health := pluginapi.Healthy
			if err != nil {
				health = pluginapi.Unhealthy
			}
			recordHealth(id, health)
			if last[id] == health {
				continue
			}
			if err != nil {
				log.Error("Filter system failed health probe. Marking it unhealthy", "device_id", id, "status", pefilter.StatusOf(err).String(), "error", err)
			} else {
				log.Info("Filter system recovered. Marking it healthy", "device_id", id)
			}
			last[id] = health
			update(id, health)
		}
	}

	healthCheckInterval := time.NewTicker(interval)
	defer healthCheckInterval.Stop()

	check()
	for {
		select {
		case <-ctx.Done():
			return
		case <-healthCheckInterval.C:
			check()
		}
	}
}
