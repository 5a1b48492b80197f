/*
 * Copyright (c) 2024, Intel Corporation.  All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	pluginapi "k8s.io/kubelet/pkg/apis/deviceplugin/v1beta1"
)

// Environment handed to containers that were allocated filter systems.
const (
	EnvConfig  = "PEFILTER_CONFIG"
	EnvSystems = "PEFILTER_SYSTEMS"
)

const dialTimeout = 5 * time.Second

// PluginConfig holds the settings of one plugin instance.
type PluginConfig struct {
	ResourceName    string
	SocketDir       string
	KubeletSocket   string
	ConfigPath      string
	ContainerConfig string
	HealthInterval  time.Duration
}

// FilterDevicePlugin serves one extended resource whose devices are the
// configured filter systems.
type FilterDevicePlugin struct {
	ResourceManager
	cfg    PluginConfig
	log    *slog.Logger
	socket string

	mu      sync.Mutex
	devs    []*pluginapi.Device
	changed chan struct{}

	server *grpc.Server
	health *health.Server
	cancel context.CancelFunc
	done   sync.WaitGroup
}

// NewFilterDevicePlugin returns an initialized FilterDevicePlugin.
func NewFilterDevicePlugin(log *slog.Logger, rm ResourceManager, cfg PluginConfig) *FilterDevicePlugin {
	name := strings.NewReplacer("/", "-", ".", "-").Replace(cfg.ResourceName)
	return &FilterDevicePlugin{
		ResourceManager: rm,
		cfg:             cfg,
		log:             log.With("resource", cfg.ResourceName),
		socket:          filepath.Join(cfg.SocketDir, name+".sock"),
	}
}

// Start discovers the devices, serves the plugin API on its socket and
// starts the health watcher.
func (m *FilterDevicePlugin) Start() error {
	devs, err := m.Devices()
	if err != nil {
		return err
	}
	if len(devs) == 0 {
		return errors.New("no filter systems configured")
	}
	for _, d := range devs {
		recordHealth(d.ID, d.Health)
	}
	m.mu.Lock()
	m.devs = devs
	m.changed = make(chan struct{})
	m.mu.Unlock()

	if err := os.Remove(m.socket); err != nil && !os.IsNotExist(err) {
		return err
	}
	sock, err := net.Listen("unix", m.socket)
	if err != nil {
		return err
	}

	m.server = grpc.NewServer()
	pluginapi.RegisterDevicePluginServer(m.server, m)
	m.health = health.NewServer()
	healthpb.RegisterHealthServer(m.server, m.health)
	m.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	m.done.Add(1)
	go func() {
		defer m.done.Done()
		if err := m.server.Serve(sock); err != nil {
			m.log.Error("Device plugin server stopped", "error", err)
		}
	}()

	// Wait for the server to accept connections.
	conn, err := dial(m.socket, dialTimeout)
	if err != nil {
		m.Stop()
		return err
	}
	conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	if m.cfg.HealthInterval > 0 {
		m.done.Add(1)
		go func() {
			defer m.done.Done()
			watchHealth(ctx, m.log, m.ResourceManager, devs, m.cfg.HealthInterval, m.setHealth)
		}()
	}

	m.log.Info("Device plugin started", "socket", m.socket, "devices", len(devs))
	return nil
}

// Stop shuts the server down and removes the socket. Stop on a plugin
// that was never started is a no-op.
func (m *FilterDevicePlugin) Stop() {
	if m.server == nil {
		return
	}
	if m.cancel != nil {
		m.cancel()
	}
	m.health.Shutdown()
	m.server.Stop()
	m.done.Wait()
	m.server = nil
	m.cancel = nil
	if err := os.Remove(m.socket); err != nil && !os.IsNotExist(err) {
		m.log.Warn("Failed to remove plugin socket", "socket", m.socket, "error", err)
	}
	m.log.Info("Device plugin stopped")
}

// Register announces the plugin to kubelet.
func (m *FilterDevicePlugin) Register(ctx context.Context) error {
	conn, err := dial(m.cfg.KubeletSocket, dialTimeout)
	if err != nil {
		return fmt.Errorf("dial kubelet: %w", err)
	}
	defer conn.Close()

	client := pluginapi.NewRegistrationClient(conn)
	_, err = client.Register(ctx, &pluginapi.RegisterRequest{
		Version:      pluginapi.Version,
		Endpoint:     filepath.Base(m.socket),
		ResourceName: m.cfg.ResourceName,
		Options:      m.options(),
	})
	if err != nil {
		return fmt.Errorf("register %s: %w", m.cfg.ResourceName, err)
	}
	m.log.Info("Registered device plugin with kubelet", "kubelet_socket", m.cfg.KubeletSocket)
	return nil
}

// Serve starts the plugin and registers it with kubelet.
func (m *FilterDevicePlugin) Serve(ctx context.Context) error {
	if err := m.Start(); err != nil {
		return fmt.Errorf("start device plugin: %w", err)
	}
	if err := m.Register(ctx); err != nil {
		m.Stop()
		return err
	}
	return nil
}

func (m *FilterDevicePlugin) options() *pluginapi.DevicePluginOptions {
	return &pluginapi.DevicePluginOptions{GetPreferredAllocationAvailable: true}
}

// snapshot returns a copy of the device list and a channel closed on the
// next health change.
func (m *FilterDevicePlugin) snapshot() ([]*pluginapi.Device, <-chan struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	devs := make([]*pluginapi.Device, len(m.devs))
	for i, d := range m.devs {
		c := *d
		devs[i] = &c
	}
	return devs, m.changed
}

func (m *FilterDevicePlugin) setHealth(id, health string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := getDevice(m.devs, id)
	if d == nil || d.Health == health {
		return
	}
	d.Health = health
	close(m.changed)
	m.changed = make(chan struct{})
}

// GetDevicePluginOptions returns the options to be communicated with kubelet.
func (m *FilterDevicePlugin) GetDevicePluginOptions(context.Context, *pluginapi.Empty) (*pluginapi.DevicePluginOptions, error) {
	return m.options(), nil
}

// ListAndWatch sends the device list and re-sends it whenever the health
// of a device changes.
func (m *FilterDevicePlugin) ListAndWatch(_ *pluginapi.Empty, s pluginapi.DevicePlugin_ListAndWatchServer) error {
	for {
		devs, changed := m.snapshot()
		if err := s.Send(&pluginapi.ListAndWatchResponse{Devices: devs}); err != nil {
			return err
		}
		select {
		case <-s.Context().Done():
			return nil
		case <-changed:
		}
	}
}

// GetPreferredAllocation picks the required devices first, then healthy
// available devices in name order.
func (m *FilterDevicePlugin) GetPreferredAllocation(_ context.Context, req *pluginapi.PreferredAllocationRequest) (*pluginapi.PreferredAllocationResponse, error) {
	devs, _ := m.snapshot()
	resp := &pluginapi.PreferredAllocationResponse{}
	for _, creq := range req.ContainerRequests {
		resp.ContainerResponses = append(resp.ContainerResponses, &pluginapi.ContainerPreferredAllocationResponse{
			DeviceIDs: preferred(devs, creq.AvailableDeviceIDs, creq.MustIncludeDeviceIDs, int(creq.AllocationSize)),
		})
	}
	return resp, nil
}

func preferred(devs []*pluginapi.Device, available, mustInclude []string, size int) []string {
	ids := make([]string, 0, size)
	seen := make(map[string]bool)
	for _, id := range mustInclude {
		if len(ids) == size {
			return ids
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	candidates := append([]string(nil), available...)
	sort.Strings(candidates)
	for _, id := range candidates {
		if len(ids) == size {
			break
		}
		if seen[id] {
			continue
		}
		if d := getDevice(devs, id); d == nil || d.Health != pluginapi.Healthy {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

// Allocate hands the configuration file and the allocated system names to
// each container.
func (m *FilterDevicePlugin) Allocate(_ context.Context, reqs *pluginapi.AllocateRequest) (*pluginapi.AllocateResponse, error) {
	devs, _ := m.snapshot()
	hostConfig, err := filepath.Abs(m.cfg.ConfigPath)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "config path: %v", err)
	}

	responses := pluginapi.AllocateResponse{}
	for _, req := range reqs.ContainerRequests {
		for _, id := range req.DevicesIDs {
			d := getDevice(devs, id)
			if d == nil {
				return nil, status.Errorf(codes.InvalidArgument, "invalid allocation request for %q: unknown device: %s", m.cfg.ResourceName, id)
			}
			if d.Health != pluginapi.Healthy {
				m.log.Warn("Allocating unhealthy filter system", "device_id", id)
			}
		}

		m.log.Info("Allocating filter systems", "device_ids", req.DevicesIDs)
		for _, id := range req.DevicesIDs {
			AllocationsTotal.WithLabelValues(m.cfg.ResourceName, id).Inc()
		}

		responses.ContainerResponses = append(responses.ContainerResponses, &pluginapi.ContainerAllocateResponse{
			Envs: map[string]string{
				EnvConfig:  m.cfg.ContainerConfig,
				EnvSystems: strings.Join(req.DevicesIDs, ","),
			},
			Mounts: []*pluginapi.Mount{{
				ContainerPath: m.cfg.ContainerConfig,
				HostPath:      hostConfig,
				ReadOnly:      true,
			}},
		})
	}
	return &responses, nil
}

// PreStartContainer is unused; PreStartRequired is never set.
func (m *FilterDevicePlugin) PreStartContainer(context.Context, *pluginapi.PreStartContainerRequest) (*pluginapi.PreStartContainerResponse, error) {
	return &pluginapi.PreStartContainerResponse{}, nil
}

// dial establishes the gRPC communication with the registered device plugin.
func dial(unixSocketPath string, timeout time.Duration) (*grpc.ClientConn, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	return grpc.DialContext(ctx, unixSocketPath,
		grpc.WithInsecure(),
		grpc.WithBlock(),
		grpc.WithContextDialer(func(ctx context.Context, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(ctx, "unix", addr)
		}),
	)
}
