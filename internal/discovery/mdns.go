package discovery

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/mdns"

	"github.com/weiawesome/live-canvas/internal/config"
)

// ErrNoRelay is returned when a browse finds no relay on the network.
var ErrNoRelay = errors.New("no relay found")

const defaultService = "_livecanvas._tcp"

// Advertiser announces the relay on the local network.
type Advertiser struct {
	server *mdns.Server
}

// Advertise starts answering mDNS queries for the relay's websocket port.
func Advertise(cfg config.DiscoveryConfig, port int, instanceID string) (*Advertiser, error) {
	host, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("could not get hostname: %w", err)
	}

	service, err := mdns.NewMDNSService(
		host,
		serviceName(cfg),
		cfg.Domain,
		"",
		port,
		nil,
		[]string{"live-canvas", "instance=" + instanceID, "path=/ws"},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("failed to start mDNS server: %w", err)
	}
	return &Advertiser{server: server}, nil
}

// Shutdown stops answering queries.
func (a *Advertiser) Shutdown() error {
	return a.server.Shutdown()
}

// Browse looks for a relay and returns its websocket URL.
func Browse(cfg config.DiscoveryConfig) (string, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	entries := make(chan *mdns.ServiceEntry, 16)
	params := mdns.DefaultParams(serviceName(cfg))
	if cfg.Domain != "" {
		params.Domain = trimDot(cfg.Domain)
	}
	params.Timeout = timeout
	params.Entries = entries
	params.DisableIPv6 = true

	if err := mdns.Query(params); err != nil {
		return "", fmt.Errorf("mdns query: %w", err)
	}
	close(entries)

	for e := range entries {
		if url, ok := RelayURL(e); ok {
			return url, nil
		}
	}
	return "", ErrNoRelay
}

// RelayURL builds the websocket URL of an advertised relay.
func RelayURL(e *mdns.ServiceEntry) (string, bool) {
	if e == nil || e.AddrV4 == nil || e.Port == 0 {
		return "", false
	}
	return fmt.Sprintf("ws://%s:%d/ws", e.AddrV4.String(), e.Port), true
}

func serviceName(cfg config.DiscoveryConfig) string {
	if cfg.Service == "" {
		return defaultService
	}
	return cfg.Service
}

func trimDot(s string) string {
	if len(s) > 0 && s[len(s)-1] == '.' {
		return s[:len(s)-1]
	}
	return s
}
