package discovery

import (
	"net"
	"testing"

	"github.com/hashicorp/mdns"
	"github.com/stretchr/testify/assert"

	"github.com/weiawesome/live-canvas/internal/config"
)

func TestRelayURL(t *testing.T) {
	url, ok := RelayURL(&mdns.ServiceEntry{AddrV4: net.IPv4(192, 168, 1, 20), Port: 4000})
	assert.True(t, ok)
	assert.Equal(t, "ws://192.168.1.20:4000/ws", url)

	_, ok = RelayURL(&mdns.ServiceEntry{Port: 4000})
	assert.False(t, ok)
	_, ok = RelayURL(&mdns.ServiceEntry{AddrV4: net.IPv4(10, 0, 0, 1)})
	assert.False(t, ok)
	_, ok = RelayURL(nil)
	assert.False(t, ok)
}

func TestServiceName(t *testing.T) {
	assert.Equal(t, "_livecanvas._tcp", serviceName(config.DiscoveryConfig{}))
	assert.Equal(t, "_board._tcp", serviceName(config.DiscoveryConfig{Service: "_board._tcp"}))
	assert.Equal(t, "local", trimDot("local."))
}
