package config

import (
	"time"

	pkgconfig "github.com/weiawesome/live-canvas/pkg/config"
	pkglog "github.com/weiawesome/live-canvas/pkg/log"
	"github.com/weiawesome/live-canvas/pkg/pubsub"
	"github.com/weiawesome/live-canvas/pkg/storage"
)

type Config struct {
	Server    ServerConfig
	WebSocket WebSocketConfig
	Bus       BusConfig
	Registry  RegistryConfig
	Discovery DiscoveryConfig
	Canvas    CanvasConfig
	Client    ClientConfig
	Storage   storage.Config
	Log       pkglog.Config
}

type ServerConfig struct {
	Host             string
	Port             int
	AdvertiseAddress string `mapstructure:"advertise_address"`
	InstanceID       string `mapstructure:"instance_id"`
}

type WebSocketConfig struct {
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"` // 0 means unlimited
	SendBuffer     int           `mapstructure:"send_buffer"`

	// EventsPerSecond limits inbound draw/clear frames per session; 0 disables it.
	EventsPerSecond float64 `mapstructure:"events_per_second"`
	Burst           int     `mapstructure:"burst"`
}

type BusConfig struct {
	pubsub.Config `mapstructure:",squash"`
	Board         string
}

type RegistryConfig struct {
	Enabled           bool
	Prefix            string
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	KeyTTL            time.Duration `mapstructure:"key_ttl"`
}

type DiscoveryConfig struct {
	MDNSEnabled bool   `mapstructure:"mdns_enabled"`
	Service     string
	Domain      string
	Timeout     time.Duration
}

type CanvasConfig struct {
	Width      int
	Height     int
	LineWidth  float64 `mapstructure:"line_width"`
	Background string
}

type ClientConfig struct {
	RelayURL     string        `mapstructure:"relay_url"`
	SnapshotPDF  bool          `mapstructure:"snapshot_pdf"`
	SnapshotTick time.Duration `mapstructure:"snapshot_interval"`
	URLExpiry    time.Duration `mapstructure:"url_expiry"`
	Thumbnail    ThumbnailConfig
}

type ThumbnailConfig struct {
	Width   int
	Height  int
	Quality int
}

func Load() (*Config, error) {
	v, err := pkgconfig.Load("./config", "config")
	if err != nil {
		return nil, err
	}

	// Set defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 4000)
	v.SetDefault("server.advertise_address", "localhost:4000")
	v.SetDefault("server.instance_id", "")
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_message_size", 0)
	v.SetDefault("websocket.send_buffer", 256)
	v.SetDefault("websocket.events_per_second", 0)
	v.SetDefault("websocket.burst", 64)
	busDefaults := pubsub.DefaultConfig()
	v.SetDefault("bus.driver", busDefaults.Driver)
	v.SetDefault("bus.board", "default")
	v.SetDefault("bus.redis.address", busDefaults.Redis.Address)
	v.SetDefault("bus.redis.password", "")
	v.SetDefault("bus.redis.db", busDefaults.Redis.DB)
	v.SetDefault("bus.redis.pool_size", busDefaults.Redis.PoolSize)
	v.SetDefault("bus.redis.read_timeout", busDefaults.Redis.ReadTimeout.String())
	v.SetDefault("bus.redis.write_timeout", busDefaults.Redis.WriteTimeout.String())
	v.SetDefault("bus.kafka.brokers", busDefaults.Kafka.Brokers)
	v.SetDefault("bus.kafka.group_id", busDefaults.Kafka.GroupID)
	v.SetDefault("bus.kafka.partitions", busDefaults.Kafka.Partitions)
	v.SetDefault("registry.enabled", true)
	v.SetDefault("registry.prefix", "canvas:registry")
	v.SetDefault("registry.heartbeat_interval", "10s")
	v.SetDefault("registry.key_ttl", "30s")
	v.SetDefault("discovery.mdns_enabled", false)
	v.SetDefault("discovery.service", "_livecanvas._tcp")
	v.SetDefault("discovery.domain", "local.")
	v.SetDefault("discovery.timeout", "3s")
	v.SetDefault("canvas.width", 800)
	v.SetDefault("canvas.height", 600)
	v.SetDefault("canvas.line_width", 5)
	v.SetDefault("canvas.background", "white")
	v.SetDefault("client.relay_url", "")
	v.SetDefault("client.snapshot_pdf", false)
	v.SetDefault("client.snapshot_interval", "0s")
	v.SetDefault("client.url_expiry", "1h")
	v.SetDefault("client.thumbnail.width", 0)
	v.SetDefault("client.thumbnail.height", 0)
	v.SetDefault("client.thumbnail.quality", 80)
	v.SetDefault("storage.driver", storage.DriverLocal)
	v.SetDefault("storage.local.base_path", "./snapshots")
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.use_path_style", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// Override from environment
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.advertise_address", "ADVERTISE_ADDRESS")
	v.BindEnv("server.instance_id", "INSTANCE_ID")
	v.BindEnv("bus.driver", "BUS_DRIVER")
	v.BindEnv("bus.board", "BUS_BOARD")
	v.BindEnv("bus.redis.address", "REDIS_ADDRESS")
	v.BindEnv("bus.redis.password", "REDIS_PASSWORD")
	v.BindEnv("bus.kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("discovery.mdns_enabled", "MDNS_ENABLED")
	v.BindEnv("client.relay_url", "RELAY_URL")
	v.BindEnv("storage.driver", "STORAGE_DRIVER")
	v.BindEnv("storage.s3.endpoint", "S3_ENDPOINT")
	v.BindEnv("storage.s3.bucket", "S3_BUCKET")
	v.BindEnv("storage.s3.access_key_id", "S3_ACCESS_KEY_ID")
	v.BindEnv("storage.s3.secret_access_key", "S3_SECRET_ACCESS_KEY")
	v.BindEnv("log.level", "LOG_LEVEL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Parse durations
	cfg.WebSocket.PingInterval = pkgconfig.Duration(v, "websocket.ping_interval", 30*time.Second)
	cfg.WebSocket.PongWait = pkgconfig.Duration(v, "websocket.pong_wait", 60*time.Second)
	cfg.WebSocket.WriteWait = pkgconfig.Duration(v, "websocket.write_wait", 10*time.Second)
	cfg.Bus.Redis.ReadTimeout = pkgconfig.Duration(v, "bus.redis.read_timeout", busDefaults.Redis.ReadTimeout)
	cfg.Bus.Redis.WriteTimeout = pkgconfig.Duration(v, "bus.redis.write_timeout", busDefaults.Redis.WriteTimeout)
	cfg.Registry.HeartbeatInterval = pkgconfig.Duration(v, "registry.heartbeat_interval", 10*time.Second)
	cfg.Registry.KeyTTL = pkgconfig.Duration(v, "registry.key_ttl", 30*time.Second)
	cfg.Discovery.Timeout = pkgconfig.Duration(v, "discovery.timeout", 3*time.Second)
	cfg.Client.SnapshotTick = pkgconfig.Duration(v, "client.snapshot_interval", 0)
	cfg.Client.URLExpiry = pkgconfig.Duration(v, "client.url_expiry", time.Hour)

	return &cfg, nil
}
