package config

import "time"

// Chat definition chat_service YAML structure
type Chat struct {
	Port         string         `mapstructure:"port"`
	MongoDB      DatabaseConfig `mapstructure:"mongo"`
	Redis        RedisConfig    `mapstructure:"redis"`
	Relay        RelayConfig    `mapstructure:"relay"`
	Notification QueueConfig    `mapstructure:"notification"`
	Auth         AuthConfig     `mapstructure:"auth"`
	Socket       SocketConfig   `mapstructure:"socket"`
}

// RelayMode how relay events reach the connection registry
type RelayMode string

const (
	// RelayModeLocal deliver straight to the registry of this process
	RelayModeLocal RelayMode = "local"
	// RelayModeRedis fan out through redis so every node can deliver
	RelayModeRedis RelayMode = "redis"
)

// RelayConfig definition relay setting
type RelayConfig struct {
	Mode    RelayMode `mapstructure:"mode"`
	Channel string    `mapstructure:"channel"`
}

// RedisConfig definition redis setting
// Addr is used when no sentinel is configured in .env
type RedisConfig struct {
	Addr    string `mapstructure:"addr"`
	RedisDB int    `mapstructure:"redis_db"`
}

// QueueConfig definition rabbitmq notification queue, empty Queue means write notifications inline
type QueueConfig struct {
	RabbitURL     string `mapstructure:"rabbit_url"`
	Queue         string `mapstructure:"queue"`
	RetryCount    int    `mapstructure:"retry_count"`
	RetryInterval int    `mapstructure:"retry_interval"`
}

// AuthConfig definition token validation setting
type AuthConfig struct {
	JWTSecret  string `mapstructure:"jwt_secret"`
	CookieName string `mapstructure:"cookie_name"`
}

// SocketConfig definition websocket setting
type SocketConfig struct {
	SendQueueSize int           `mapstructure:"send_queue_size"`
	PingInterval  time.Duration `mapstructure:"ping_interval"`
}

// DatabaseConfig definition db setting
type DatabaseConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	Database      string `mapstructure:"database"`
	RetryInterval int    `mapstructure:"retry_interval"`
	RetryCount    int    `mapstructure:"retry_count"`
}

// Defaults fill zero values with the service defaults
func (c *Chat) Defaults() {
	if c.Port == "" {
		c.Port = "5001"
	}
	if c.Relay.Mode == "" {
		c.Relay.Mode = RelayModeLocal
	}
	if c.Relay.Channel == "" {
		c.Relay.Channel = "chat:user:"
	}
	if c.Auth.CookieName == "" {
		c.Auth.CookieName = "jwt"
	}
	if c.Socket.SendQueueSize <= 0 {
		c.Socket.SendQueueSize = 64
	}
	if c.Socket.PingInterval <= 0 {
		c.Socket.PingInterval = 30 * time.Second
	}
}
