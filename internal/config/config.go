package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Logging  LoggingConfig  `yaml:"logging"`
	App      AppConfig      `yaml:"app"`
	Swarm    SwarmConfig    `yaml:"swarm"`
	Agent    AgentConfig    `yaml:"agent"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// RabbitMQConfig holds RabbitMQ connection and exchange configuration.
// Work queues are declared per agent type at runtime, so no fixed queue
// name appears here.
type RabbitMQConfig struct {
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	User       string           `yaml:"user"`
	Password   string           `yaml:"password"`
	VHost      string           `yaml:"vhost"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Connection ConnectionConfig `yaml:"connection"`
	Consumer   ConsumerConfig   `yaml:"consumer"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	Heartbeat         time.Duration `yaml:"heartbeat"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`
}

// ConsumerConfig holds RabbitMQ consumer settings
type ConsumerConfig struct {
	PrefetchCount int  `yaml:"prefetch_count"`
	AutoAck       bool `yaml:"auto_ack"`
	Exclusive     bool `yaml:"exclusive"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level            string `yaml:"level"`
	Format           string `yaml:"format"`
	Output           string `yaml:"output"`
	EnableCaller     bool   `yaml:"enable_caller"`
	EnableStackTrace bool   `yaml:"enable_stack_trace"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// SwarmConfig holds orchestrator settings: the overall collection target,
// how it is split across agents, and the self-healing thresholds.
type SwarmConfig struct {
	TotalTarget          int            `yaml:"total_target"`
	Targets              map[string]int `yaml:"targets"`
	BatchSize            int            `yaml:"batch_size"`
	QueueConcurrency     int            `yaml:"queue_concurrency"`
	MaxDeliveries        int            `yaml:"max_deliveries"`
	RequeueDelay         time.Duration  `yaml:"requeue_delay"`
	StallCheckInterval   time.Duration  `yaml:"stall_check_interval"`
	StallAfter           time.Duration  `yaml:"stall_after"`
	DegradedFailureRatio float64        `yaml:"degraded_failure_ratio"`
	CriticalFailureRatio float64        `yaml:"critical_failure_ratio"`
	QueueDepthWarning    int            `yaml:"queue_depth_warning"`
	ShutdownTimeout      time.Duration  `yaml:"shutdown_timeout"`
}

// AgentConfig holds the per-agent resilience settings: rate limiting,
// retries, circuit breaking, and proxy rotation.
type AgentConfig struct {
	RateLimit        int           `yaml:"rate_limit"`
	RateWindow       time.Duration `yaml:"rate_window"`
	Timeout          time.Duration `yaml:"timeout"`
	RetryAttempts    int           `yaml:"retry_attempts"`
	RetryDelay       time.Duration `yaml:"retry_delay"`
	FailureThreshold int           `yaml:"failure_threshold"`
	Cooldown         time.Duration `yaml:"cooldown"`
	UseProxy         bool          `yaml:"use_proxy"`
	Proxies          []string      `yaml:"proxies"`
}

// Load reads and parses the configuration file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// ValidateControlConfig checks the settings the control service needs:
// HTTP server, database, and broker connectivity.
func (c *Config) ValidateControlConfig() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Port < MinPort || c.Database.Port > MaxPort {
		return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	if c.RabbitMQ.Host == "" {
		return fmt.Errorf("rabbitmq host is required")
	}

	if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
		return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort)
	}

	if c.RabbitMQ.Exchange.Name == "" {
		return fmt.Errorf("rabbitmq exchange name is required")
	}

	if err := c.validateSwarmTargets(); err != nil {
		return err
	}

	return nil
}

// ValidateSwarmConfig checks the settings the swarm worker service needs.
func (c *Config) ValidateSwarmConfig() error {
	if c.Swarm.TotalTarget <= 0 {
		return fmt.Errorf("swarm total_target must be greater than 0")
	}

	if c.Swarm.QueueConcurrency <= 0 {
		return fmt.Errorf("swarm queue_concurrency must be greater than 0")
	}

	if c.Swarm.MaxDeliveries <= 0 {
		return fmt.Errorf("swarm max_deliveries must be greater than 0")
	}

	if c.Swarm.StallCheckInterval <= 0 {
		return fmt.Errorf("swarm stall_check_interval must be greater than 0")
	}

	if c.Swarm.StallAfter <= 0 {
		return fmt.Errorf("swarm stall_after must be greater than 0")
	}

	if c.Agent.RateLimit <= 0 {
		return fmt.Errorf("agent rate_limit must be greater than 0")
	}

	if c.Agent.FailureThreshold <= 0 {
		return fmt.Errorf("agent failure_threshold must be greater than 0")
	}

	if err := c.validateSwarmTargets(); err != nil {
		return err
	}

	return nil
}

// validateSwarmTargets checks that an explicit target distribution, when
// present, sums to the total target. An empty map means targets are supplied
// through the API instead.
func (c *Config) validateSwarmTargets() error {
	if len(c.Swarm.Targets) == 0 {
		return nil
	}

	sum := 0
	for typ, target := range c.Swarm.Targets {
		if target < 0 {
			return fmt.Errorf("swarm target for %s must not be negative", typ)
		}
		sum += target
	}
	if sum != c.Swarm.TotalTarget {
		return fmt.Errorf("swarm targets sum to %d, want total_target %d", sum, c.Swarm.TotalTarget)
	}

	return nil
}
