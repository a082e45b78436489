package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		filePath  string
		wantErr   bool
		errString string
	}{
		{
			name:     "valid config file",
			filePath: "testdata/valid_config.yaml",
			wantErr:  false,
		},
		{
			name:      "non-existent file",
			filePath:  "testdata/nonexistent.yaml",
			wantErr:   true,
			errString: "failed to read config file",
		},
		{
			name:      "malformed yaml",
			filePath:  "testdata/malformed.yaml",
			wantErr:   true,
			errString: "failed to parse config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(tt.filePath)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
				assert.Nil(t, cfg)
			} else {
				require.NoError(t, err)
				require.NotNil(t, cfg)

				// Verify some key fields are populated
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, "localhost", cfg.Database.Host)
				assert.Equal(t, 5432, cfg.Database.Port)
				assert.Equal(t, "huntswarm_db", cfg.Database.Database)
				assert.Equal(t, "huntswarm_exchange", cfg.RabbitMQ.Exchange.Name)
				assert.Equal(t, "huntswarm-control-service", cfg.App.Name)
				assert.Equal(t, 500, cfg.Swarm.TotalTarget)
				assert.Equal(t, 200, cfg.Swarm.Targets["google_maps"])
				assert.Equal(t, 60, cfg.Agent.RateLimit)
				assert.Equal(t, 30*time.Second, cfg.Agent.Cooldown)
			}
		})
	}
}

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "huntswarm_db",
		},
		RabbitMQ: RabbitMQConfig{
			Host: "localhost",
			Port: 5672,
			Exchange: ExchangeConfig{
				Name: "huntswarm_exchange",
			},
		},
		Swarm: SwarmConfig{
			TotalTarget:        500,
			QueueConcurrency:   10,
			MaxDeliveries:      3,
			StallCheckInterval: 30 * time.Second,
			StallAfter:         5 * time.Minute,
		},
		Agent: AgentConfig{
			RateLimit:        60,
			FailureThreshold: 5,
		},
	}
}

func TestConfig_ValidateControlConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantErr   bool
		errString string
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:      "invalid server port - too low",
			mutate:    func(c *Config) { c.Server.Port = 0 },
			wantErr:   true,
			errString: "invalid server port",
		},
		{
			name:      "invalid server port - too high",
			mutate:    func(c *Config) { c.Server.Port = 70000 },
			wantErr:   true,
			errString: "invalid server port",
		},
		{
			name:      "empty database host",
			mutate:    func(c *Config) { c.Database.Host = "" },
			wantErr:   true,
			errString: "database host is required",
		},
		{
			name:      "empty database name",
			mutate:    func(c *Config) { c.Database.Database = "" },
			wantErr:   true,
			errString: "database name is required",
		},
		{
			name:      "empty rabbitmq host",
			mutate:    func(c *Config) { c.RabbitMQ.Host = "" },
			wantErr:   true,
			errString: "rabbitmq host is required",
		},
		{
			name:      "empty exchange name",
			mutate:    func(c *Config) { c.RabbitMQ.Exchange.Name = "" },
			wantErr:   true,
			errString: "rabbitmq exchange name is required",
		},
		{
			name: "targets not summing to total",
			mutate: func(c *Config) {
				c.Swarm.Targets = map[string]int{"google_maps": 100, "linkedin": 150}
			},
			wantErr:   true,
			errString: "want total_target",
		},
		{
			name: "negative target",
			mutate: func(c *Config) {
				c.Swarm.Targets = map[string]int{"google_maps": -1, "linkedin": 501}
			},
			wantErr:   true,
			errString: "must not be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.ValidateControlConfig()

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateSwarmConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantErr   bool
		errString string
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:      "zero total target",
			mutate:    func(c *Config) { c.Swarm.TotalTarget = 0 },
			wantErr:   true,
			errString: "total_target must be greater than 0",
		},
		{
			name:      "zero queue concurrency",
			mutate:    func(c *Config) { c.Swarm.QueueConcurrency = 0 },
			wantErr:   true,
			errString: "queue_concurrency must be greater than 0",
		},
		{
			name:      "zero max deliveries",
			mutate:    func(c *Config) { c.Swarm.MaxDeliveries = 0 },
			wantErr:   true,
			errString: "max_deliveries must be greater than 0",
		},
		{
			name:      "zero stall check interval",
			mutate:    func(c *Config) { c.Swarm.StallCheckInterval = 0 },
			wantErr:   true,
			errString: "stall_check_interval must be greater than 0",
		},
		{
			name:      "zero stall after",
			mutate:    func(c *Config) { c.Swarm.StallAfter = 0 },
			wantErr:   true,
			errString: "stall_after must be greater than 0",
		},
		{
			name:      "zero agent rate limit",
			mutate:    func(c *Config) { c.Agent.RateLimit = 0 },
			wantErr:   true,
			errString: "rate_limit must be greater than 0",
		},
		{
			name:      "zero failure threshold",
			mutate:    func(c *Config) { c.Agent.FailureThreshold = 0 },
			wantErr:   true,
			errString: "failure_threshold must be greater than 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.ValidateSwarmConfig()

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestLoad_ValidateIntegration(t *testing.T) {
	t.Run("load and validate valid config", func(t *testing.T) {
		cfg, err := Load("testdata/valid_config.yaml")
		require.NoError(t, err)
		require.NotNil(t, cfg)

		require.NoError(t, cfg.ValidateControlConfig())
		require.NoError(t, cfg.ValidateSwarmConfig())
	})

	t.Run("load config with invalid port", func(t *testing.T) {
		cfg, err := Load("testdata/invalid_port.yaml")
		require.NoError(t, err)
		require.NotNil(t, cfg)

		err = cfg.ValidateControlConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid server port")
	})

	t.Run("load config with missing database", func(t *testing.T) {
		cfg, err := Load("testdata/missing_database.yaml")
		require.NoError(t, err)
		require.NotNil(t, cfg)

		err = cfg.ValidateControlConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database name is required")
	})
}
