package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const EnvPrefix = "NOTIFYHUB"

type Config struct {
	Server struct {
		Port int    `mapstructure:"port"`
		Id   string `mapstructure:"id"`
	} `mapstructure:"server"`

	JWT struct {
		Secret    string        `mapstructure:"secret"`
		AccessTTL time.Duration `mapstructure:"access_ttl"`
	} `mapstructure:"jwt"`

	Mongo struct {
		URI      string `mapstructure:"uri"`
		Database string `mapstructure:"database"`
	} `mapstructure:"mongo"`

	Redis struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`

	NATS struct {
		URL           string `mapstructure:"url"`
		SubjectPrefix string `mapstructure:"subject_prefix"`
	} `mapstructure:"nats"`

	Hub struct {
		HeartbeatInterval     time.Duration `mapstructure:"heartbeat_interval"`
		MaxConnectionsPerUser int           `mapstructure:"max_connections_per_user"`
		MaxConnections        int           `mapstructure:"max_connections"`
		AuthTimeout           time.Duration `mapstructure:"auth_timeout"`
		CollaboratorTimeout   time.Duration `mapstructure:"collaborator_timeout"`
		RoleCacheTTL          time.Duration `mapstructure:"role_cache_ttl"`
	} `mapstructure:"hub"`

	Log struct {
		Level  string `mapstructure:"level"`
		Pretty bool   `mapstructure:"pretty"`
	} `mapstructure:"log"`

	CORS struct {
		AllowedOrigin string `mapstructure:"allowed_origin"`
	} `mapstructure:"cors"`
}

// Load reads .env when present, then builds the config from defaults, an
// optional YAML file at path and NOTIFYHUB_* environment variables, in
// increasing order of precedence.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.id", "server-1")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.access_ttl", 15*time.Minute)
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "notifyhub")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("nats.url", "")
	v.SetDefault("nats.subject_prefix", "jobs")
	v.SetDefault("hub.heartbeat_interval", 30*time.Second)
	v.SetDefault("hub.max_connections_per_user", 5)
	v.SetDefault("hub.max_connections", 1000)
	v.SetDefault("hub.auth_timeout", 10*time.Second)
	v.SetDefault("hub.collaborator_timeout", 5*time.Second)
	v.SetDefault("hub.role_cache_ttl", time.Minute)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("cors.allowed_origin", "http://localhost:3000")
}

func (c *Config) Validate() error {
	var errs []error
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("jwt.secret is required (set NOTIFYHUB_JWT_SECRET or config file)"))
	}
	if c.JWT.AccessTTL <= 0 {
		errs = append(errs, errors.New("jwt.access_ttl must be positive"))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Mongo.Database == "" {
		errs = append(errs, errors.New("mongo.database is required"))
	}
	if c.Hub.HeartbeatInterval <= 0 {
		errs = append(errs, errors.New("hub.heartbeat_interval must be positive"))
	}
	if c.Hub.MaxConnectionsPerUser <= 0 {
		errs = append(errs, errors.New("hub.max_connections_per_user must be positive"))
	}
	if c.Hub.MaxConnections <= 0 {
		errs = append(errs, errors.New("hub.max_connections must be positive"))
	}
	if c.Hub.AuthTimeout < 0 {
		errs = append(errs, errors.New("hub.auth_timeout must not be negative"))
	}
	if c.Hub.CollaboratorTimeout <= 0 {
		errs = append(errs, errors.New("hub.collaborator_timeout must be positive"))
	}
	if c.Hub.RoleCacheTTL <= 0 {
		errs = append(errs, errors.New("hub.role_cache_ttl must be positive"))
	}
	return errors.Join(errs...)
}

func (c *Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}
