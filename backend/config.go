package backend

import (
	"reflect"
	"time"
)

const (
	// DefaultDriver selects the HDFS client.
	DefaultDriver         = "hdfs"
	defaultPoolSize       = 4
	defaultAcquireTimeout = 30 * time.Second
)

// Config holds backend connection parameters.
type Config struct {
	Driver     string            `yaml:"driver"`
	Host       string            `yaml:"host"`
	Port       int               `yaml:"port"`
	User       string            `yaml:"user"`
	KerbTicket string            `yaml:"kerbTicket"`
	Krb5Conf   string            `yaml:"krb5Conf"`
	Realm      string            `yaml:"realm"`
	Password   string            `yaml:"password,omitempty"`
	Secret     string            `yaml:"secret,omitempty"`
	BaseURL    string            `yaml:"baseURL"`
	ExtraConf  map[string]string `yaml:"extraConf"`

	PoolSize         int `yaml:"poolSize"`
	AcquireTimeoutMs int `yaml:"acquireTimeoutMs"`
}

// Init fills defaults.
func (c *Config) Init() {
	if c.Driver == "" {
		c.Driver = DefaultDriver
	}
	if c.Host == "" {
		c.Host = "default"
	}
	if c.PoolSize <= 0 {
		c.PoolSize = defaultPoolSize
	}
}

// AcquireTimeout returns the pool wait limit.
func (c *Config) AcquireTimeout() time.Duration {
	if c.AcquireTimeoutMs <= 0 {
		return defaultAcquireTimeout
	}
	return time.Duration(c.AcquireTimeoutMs) * time.Millisecond
}

// Equal reports whether both configs describe the same connection.
func (c *Config) Equal(other *Config) bool {
	if c == nil || other == nil {
		return c == other
	}
	return reflect.DeepEqual(*c, *other)
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	ret := *c
	if c.ExtraConf != nil {
		ret.ExtraConf = make(map[string]string, len(c.ExtraConf))
		for k, v := range c.ExtraConf {
			ret.ExtraConf[k] = v
		}
	}
	return &ret
}
