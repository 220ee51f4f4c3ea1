// Package config holds the settings of the dartlink binaries: defaults,
// environment overrides and command line flags, in that order of precedence.
package config

import (
	"net"
	"strconv"
	"time"

	"github.com/juju/errors"
	"github.com/juju/gnuflag"
)

const (
	DefaultHost    = "127.0.0.1"
	DefaultPort    = 9000
	DefaultToken   = "TEST_TOKEN_123"
	DefaultTimeout = 10 * time.Second
)

// Link settings shared by the server and the client.
type Common struct {
	Host      string
	Port      int
	Token     string
	Timeout   time.Duration
	LogLevel  string
	LogFormat string
}

func defaultCommon() Common {
	return Common{
		Host:      DefaultHost,
		Port:      DefaultPort,
		Token:     DefaultToken,
		Timeout:   DefaultTimeout,
		LogLevel:  "info",
		LogFormat: "json",
	}
}

// Addr is Host:Port.
func (c *Common) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c *Common) FromEnv() error {
	var err error
	c.Host = envString(EnvHost, c.Host)
	c.Token = envString(EnvToken, c.Token)
	c.LogLevel = envString(EnvLogLevel, c.LogLevel)
	if c.Port, err = envInt(EnvPort, c.Port); err != nil {
		return errors.Trace(err)
	}
	if c.Timeout, err = envDuration(EnvTimeout, c.Timeout); err != nil {
		return errors.Trace(err)
	}
	return nil
}

func (c *Common) RegisterFlags(f *gnuflag.FlagSet) {
	f.StringVar(&c.Host, "host", c.Host, "server host")
	f.IntVar(&c.Port, "port", c.Port, "server port")
	f.StringVar(&c.Token, "token", c.Token, "shared authentication token")
	f.DurationVar(&c.Timeout, "timeout", c.Timeout, "request timeout")
	f.StringVar(&c.LogLevel, "log-level", c.LogLevel, "debug, info, warn or error")
	f.StringVar(&c.LogFormat, "log-format", c.LogFormat, "json or text")
}

func (c *Common) Validate() error {
	if c.Host == "" {
		return errors.NotValidf("empty host")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return errors.NotValidf("port %d", c.Port)
	}
	if c.Token == "" {
		return errors.NotValidf("empty token")
	}
	if c.Timeout <= 0 {
		return errors.NotValidf("timeout %v", c.Timeout)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return errors.Trace(err)
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return errors.NotValidf("log format %q", c.LogFormat)
	}
	return nil
}

type ServerConfig struct {
	Common

	WSAddr     string        // WebSocket listener, disabled when empty
	HTTPAddr   string        // status API, disabled when empty
	MCP        bool          // serve MCP tools on stdio
	Advertise  bool          // announce the TCP listener over mDNS
	MaxClients int           // per listener
	MotionTime time.Duration // duration of a simulated move
}

func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Common:     defaultCommon(),
		MaxClients: 16,
		MotionTime: time.Second,
	}
}

func (c *ServerConfig) RegisterFlags(f *gnuflag.FlagSet) {
	c.Common.RegisterFlags(f)
	f.StringVar(&c.WSAddr, "ws", c.WSAddr, "WebSocket listen address, e.g. 127.0.0.1:9001")
	f.StringVar(&c.HTTPAddr, "http", c.HTTPAddr, "status API listen address, e.g. 127.0.0.1:8080")
	f.BoolVar(&c.MCP, "mcp", c.MCP, "serve MCP tools over stdio")
	f.BoolVar(&c.Advertise, "advertise", c.Advertise, "advertise over mDNS")
	f.IntVar(&c.MaxClients, "max-clients", c.MaxClients, "maximum connections per listener")
	f.DurationVar(&c.MotionTime, "motion-time", c.MotionTime, "simulated motion duration")
}

func (c *ServerConfig) Validate() error {
	if err := c.Common.Validate(); err != nil {
		return err
	}
	if c.MaxClients <= 0 {
		return errors.NotValidf("max clients %d", c.MaxClients)
	}
	if c.MotionTime < 0 {
		return errors.NotValidf("motion time %v", c.MotionTime)
	}
	return nil
}

type ClientConfig struct {
	Common

	WebSocket bool // dial the WebSocket listener instead of TCP
	Discover  bool // find the server over mDNS instead of Host:Port
}

func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{Common: defaultCommon()}
}

func (c *ClientConfig) RegisterFlags(f *gnuflag.FlagSet) {
	c.Common.RegisterFlags(f)
	f.BoolVar(&c.WebSocket, "ws", c.WebSocket, "connect over WebSocket")
	f.BoolVar(&c.Discover, "discover", c.Discover, "discover the server over mDNS")
}

func (c *ClientConfig) Validate() error {
	return c.Common.Validate()
}

type flagConfig interface {
	FromEnv() error
	RegisterFlags(f *gnuflag.FlagSet)
	Validate() error
}

// Load applies the environment and then args to cfg and validates the
// result. It returns the positional arguments.
func Load(name string, cfg flagConfig, args []string) ([]string, error) {
	if err := cfg.FromEnv(); err != nil {
		return nil, err
	}
	f := gnuflag.NewFlagSet(name, gnuflag.ContinueOnError)
	cfg.RegisterFlags(f)
	if err := f.Parse(true, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return f.Args(), nil
}
