// mailclient
// Copyright 2025 Blue Static <https://www.bluestatic.org>
// This program is free software licensed under the GNU General Public License,
// version 3.0. The full text of the license can be found in LICENSE.txt.
// SPDX-License-Identifier: GPL-3.0-only

package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"go.uber.org/zap/zapcore"

	"src.bluestatic.org/mailclient/pkg/smtp"
)

type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`

	// LocalName is the HELO argument. Only used for SMTP.
	LocalName string `toml:"local_name"`
}

type WatchConfig struct {
	PollInterval string `toml:"poll_interval"`

	// ForwardTo, if set, receives a copy of every new message over SMTP.
	ForwardTo string `toml:"forward_to"`

	// Delete removes messages from the POP3 mailbox once they are forwarded.
	Delete bool `toml:"delete"`
}

type Config struct {
	POP3 ServerConfig `toml:"pop3"`
	// An empty SMTP host delivers to the recipient domain's MX.
	SMTP ServerConfig `toml:"smtp"`

	Username   string `toml:"username"`
	MailDomain string `toml:"mail_domain"`

	Timeout     string `toml:"timeout"`
	LogLevel    string `toml:"log_level"`
	MetricsAddr string `toml:"metrics_addr"`

	Watch WatchConfig `toml:"watch"`
}

// The defaults reach a server on the host machine from an Android emulator.
func Default() Config {
	return Config{
		POP3: ServerConfig{
			Host: "10.0.2.2",
			Port: 8110,
		},
		SMTP: ServerConfig{
			Host:      "10.0.2.2",
			Port:      2525,
			LocalName: smtp.DefaultLocalName,
		},
		MailDomain: "example.com",
		Timeout:    "30s",
		LogLevel:   "info",
		Watch: WatchConfig{
			PollInterval: "1m",
		},
	}
}

// Load reads a TOML file over the defaults. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config file: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Username == "" {
		return errors.New("username is required")
	}
	if c.POP3.Host == "" {
		return errors.New("pop3 host is required")
	}
	if err := validatePort(c.POP3.Port); err != nil {
		return fmt.Errorf("pop3: %w", err)
	}
	if err := validatePort(c.SMTP.Port); err != nil {
		return fmt.Errorf("smtp: %w", err)
	}
	if strings.ContainsAny(c.SMTP.LocalName, " \r\n") {
		return fmt.Errorf("smtp: invalid local_name %q", c.SMTP.LocalName)
	}
	if !smtp.ValidAddress(c.Sender()) {
		return fmt.Errorf("sender %q is not a valid address", c.Sender())
	}
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return fmt.Errorf("invalid log_level: %w", err)
	}
	if d, err := time.ParseDuration(c.Watch.PollInterval); err != nil {
		return fmt.Errorf("watch: invalid poll_interval: %w", err)
	} else if d <= 0 {
		return errors.New("watch: poll_interval must be positive")
	}
	if c.Watch.ForwardTo != "" && !smtp.ValidAddress(c.Watch.ForwardTo) {
		return fmt.Errorf("watch: forward_to %q is not a valid address", c.Watch.ForwardTo)
	}
	if c.Watch.Delete && c.Watch.ForwardTo == "" {
		return errors.New("watch: delete requires forward_to")
	}
	return nil
}

func validatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("invalid port %d", port)
	}
	return nil
}

// Sender is the envelope and header From address for outgoing mail.
func (c *Config) Sender() string {
	if strings.Contains(c.Username, "@") {
		return c.Username
	}
	return c.Username + "@" + c.MailDomain
}

func (c *Config) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

func (c *Config) PollInterval() time.Duration {
	d, err := time.ParseDuration(c.Watch.PollInterval)
	if err != nil {
		return time.Minute
	}
	return d
}

func (c *Config) Level() zapcore.Level {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return zapcore.InfoLevel
	}
	return level
}

// Flags holds the global command-line flags, which override the config file.
type Flags struct {
	ConfigPath  string
	POP3Host    string
	POP3Port    int
	SMTPHost    string
	SMTPPort    int
	Username    string
	Password    string
	LogLevel    string
	MetricsAddr string
}

func (f *Flags) Register(fs *flag.FlagSet) {
	fs.StringVar(&f.ConfigPath, "config", defaultConfigPath(), "Path to configuration file")
	fs.StringVar(&f.POP3Host, "pop3-host", "", "POP3 server host")
	fs.IntVar(&f.POP3Port, "pop3-port", 0, "POP3 server port")
	fs.StringVar(&f.SMTPHost, "smtp-host", "", "SMTP server host")
	fs.IntVar(&f.SMTPPort, "smtp-port", 0, "SMTP server port")
	fs.StringVar(&f.Username, "user", "", "Mailbox user name")
	fs.StringVar(&f.Password, "password", "", "Mailbox password (overrides the keyring)")
	fs.StringVar(&f.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&f.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
}

// ApplyFlags merges non-empty flag values into the config.
func ApplyFlags(cfg Config, f *Flags) Config {
	if f.POP3Host != "" {
		cfg.POP3.Host = f.POP3Host
	}
	if f.POP3Port != 0 {
		cfg.POP3.Port = f.POP3Port
	}
	if f.SMTPHost != "" {
		cfg.SMTP.Host = f.SMTPHost
	}
	if f.SMTPPort != 0 {
		cfg.SMTP.Port = f.SMTPPort
	}
	if f.Username != "" {
		cfg.Username = f.Username
	}
	if f.LogLevel != "" {
		cfg.LogLevel = f.LogLevel
	}
	if f.MetricsAddr != "" {
		cfg.MetricsAddr = f.MetricsAddr
	}
	return cfg
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "mailclient.toml"
	}
	return filepath.Join(dir, "mailclient", "config.toml")
}
