// mailclient
// Copyright 2025 Blue Static <https://www.bluestatic.org>
// This program is free software licensed under the GNU General Public License,
// version 3.0. The full text of the license can be found in LICENSE.txt.
// SPDX-License-Identifier: GPL-3.0-only

package main

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func validConfig() Config {
	c := Default()
	c.Username = "user"
	return c
}

func TestDefaultConfigIsValid(t *testing.T) {
	c := validConfig()
	if err := c.Validate(); err != nil {
		t.Errorf("Expected default config to be valid, got %v", err)
	}
	if want, got := "user@example.com", c.Sender(); want != got {
		t.Errorf("Expected sender %q, got %q", want, got)
	}
	if want, got := 30*time.Second, c.TimeoutDuration(); want != got {
		t.Errorf("Expected timeout %v, got %v", want, got)
	}
}

func TestInvalidConfigs(t *testing.T) {
	configs := []func(*Config){
		// Missing username.
		func(c *Config) { c.Username = "" },
		// Missing POP3 host.
		func(c *Config) { c.POP3.Host = "" },
		// Bad ports.
		func(c *Config) { c.POP3.Port = 0 },
		func(c *Config) { c.SMTP.Port = 70000 },
		// HELO argument with a line break.
		func(c *Config) { c.SMTP.LocalName = "a\r\nMAIL FROM:<x@y.z>" },
		// Sender that is not an address.
		func(c *Config) { c.MailDomain = "" },
		func(c *Config) { c.Username = "a b" },
		// Bad durations and levels.
		func(c *Config) { c.Timeout = "soon" },
		func(c *Config) { c.LogLevel = "loud" },
		func(c *Config) { c.Watch.PollInterval = "0s" },
		func(c *Config) { c.Watch.PollInterval = "" },
		// Bad forwarding.
		func(c *Config) { c.Watch.ForwardTo = "nobody" },
		func(c *Config) { c.Watch.Delete = true },
	}
	for i, mutate := range configs {
		c := validConfig()
		mutate(&c)
		if err := c.Validate(); err == nil {
			t.Errorf("Expected error validating config %d, got nil: %+v", i, c)
		}
	}
}

func TestSenderWithDomain(t *testing.T) {
	c := validConfig()
	c.Username = "alice@corp.test"
	if want, got := "alice@corp.test", c.Sender(); want != got {
		t.Errorf("Expected sender %q, got %q", want, got)
	}
}

func TestLoadMissingFile(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if c.POP3.Port != 8110 || c.SMTP.Port != 2525 {
		t.Errorf("Expected default ports, got %d/%d", c.POP3.Port, c.SMTP.Port)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
username = "bob"
mail_domain = "mail.test"
timeout = "5s"

[pop3]
host = "pop.mail.test"

[smtp]
host = ""
port = 25
local_name = "laptop.mail.test"

[watch]
poll_interval = "30s"
forward_to = "archive@mail.test"
delete = true
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("Expected loaded config to be valid, got %v", err)
	}
	if c.POP3.Host != "pop.mail.test" || c.POP3.Port != 8110 {
		t.Errorf("Expected pop.mail.test with the default port, got %+v", c.POP3)
	}
	if c.SMTP.Host != "" || c.SMTP.Port != 25 || c.SMTP.LocalName != "laptop.mail.test" {
		t.Errorf("Unexpected SMTP config %+v", c.SMTP)
	}
	if want, got := "bob@mail.test", c.Sender(); want != got {
		t.Errorf("Expected sender %q, got %q", want, got)
	}
	if want, got := 30*time.Second, c.PollInterval(); want != got {
		t.Errorf("Expected poll interval %v, got %v", want, got)
	}
	if !c.Watch.Delete {
		t.Errorf("Expected watch.delete to be set")
	}
}

func TestLoadBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[pop3\nhost = "), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Errorf("Expected a parse error")
	}
}

func TestApplyFlags(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	f := &Flags{}
	f.Register(fs)
	err := fs.Parse([]string{"-pop3-host", "pop.test", "-smtp-port", "587", "-user", "carol", "-log-level", "debug"})
	if err != nil {
		t.Fatal(err)
	}

	c := ApplyFlags(Default(), f)
	if c.POP3.Host != "pop.test" || c.POP3.Port != 8110 {
		t.Errorf("Unexpected POP3 config %+v", c.POP3)
	}
	if c.SMTP.Host != "10.0.2.2" || c.SMTP.Port != 587 {
		t.Errorf("Unexpected SMTP config %+v", c.SMTP)
	}
	if c.Username != "carol" || c.LogLevel != "debug" {
		t.Errorf("Unexpected config %+v", c)
	}
}
