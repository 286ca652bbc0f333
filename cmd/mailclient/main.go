// mailclient
// Copyright 2025 Blue Static <https://www.bluestatic.org>
// This program is free software licensed under the GNU General Public License,
// version 3.0. The full text of the license can be found in LICENSE.txt.
// SPDX-License-Identifier: GPL-3.0-only

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"src.bluestatic.org/mailclient/pkg/mailerr"
	"src.bluestatic.org/mailclient/pkg/metrics"
	"src.bluestatic.org/mailclient/pkg/pop3"
	"src.bluestatic.org/mailclient/pkg/smtp"
	"src.bluestatic.org/mailclient/pkg/version"
	"src.bluestatic.org/mailclient/pkg/wire"
)

const usage = `Usage: %s [flags] <command> [args]

Commands:
  list                 List the messages in the mailbox
  retr [-parse] <id>   Print message <id>
  dele <id>            Delete message <id>
  send -to <addr> -subject <s> [-body <text>]
                       Send a message; the body is read from stdin if -body is absent
  reply [-body <text>] <id>
                       Reply to the sender of message <id>
  watch                Poll the mailbox and forward new messages
  login                Store the mailbox password in the system keyring
  logout               Remove the stored password
  version              Print the version

Flags:
`

func main() {
	os.Exit(run(os.Args, os.Stdin, os.Stdout, os.Stderr))
}

// app carries what every command needs.
type app struct {
	cfg      Config
	flags    *Flags
	log      *zap.Logger
	pop3     *pop3.Client
	smtp     *smtp.Client
	password func() (string, error)

	stdin          io.Reader
	stdout, stderr io.Writer
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, usage, args[0])
		fs.PrintDefaults()
	}
	flags := &Flags{}
	flags.Register(fs)
	if err := fs.Parse(args[1:]); err != nil {
		return exitUsage
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return exitUsage
	}
	cmd, cmdArgs := fs.Arg(0), fs.Args()[1:]

	if cmd == "version" {
		fmt.Fprint(stdout, version.VersionString)
		return exitOK
	}

	config, err := Load(flags.ConfigPath)
	if err != nil {
		fmt.Fprintf(stderr, "config file: %s\n", err)
		return exitConfig
	}
	config = ApplyFlags(config, flags)
	if err := config.Validate(); err != nil {
		fmt.Fprintf(stderr, "invalid config: %s\n", err)
		return exitConfig
	}

	logConfig := zap.NewDevelopmentConfig()
	logConfig.Development = false
	logConfig.DisableStacktrace = true
	logConfig.Level.SetLevel(config.Level())
	log, err := logConfig.Build()
	if err != nil {
		fmt.Fprintf(stderr, "create logger: %v\n", err)
		return exitConfig
	}
	defer log.Sync()

	a := newApp(config, flags, log)
	a.stdin, a.stdout, a.stderr = stdin, stdout, stderr

	if config.MetricsAddr != "" {
		a.serveMetrics(config.MetricsAddr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fn, ok := commands[cmd]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n", cmd)
		fs.Usage()
		return exitUsage
	}
	if err := fn(ctx, a, cmdArgs); err != nil {
		var uerr usageError
		if errors.As(err, &uerr) {
			fmt.Fprintf(stderr, "%s: %s\n", cmd, uerr.msg)
			return exitUsage
		}
		log.Error("Command failed", zap.String("command", cmd), zap.Error(err))
		fmt.Fprintf(stderr, "%s: %s\n", cmd, err)
		return exitCode(err)
	}
	return exitOK
}

func newApp(cfg Config, flags *Flags, log *zap.Logger) *app {
	dialer := wire.NetDialer{Timeout: cfg.TimeoutDuration(), Log: log}

	pc := pop3.NewClient(cfg.POP3.Host, cfg.POP3.Port, log)
	pc.Dialer = dialer

	sc := smtp.NewClient(cfg.SMTP.Host, cfg.SMTP.Port, log)
	sc.Dialer = dialer
	sc.LocalName = cfg.SMTP.LocalName
	if cfg.SMTP.Host == "" {
		sc.Resolver = smtp.NewDNSResolver(nil, cfg.TimeoutDuration())
	}

	key := credentialKey(cfg)
	return &app{
		cfg:   cfg,
		flags: flags,
		log:   log,
		pop3:  pc,
		smtp:  sc,
		password: func() (string, error) {
			return resolvePassword(flags.Password, openKeyring, key)
		},
	}
}

func (a *app) serveMetrics(addr string) {
	reg := prometheus.NewRegistry()
	collector := metrics.NewPrometheusCollector(reg)
	a.pop3.Metrics = collector
	a.smtp.Metrics = collector

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	go func() {
		a.log.Info("Serving metrics", zap.String("addr", addr))
		if err := http.ListenAndServe(addr, mux); err != nil {
			a.log.Error("Metrics server failed", zap.Error(err))
		}
	}()
}

const (
	exitOK = iota
	exitFailure
	exitUsage
	exitConfig
	exitConnection
	exitAuth
	exitNotFound
	exitRejected
)

// exitCode maps an error kind to the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errNoPassword):
		return exitAuth
	}
	switch mailerr.KindName(err) {
	case "connection", "io":
		return exitConnection
	case "auth":
		return exitAuth
	case "not_found":
		return exitNotFound
	case "validation", "handshake", "sender_rejected", "recipient_rejected",
		"recipient_not_found", "recipient_blocked", "data_phase", "delivery":
		return exitRejected
	default:
		return exitFailure
	}
}
