// mailclient
// Copyright 2025 Blue Static <https://www.bluestatic.org>
// This program is free software licensed under the GNU General Public License,
// version 3.0. The full text of the license can be found in LICENSE.txt.
// SPDX-License-Identifier: GPL-3.0-only

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"src.bluestatic.org/mailclient/pkg/message"
	"src.bluestatic.org/mailclient/pkg/pop3"
	"src.bluestatic.org/mailclient/pkg/smtp"
)

type usageError struct {
	msg string
}

func (e usageError) Error() string { return e.msg }

type command func(ctx context.Context, a *app, args []string) error

var commands = map[string]command{
	"list":   cmdList,
	"retr":   cmdRetr,
	"dele":   cmdDele,
	"send":   cmdSend,
	"reply":  cmdReply,
	"watch":  cmdWatch,
	"login":  cmdLogin,
	"logout": cmdLogout,
}

func newFlagSet(a *app, name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	return fs
}

func parseID(args []string) (int, error) {
	if len(args) != 1 {
		return 0, usageError{"expected one message number"}
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, usageError{fmt.Sprintf("invalid message number %q", args[0])}
	}
	return id, nil
}

func cmdList(ctx context.Context, a *app, args []string) error {
	if len(args) != 0 {
		return usageError{"list takes no arguments"}
	}
	pass, err := a.password()
	if err != nil {
		return err
	}
	entries, err := a.pop3.Login(ctx, a.cfg.Username, pass)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Fprintf(a.stdout, "%d %d\n", e.ID, e.Size)
	}
	fmt.Fprintf(a.stdout, "%d messages (%d octets)\n", len(entries), pop3.TotalSize(entries))
	return nil
}

func cmdRetr(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "retr")
	parse := fs.Bool("parse", false, "Print the headers and text body instead of the raw message")
	if err := fs.Parse(args); err != nil {
		return usageError{err.Error()}
	}
	id, err := parseID(fs.Args())
	if err != nil {
		return err
	}
	pass, err := a.password()
	if err != nil {
		return err
	}

	raw, err := a.pop3.Retrieve(ctx, a.cfg.Username, pass, id)
	if err != nil {
		return err
	}
	if !*parse {
		fmt.Fprint(a.stdout, raw)
		return nil
	}

	msg, err := message.Parse(raw)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "From: %s\n", strings.Join(msg.From, ", "))
	fmt.Fprintf(a.stdout, "To: %s\n", strings.Join(msg.To, ", "))
	fmt.Fprintf(a.stdout, "Subject: %s\n", msg.Subject)
	if !msg.Date.IsZero() {
		fmt.Fprintf(a.stdout, "Date: %s\n", msg.Date.Format("Mon, 02 Jan 2006 15:04:05 -0700"))
	}
	fmt.Fprintf(a.stdout, "\n%s\n", msg.Body)
	return nil
}

func cmdDele(ctx context.Context, a *app, args []string) error {
	id, err := parseID(args)
	if err != nil {
		return err
	}
	pass, err := a.password()
	if err != nil {
		return err
	}
	if err := a.pop3.Delete(ctx, a.cfg.Username, pass, id); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Deleted message %d\n", id)
	return nil
}

// readBody returns `body` if it was given, else all of stdin with line endings
// normalized to CRLF.
func (a *app) readBody(body string, given bool) (string, error) {
	if given {
		return body, nil
	}
	var lines []string
	s := bufio.NewScanner(a.stdin)
	for s.Scan() {
		lines = append(lines, strings.TrimSuffix(s.Text(), "\r"))
	}
	if err := s.Err(); err != nil {
		return "", fmt.Errorf("reading body: %w", err)
	}
	return strings.Join(lines, "\r\n"), nil
}

func flagGiven(fs *flag.FlagSet, name string) bool {
	given := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			given = true
		}
	})
	return given
}

func cmdSend(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "send")
	to := fs.String("to", "", "Recipient address")
	subject := fs.String("subject", "", "Subject line")
	body := fs.String("body", "", "Message body")
	if err := fs.Parse(args); err != nil {
		return usageError{err.Error()}
	}
	if *to == "" || fs.NArg() != 0 {
		return usageError{"usage: send -to <addr> [-subject <s>] [-body <text>]"}
	}

	text, err := a.readBody(*body, flagGiven(fs, "body"))
	if err != nil {
		return err
	}
	msg := smtp.Message{
		From:    a.cfg.Sender(),
		To:      *to,
		Subject: *subject,
		Body:    text,
	}
	if err := a.smtp.Send(ctx, msg); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Sent message to %s\n", *to)
	return nil
}

func cmdReply(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "reply")
	body := fs.String("body", "", "Reply body")
	if err := fs.Parse(args); err != nil {
		return usageError{err.Error()}
	}
	id, err := parseID(fs.Args())
	if err != nil {
		return err
	}
	pass, err := a.password()
	if err != nil {
		return err
	}

	raw, err := a.pop3.Retrieve(ctx, a.cfg.Username, pass, id)
	if err != nil {
		return err
	}
	orig, err := message.Parse(raw)
	if err != nil {
		return err
	}
	if len(orig.From) == 0 {
		return fmt.Errorf("message %d has no sender to reply to", id)
	}

	text, err := a.readBody(*body, flagGiven(fs, "body"))
	if err != nil {
		return err
	}
	msg := smtp.Message{
		From:    a.cfg.Sender(),
		To:      orig.From[0],
		Subject: message.ReplySubject(orig.Subject),
		Body:    text,
	}
	if err := a.smtp.Send(ctx, msg); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Sent reply to %s\n", msg.To)
	return nil
}

func cmdWatch(ctx context.Context, a *app, args []string) error {
	if len(args) != 0 {
		return usageError{"watch takes no arguments"}
	}
	pass, err := a.password()
	if err != nil {
		return err
	}

	var dst Sender
	if a.cfg.Watch.ForwardTo != "" {
		dst = a.smtp
	}
	m := NewMonitor(MonitorConfig{
		User:         a.cfg.Username,
		Password:     pass,
		From:         a.cfg.Sender(),
		PollInterval: a.cfg.PollInterval(),
		ForwardTo:    a.cfg.Watch.ForwardTo,
		Delete:       a.cfg.Watch.Delete,
	}, a.pop3, dst, a.log)
	if err := m.Start(ctx); err != nil {
		return err
	}

	a.log.Info("Watching mailbox", zap.Duration("poll_interval", a.cfg.PollInterval()))
	<-ctx.Done()
	return nil
}

func cmdLogin(ctx context.Context, a *app, args []string) error {
	if len(args) != 0 {
		return usageError{"login takes no arguments"}
	}
	pass := a.flags.Password
	if pass == "" {
		fmt.Fprintf(a.stderr, "Password for %s: ", a.cfg.Username)
		line, err := bufio.NewReader(a.stdin).ReadString('\n')
		if err != nil && err != io.EOF {
			return fmt.Errorf("reading password: %w", err)
		}
		pass = strings.TrimRight(line, "\r\n")
	}
	if pass == "" {
		return usageError{"empty password"}
	}

	// Check the credentials before storing them.
	if _, err := a.pop3.Login(ctx, a.cfg.Username, pass); err != nil {
		return err
	}

	ring, err := openKeyring()
	if err != nil {
		return err
	}
	if err := storePassword(ring, credentialKey(a.cfg), pass); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Stored password for %s\n", a.cfg.Username)
	return nil
}

func cmdLogout(ctx context.Context, a *app, args []string) error {
	if len(args) != 0 {
		return usageError{"logout takes no arguments"}
	}
	ring, err := openKeyring()
	if err != nil {
		return err
	}
	return removePassword(ring, credentialKey(a.cfg))
}
