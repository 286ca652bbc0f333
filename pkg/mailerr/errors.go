// mailclient
// Copyright 2025 Blue Static <https://www.bluestatic.org>
// This program is free software licensed under the GNU General Public License,
// version 3.0. The full text of the license can be found in LICENSE.txt.
// SPDX-License-Identifier: GPL-3.0-only

// Package mailerr defines the failure kinds reported by the POP3 and SMTP
// client engines. Every engine error is an *Error whose Kind is one of the
// sentinel values below, so callers can branch with errors.Is and recover the
// server's reply line with errors.As.
package mailerr

import (
	"errors"
	"fmt"
)

var (
	// Transport.
	ErrConnection = errors.New("connection failed")
	ErrIO         = errors.New("i/o failure")

	ErrValidation = errors.New("invalid address")

	// POP3.
	ErrAuth     = errors.New("authentication failed")
	ErrNotFound = errors.New("no such message")
	ErrProtocol = errors.New("protocol error")

	// SMTP, one per phase.
	ErrHandshake         = errors.New("handshake rejected")
	ErrSenderRejected    = errors.New("sender rejected")
	ErrRecipientRejected = errors.New("recipient rejected")
	ErrRecipientNotFound = errors.New("recipient not found")
	ErrRecipientBlocked  = errors.New("recipient blocked")
	ErrDataPhase         = errors.New("data phase rejected")
	ErrDelivery          = errors.New("delivery failed")
)

// Error describes a failed step of a protocol conversation.
type Error struct {
	Kind error
	// Op is the command or phase that failed, e.g. "PASS" or "RCPT TO".
	Op  string
	Msg string
	// Reply is the raw server line, empty when the server sent nothing.
	Reply string
	Err   error
}

func (e *Error) Error() string {
	s := e.Kind.Error()
	if e.Msg != "" {
		s = e.Msg
	}
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Reply != "" {
		s = fmt.Sprintf("%s: %q", s, e.Reply)
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() []error {
	errs := []error{e.Kind}
	if e.Kind == ErrRecipientNotFound || e.Kind == ErrRecipientBlocked {
		errs = append(errs, ErrRecipientRejected)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// New returns an *Error of the given kind for a rejected server reply.
func New(kind error, op, msg, reply string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Reply: reply}
}

// Wrap returns an *Error of the given kind caused by err.
func Wrap(kind error, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Reply returns the server reply line carried by err, if any.
func Reply(err error) string {
	var me *Error
	if errors.As(err, &me) {
		return me.Reply
	}
	return ""
}

var kindNames = []struct {
	kind error
	name string
}{
	// Specific recipient kinds come before ErrRecipientRejected, which they
	// also match.
	{ErrRecipientNotFound, "recipient_not_found"},
	{ErrRecipientBlocked, "recipient_blocked"},
	{ErrRecipientRejected, "recipient_rejected"},
	{ErrConnection, "connection"},
	{ErrIO, "io"},
	{ErrValidation, "validation"},
	{ErrAuth, "auth"},
	{ErrNotFound, "not_found"},
	{ErrProtocol, "protocol"},
	{ErrHandshake, "handshake"},
	{ErrSenderRejected, "sender_rejected"},
	{ErrDataPhase, "data_phase"},
	{ErrDelivery, "delivery"},
}

// KindName returns a stable label for the kind of err: "ok" for nil,
// "unknown" for errors outside the taxonomy.
func KindName(err error) string {
	if err == nil {
		return "ok"
	}
	for _, kn := range kindNames {
		if errors.Is(err, kn.kind) {
			return kn.name
		}
	}
	return "unknown"
}
