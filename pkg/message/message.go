// mailclient
// Copyright 2025 Blue Static <https://www.bluestatic.org>
// This program is free software licensed under the GNU General Public License,
// version 3.0. The full text of the license can be found in LICENSE.txt.
// SPDX-License-Identifier: GPL-3.0-only

// Package message reads the headers and text body out of a message fetched
// with RETR.
package message

import (
	"fmt"
	"io"
	"strings"
	"time"

	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

type Parsed struct {
	From    []string
	To      []string
	Subject string
	Date    time.Time
	Body    string
}

// Parse reads `raw` as an RFC 5322 message. Addresses that do not parse are
// kept as their raw header text. The body is the first text/plain inline part,
// or the first inline part of any type if there is no plain text.
func Parse(raw string) (*Parsed, error) {
	mr, err := mail.CreateReader(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse message: %w", err)
	}
	defer mr.Close()

	p := &Parsed{
		From: addresses(&mr.Header, "From"),
		To:   addresses(&mr.Header, "To"),
	}

	p.Subject, err = mr.Header.Subject()
	if err != nil {
		p.Subject = mr.Header.Get("Subject")
	}

	if mr.Header.Get("Date") != "" {
		if date, err := mr.Header.Date(); err == nil {
			p.Date = date
		}
	}

	var fallback string
	haveFallback := false
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("parse message body: %w", err)
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		body, err := io.ReadAll(part.Body)
		if err != nil {
			return nil, fmt.Errorf("read message part: %w", err)
		}

		contentType, _, _ := h.ContentType()
		if contentType == "" || contentType == "text/plain" {
			p.Body = string(body)
			return p, nil
		}
		if !haveFallback {
			fallback, haveFallback = string(body), true
		}
	}
	p.Body = fallback
	return p, nil
}

func addresses(h *mail.Header, key string) []string {
	value := h.Get(key)
	if value == "" {
		return nil
	}
	list, err := h.AddressList(key)
	if err != nil || len(list) == 0 {
		return []string{strings.TrimSpace(value)}
	}
	addrs := make([]string, 0, len(list))
	for _, a := range list {
		addrs = append(addrs, a.Address)
	}
	return addrs
}

const replyPrefix = "Re:"

func hasReplyPrefix(subject string) bool {
	return len(subject) >= len(replyPrefix) && strings.EqualFold(subject[:len(replyPrefix)], replyPrefix)
}

// ReplySubject returns the subject for a reply to a message titled `subject`.
// An existing "Re:" prefix is not repeated.
func ReplySubject(subject string) string {
	subject = strings.TrimSpace(subject)
	if hasReplyPrefix(subject) {
		return subject
	}
	return replyPrefix + " " + subject
}

// OriginalSubject strips one leading "Re:" from `subject`.
func OriginalSubject(subject string) string {
	subject = strings.TrimSpace(subject)
	if hasReplyPrefix(subject) {
		return strings.TrimSpace(subject[len(replyPrefix):])
	}
	return subject
}
