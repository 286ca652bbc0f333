// mailclient
// Copyright 2025 Blue Static <https://www.bluestatic.org>
// This program is free software licensed under the GNU General Public License,
// version 3.0. The full text of the license can be found in LICENSE.txt.
// SPDX-License-Identifier: GPL-3.0-only

package smtp

import (
	"regexp"
	"strings"

	"src.bluestatic.org/mailclient/pkg/mailerr"
)

// ReplyCode returns the three-digit code that starts `line`, or 0 if there is
// none.
func ReplyCode(line string) int {
	if len(line) < 3 {
		return 0
	}
	if len(line) > 3 && line[3] != ' ' && line[3] != '-' {
		return 0
	}
	code := 0
	for i := 0; i < 3; i++ {
		c := line[i]
		if c < '0' || c > '9' {
			return 0
		}
		code = code*10 + int(c-'0')
	}
	return code
}

// ClassifyRecipientReply maps a negative RCPT TO reply to the kind of
// rejection. A policy block is recognised by the word "blocked" anywhere in
// the reply and takes precedence over the 550 mailbox-unavailable code.
func ClassifyRecipientReply(reply string) error {
	if strings.Contains(strings.ToLower(reply), "blocked") {
		return mailerr.ErrRecipientBlocked
	}
	if ReplyCode(reply) == 550 {
		return mailerr.ErrRecipientNotFound
	}
	return mailerr.ErrRecipientRejected
}

var addressRE = regexp.MustCompile(`^[A-Za-z0-9+_.-]+@[A-Za-z0-9.-]+$`)

// ValidAddress reports whether `addr` is a bare local-part@domain address
// made of conservative characters only. Display names, quoting and IP
// literals are rejected.
func ValidAddress(addr string) bool {
	return addressRE.MatchString(addr)
}

// DomainForAddress returns the part of `addr` after the last "@".
func DomainForAddress(addr string) string {
	return addr[strings.LastIndex(addr, "@")+1:]
}

// FrameMessage renders the DATA payload for `msg`: From, To and Subject
// headers, a blank line, the body and the terminating "." line, all
// CRLF-terminated. The body is sent as given.
func FrameMessage(msg Message) string {
	var sb strings.Builder
	sb.WriteString("From: " + msg.From + "\r\n")
	sb.WriteString("To: " + msg.To + "\r\n")
	sb.WriteString("Subject: " + msg.Subject + "\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(msg.Body)
	sb.WriteString("\r\n.\r\n")
	return sb.String()
}
