// mailclient
// Copyright 2025 Blue Static <https://www.bluestatic.org>
// This program is free software licensed under the GNU General Public License,
// version 3.0. The full text of the license can be found in LICENSE.txt.
// SPDX-License-Identifier: GPL-3.0-only

package smtp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"runtime"
	"testing"

	"go.uber.org/zap"

	"src.bluestatic.org/mailclient/pkg/mailerr"
	"src.bluestatic.org/mailclient/pkg/wire"
	"src.bluestatic.org/mailclient/pkg/wire/wiretest"
)

func _fl(depth int) string {
	_, file, line, _ := runtime.Caller(depth + 1)
	return fmt.Sprintf("[%s:%d]", filepath.Base(file), line)
}

func ok(t testing.TB, err error) {
	if err != nil {
		t.Errorf("%s unexpected error: %v", _fl(1), err)
	}
}

func expectKind(t testing.TB, err, kind error) {
	if !errors.Is(err, kind) {
		t.Errorf("%s expected %v, got %v", _fl(1), kind, err)
	}
}

func expectWritten(t testing.TB, conn *wiretest.Conn, want ...string) {
	got := conn.Written()
	if len(got) != len(want) {
		t.Errorf("%s expected writes %q, got %q", _fl(1), want, got)
		return
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("%s write %d: expected %q, got %q", _fl(1), i, want[i], got[i])
		}
	}
}

func scriptedClient(replies ...string) (*Client, *wiretest.Conn, *wiretest.Dialer) {
	conn := wiretest.NewConn(replies...)
	d := &wiretest.Dialer{Conn: conn}
	c := NewClient("mx.test", 25, zap.NewNop())
	c.Dialer = d
	return c, conn, d
}

var testMessage = Message{From: "a@x.com", To: "b@y.com", Subject: "Hi", Body: "Body"}

func TestSendHappyPath(t *testing.T) {
	c, conn, _ := scriptedClient(
		"220 y.com SMTP Service Ready",
		"250 y.com Hello",
		"250 OK",
		"250 OK",
		"354 Start mail input; end with <CRLF>.<CRLF>",
		"250 OK: Message accepted for delivery",
		"221 Bye",
	)

	ok(t, c.Send(context.Background(), testMessage))
	expectWritten(t, conn,
		"HELO client",
		"MAIL FROM:<a@x.com>",
		"RCPT TO:<b@y.com>",
		"DATA",
		"From: a@x.com\r\nTo: b@y.com\r\nSubject: Hi\r\n\r\nBody\r\n.\r\n",
		"QUIT",
	)
	if conn.Closes() != 1 {
		t.Errorf("Expected connection to be closed once, got %d", conn.Closes())
	}
}

func TestSendQuitReplyIgnored(t *testing.T) {
	c, _, _ := scriptedClient("220 ready", "250 hi", "250 ok", "250 ok", "354 go", "250 queued")
	ok(t, c.Send(context.Background(), testMessage))
}

func TestSendLocalName(t *testing.T) {
	c, conn, _ := scriptedClient("220 ready", "500 no")
	c.LocalName = "laptop.example"
	expectKind(t, c.Send(context.Background(), testMessage), mailerr.ErrHandshake)
	expectWritten(t, conn, "HELO laptop.example")
}

func TestSendInvalidRecipient(t *testing.T) {
	for _, to := range []string{"not-an-address", "", "a b@c.com", "<b@y.com>", "b@", "@y.com"} {
		c, _, d := scriptedClient()
		msg := testMessage
		msg.To = to
		expectKind(t, c.Send(context.Background(), msg), mailerr.ErrValidation)
		if d.Dials() != 0 {
			t.Errorf("Recipient %q: expected no dial, got %d", to, d.Dials())
		}
	}
}

func TestSendSubjectLineBreak(t *testing.T) {
	c, _, d := scriptedClient()
	msg := testMessage
	msg.Subject = "Hi\r\nBcc: victim@y.com"
	expectKind(t, c.Send(context.Background(), msg), mailerr.ErrValidation)
	if d.Dials() != 0 {
		t.Errorf("Expected no dial, got %d", d.Dials())
	}
}

func TestSendInvalidSender(t *testing.T) {
	for _, from := range []string{"", "nobody", "a@x.com\r\nRCPT TO:<v@y.com>", "<a@x.com>"} {
		c, _, d := scriptedClient()
		msg := testMessage
		msg.From = from
		expectKind(t, c.Send(context.Background(), msg), mailerr.ErrValidation)
		if d.Dials() != 0 {
			t.Errorf("Sender %q: expected no dial, got %d", from, d.Dials())
		}
	}
}

func TestSendPhaseErrors(t *testing.T) {
	cases := []struct {
		replies []string
		kind    error
		writes  int
	}{
		{[]string{"554 IP address blocked"}, mailerr.ErrConnection, 0},
		{[]string{}, mailerr.ErrConnection, 0},
		{[]string{"220 ok", "502 no HELO"}, mailerr.ErrHandshake, 1},
		{[]string{"220 ok", "250 hi", "550 Sender address rejected"}, mailerr.ErrSenderRejected, 2},
		{[]string{"220 ok", "250 hi", "250 ok", "550 Recipient does not exist"}, mailerr.ErrRecipientNotFound, 3},
		{[]string{"220 ok", "250 hi", "250 ok", "550 mailbox blocked"}, mailerr.ErrRecipientBlocked, 3},
		{[]string{"220 ok", "250 hi", "250 ok", "451 try later"}, mailerr.ErrRecipientRejected, 3},
		{[]string{"220 ok", "250 hi", "250 ok", "250 ok", "503 Bad sequence"}, mailerr.ErrDataPhase, 4},
		{[]string{"220 ok", "250 hi", "250 ok", "250 ok", "354 go", "552 too big"}, mailerr.ErrDelivery, 5},
		{[]string{"220 ok", "250 hi", "250 ok", "250 ok", "354 go"}, mailerr.ErrDelivery, 5},
	}
	for i, tc := range cases {
		c, conn, _ := scriptedClient(tc.replies...)
		err := c.Send(context.Background(), testMessage)
		if !errors.Is(err, tc.kind) {
			t.Errorf("case %d: expected %v, got %v", i, tc.kind, err)
		}
		if got := len(conn.Written()); got != tc.writes {
			t.Errorf("case %d: expected %d writes, got %d: %q", i, tc.writes, got, conn.Written())
		}
		if conn.Closes() != 1 {
			t.Errorf("case %d: expected connection to be closed once, got %d", i, conn.Closes())
		}
	}
}

func TestRecipientNotFoundIsNotBlocked(t *testing.T) {
	c, _, _ := scriptedClient("220 ok", "250 hi", "250 ok", "550 5.1.1 User not found")
	err := c.Send(context.Background(), testMessage)
	expectKind(t, err, mailerr.ErrRecipientNotFound)
	if errors.Is(err, mailerr.ErrRecipientBlocked) {
		t.Errorf("Did not expect a blocked recipient: %v", err)
	}
	if want, got := "550 5.1.1 User not found", mailerr.Reply(err); want != got {
		t.Errorf("Expected reply %q, got %q", want, got)
	}
}

func TestSendWriteFailureClosesOnce(t *testing.T) {
	c, conn, _ := scriptedClient("220 ok", "250 hi", "250 ok")
	conn.FailWrite = "RCPT TO"

	expectKind(t, c.Send(context.Background(), testMessage), mailerr.ErrIO)
	if conn.Closes() != 1 {
		t.Errorf("Expected connection to be closed once, got %d", conn.Closes())
	}
	expectWritten(t, conn, "HELO client", "MAIL FROM:<a@x.com>")
}

func TestSendMultilineBanner(t *testing.T) {
	c, _, _ := scriptedClient(
		"220-y.com ESMTP",
		"220 no UCE",
		"250 hi", "250 ok", "250 ok", "354 go", "250 ok", "221 bye",
	)
	ok(t, c.Send(context.Background(), testMessage))
}

func TestSendDialFailure(t *testing.T) {
	c := NewClient("mx.test", 25, nil)
	c.Dialer = &wiretest.Dialer{Err: errors.New("no route to host")}
	expectKind(t, c.Send(context.Background(), testMessage), mailerr.ErrConnection)
}

type staticResolver struct {
	mxs    []*net.MX
	err    error
	domain string
}

func (r *staticResolver) LookupMX(ctx context.Context, domain string) ([]*net.MX, error) {
	r.domain = domain
	return r.mxs, r.err
}

type hostRecorder struct {
	wiretest.Dialer
	host string
}

func (d *hostRecorder) Dial(ctx context.Context, host string, port int) (wire.Conn, error) {
	d.host = host
	return d.Dialer.Dial(ctx, host, port)
}

func TestSendResolvesExchange(t *testing.T) {
	conn := wiretest.NewConn("220 ok", "250 hi", "250 ok", "250 ok", "354 go", "250 ok", "221 bye")
	d := &hostRecorder{Dialer: wiretest.Dialer{Conn: conn}}
	r := &staticResolver{mxs: []*net.MX{{Host: "mx1.y.com", Pref: 10}, {Host: "mx2.y.com", Pref: 20}}}

	c := NewClient("", 25, zap.NewNop())
	c.Dialer = d
	c.Resolver = r

	ok(t, c.Send(context.Background(), testMessage))
	if r.domain != "y.com" {
		t.Errorf("Expected lookup of y.com, got %q", r.domain)
	}
	if d.host != "mx1.y.com" {
		t.Errorf("Expected delivery to mx1.y.com, got %q", d.host)
	}
}

func TestSendResolveFailure(t *testing.T) {
	d := &wiretest.Dialer{}
	c := NewClient("", 25, zap.NewNop())
	c.Dialer = d
	c.Resolver = &staticResolver{err: errors.New("SERVFAIL")}

	expectKind(t, c.Send(context.Background(), testMessage), mailerr.ErrConnection)
	if d.Dials() != 0 {
		t.Errorf("Expected no dial, got %d", d.Dials())
	}

	c.Resolver = &staticResolver{}
	expectKind(t, c.Send(context.Background(), testMessage), mailerr.ErrConnection)
}
