// mailclient
// Copyright 2025 Blue Static <https://www.bluestatic.org>
// This program is free software licensed under the GNU General Public License,
// version 3.0. The full text of the license can be found in LICENSE.txt.
// SPDX-License-Identifier: GPL-3.0-only

package smtp

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// MXResolver finds the mail exchanges for a domain, most preferred first.
type MXResolver interface {
	LookupMX(ctx context.Context, domain string) ([]*net.MX, error)
}

// DNSResolver queries nameservers directly for MX records.
type DNSResolver struct {
	Nameservers []string
	client      *dns.Client
}

// NewDNSResolver returns a resolver that asks `nameservers` ("host:port") in
// order. With none given, the servers from /etc/resolv.conf are used.
func NewDNSResolver(nameservers []string, timeout time.Duration) *DNSResolver {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	if len(nameservers) == 0 {
		nameservers = systemNameservers()
	}
	return &DNSResolver{
		Nameservers: nameservers,
		client:      &dns.Client{Timeout: timeout},
	}
}

func systemNameservers() []string {
	cfg, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil || len(cfg.Servers) == 0 {
		return []string{"8.8.8.8:53", "1.1.1.1:53"}
	}
	servers := make([]string, 0, len(cfg.Servers))
	for _, s := range cfg.Servers {
		servers = append(servers, net.JoinHostPort(s, cfg.Port))
	}
	return servers
}

// LookupMX returns the MX hosts of `domain` sorted by preference. A domain
// without MX records is its own exchange (RFC 5321 § 5.1).
func (r *DNSResolver) LookupMX(ctx context.Context, domain string) ([]*net.MX, error) {
	q := new(dns.Msg)
	q.SetQuestion(dns.Fqdn(domain), dns.TypeMX)

	var lastErr error
	for _, ns := range r.Nameservers {
		in, _, err := r.client.ExchangeContext(ctx, q, ns)
		if err != nil {
			lastErr = err
			continue
		}
		if in.Rcode != dns.RcodeSuccess {
			lastErr = fmt.Errorf("lookup MX %s: %s", domain, dns.RcodeToString[in.Rcode])
			continue
		}

		var mxs []*net.MX
		for _, rr := range in.Answer {
			if mx, ok := rr.(*dns.MX); ok {
				mxs = append(mxs, &net.MX{
					Host: strings.TrimSuffix(mx.Mx, "."),
					Pref: mx.Preference,
				})
			}
		}
		if len(mxs) == 0 {
			return []*net.MX{{Host: domain}}, nil
		}
		sort.SliceStable(mxs, func(i, j int) bool { return mxs[i].Pref < mxs[j].Pref })
		return mxs, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("lookup MX %s: no nameservers", domain)
	}
	return nil, lastErr
}
