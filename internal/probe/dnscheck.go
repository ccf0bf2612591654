package probe

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
	"time"
)

// DNSClass summarises why a host does or does not resolve.
type DNSClass string

const (
	DNSResolves    DNSClass = "RESOLVES"
	DNSNXDomain    DNSClass = "NXDOMAIN"
	DNSNoARecord   DNSClass = "NO_A_RECORD"
	DNSServfail    DNSClass = "SERVFAIL_or_TIMEOUT"
	DNSInvalidName DNSClass = "INVALID_NAME"
)

// DNSStatus is a best-effort explanation attached to DOWN transitions in
// the logs. It never influences UP/DOWN classification.
type DNSStatus struct {
	Host          string
	Class         DNSClass
	IPs           []string
	CNAME         string
	Nameservers   []string
	ResolverError string
}

// Resolver is the subset of *net.Resolver used by Diagnose.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
	LookupCNAME(ctx context.Context, host string) (string, error)
	LookupNS(ctx context.Context, name string) ([]*net.NS, error)
}

var dnsTimeout = 3 * time.Second

// Diagnose resolves the host of rawURL with the OS resolver.
func Diagnose(ctx context.Context, rawURL string) DNSStatus {
	return DiagnoseWith(ctx, net.DefaultResolver, rawURL)
}

func DiagnoseWith(ctx context.Context, r Resolver, rawURL string) DNSStatus {
	s := DNSStatus{Host: hostOf(rawURL)}
	if s.Host == "" || strings.Contains(s.Host, "://") {
		s.Class = DNSInvalidName
		return s
	}
	if ip := net.ParseIP(s.Host); ip != nil {
		s.Class = DNSResolves
		s.IPs = []string{ip.String()}
		return s
	}

	ctx, cancel := context.WithTimeout(ctx, dnsTimeout)
	defer cancel()

	addrs, err := r.LookupIPAddr(ctx, s.Host)
	switch {
	case err == nil && len(addrs) > 0:
		s.Class = DNSResolves
		for _, a := range addrs {
			s.IPs = append(s.IPs, a.IP.String())
		}
	case err != nil:
		s.ResolverError = err.Error()
		var de *net.DNSError
		if errors.As(err, &de) {
			if de.IsNotFound {
				s.Class = DNSNXDomain
			} else if de.IsTemporary || de.Timeout() {
				s.Class = DNSServfail
			}
		}
	}

	if cname, err := r.LookupCNAME(ctx, s.Host); err == nil && !strings.EqualFold(cname, s.Host+".") {
		s.CNAME = strings.TrimSuffix(cname, ".")
	}

	hasNS := false
	if ns, err := r.LookupNS(ctx, s.Host); err == nil && len(ns) > 0 {
		hasNS = true
		for _, n := range ns {
			s.Nameservers = append(s.Nameservers, strings.TrimSuffix(n.Host, "."))
		}
		if s.Class == DNSNXDomain {
			s.Class = DNSNoARecord
		}
	}

	if s.Class == "" {
		switch {
		case len(s.IPs) > 0:
			s.Class = DNSResolves
		case hasNS:
			s.Class = DNSNoARecord
		case s.ResolverError != "":
			s.Class = DNSServfail
		default:
			s.Class = DNSNXDomain
		}
	}
	return s
}

func hostOf(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return raw
	}
	return u.Hostname()
}
