package probe

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// TLSStatus describes the certificate an https entity presents and
// whether its plain http address redirects to https. Like DNSStatus it
// never influences UP/DOWN.
type TLSStatus struct {
	Host      string
	Valid     bool
	NotAfter  time.Time
	ExpiresIn time.Duration
	Redirect  bool
	Error     string
}

type TLSChecker struct {
	Timeout time.Duration
	// RootCAs overrides the system pool.
	RootCAs *x509.CertPool
	// HTTPAddr is dialled for the redirect check; empty means host:80.
	HTTPAddr string

	client *http.Client
	now    func() time.Time
}

func NewTLSChecker(timeout time.Duration) *TLSChecker {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &TLSChecker{
		Timeout: timeout,
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		now: time.Now,
	}
}

// CheckTLS inspects rawURL with the system trust store.
func CheckTLS(ctx context.Context, rawURL string) TLSStatus {
	return NewTLSChecker(10*time.Second).Check(ctx, rawURL)
}

func (c *TLSChecker) Check(ctx context.Context, rawURL string) TLSStatus {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return TLSStatus{Host: hostOf(rawURL), Error: "invalid url"}
	}
	st := TLSStatus{Host: u.Hostname()}
	if u.Scheme != "https" {
		st.Error = "not an https url"
		return st
	}
	c.certificate(ctx, u, &st)
	st.Redirect = c.redirects(ctx, st.Host)
	return st
}

func (c *TLSChecker) certificate(ctx context.Context, u *url.URL, st *TLSStatus) {
	port := u.Port()
	if port == "" {
		port = "443"
	}
	d := tls.Dialer{
		NetDialer: &net.Dialer{Timeout: c.Timeout},
		Config:    &tls.Config{ServerName: st.Host, RootCAs: c.RootCAs},
	}
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(st.Host, port))
	if err != nil {
		st.Error = err.Error()
		return
	}
	defer conn.Close()

	tc, ok := conn.(*tls.Conn)
	if !ok {
		st.Error = "not a tls connection"
		return
	}
	certs := tc.ConnectionState().PeerCertificates
	if len(certs) == 0 {
		st.Error = "no peer certificates"
		return
	}
	leaf := certs[0]
	now := c.now()
	st.NotAfter = leaf.NotAfter
	st.ExpiresIn = leaf.NotAfter.Sub(now)

	if now.Before(leaf.NotBefore) || now.After(leaf.NotAfter) {
		st.Error = "certificate outside its validity period"
		return
	}
	if err := leaf.VerifyHostname(st.Host); err != nil {
		st.Error = err.Error()
		return
	}
	st.Valid = true
}

func (c *TLSChecker) redirects(ctx context.Context, host string) bool {
	addr := c.HTTPAddr
	if addr == "" {
		addr = net.JoinHostPort(host, "80")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+addr+"/", nil)
	if err != nil {
		return false
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 300 && resp.StatusCode < 400 &&
		strings.HasPrefix(resp.Header.Get("Location"), "https://")
}
