package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hamed0406/uptimenotifier/internal/config"
)

// SMSSender texts through an HTTP GET gateway (site2sms-style API):
// credentials and message go in the query string, the API token in the
// X-Mashape-Authorization header.
type SMSSender struct {
	Endpoint  string
	UID       string
	Password  string
	AuthToken string
	Client    *http.Client
}

func NewSMSSender(ch config.SMSChannel) (*SMSSender, error) {
	if missing := ch.Props.Missing("uid", "pwd", "auth-token"); len(missing) > 0 {
		return nil, fmt.Errorf("%w: sms missing %s", ErrIncompleteConfig, strings.Join(missing, ", "))
	}
	endpoint := ch.Endpoint
	if endpoint == "" {
		endpoint = config.DefaultSMSEndpoint
	}
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, fmt.Errorf("%w: sms endpoint: %v", ErrIncompleteConfig, err)
	}
	return &SMSSender{
		Endpoint:  endpoint,
		UID:       ch.Props["uid"],
		Password:  ch.Props["pwd"],
		AuthToken: ch.Props["auth-token"],
		Client:    &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (s *SMSSender) Send(ctx context.Context, m Message) error {
	u, err := url.Parse(s.Endpoint)
	if err != nil {
		return fmt.Errorf("sms: endpoint: %w", err)
	}
	q := u.Query()
	q.Set("uid", s.UID)
	q.Set("pwd", s.Password)
	q.Set("phone", m.To)
	q.Set("msg", m.Body)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("sms: create request: %w", err)
	}
	req.Header.Set("X-Mashape-Authorization", s.AuthToken)

	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("sms: send request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("sms: unexpected status %d", resp.StatusCode)
	}
	return nil
}
