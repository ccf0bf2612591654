package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/hamed0406/uptimenotifier/internal/config"
)

// SendMailFunc delivers one message through the relay at addr. It must
// give up when ctx ends.
type SendMailFunc func(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailSender mails through an SMTP relay with PLAIN auth. The account
// user is also the From address.
type EmailSender struct {
	Addr     string
	From     string
	auth     smtp.Auth
	sendMail SendMailFunc
}

func NewEmailSender(ch config.EmailChannel) (*EmailSender, error) {
	if missing := ch.Props.Missing("uid", "pwd"); len(missing) > 0 {
		return nil, fmt.Errorf("%w: email missing %s", ErrIncompleteConfig, strings.Join(missing, ", "))
	}
	host := ch.Host
	if host == "" {
		host = config.DefaultSMTPHost
	}
	port := ch.Port
	if port == 0 {
		port = config.DefaultSMTPPort
	}
	uid := ch.Props["uid"]
	return &EmailSender{
		Addr:     net.JoinHostPort(host, strconv.Itoa(port)),
		From:     uid,
		auth:     smtp.PlainAuth("", uid, ch.Props["pwd"], host),
		sendMail: sendMailContext,
	}, nil
}

// WithSendMail swaps the transport; used by tests and by callers that
// need a custom relay.
func (e *EmailSender) WithSendMail(fn SendMailFunc) *EmailSender {
	cp := *e
	cp.sendMail = fn
	return &cp
}

func (e *EmailSender) Send(ctx context.Context, m Message) error {
	msg := buildMail(e.From, m.To, m.Subject, m.Body, time.Now())
	if err := e.sendMail(ctx, e.Addr, e.auth, e.From, []string{m.To}, msg); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("email: %w", ctxErr)
		}
		// The conn deadline can fire a moment before ctx's own timer.
		if dl, ok := ctx.Deadline(); ok && !time.Now().Before(dl) {
			return fmt.Errorf("email: %w", context.DeadlineExceeded)
		}
		return fmt.Errorf("email: send: %w", err)
	}
	return nil
}

// sendMailContext is smtp.SendMail on a connection owned by ctx: the
// dial honours ctx, and the deadline (or a cancel) closes off every read
// and write of the exchange.
func sendMailContext(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Unix(1, 0)) })
	defer stop()

	c, err := smtp.NewClient(conn, host)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: host}); err != nil {
			return err
		}
	}
	if a != nil {
		if ok, _ := c.Extension("AUTH"); !ok {
			return errors.New("smtp: server doesn't support AUTH")
		}
		if err := c.Auth(a); err != nil {
			return err
		}
	}
	if err := c.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

func buildMail(from, to, subject, body string, at time.Time) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", headerValue(from))
	fmt.Fprintf(&b, "To: %s\r\n", headerValue(to))
	fmt.Fprintf(&b, "Subject: %s\r\n", headerValue(subject))
	fmt.Fprintf(&b, "Date: %s\r\n", at.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(body)
	b.WriteString("\r\n")
	return []byte(b.String())
}

// headerValue strips line breaks so values cannot inject headers.
func headerValue(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}
