// Package mailer delivers verification-code messages over SMTP.
//
// A fresh client is dialed per send from the settings snapshot the caller
// passes in, so a credentials update in the Settings Store takes effect on
// the very next message — there is no long-lived shared transport.
package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"codegate"
)

// SMTP sends one message per call over a short-lived connection.
type SMTP struct {
	// Timeout bounds dial and TLS handshake.
	Timeout time.Duration
}

func New(timeout time.Duration) *SMTP {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SMTP{Timeout: timeout}
}

// Send dials the configured host, authenticates and submits a multipart
// text+html message to a single recipient.
func (m *SMTP) Send(ctx context.Context, cfg codegate.SMTPConfig, to, subject, textBody, htmlBody string) error {
	if cfg.Host == "" || to == "" {
		return errors.New("mailer: missing host or recipient")
	}

	raw, err := buildMessage(cfg, to, subject, textBody, htmlBody)
	if err != nil {
		return err
	}

	client, err := m.dial(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	if cfg.User != "" {
		if err := client.Auth(sasl.NewPlainClient("", cfg.User, cfg.Password)); err != nil {
			return fmt.Errorf("mailer: auth: %w", err)
		}
	}
	if err := client.SendMail(cfg.User, []string{to}, bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("mailer: send: %w", err)
	}
	return client.Quit()
}

func (m *SMTP) dial(ctx context.Context, cfg codegate.SMTPConfig) (*smtp.Client, error) {
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	dialer := &net.Dialer{Timeout: m.Timeout}

	if cfg.Secure {
		tlsDialer := &tls.Dialer{NetDialer: dialer, Config: &tls.Config{ServerName: cfg.Host}}
		conn, err := tlsDialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("mailer: dial: %w", err)
		}
		return smtp.NewClient(conn), nil
	}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("mailer: dial: %w", err)
	}
	// Opportunistic STARTTLS upgrade; the handshake runs on the first command.
	return smtp.NewClientStartTLS(conn, &tls.Config{ServerName: cfg.Host})
}

func buildMessage(cfg codegate.SMTPConfig, to, subject, textBody, htmlBody string) ([]byte, error) {
	var buf bytes.Buffer

	from := []*mail.Address{{Name: cfg.SenderName, Address: cfg.User}}
	rcpt := []*mail.Address{{Address: to}}

	var header mail.Header
	header.SetDate(time.Now())
	header.SetAddressList("From", from)
	header.SetAddressList("To", rcpt)
	header.SetSubject(subject)

	mw, err := mail.CreateWriter(&buf, header)
	if err != nil {
		return nil, err
	}

	iw, err := mw.CreateInline()
	if err != nil {
		return nil, err
	}

	var textHeader mail.InlineHeader
	textHeader.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	pw, err := iw.CreatePart(textHeader)
	if err != nil {
		return nil, err
	}
	if _, err := io.WriteString(pw, textBody); err != nil {
		return nil, err
	}
	pw.Close()

	if htmlBody != "" {
		var htmlHeader mail.InlineHeader
		htmlHeader.SetContentType("text/html", map[string]string{"charset": "utf-8"})
		pw, err = iw.CreatePart(htmlHeader)
		if err != nil {
			return nil, err
		}
		if _, err := io.WriteString(pw, htmlBody); err != nil {
			return nil, err
		}
		pw.Close()
	}

	iw.Close()
	mw.Close()
	return buf.Bytes(), nil
}
