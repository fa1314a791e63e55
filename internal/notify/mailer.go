package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"
)

var (
	// ErrDelivery is returned for any failed delivery that is not a
	// missing recipient.
	ErrDelivery = errors.New("email delivery failed")
	// ErrRecipientNotFound is returned when the mail server rejects the
	// destination address as nonexistent. It is never retried.
	ErrRecipientNotFound = errors.New("recipient address does not exist")
)

// Mailer sends a verification code to an address.
type Mailer interface {
	SendCode(ctx context.Context, to, code string) error
}

// SMTPConfig describes the outgoing mail server.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

// SMTPMailer delivers codes over SMTP with implicit TLS.
type SMTPMailer struct {
	config SMTPConfig
}

// NewSMTPMailer creates a new SMTPMailer.
func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &SMTPMailer{config: cfg}
}

var codeTemplate = template.Must(template.New("code").Parse(`<div style="width:500px;margin:auto;">
Hello!<br>
Welcome to Akun.<br>
This is your email verification code. It is valid for <b>5</b> minutes and can be used only once.<br>
Enter the six characters below in the verification box to continue.<br>
<p><b style="font-size:20px">{{.Code}}</b></p>
If you did not request this code you can safely ignore this email.<br>
The Akun team<br>
</div>`))

// Message renders the subject and HTML body for code.
func Message(code string) (subject string, body string, err error) {
	var buf bytes.Buffer
	if err := codeTemplate.Execute(&buf, struct{ Code string }{Code: code}); err != nil {
		return "", "", fmt.Errorf("render email body: %w", err)
	}
	return "Akun verification code: " + code, buf.String(), nil
}

// SendCode delivers code to to.
func (m *SMTPMailer) SendCode(ctx context.Context, to, code string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	subject, body, err := Message(code)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", m.config.From)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
	msg.WriteString(body)

	return classify(m.send(ctx, to, msg.Bytes()))
}

func (m *SMTPMailer) send(ctx context.Context, to string, msg []byte) error {
	addr := net.JoinHostPort(m.config.Host, fmt.Sprint(m.config.Port))
	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: m.config.Timeout},
		Config:    &tls.Config{ServerName: m.config.Host},
	}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("connect to SMTP server: %w", err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	} else {
		conn.SetDeadline(time.Now().Add(m.config.Timeout))
	}

	client, err := smtp.NewClient(conn, m.config.Host)
	if err != nil {
		return fmt.Errorf("create SMTP client: %w", err)
	}
	defer client.Close()

	if m.config.Username != "" {
		auth := smtp.PlainAuth("", m.config.Username, m.config.Password, m.config.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("authenticate: %w", err)
		}
	}
	if err := client.Mail(m.config.From); err != nil {
		return fmt.Errorf("set sender: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("set recipient: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("open data writer: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close data writer: %w", err)
	}
	return client.Quit()
}

// classify maps an SMTP failure onto ErrRecipientNotFound or ErrDelivery.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		switch protoErr.Code {
		case 550, 551, 553:
			return fmt.Errorf("%w: %v", ErrRecipientNotFound, err)
		}
	}
	if strings.Contains(strings.ToLower(err.Error()), "mailbox unavailable") {
		return fmt.Errorf("%w: %v", ErrRecipientNotFound, err)
	}
	return fmt.Errorf("%w: %v", ErrDelivery, err)
}
