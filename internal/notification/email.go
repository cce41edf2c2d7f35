package notification

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"time"
)

// DefaultTimeout bounds the whole SMTP exchange, dial included.
const DefaultTimeout = 10 * time.Second

type EmailConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	FromName string
	Timeout  time.Duration
}

// EmailService delivers verification codes over SMTP. It is a collaborator:
// the account service only knows that a code gets sent and whether sending
// failed.
type EmailService struct {
	config EmailConfig
}

func NewEmailService(config EmailConfig) *EmailService {
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	return &EmailService{config: config}
}

// SendVerificationCode emails a verification code to a freshly registered
// or re-registered account.
func (s *EmailService) SendVerificationCode(to, handle, code string, ttl time.Duration) error {
	subject := "Your verification code"
	body := fmt.Sprintf(`<html><body>
		<h2>Verify your account</h2>
		<p>Hello @%s,</p>
		<p>Your verification code is:</p>
		<p style="font-size:24px;letter-spacing:4px"><strong>%s</strong></p>
		<p>The code expires in %s. If you did not register, you can ignore this email.</p>
	</body></html>`, handle, code, formatTTL(ttl))
	return s.sendEmail(to, subject, body)
}

// sendEmail drives the SMTP dialog itself instead of smtp.SendMail so the
// connection carries a deadline. A relay that accepts the dial but stops
// responding fails the request instead of hanging it.
func (s *EmailService) sendEmail(to, subject, body string) error {
	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		from, to, subject, body)

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	conn, err := net.DialTimeout("tcp", addr, s.config.Timeout)
	if err != nil {
		return fmt.Errorf("dial smtp relay: %w", err)
	}
	if err := conn.SetDeadline(time.Now().Add(s.config.Timeout)); err != nil {
		conn.Close()
		return fmt.Errorf("set smtp deadline: %w", err)
	}

	client, err := smtp.NewClient(conn, s.config.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp greeting: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: s.config.Host}); err != nil {
			return fmt.Errorf("smtp starttls: %w", err)
		}
	}
	if s.config.User != "" {
		if ok, _ := client.Extension("AUTH"); ok {
			auth := smtp.PlainAuth("", s.config.User, s.config.Password, s.config.Host)
			if err := client.Auth(auth); err != nil {
				return fmt.Errorf("smtp auth: %w", err)
			}
		}
	}

	if err := client.Mail(s.config.From); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("smtp rcpt to: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write([]byte(msg)); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp close data: %w", err)
	}
	return client.Quit()
}

func formatTTL(ttl time.Duration) string {
	if ttl >= time.Hour {
		return fmt.Sprintf("%d hour(s)", int(ttl.Hours()))
	}
	return fmt.Sprintf("%d minute(s)", int(ttl.Minutes()))
}
