package alerts

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strings"
	"time"
)

const (
	smtpSecurityNone     = "none"
	smtpSecurityStartTLS = "starttls"
	smtpSecurityTLS      = "tls"
)

// SMTPSenderOptions configures the SMTP relay used for alert emails.
type SMTPSenderOptions struct {
	Host          string
	Port          int
	Username      string
	Password      string
	From          string
	ReplyTo       string
	Security      string
	Timeout       time.Duration
	SkipTLSVerify bool
	Logger        *slog.Logger
}

// SMTPSender implements EmailSender over a plain SMTP session.
type SMTPSender struct {
	host          string
	port          int
	username      string
	password      string
	from          string
	replyTo       string
	security      string
	timeout       time.Duration
	skipTLSVerify bool
	logger        *slog.Logger
}

func NewSMTPSender(opts SMTPSenderOptions) *SMTPSender {
	security := strings.ToLower(strings.TrimSpace(opts.Security))
	switch security {
	case smtpSecurityNone, smtpSecurityStartTLS, smtpSecurityTLS:
	default:
		security = smtpSecurityStartTLS
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SMTPSender{
		host:          strings.TrimSpace(opts.Host),
		port:          opts.Port,
		username:      strings.TrimSpace(opts.Username),
		password:      opts.Password,
		from:          strings.TrimSpace(opts.From),
		replyTo:       strings.TrimSpace(opts.ReplyTo),
		security:      security,
		timeout:       timeout,
		skipTLSVerify: opts.SkipTLSVerify,
		logger:        logger.With("component", "alert_email_sender"),
	}
}

// Configured reports whether enough settings are present to attempt delivery.
func (s *SMTPSender) Configured() bool {
	return s.host != "" && s.port != 0 && s.from != ""
}

// Send delivers one message to a single recipient.
func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	to = strings.TrimSpace(to)
	if to == "" {
		return fmt.Errorf("email recipient is required")
	}
	if !s.Configured() {
		return fmt.Errorf("smtp is not configured")
	}
	message := s.buildMessage(to, subject, body)
	if err := s.sendEmail(ctx, to, message); err != nil {
		return fmt.Errorf("email delivery to %s failed: %w", to, err)
	}
	s.logger.Debug("alert email sent", "to", to)
	return nil
}

func (s *SMTPSender) buildMessage(recipient, subject, body string) []byte {
	headers := []string{
		fmt.Sprintf("From: %s", s.from),
		fmt.Sprintf("To: %s", recipient),
		fmt.Sprintf("Subject: %s", subject),
		fmt.Sprintf("Date: %s", time.Now().Format(time.RFC1123Z)),
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
	}
	if s.replyTo != "" {
		headers = append(headers, fmt.Sprintf("Reply-To: %s", s.replyTo))
	}
	return []byte(strings.Join(headers, "\r\n") + "\r\n\r\n" + body)
}

func (s *SMTPSender) sendEmail(ctx context.Context, recipient string, message []byte) error {
	client, err := s.connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Mail(s.from); err != nil {
		return err
	}
	if err := client.Rcpt(recipient); err != nil {
		return err
	}
	writer, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := writer.Write(message); err != nil {
		_ = writer.Close()
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}
	return client.Quit()
}

func (s *SMTPSender) connect(ctx context.Context) (*smtp.Client, error) {
	address := net.JoinHostPort(s.host, fmt.Sprint(s.port))
	dialer := &net.Dialer{Timeout: s.timeout}
	var (
		conn net.Conn
		err  error
	)
	if s.security == smtpSecurityTLS {
		tlsDialer := &tls.Dialer{
			NetDialer: dialer,
			Config:    &tls.Config{ServerName: s.host, InsecureSkipVerify: s.skipTLSVerify}, // #nosec G402
		}
		conn, err = tlsDialer.DialContext(ctx, "tcp", address)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", address)
	}
	if err != nil {
		return nil, err
	}
	deadline := time.Now().Add(s.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	client, err := smtp.NewClient(conn, s.host)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if s.security == smtpSecurityStartTLS {
		if ok, _ := client.Extension("STARTTLS"); !ok {
			_ = client.Close()
			return nil, fmt.Errorf("smtp server does not support STARTTLS")
		}
		tlsConfig := &tls.Config{ServerName: s.host, InsecureSkipVerify: s.skipTLSVerify} // #nosec G402
		if err := client.StartTLS(tlsConfig); err != nil {
			_ = client.Close()
			return nil, err
		}
	}
	if s.username != "" {
		auth := smtp.PlainAuth("", s.username, s.password, s.host)
		if err := client.Auth(auth); err != nil {
			_ = client.Close()
			return nil, err
		}
	}
	return client, nil
}

// buildAlertEmail renders the subject and plain-text body of an alert email.
func buildAlertEmail(n AlertNotification) (string, string) {
	subject := fmt.Sprintf("[Bargn] %s alert: %s", n.AlertType.Label(), n.FunnelName)
	lines := []string{
		fmt.Sprintf("Funnel: %s", n.FunnelName),
		fmt.Sprintf("Metric: %s", n.AlertType.Label()),
		fmt.Sprintf("Current value: %.1f%%", n.MetricValue),
		fmt.Sprintf("Threshold: %s %g%%", n.Comparison, n.Threshold),
		fmt.Sprintf("Triggered at: %s", n.TriggeredAt.UTC().Format(time.RFC3339)),
	}
	if n.Message != "" {
		lines = append(lines, "", n.Message)
	}
	if n.DashboardURL != "" {
		lines = append(lines, "", fmt.Sprintf("View: %s", n.DashboardURL))
	}
	return subject, strings.Join(lines, "\n") + "\n"
}
