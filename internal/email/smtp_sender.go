package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
)

// SMTPSender envia correos via SMTP.
type SMTPSender struct {
	host     string
	port     int
	username string
	password string
	from     string
	fromName string
	useTLS   bool
}

func NewSMTPSender(host string, port int, username, password, from, fromName string, useTLS bool) (*SMTPSender, error) {
	if strings.TrimSpace(host) == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if strings.TrimSpace(from) == "" {
		return nil, fmt.Errorf("smtp from is required")
	}
	if port == 0 {
		port = 587
	}
	return &SMTPSender{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		fromName: fromName,
		useTLS:   useTLS,
	}, nil
}

func (s *SMTPSender) SendProjectInvite(ctx context.Context, invite Invite) error {
	if strings.TrimSpace(invite.ToEmail) == "" {
		return fmt.Errorf("to email is required")
	}
	subject, body := inviteContent(invite)
	return s.send(ctx, invite.ToEmail, subject, body)
}

// inviteContent arma asunto y cuerpo en texto plano.
func inviteContent(invite Invite) (string, string) {
	project := strings.TrimSpace(invite.ProjectName)
	if project == "" {
		project = "a project"
	}
	subject := fmt.Sprintf("You were added to %s", project)

	greeting := "Hi"
	if name := strings.TrimSpace(invite.ToName); name != "" {
		greeting = "Hi " + name
	}
	who := "A teammate"
	if by := strings.TrimSpace(invite.InvitedBy); by != "" {
		who = by
	}
	body := fmt.Sprintf(
		"%s,\n\n%s added you to %s on SynergySphere.\nOpen the app to see it in your project list.\n",
		greeting, who, project,
	)
	return subject, body
}

func (s *SMTPSender) send(ctx context.Context, to, subject, body string) error {
	msg := buildMessage(s.from, s.fromName, to, subject, body)
	addr := net.JoinHostPort(s.host, fmt.Sprint(s.port))

	var auth smtp.Auth
	if s.username != "" {
		auth = smtp.PlainAuth("", s.username, s.password, s.host)
	}

	if !s.useTLS {
		return smtp.SendMail(addr, auth, s.from, []string{to}, []byte(msg))
	}

	dialer := &tls.Dialer{Config: &tls.Config{ServerName: s.host}}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, s.host)
	if err != nil {
		return err
	}
	defer client.Quit()

	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return err
		}
	}
	if err := client.Mail(s.from); err != nil {
		return err
	}
	if err := client.Rcpt(to); err != nil {
		return err
	}
	writer, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := writer.Write([]byte(msg)); err != nil {
		_ = writer.Close()
		return err
	}
	return writer.Close()
}

func buildMessage(from, fromName, to, subject, body string) string {
	fromHeader := from
	if strings.TrimSpace(fromName) != "" {
		fromHeader = fmt.Sprintf("%s <%s>", fromName, from)
	}

	headers := []string{
		fmt.Sprintf("From: %s", fromHeader),
		fmt.Sprintf("To: %s", to),
		fmt.Sprintf("Subject: %s", subject),
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
	}

	return strings.Join(headers, "\r\n") + "\r\n\r\n" + body
}
