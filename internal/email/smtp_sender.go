package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"
	"time"
)

// SMTPSender envía correos vía SMTP.
type SMTPSender struct {
	host     string
	port     int
	username string
	password string
	from     string
	fromName string
	useTLS   bool
	send     func(msg Message) error
}

// Message es un correo de texto plano ya armado.
type Message struct {
	To      string
	Subject string
	Body    string
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
	s := &SMTPSender{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		fromName: fromName,
		useTLS:   useTLS,
	}
	s.send = s.deliver
	return s, nil
}

func (s *SMTPSender) Enabled() bool { return true }

func (s *SMTPSender) SendWelcome(_ context.Context, toEmail, name string) error {
	body := fmt.Sprintf(
		"Hi %s,\n\nWelcome aboard! Your account is ready and you can start writing right away.\n",
		displayName(name),
	)
	return s.dispatch(Message{To: toEmail, Subject: "Welcome to the blog", Body: body})
}

func (s *SMTPSender) SendEmailVerification(_ context.Context, toEmail, name, link string, expiresAt time.Time) error {
	body := fmt.Sprintf(
		"Hi %s,\n\nConfirm your email address by opening the link below:\n%s\n\nThe link expires at %s UTC.\n",
		displayName(name),
		link,
		expiresAt.UTC().Format(time.RFC3339),
	)
	return s.dispatch(Message{To: toEmail, Subject: "Verify your email", Body: body})
}

func (s *SMTPSender) SendPasswordReset(_ context.Context, toEmail, name, link string, expiresAt time.Time) error {
	body := fmt.Sprintf(
		"Hi %s,\n\nSomeone asked to reset your password. If it was you, open the link below:\n%s\n\nThe link expires at %s UTC. If you did not ask for this, ignore this email.\n",
		displayName(name),
		link,
		expiresAt.UTC().Format(time.RFC3339),
	)
	return s.dispatch(Message{To: toEmail, Subject: "Reset your password", Body: body})
}

func (s *SMTPSender) dispatch(msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return fmt.Errorf("to email is required")
	}
	return s.send(msg)
}

func (s *SMTPSender) deliver(m Message) error {
	msg := buildMessage(s.from, s.fromName, m.To, m.Subject, m.Body)
	addr := fmt.Sprintf("%s:%d", s.host, s.port)

	var auth smtp.Auth
	if s.username != "" {
		auth = smtp.PlainAuth("", s.username, s.password, s.host)
	}

	if !s.useTLS {
		return smtp.SendMail(addr, auth, s.from, []string{m.To}, []byte(msg))
	}

	conn, err := tls.Dial("tcp", addr, &tls.Config{
		ServerName: s.host,
	})
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
	if err := client.Rcpt(m.To); err != nil {
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

func displayName(name string) string {
	if strings.TrimSpace(name) == "" {
		return "there"
	}
	return strings.TrimSpace(name)
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
