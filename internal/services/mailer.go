package services

import (
	"fmt"
	"net/smtp"
	"os"
)

// Mailer delivers password reset tokens. Handlers depend on the interface so
// tests can capture the token instead of speaking SMTP.
type Mailer interface {
	SendPasswordReset(to string, token string) error
}

// SMTPMailer sends through a STARTTLS-capable SMTP relay configured by
// SMTP_HOST, SMTP_PORT, SMTP_USER and SMTP_PASSWORD.
type SMTPMailer struct{}

func NewSMTPMailer() *SMTPMailer {
	return &SMTPMailer{}
}

func (m *SMTPMailer) SendPasswordReset(to string, token string) error {
	host := os.Getenv("SMTP_HOST")
	port := os.Getenv("SMTP_PORT")
	user := os.Getenv("SMTP_USER")
	pass := os.Getenv("SMTP_PASSWORD")

	if host == "" || user == "" {
		return fmt.Errorf("smtp is not configured")
	}

	if port == "" {
		port = "587"
	}

	body := fmt.Sprintf(`Hi from the UnderLeaf Team!

There was a password reset associated with your email. If you did not request this, you can safely ignore this email.

Your reset token is: %s

This code expires in 15 minutes.

Thanks!
The UnderLeaf Team`, token)

	msg := []byte(fmt.Sprintf("From: UnderLeaf Team <%s>\r\nTo: %s\r\nSubject: Password Reset Request\r\n\r\n%s\r\n", user, to, body))

	auth := smtp.PlainAuth("", user, pass, host)

	if err := smtp.SendMail(host+":"+port, auth, user, []string{to}, msg); err != nil {
		return fmt.Errorf("failed to send reset email: %w", err)
	}

	return nil
}
