package notifier

import (
	"fmt"
	"net/smtp"

	"github.com/recurro/recurro/pkg/logger"
)

type EmailNotifier struct {
	logger *logger.Logger

	SMTPHost   string
	SMTPPort   int
	SMTPUser   string
	SMTPSender string

	SMTPAuth smtp.Auth
}

func NewEmailNotifier(log *logger.Logger, host string, port int, user, password, sender string) *EmailNotifier {
	auth := smtp.PlainAuth(
		"",
		user,
		password,
		host,
	)

	return &EmailNotifier{
		logger:     log,
		SMTPAuth:   auth,
		SMTPHost:   host,
		SMTPPort:   port,
		SMTPUser:   user,
		SMTPSender: sender,
	}
}

func (e *EmailNotifier) SendNotification(to, message string) {
	addr := fmt.Sprintf("%s:%d", e.SMTPHost, e.SMTPPort)
	msg := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		e.SMTPSender,
		to,
		"Recurro payment notification",
		message,
	)
	if err := smtp.SendMail(addr, e.SMTPAuth, e.SMTPSender, []string{to}, []byte(msg)); err != nil {
		e.logger.Error("Failed to send email notification: ", err)
	}
}
