package notificator

import (
	"context"
	"fmt"
	"net/smtp"
	"strconv"

	"github.com/core-coin/adsponsor/pkg/logger"
)

const emailSubject = "Ad sponsor notification"

type EmailNotificator struct {
	logger *logger.Logger

	SMTPHost   string
	SMTPPort   int
	SMTPSender string
	SMTPAuth   smtp.Auth
	Recipient  string

	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewEmailNotificator(logger *logger.Logger, SMTPHost string, SMTPPort int, SMTPUser string, SMTPPassword string, SMTPSender string, recipient string) *EmailNotificator {
	auth := smtp.PlainAuth(
		"",
		SMTPUser,
		SMTPPassword,
		SMTPHost,
	)

	return &EmailNotificator{
		logger:     logger,
		SMTPAuth:   auth,
		SMTPHost:   SMTPHost,
		SMTPPort:   SMTPPort,
		SMTPSender: SMTPSender,
		Recipient:  recipient,
		sendMail:   smtp.SendMail,
	}
}

func (e *EmailNotificator) Name() string {
	return "email"
}

// Send mails message to the configured recipient. net/smtp has no context
// support, so ctx is only checked before dialing.
func (e *EmailNotificator) Send(ctx context.Context, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	addr := fmt.Sprintf("%s:%s", e.SMTPHost, strconv.Itoa(e.SMTPPort))
	if err := e.sendMail(addr, e.SMTPAuth, e.SMTPSender, []string{e.Recipient}, e.buildMessage(message)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func (e *EmailNotificator) buildMessage(body string) []byte {
	return []byte(fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		e.SMTPSender,
		e.Recipient,
		emailSubject,
		body,
	))
}
