package email

import (
	"fmt"
	"net/smtp"
	"os"
)

func SendEmail(to string, subject string, body string) error {
	smtpServer := os.Getenv("SMTP_SERVER")
	smtpPort := os.Getenv("SMTP_PORT")
	smtpUser := os.Getenv("SMTP_USER")
	smtpPass := os.Getenv("SMTP_PASS")
	fromAddr := os.Getenv("FROM_ADDR")
	fromName := os.Getenv("FROM_NAME")

	if smtpServer == "" || smtpPort == "" || smtpUser == "" || smtpPass == "" || fromAddr == "" || fromName == "" {
		return fmt.Errorf(
			"missing required SMTP environment variables: SMTP_SERVER=%s, SMTP_PORT=%s, SMTP_USER=%s, FROM_ADDR=%s, FROM_NAME=%s",
			smtpServer, smtpPort, smtpUser, fromAddr, fromName)
	}
	msg := []byte(fmt.Sprintf("From: %s <%s>\r\n"+
		"To: %s\r\n"+
		"Subject: %s\r\n"+
		"Content-Type: text/plain; charset=UTF-8\r\n\r\n"+
		"%s",
		fromName, fromAddr, to, subject, body))

	auth := smtp.PlainAuth("", smtpUser, smtpPass, smtpServer)

	err := smtp.SendMail(smtpServer+":"+smtpPort, auth, fromAddr, []string{to}, msg)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}

func SendPaymentReceipt(to string, orderID string, planName string, amount int64) error {
	subject := "Payment received for your Oasis subscription"
	body := fmt.Sprintf("We have received your payment of IDR %d for the %s.\n\n"+
		"Order ID: %s\n\n"+
		"Your subscription is now active. Thank you!", amount, planName, orderID)
	return SendEmail(to, subject, body)
}

func SendPaymentFailed(to string, orderID string, reason string) error {
	subject := "Your Oasis payment did not complete"
	body := fmt.Sprintf("Your payment for order %s did not complete (%s).\n\n"+
		"No charge was made. You can start a new checkout at any time.", orderID, reason)
	return SendEmail(to, subject, body)
}
