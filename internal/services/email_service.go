package services

import (
	"fmt"
	"os"

	"deadliner/internal/jobs"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

type EmailService struct {
	client    *sendgrid.Client
	fromEmail string
	fromName  string
}

func NewEmailService() *EmailService {
	apiKey := os.Getenv("SENDGRID_API_KEY")
	fromEmail := os.Getenv("SENDGRID_NOTIFICATIONS_FROM_EMAIL")
	fromName := os.Getenv("SENDGRID_FROM_NAME")

	client := sendgrid.NewSendClient(apiKey)

	return &EmailService{
		client:    client,
		fromEmail: fromEmail,
		fromName:  fromName,
	}
}

// SendDeadlineReminder emails the user about an assignment due soon
func (s *EmailService) SendDeadlineReminder(toEmail string, payload jobs.Payload) error {
	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail(toEmail, toEmail)
	subject := "Deadline Reminder"

	deadline := payload.Deadline.Format("Mon Jan 2, 3:04 PM")
	plainContent := fmt.Sprintf("Don't forget to upload %s for %s. Deadline is %s.",
		payload.AssignmentName, payload.CourseName, deadline)
	htmlContent := fmt.Sprintf("<p>Don't forget to upload <strong>%s</strong> for %s.</p><p>Deadline is %s.</p>",
		payload.AssignmentName, payload.CourseName, deadline)

	message := mail.NewSingleEmail(from, subject, to, plainContent, htmlContent)
	response, err := s.client.Send(message)
	if err != nil {
		return err
	}

	if response.StatusCode >= 400 {
		return fmt.Errorf("failed to send email to %s: %d", toEmail, response.StatusCode)
	}

	return nil
}
