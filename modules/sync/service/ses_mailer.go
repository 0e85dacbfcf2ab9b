package service

import (
	"context"
	"fmt"
	"strings"

	"seva-signup/core/config"
	"seva-signup/core/logger"
	signupent "seva-signup/modules/signup/entity"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// SESMailer sends transactional volunteer emails. It never includes the
// cancellation link; the raw secret exists only in the reservation response.
type SESMailer struct {
	client    *sesv2.Client
	fromEmail string
	fromName  string
}

func NewSESMailer(cfg config.AWSConfig) *SESMailer {
	client := sesv2.New(sesv2.Options{
		Region:      cfg.Region,
		Credentials: credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
	})
	return &SESMailer{
		client:    client,
		fromEmail: cfg.SESFromEmail,
		fromName:  cfg.SESFromName,
	}
}

func (m *SESMailer) SendConfirmation(ctx context.Context, d *signupent.SignupDetail) (string, error) {
	subject := fmt.Sprintf("You're confirmed: %s on %s", d.Seva.Name, d.Day.Date.Format("Monday, Jan 2"))
	body := confirmationBody(d)
	return m.send(ctx, d.Signup.Email, subject, body)
}

func (m *SESMailer) SendCancellation(ctx context.Context, d *signupent.SignupDetail) (string, error) {
	subject := fmt.Sprintf("Cancelled: %s on %s", d.Seva.Name, d.Day.Date.Format("Monday, Jan 2"))
	body := cancellationBody(d)
	return m.send(ctx, d.Signup.Email, subject, body)
}

func (m *SESMailer) send(ctx context.Context, to, subject, body string) (string, error) {
	out, err := m.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fmt.Sprintf("%s <%s>", m.fromName, m.fromEmail)),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject)},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(body)},
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("send email: %w", err)
	}
	messageID := aws.ToString(out.MessageId)
	logger.Info("SESMailer:Send:Sent", "to", to, "message_id", messageID)
	return messageID, nil
}

func confirmationBody(d *signupent.SignupDetail) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", d.Signup.Name)
	fmt.Fprintf(&b, "Your volunteer spot for %s is confirmed.\n\n", d.Event.Name)
	fmt.Fprintf(&b, "Seva:  %s\n", d.Seva.Name)
	fmt.Fprintf(&b, "Date:  %s\n", d.Day.Date.Format("Monday, January 2, 2006"))
	fmt.Fprintf(&b, "Shift: %s\n\n", d.Event.ShiftLabel)
	b.WriteString("If you need to cancel, use the cancellation link shown when you signed up.\n\n")
	b.WriteString("Thank you for volunteering!\n")
	return b.String()
}

func cancellationBody(d *signupent.SignupDetail) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", d.Signup.Name)
	fmt.Fprintf(&b, "Your volunteer spot for %s has been cancelled.\n\n", d.Event.Name)
	fmt.Fprintf(&b, "Seva:  %s\n", d.Seva.Name)
	fmt.Fprintf(&b, "Date:  %s\n\n", d.Day.Date.Format("Monday, January 2, 2006"))
	b.WriteString("The spot has been released for another volunteer. You are welcome to sign up again.\n")
	return b.String()
}
