package notify

import (
	"context"
	"fmt"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/mailgun/mailgun-go/v4"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	tl "github.com/tuumbleweed/tintlog/logger"
	"github.com/tuumbleweed/tintlog/palette"
	"github.com/tuumbleweed/xerr"

	"ledgerlens/src/pkg/util"
)

// Provider selects the email backend.
type Provider string

const (
	ProviderSes      Provider = "ses"
	ProviderMailgun  Provider = "mailgun"
	ProviderSendgrid Provider = "sendgrid"
)

/*
SendMessage sends one plain-text email through the chosen provider.

Provider credentials come from the environment: the AWS chain for SES,
MAILGUN_DOMAIN/MAILGUN_API_KEY for mailgun, SENDGRID_API_KEY for sendgrid.
*/
func SendMessage(provider Provider, senderAddress string, recipientAddress string, subject string, textBody string) (e *xerr.Error) {
	tl.Log(
		tl.Info, palette.Blue, "%s email via '%s' to '%s' (subject '%s')",
		"Sending", provider, recipientAddress, subject,
	)

	switch provider {
	case ProviderSes:
		e = sendWithSes(senderAddress, recipientAddress, subject, textBody)
	case ProviderMailgun:
		e = sendWithMailgun(senderAddress, recipientAddress, subject, textBody)
	case ProviderSendgrid:
		e = sendWithSendgrid(senderAddress, recipientAddress, subject, textBody)
	default:
		return xerr.NewError(fmt.Errorf("unknown email provider"), "send email", string(provider))
	}
	if e != nil {
		return e
	}

	tl.Log(tl.Info1, palette.Green, "%s email via '%s' to '%s'", "Sent", provider, recipientAddress)
	return nil
}

func sendWithSes(senderAddress string, recipientAddress string, subject string, textBody string) (e *xerr.Error) {
	awsCfg, loadErr := awsconfig.LoadDefaultConfig(context.Background())
	if loadErr != nil {
		return xerr.NewError(loadErr, "load AWS config for SES", nil)
	}

	client := sesv2.NewFromConfig(awsCfg)
	_, sendErr := client.SendEmail(context.Background(), &sesv2.SendEmailInput{
		FromEmailAddress: util.Ptr(senderAddress),
		Destination:      &sestypes.Destination{ToAddresses: []string{recipientAddress}},
		Content: &sestypes.EmailContent{
			Simple: &sestypes.Message{
				Subject: &sestypes.Content{Data: util.Ptr(subject)},
				Body:    &sestypes.Body{Text: &sestypes.Content{Data: util.Ptr(textBody)}},
			},
		},
	})
	if sendErr != nil {
		return xerr.NewError(sendErr, "SES SendEmail call", recipientAddress)
	}
	return nil
}

func sendWithMailgun(senderAddress string, recipientAddress string, subject string, textBody string) (e *xerr.Error) {
	domain := os.Getenv("MAILGUN_DOMAIN")
	apiKey := os.Getenv("MAILGUN_API_KEY")
	client := mailgun.NewMailgun(domain, apiKey)

	message := mailgun.NewMessage(senderAddress, subject, textBody, recipientAddress)
	_, _, sendErr := client.Send(context.Background(), message)
	if sendErr != nil {
		return xerr.NewError(sendErr, "Mailgun send call", recipientAddress)
	}
	return nil
}

func sendWithSendgrid(senderAddress string, recipientAddress string, subject string, textBody string) (e *xerr.Error) {
	message := mail.NewSingleEmail(
		mail.NewEmail("", senderAddress), subject,
		mail.NewEmail("", recipientAddress), textBody, textBody,
	)
	client := sendgrid.NewSendClient(os.Getenv("SENDGRID_API_KEY"))
	var response *rest.Response
	response, sendErr := client.Send(message)
	if sendErr != nil {
		return xerr.NewError(sendErr, "SendGrid send call", recipientAddress)
	}
	if response.StatusCode >= 300 {
		return xerr.NewError(fmt.Errorf("status %d", response.StatusCode), "SendGrid rejected the email", response.Body)
	}
	return nil
}
