// Package mail delivers outbound email.
package mail

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/rs/zerolog"

	"github.com/nodi/console-identity/internal/core/ports"
)

const charset = "UTF-8"

// sendEmailAPI is the subset of the SES v2 client used here.
type sendEmailAPI interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESNotifier sends multipart (HTML and text) mail through Amazon SES.
type SESNotifier struct {
	client sendEmailAPI
	from   string
	log    zerolog.Logger
}

// NewSESNotifier loads AWS credentials from the default chain.
func NewSESNotifier(ctx context.Context, region, from string, log zerolog.Logger) (*SESNotifier, error) {
	if from == "" {
		return nil, errors.New("ses: sender address is required")
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("ses: load aws config: %w", err)
	}
	return newSESNotifier(sesv2.NewFromConfig(cfg), from, log), nil
}

func newSESNotifier(client sendEmailAPI, from string, log zerolog.Logger) *SESNotifier {
	return &SESNotifier{client: client, from: from, log: log}
}

func (n *SESNotifier) Send(ctx context.Context, msg ports.Message) error {
	if msg.To == "" {
		return errors.New("ses: recipient is required")
	}

	body := &types.Body{}
	if msg.HTML != "" {
		body.Html = &types.Content{Data: aws.String(msg.HTML), Charset: aws.String(charset)}
	}
	if msg.Text != "" {
		body.Text = &types.Content{Data: aws.String(msg.Text), Charset: aws.String(charset)}
	}

	out, err := n.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(n.from),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String(charset)},
				Body:    body,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("ses send %s: %w", msg.Kind, err)
	}

	n.log.Debug().
		Str("kind", msg.Kind).
		Str("message_id", aws.ToString(out.MessageId)).
		Msg("email sent")
	return nil
}
