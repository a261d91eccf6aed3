package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// SESClient is the subset of the SES v2 client used for sending
type SESClient interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SES sends through Amazon SES v2
type SES struct {
	client SESClient
}

// NewSES creates an SES sender
func NewSES(client SESClient) *SES {
	return &SES{client: client}
}

// Name returns the transport name
func (s *SES) Name() string {
	return "ses"
}

// Send sends one message. A successful SendEmail is reported as 202 so all
// transports share one acceptance rule.
func (s *SES) Send(ctx context.Context, msg *Message) (*Result, error) {
	body := &types.Body{}
	if msg.HTML != "" {
		body.Html = &types.Content{Data: aws.String(msg.HTML), Charset: aws.String("UTF-8")}
	}
	if msg.Text != "" {
		body.Text = &types.Content{Data: aws.String(msg.Text), Charset: aws.String("UTF-8")}
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fromHeader(msg)),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
				Body:    body,
			},
		},
	}
	if msg.Campaign != "" {
		input.EmailTags = []types.MessageTag{{Name: aws.String("campaign"), Value: aws.String(msg.Campaign)}}
	}

	out, err := s.client.SendEmail(ctx, input)
	if err != nil {
		var respErr *awshttp.ResponseError
		if errors.As(err, &respErr) {
			return &Result{StatusCode: respErr.HTTPStatusCode(), Detail: err.Error()}, nil
		}
		return nil, fmt.Errorf("failed to call ses: %w", err)
	}

	return &Result{
		StatusCode: http.StatusAccepted,
		MessageID:  aws.ToString(out.MessageId),
	}, nil
}
