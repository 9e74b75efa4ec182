// internal/pipeline/dispatch/transport.go
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"

	"safety-pipeline/internal/models"
)

// SNSAPI matches the common/aws SNS client for mocking.
type SNSAPI interface {
	Publish(ctx context.Context, input *sns.PublishInput) (*sns.PublishOutput, error)
}

// SNSTransport publishes push payloads onto a shared topic. Downstream
// subscribers filter on the userId message attribute.
type SNSTransport struct {
	client   SNSAPI
	topicARN string
}

func NewSNSTransport(client SNSAPI, topicARN string) *SNSTransport {
	return &SNSTransport{client: client, topicARN: topicARN}
}

func (t *SNSTransport) Publish(ctx context.Context, userID string, payload models.ClientNotification) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal push payload: %w", err)
	}

	_, err = t.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(t.topicARN),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			"userId": {
				DataType:    aws.String("String"),
				StringValue: aws.String(userID),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("sns publish: %w", err)
	}
	return nil
}

// SESAPI matches the common/aws SES client for mocking.
type SESAPI interface {
	SendEmail(ctx context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error)
}

// SESMailer sends the critical-priority escalation email.
type SESMailer struct {
	client SESAPI
	from   string
}

func NewSESMailer(client SESAPI, from string) *SESMailer {
	return &SESMailer{client: client, from: from}
}

func (m *SESMailer) SendEmail(ctx context.Context, to, subject, body string) error {
	_, err := m.client.SendEmail(ctx, &ses.SendEmailInput{
		Source: aws.String(m.from),
		Destination: &sestypes.Destination{
			ToAddresses: []string{to},
		},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: aws.String(subject)},
			Body: &sestypes.Body{
				Text: &sestypes.Content{Data: aws.String(body)},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("ses send: %w", err)
	}
	return nil
}
