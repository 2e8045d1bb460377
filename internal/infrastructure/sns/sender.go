package sns

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/shutterbook/studio-api/internal/config"
	"github.com/shutterbook/studio-api/internal/pkg/id"
)

// publisher is the subset of *sns.Client the sender uses.
type publisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// CodeMessage is the payload published for the mail worker subscribed to the topic.
type CodeMessage struct {
	Type             string `json:"type"`
	Email            string `json:"email"`
	Code             string `json:"code"`
	ExpiresInMinutes int    `json:"expires_in_minutes"`
}

// Sender hands one-time codes to an SNS topic. Delivery succeeds once SNS accepts the message.
type Sender struct {
	client   publisher
	topicARN string
}

func NewSender(cfg *config.Config) (*Sender, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.SNSRegion),
	)
	if err != nil {
		return nil, err
	}
	var opts []func(*sns.Options)
	if cfg.AWSEndpointURL != "" {
		opts = append(opts, func(o *sns.Options) {
			o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
		})
	}
	return &Sender{client: sns.NewFromConfig(awsCfg, opts...), topicARN: cfg.SNSTopicARN}, nil
}

func (s *Sender) SendCode(ctx context.Context, to, code string, ttl time.Duration) error {
	body, err := json.Marshal(CodeMessage{
		Type:             "one_time_code",
		Email:            to,
		Code:             code,
		ExpiresInMinutes: int(ttl.Minutes()),
	})
	if err != nil {
		return fmt.Errorf("marshal code message: %w", err)
	}
	_, err = s.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(s.topicARN),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"event_type": {DataType: aws.String("String"), StringValue: aws.String("one_time_code")},
			"message_id": {DataType: aws.String("String"), StringValue: aws.String(id.New())},
		},
	})
	if err != nil {
		return fmt.Errorf("sns publish: %w", err)
	}
	return nil
}
