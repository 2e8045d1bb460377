package sns

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) Publish(ctx context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	args := m.Called(ctx, in)
	if out, _ := args.Get(0).(*sns.PublishOutput); out != nil {
		return out, args.Error(1)
	}
	return nil, args.Error(1)
}

func TestSendCode_PublishesMessage(t *testing.T) {
	pub := &mockPublisher{}
	var captured *sns.PublishInput
	pub.On("Publish", mock.Anything, mock.AnythingOfType("*sns.PublishInput")).
		Run(func(args mock.Arguments) { captured = args.Get(1).(*sns.PublishInput) }).
		Return(&sns.PublishOutput{}, nil)

	s := &Sender{client: pub, topicARN: "arn:aws:sns:us-east-1:000000000000:otp"}
	require.NoError(t, s.SendCode(context.Background(), "a@b.com", "123456", 10*time.Minute))

	require.NotNil(t, captured)
	assert.Equal(t, "arn:aws:sns:us-east-1:000000000000:otp", *captured.TopicArn)
	var msg CodeMessage
	require.NoError(t, json.Unmarshal([]byte(*captured.Message), &msg))
	assert.Equal(t, CodeMessage{Type: "one_time_code", Email: "a@b.com", Code: "123456", ExpiresInMinutes: 10}, msg)
	assert.Equal(t, "one_time_code", *captured.MessageAttributes["event_type"].StringValue)
	assert.NotEmpty(t, *captured.MessageAttributes["message_id"].StringValue)
}

func TestSendCode_WrapsPublishError(t *testing.T) {
	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, mock.Anything).Return(nil, errors.New("throttled"))

	s := &Sender{client: pub, topicARN: "arn"}
	err := s.SendCode(context.Background(), "a@b.com", "123456", time.Minute)

	assert.ErrorContains(t, err, "sns publish: throttled")
}
