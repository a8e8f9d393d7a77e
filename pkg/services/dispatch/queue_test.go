package dispatch

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/de-tools/cloud-sentry/pkg/models/api"
	"github.com/de-tools/cloud-sentry/pkg/models/domain"
)

type mockQueueAPI struct {
	mock.Mock
}

func (m *mockQueueAPI) SendMessage(ctx context.Context, params *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sqs.SendMessageOutput), args.Error(1)
}

func trigger() domain.RemediationTrigger {
	return domain.RemediationTrigger{
		Resource:       domain.Resource{Name: "bucket-b", ARN: "arn:aws:s3:::bucket-b"},
		FailingRules:   []string{"public-access-block", "default-encryption"},
		CorrelationID:  "run-1",
		RemediationRef: "remediation_playbooks/s3_public_access_fix.tf",
	}
}

func queueSettings() TriggerSinkSettings {
	return TriggerSinkSettings{
		QueueURL:    "https://sqs.us-east-1.amazonaws.com/123456789012/remediation",
		RetryMax:    0,
		CallTimeout: time.Second,
	}
}

func TestTriggerSink_SendsJSONMessage(t *testing.T) {
	client := new(mockQueueAPI)
	var sent *sqs.SendMessageInput
	client.On("SendMessage", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			sent = args.Get(1).(*sqs.SendMessageInput)
		}).
		Return(&sqs.SendMessageOutput{MessageId: awssdk.String("msg-1")}, nil)

	sink := NewTriggerSinkWithClient(client, queueSettings())
	err := sink.Send(context.Background(), trigger())

	require.NoError(t, err)
	require.NotNil(t, sent)
	assert.Equal(t, queueSettings().QueueURL, awssdk.ToString(sent.QueueUrl))

	var payload api.RemediationTrigger
	require.NoError(t, json.Unmarshal([]byte(awssdk.ToString(sent.MessageBody)), &payload))
	assert.Equal(t, "remediate_s3_public_access", payload.Action)
	assert.Equal(t, "arn:aws:s3:::bucket-b", payload.ResourceID)
	assert.Equal(t, []string{"public-access-block", "default-encryption"}, payload.FailingRules)
	assert.Equal(t, "run-1", payload.CorrelationID)
	assert.Equal(t, "remediation_playbooks/s3_public_access_fix.tf", payload.RemediationRef)
	assert.False(t, payload.Timestamp.IsZero())
}

func TestTriggerSink_RetriesThenSucceeds(t *testing.T) {
	client := new(mockQueueAPI)
	client.On("SendMessage", mock.Anything, mock.Anything).
		Return(nil, assert.AnError).Once()
	client.On("SendMessage", mock.Anything, mock.Anything).
		Return(&sqs.SendMessageOutput{}, nil).Once()

	settings := queueSettings()
	settings.RetryMax = 2
	sink := NewTriggerSinkWithClient(client, settings)

	err := sink.Send(context.Background(), trigger())

	require.NoError(t, err)
	client.AssertExpectations(t)
}

func TestTriggerSink_RetryExhaustionFails(t *testing.T) {
	client := new(mockQueueAPI)
	client.On("SendMessage", mock.Anything, mock.Anything).Return(nil, assert.AnError)

	sink := NewTriggerSinkWithClient(client, queueSettings())
	err := sink.Send(context.Background(), trigger())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "arn:aws:s3:::bucket-b")
	client.AssertNumberOfCalls(t, "SendMessage", 1)
}
