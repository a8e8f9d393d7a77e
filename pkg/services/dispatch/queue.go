package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/cenkalti/backoff/v4"

	"github.com/de-tools/cloud-sentry/pkg/models/api"
	"github.com/de-tools/cloud-sentry/pkg/models/domain"
)

const triggerAction = "remediate_s3_public_access"

// QueueAPI is the slice of the SQS client the trigger sink needs.
type QueueAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

type TriggerSinkSettings struct {
	QueueURL    string
	RetryMax    uint64
	CallTimeout time.Duration
}

// TriggerSink sends remediation triggers to the playbook queue. Delivery is
// at-least-once: a retry after an ambiguous failure may duplicate a message,
// and the consumer deduplicates on correlation id + resource id.
type TriggerSink struct {
	client   QueueAPI
	settings TriggerSinkSettings
}

func NewTriggerSink(cfg awssdk.Config, settings TriggerSinkSettings) *TriggerSink {
	return &TriggerSink{
		client:   sqs.NewFromConfig(cfg),
		settings: settings,
	}
}

// NewTriggerSinkWithClient wires an explicit client, used by tests.
func NewTriggerSinkWithClient(client QueueAPI, settings TriggerSinkSettings) *TriggerSink {
	return &TriggerSink{client: client, settings: settings}
}

func (s *TriggerSink) Send(ctx context.Context, trigger domain.RemediationTrigger) error {
	payload := api.RemediationTrigger{
		Action:         triggerAction,
		ResourceID:     trigger.Resource.ARN,
		FailingRules:   trigger.FailingRules,
		CorrelationID:  trigger.CorrelationID,
		RemediationRef: trigger.RemediationRef,
		Timestamp:      time.Now().UTC(),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode remediation trigger: %w", err)
	}

	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), s.settings.RetryMax),
		ctx,
	)
	err = backoff.Retry(func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, s.settings.CallTimeout)
		defer cancel()

		_, err := s.client.SendMessage(attemptCtx, &sqs.SendMessageInput{
			QueueUrl:    awssdk.String(s.settings.QueueURL),
			MessageBody: awssdk.String(string(body)),
		})
		return err
	}, bo)
	if err != nil {
		return fmt.Errorf("failed to deliver remediation trigger for %s: %w", trigger.Resource.ARN, err)
	}
	return nil
}
