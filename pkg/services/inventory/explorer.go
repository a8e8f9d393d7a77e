package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/de-tools/cloud-sentry/pkg/models/domain"
)

const ResourceTypeBucket = "s3-bucket"

// S3 error codes that mean "this facet was never configured". They are a
// normal configuration state for the evaluator, not a fetch failure.
const (
	errNoPublicAccessBlock = "NoSuchPublicAccessBlockConfiguration"
	errNoEncryptionConfig  = "ServerSideEncryptionConfigurationNotFoundError"
)

// BucketAPI is the slice of the S3 client the explorer needs.
type BucketAPI interface {
	ListBuckets(ctx context.Context, params *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error)
	GetPublicAccessBlock(ctx context.Context, params *s3.GetPublicAccessBlockInput, optFns ...func(*s3.Options)) (*s3.GetPublicAccessBlockOutput, error)
	GetBucketEncryption(ctx context.Context, params *s3.GetBucketEncryptionInput, optFns ...func(*s3.Options)) (*s3.GetBucketEncryptionOutput, error)
}

type Settings struct {
	// RetryMax bounds the backoff retries per external call.
	RetryMax uint64
	// CallTimeout bounds each individual attempt.
	CallTimeout time.Duration
}

func DefaultSettings() Settings {
	return Settings{
		RetryMax:    4,
		CallTimeout: 10 * time.Second,
	}
}

// Explorer discovers the bucket population and reads the configuration
// facets the rule set evaluates.
type Explorer struct {
	client   BucketAPI
	settings Settings
}

func NewExplorer(cfg awssdk.Config, settings Settings) *Explorer {
	return &Explorer{
		client:   s3.NewFromConfig(cfg),
		settings: settings,
	}
}

// NewExplorerWithClient wires an explicit client, used by tests.
func NewExplorerWithClient(client BucketAPI, settings Settings) *Explorer {
	return &Explorer{client: client, settings: settings}
}

// ListResources paginates the bucket listing until no continuation token
// remains. A page fetch that exhausts its retry budget fails the whole
// listing: a partial population would make the sweep silently incomplete.
func (e *Explorer) ListResources(ctx context.Context) ([]domain.Resource, error) {
	var resources []domain.Resource
	var token *string

	for {
		var out *s3.ListBucketsOutput
		err := e.withRetry(ctx, func(ctx context.Context) error {
			var err error
			out, err = e.client.ListBuckets(ctx, &s3.ListBucketsInput{ContinuationToken: token})
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list buckets: %w", err)
		}

		for _, bucket := range out.Buckets {
			name := awssdk.ToString(bucket.Name)
			resources = append(resources, domain.Resource{
				Name: name,
				ARN:  fmt.Sprintf("arn:aws:s3:::%s", name),
				Type: ResourceTypeBucket,
			})
		}

		if out.ContinuationToken == nil {
			break
		}
		token = out.ContinuationToken
	}

	return resources, nil
}

// Describe fetches both configuration facets for one bucket. Facet fetch
// failures are folded into the snapshot as FacetUnavailable rather than
// returned: one unreadable bucket must not stop the sweep.
func (e *Explorer) Describe(ctx context.Context, res domain.Resource) domain.BucketConfig {
	return domain.BucketConfig{
		Resource:          res,
		PublicAccessBlock: e.describePublicAccessBlock(ctx, res),
		Encryption:        e.describeEncryption(ctx, res),
	}
}

func (e *Explorer) describePublicAccessBlock(ctx context.Context, res domain.Resource) domain.PublicAccessBlock {
	var pab domain.PublicAccessBlock

	err := e.withRetry(ctx, func(ctx context.Context) error {
		out, err := e.client.GetPublicAccessBlock(ctx, &s3.GetPublicAccessBlockInput{
			Bucket: awssdk.String(res.Name),
		})
		if err != nil {
			if hasErrorCode(err, errNoPublicAccessBlock) {
				pab = domain.PublicAccessBlock{State: domain.FacetNotConfigured}
				return nil
			}
			return err
		}

		cfg := out.PublicAccessBlockConfiguration
		pab = domain.PublicAccessBlock{
			State:                 domain.FacetConfigured,
			BlockPublicACLs:       awssdk.ToBool(cfg.BlockPublicAcls),
			IgnorePublicACLs:      awssdk.ToBool(cfg.IgnorePublicAcls),
			BlockPublicPolicy:     awssdk.ToBool(cfg.BlockPublicPolicy),
			RestrictPublicBuckets: awssdk.ToBool(cfg.RestrictPublicBuckets),
		}
		return nil
	})
	if err != nil {
		zerolog.Ctx(ctx).Warn().
			Err(err).
			Str("bucket", res.Name).
			Msg("public access block fetch exhausted retries")
		return domain.PublicAccessBlock{State: domain.FacetUnavailable, Reason: err.Error()}
	}
	return pab
}

func (e *Explorer) describeEncryption(ctx context.Context, res domain.Resource) domain.DefaultEncryption {
	var enc domain.DefaultEncryption

	err := e.withRetry(ctx, func(ctx context.Context) error {
		out, err := e.client.GetBucketEncryption(ctx, &s3.GetBucketEncryptionInput{
			Bucket: awssdk.String(res.Name),
		})
		if err != nil {
			if hasErrorCode(err, errNoEncryptionConfig) {
				enc = domain.DefaultEncryption{State: domain.FacetNotConfigured}
				return nil
			}
			return err
		}

		enc = domain.DefaultEncryption{State: domain.FacetConfigured}
		if out.ServerSideEncryptionConfiguration != nil {
			for _, rule := range out.ServerSideEncryptionConfiguration.Rules {
				if rule.ApplyServerSideEncryptionByDefault != nil {
					enc.Algorithms = append(enc.Algorithms, string(rule.ApplyServerSideEncryptionByDefault.SSEAlgorithm))
				}
			}
		}
		return nil
	})
	if err != nil {
		zerolog.Ctx(ctx).Warn().
			Err(err).
			Str("bucket", res.Name).
			Msg("encryption configuration fetch exhausted retries")
		return domain.DefaultEncryption{State: domain.FacetUnavailable, Reason: err.Error()}
	}
	return enc
}

// withRetry runs op under a per-attempt timeout with bounded exponential
// backoff. Context cancellation stops the retries immediately.
func (e *Explorer) withRetry(ctx context.Context, op func(ctx context.Context) error) error {
	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), e.settings.RetryMax),
		ctx,
	)
	return backoff.Retry(func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, e.settings.CallTimeout)
		defer cancel()
		return op(attemptCtx)
	}, bo)
}

func hasErrorCode(err error, code string) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == code
}
