package sweep

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/de-tools/cloud-sentry/pkg/models/domain"
	"github.com/de-tools/cloud-sentry/pkg/services/dispatch"
)

type mockInventory struct {
	mock.Mock
}

func (m *mockInventory) ListResources(ctx context.Context) ([]domain.Resource, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Resource), args.Error(1)
}

func (m *mockInventory) Describe(ctx context.Context, res domain.Resource) domain.BucketConfig {
	args := m.Called(ctx, res)
	return args.Get(0).(domain.BucketConfig)
}

// recordingDispatcher captures every dispatched record; thread safe because
// the worker pool dispatches concurrently.
type recordingDispatcher struct {
	mu      sync.Mutex
	records []domain.EvidenceRecord
	result  dispatch.Result
}

func (d *recordingDispatcher) Dispatch(_ context.Context, rec domain.EvidenceRecord) dispatch.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.records = append(d.records, rec)
	result := d.result
	result.TriggerSent = rec.Status == domain.StatusFail && result.TriggerErr == nil
	return result
}

func (d *recordingDispatcher) dispatched() []domain.EvidenceRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]domain.EvidenceRecord(nil), d.records...)
}

func resource(name string) domain.Resource {
	return domain.Resource{Name: name, ARN: "arn:aws:s3:::" + name, Type: "s3-bucket"}
}

func compliantConfig(res domain.Resource) domain.BucketConfig {
	return domain.BucketConfig{
		Resource: res,
		PublicAccessBlock: domain.PublicAccessBlock{
			State:                 domain.FacetConfigured,
			BlockPublicACLs:       true,
			IgnorePublicACLs:      true,
			BlockPublicPolicy:     true,
			RestrictPublicBuckets: true,
		},
		Encryption: domain.DefaultEncryption{
			State:      domain.FacetConfigured,
			Algorithms: []string{"AES256"},
		},
	}
}

func unconfiguredConfig(res domain.Resource) domain.BucketConfig {
	return domain.BucketConfig{
		Resource:          res,
		PublicAccessBlock: domain.PublicAccessBlock{State: domain.FacetNotConfigured},
		Encryption:        domain.DefaultEncryption{State: domain.FacetNotConfigured},
	}
}

func TestRun_OneEvidenceRecordPerResource(t *testing.T) {
	ctx := context.Background()
	inventory := new(mockInventory)
	dispatcher := &recordingDispatcher{}

	resources := []domain.Resource{resource("bucket-a"), resource("bucket-b"), resource("bucket-c")}
	inventory.On("ListResources", mock.Anything).Return(resources, nil)
	inventory.On("Describe", mock.Anything, resources[0]).Return(compliantConfig(resources[0]))
	inventory.On("Describe", mock.Anything, resources[1]).Return(unconfiguredConfig(resources[1]))
	inventory.On("Describe", mock.Anything, resources[2]).Return(compliantConfig(resources[2]))

	runner := NewRunner(inventory, dispatcher, Settings{Concurrency: 2})
	summary, err := runner.Run(ctx)

	require.NoError(t, err)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Passed)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 0, summary.Errored)
	assert.Equal(t, 1, summary.TriggersSent)
	assert.Len(t, dispatcher.dispatched(), len(resources))
	assert.NotEmpty(t, summary.RunID)
}

func TestRun_ScenarioCompliantAndNonCompliant(t *testing.T) {
	ctx := context.Background()
	inventory := new(mockInventory)
	dispatcher := &recordingDispatcher{}

	bucketA := resource("bucket-a")
	bucketB := resource("bucket-b")
	inventory.On("ListResources", mock.Anything).Return([]domain.Resource{bucketA, bucketB}, nil)
	inventory.On("Describe", mock.Anything, bucketA).Return(compliantConfig(bucketA))
	inventory.On("Describe", mock.Anything, bucketB).Return(unconfiguredConfig(bucketB))

	runner := NewRunner(inventory, dispatcher, Settings{Concurrency: 1})
	summary, err := runner.Run(ctx)

	require.NoError(t, err)

	byARN := map[string]domain.EvidenceRecord{}
	for _, rec := range dispatcher.dispatched() {
		byARN[rec.Resource.ARN] = rec
	}

	recA := byARN["arn:aws:s3:::bucket-a"]
	assert.Equal(t, domain.StatusPass, recA.Status)
	require.Len(t, recA.Checks, 2)

	recB := byARN["arn:aws:s3:::bucket-b"]
	assert.Equal(t, domain.StatusFail, recB.Status)
	require.Len(t, recB.Checks, 2)
	assert.Equal(t, domain.StatusFail, recB.Checks[0].Status)
	assert.Equal(t, domain.StatusFail, recB.Checks[1].Status)
	assert.Equal(t, summary.RunID, recB.CorrelationID)
	assert.Equal(t, 1, summary.TriggersSent)
}

func TestRun_EnumerationFailureProducesNoEvidence(t *testing.T) {
	ctx := context.Background()
	inventory := new(mockInventory)
	dispatcher := &recordingDispatcher{}

	inventory.On("ListResources", mock.Anything).Return(nil, assert.AnError)

	runner := NewRunner(inventory, dispatcher, Settings{Concurrency: 2})
	_, err := runner.Run(ctx)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "resource enumeration failed")
	assert.Empty(t, dispatcher.dispatched())
}

func TestRun_FacetErrorIsIsolatedToItsResource(t *testing.T) {
	ctx := context.Background()
	inventory := new(mockInventory)
	dispatcher := &recordingDispatcher{}

	bucketC := resource("bucket-c")
	bucketD := resource("bucket-d")
	brokenConfig := compliantConfig(bucketC)
	brokenConfig.Encryption = domain.DefaultEncryption{
		State:  domain.FacetUnavailable,
		Reason: "retry budget exhausted",
	}

	inventory.On("ListResources", mock.Anything).Return([]domain.Resource{bucketC, bucketD}, nil)
	inventory.On("Describe", mock.Anything, bucketC).Return(brokenConfig)
	inventory.On("Describe", mock.Anything, bucketD).Return(compliantConfig(bucketD))

	runner := NewRunner(inventory, dispatcher, Settings{Concurrency: 1})
	summary, err := runner.Run(ctx)

	require.NoError(t, err)
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 1, summary.Passed)
	assert.Equal(t, 1, summary.Errored)
	assert.Equal(t, 0, summary.TriggersSent)

	// The unreadable bucket still gets an evidence record, flagged
	// indeterminate on the affected rule.
	records := dispatcher.dispatched()
	require.Len(t, records, 2)
	for _, rec := range records {
		if rec.Resource.ARN == bucketC.ARN {
			assert.Equal(t, domain.StatusError, rec.Status)
			assert.Equal(t, domain.StatusError, rec.Checks[1].Status)
		}
	}
}

func TestRun_DispatchErrorsAreCountedNotFatal(t *testing.T) {
	ctx := context.Background()
	inventory := new(mockInventory)
	dispatcher := &recordingDispatcher{result: dispatch.Result{EvidenceErr: assert.AnError}}

	bucketA := resource("bucket-a")
	inventory.On("ListResources", mock.Anything).Return([]domain.Resource{bucketA}, nil)
	inventory.On("Describe", mock.Anything, bucketA).Return(compliantConfig(bucketA))

	runner := NewRunner(inventory, dispatcher, Settings{Concurrency: 1})
	summary, err := runner.Run(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, summary.DispatchErrors)
	assert.Equal(t, 1, summary.Passed)
}

func TestRun_ExpiredDeadlineReportsIncomplete(t *testing.T) {
	inventory := new(mockInventory)
	dispatcher := &recordingDispatcher{}

	bucketA := resource("bucket-a")
	inventory.On("ListResources", mock.Anything).Return([]domain.Resource{bucketA}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := NewRunner(inventory, dispatcher, Settings{Concurrency: 1})
	summary, err := runner.Run(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Incomplete)
	assert.Empty(t, dispatcher.dispatched())
	inventory.AssertNotCalled(t, "Describe", mock.Anything, mock.Anything)
}
