// Package metrics publishes operational metrics to CloudWatch.
// file: metrics/cloudwatch.go
package metrics

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/cloudwatch"
	"go-lift-control/logger"
	"go-lift-control/models"
	"go-lift-control/services"
)

var _ services.MetricsRecorder = (*CloudWatchRecorder)(nil)

// maxBatch is the CloudWatch limit of data points per PutMetricData call.
const maxBatch = 20

// MetricPutter is the part of the CloudWatch API the recorder uses.
type MetricPutter interface {
	PutMetricDataWithContext(ctx aws.Context, input *cloudwatch.PutMetricDataInput, opts ...request.Option) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchRecorder buffers data points and ships them from a background
// loop so callers never wait on the network. When the buffer is full new
// points are dropped.
type CloudWatchRecorder struct {
	client    MetricPutter
	namespace string
	queue     chan *cloudwatch.MetricDatum
	interval  time.Duration
	now       func() time.Time
}

// NewCloudWatchRecorder builds a recorder on the default AWS credential chain.
func NewCloudWatchRecorder(region, namespace string) (*CloudWatchRecorder, error) {
	sess, err := session.NewSession(&aws.Config{Region: aws.String(region)})
	if err != nil {
		return nil, err
	}
	return NewRecorderWithClient(cloudwatch.New(sess), namespace, 10*time.Second), nil
}

// NewRecorderWithClient wraps an existing client.
func NewRecorderWithClient(client MetricPutter, namespace string, interval time.Duration) *CloudWatchRecorder {
	return &CloudWatchRecorder{
		client:    client,
		namespace: namespace,
		queue:     make(chan *cloudwatch.MetricDatum, 512),
		interval:  interval,
		now:       time.Now,
	}
}

// ClaimContention counts a claim turned away because someone else holds it.
func (r *CloudWatchRecorder) ClaimContention(sessionID string) {
	r.enqueue("ClaimContention", 1, cloudwatch.StandardUnitCount, sessionID)
}

// LockExpired counts a lease that ran out without being released.
func (r *CloudWatchRecorder) LockExpired(sessionID string) {
	r.enqueue("LockExpired", 1, cloudwatch.StandardUnitCount, sessionID)
}

// AttemptDecided records the time from exposing an attempt to its verdict.
func (r *CloudWatchRecorder) AttemptDecided(sessionID string, verdict models.Verdict, latency time.Duration) {
	r.enqueue("DecisionLatencyMs", float64(latency.Milliseconds()), cloudwatch.StandardUnitMilliseconds, sessionID)
	if verdict == models.VerdictFailed {
		r.enqueue("FailedAttempts", 1, cloudwatch.StandardUnitCount, sessionID)
	}
}

// SubscriberCount reports live websocket subscribers of a session.
func (r *CloudWatchRecorder) SubscriberCount(sessionID string, count int) {
	r.enqueue("LiveSubscribers", float64(count), cloudwatch.StandardUnitCount, sessionID)
}

// Run ships buffered points until ctx is cancelled, then flushes what is left.
func (r *CloudWatchRecorder) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	batch := make([]*cloudwatch.MetricDatum, 0, maxBatch)
	for {
		select {
		case d := <-r.queue:
			batch = append(batch, d)
			if len(batch) == maxBatch {
				r.flush(ctx, batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				r.flush(ctx, batch)
				batch = batch[:0]
			}
		case <-ctx.Done():
			r.drain(batch)
			return nil
		}
	}
}

func (r *CloudWatchRecorder) drain(batch []*cloudwatch.MetricDatum) {
	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case d := <-r.queue:
			batch = append(batch, d)
			if len(batch) == maxBatch {
				r.flush(flushCtx, batch)
				batch = batch[:0]
			}
		default:
			if len(batch) > 0 {
				r.flush(flushCtx, batch)
			}
			return
		}
	}
}

func (r *CloudWatchRecorder) enqueue(name string, value float64, unit, sessionID string) {
	d := &cloudwatch.MetricDatum{
		MetricName: aws.String(name),
		Dimensions: []*cloudwatch.Dimension{
			{
				Name:  aws.String("SessionID"),
				Value: aws.String(sessionID),
			},
		},
		Timestamp: aws.Time(r.now()),
		Value:     aws.Float64(value),
		Unit:      aws.String(unit),
	}
	select {
	case r.queue <- d:
	default:
		logger.Warn.Printf("[CloudWatchRecorder] buffer full, dropping %s for session=%s", name, sessionID)
	}
}

func (r *CloudWatchRecorder) flush(ctx context.Context, batch []*cloudwatch.MetricDatum) {
	data := make([]*cloudwatch.MetricDatum, len(batch))
	copy(data, batch)
	_, err := r.client.PutMetricDataWithContext(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(r.namespace),
		MetricData: data,
	})
	if err != nil {
		logger.Error.Printf("[CloudWatchRecorder.flush] CloudWatch put of %d points failed: %v", len(data), err)
	}
}
