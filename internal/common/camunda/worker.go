// internal/common/camunda/worker.go
package camunda

import (
	"context"
	"time"

	"postcode-workers/internal/common/logger"
	"postcode-workers/internal/common/metrics"
	"postcode-workers/internal/common/observability"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "postcode-workers/camunda"

// JobHandler completes, fails or throws on the job itself and returns an
// error only for problems it could not report to the broker. ctx carries
// the job span.
type JobHandler interface {
	Handle(ctx context.Context, client worker.JobClient, job entities.Job) error
}

type WorkerOptions struct {
	TaskType      string
	MaxJobsActive int
	Timeout       time.Duration
}

type CamundaWorker struct {
	worker   worker.JobWorker
	logger   logger.Logger
	taskType string
}

func NewWorker(
	client zbc.Client,
	opts WorkerOptions,
	handler JobHandler,
	obs *observability.Observability,
	log logger.Logger,
) *CamundaWorker {
	log = log.WithFields(map[string]interface{}{"taskType": opts.TaskType})

	builder := client.NewJobWorker().
		JobType(opts.TaskType).
		Handler(instrument(opts.TaskType, handler, obs, log)).
		MaxJobsActive(opts.MaxJobsActive)
	if opts.Timeout > 0 {
		builder = builder.Timeout(opts.Timeout)
	}

	log.Info("Worker started", map[string]interface{}{"maxJobsActive": opts.MaxJobsActive})

	return &CamundaWorker{
		worker:   builder.Open(),
		logger:   log,
		taskType: opts.TaskType,
	}
}

// instrument adapts a JobHandler to the Zeebe handler signature and records
// per-job metrics.
func instrument(taskType string, handler JobHandler, obs *observability.Observability, log logger.Logger) worker.JobHandler {
	return func(client worker.JobClient, job entities.Job) {
		start := time.Now()
		metrics.WorkerJobsActive.WithLabelValues(taskType).Inc()
		defer metrics.WorkerJobsActive.WithLabelValues(taskType).Dec()

		ctx, span := otel.Tracer(tracerName).Start(context.Background(), "job "+taskType,
			trace.WithSpanKind(trace.SpanKindConsumer),
			trace.WithAttributes(
				attribute.String("zeebe.task_type", taskType),
				attribute.Int64("zeebe.job_key", job.GetKey()),
				attribute.Int64("zeebe.process_instance_key", job.GetProcessInstanceKey()),
			),
		)
		defer span.End()

		status := "completed"
		if err := handler.Handle(ctx, client, job); err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			log.Error("Handler returned error", map[string]interface{}{
				"error":  err.Error(),
				"jobKey": job.Key,
			})
		}

		elapsed := time.Since(start)
		metrics.WorkerJobDuration.WithLabelValues(taskType).Observe(elapsed.Seconds())
		obs.RecordJob(ctx, taskType, status, elapsed)
	}
}

// Stop closes the job worker and waits for in-flight jobs.
func (w *CamundaWorker) Stop() {
	w.logger.Info("Stopping worker", nil)
	w.worker.Close()
	w.worker.AwaitClose()
}
