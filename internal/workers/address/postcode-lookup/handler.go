package postcodelookup

import (
	"context"
	"encoding/json"
	"fmt"

	"postcode-workers/internal/common/errors"
	"postcode-workers/internal/common/logger"
	"postcode-workers/internal/common/metrics"
	"postcode-workers/internal/common/pca"
	"postcode-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "postcode-address-lookup"

// Lookuper is the part of lookup.Service the worker depends on.
type Lookuper interface {
	Get(ctx context.Context, raw string, creds pca.Credentials, overrideCache bool) (*models.LookupResult, error)
}

type Handler struct {
	config       *Config
	service      Lookuper
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, service Lookuper, log logger.Logger) (*Handler, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}
	if service == nil {
		return nil, fmt.Errorf("%s: lookup service is required", TaskType)
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})

	return &Handler{
		config:       config,
		service:      service,
		errorHandler: errors.NewErrorHandler(log),
		logger:       log,
	}, nil
}

func (h *Handler) TaskType() string {
	return TaskType
}

func (h *Handler) Config() *Config {
	return h.config
}

// Handle resolves the postcode in the job variables. Every per-lookup outcome
// completes the job with the result; only bad input and misconfiguration
// are raised as BPMN errors.
func (h *Handler) Handle(ctx context.Context, client worker.JobClient, job entities.Job) error {
	h.logger.Info("Processing postcode lookup", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})

	input, err := h.parseInput(job)
	if err != nil {
		h.fail(client, job, err)
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	output, err := h.Execute(ctx, input)
	if err != nil {
		h.fail(client, job, err)
		return nil
	}

	if err := h.completeJob(client, job, output); err != nil {
		return err
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	return nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.service.Get(ctx, input.Postcode, h.config.Credentials, input.OverrideCache)
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	variables := job.GetVariables()
	if variables == "" {
		variables = "{}"
	}

	result := GetInputSchema().ValidateJSON(variables)
	if !result.Valid {
		return nil, errors.NewInvalidInputError(result.Summary())
	}

	var input Input
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, errors.NewInvalidInputError(err.Error())
	}
	return &input, nil
}

func (h *Handler) fail(client worker.JobClient, job entities.Job, err error) {
	code := string(errors.ErrCodeInternal)
	if stdErr, ok := errors.AsStandardError(err); ok {
		code = string(stdErr.Code)
	}
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, code).Inc()
	h.errorHandler.HandleJobError(context.Background(), client, job, err)
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) error {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.GetKey()).
		VariablesFromObject(output)
	if err != nil {
		return fmt.Errorf("create complete job command: %w", err)
	}
	if _, err := cmd.Send(context.Background()); err != nil {
		return fmt.Errorf("send complete job command: %w", err)
	}

	h.logger.Info("Postcode lookup completed", map[string]interface{}{
		"jobKey":  job.GetKey(),
		"source":  string(output.Source),
		"failed":  output.Failed(),
		"results": len(output.Data),
	})
	return nil
}
