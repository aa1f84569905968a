// Package runner executes a step registry in dependency order.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	ierrors "github.com/jmountifield/graph-cisco-meraki/pkg/errors"
	"github.com/jmountifield/graph-cisco-meraki/pkg/metrics"
	"github.com/jmountifield/graph-cisco-meraki/pkg/steps"
	"github.com/jmountifield/graph-cisco-meraki/pkg/tracing"
)

type StepStatus string

const (
	StatusNotStarted StepStatus = "NOT_STARTED"
	StatusRunning    StepStatus = "RUNNING"
	StatusCompleted  StepStatus = "COMPLETED"
	StatusFailed     StepStatus = "FAILED"
	// StatusSkipped marks a step whose dependency did not complete
	StatusSkipped StepStatus = "SKIPPED"
)

type StepResult struct {
	StepID     string     `json:"stepId" yaml:"stepId" db:"step_id"`
	Name       string     `json:"name" yaml:"name" db:"name"`
	Status     StepStatus `json:"status" yaml:"status" db:"status"`
	StartedAt  *time.Time `json:"startedAt,omitempty" yaml:"startedAt,omitempty" db:"started_at"`
	FinishedAt *time.Time `json:"finishedAt,omitempty" yaml:"finishedAt,omitempty" db:"finished_at"`
	DurationMs int64      `json:"durationMs" yaml:"durationMs" db:"duration_ms"`
	Error      string     `json:"error,omitempty" yaml:"error,omitempty" db:"error"`
}

// Report is the outcome of a run. A run is COMPLETED only when every step completed.
type Report struct {
	RunID         uuid.UUID    `json:"runId" yaml:"runId"`
	Status        StepStatus   `json:"status" yaml:"status"`
	StartedAt     time.Time    `json:"startedAt" yaml:"startedAt"`
	FinishedAt    time.Time    `json:"finishedAt" yaml:"finishedAt"`
	Steps         []StepResult `json:"steps" yaml:"steps"`
	Entities      int          `json:"entities" yaml:"entities"`
	Relationships int          `json:"relationships" yaml:"relationships"`
}

// Step returns the result of a step.
func (r *Report) Step(id string) (StepResult, bool) {
	for _, result := range r.Steps {
		if result.StepID == id {
			return result, true
		}
	}
	return StepResult{}, false
}

type counter interface {
	Counts() (entities, relationships int)
}

type Runner struct {
	registry *steps.Registry
	logger   ectologger.Logger
}

// New validates that every dependency exists and that there are no cycles.
func New(registry *steps.Registry, logger ectologger.Logger) (*Runner, error) {
	if err := validate(registry); err != nil {
		return nil, err
	}
	return &Runner{registry: registry, logger: logger}, nil
}

// Run executes every step with a new run id.
func (r *Runner) Run(ctx context.Context, exec *steps.ExecutionContext) (*Report, error) {
	return r.RunWithID(ctx, uuid.New(), exec)
}

// RunWithID executes every step once its dependencies completed. Dependents of a failed step are
// skipped, independent steps still run. The returned error joins every step failure.
func (r *Runner) RunWithID(ctx context.Context, runID uuid.UUID, exec *steps.ExecutionContext) (*Report, error) {
	ctx, span := tracing.StartSpan(ctx, "runner.Run", attribute.String("run_id", runID.String()))

	log := r.logger.WithContext(ctx).WithField("run_id", runID.String())
	log.Info("Starting collection run")

	report := &Report{
		RunID:     runID,
		StartedAt: time.Now().UTC(),
	}

	ordered := r.registry.Steps()
	results := make(map[string]*StepResult, len(ordered))
	for _, step := range ordered {
		results[step.ID] = &StepResult{StepID: step.ID, Name: step.Name, Status: StatusNotStarted}
	}

	var stepErrs []error
	var execute func(step steps.Step)
	execute = func(step steps.Step) {
		result := results[step.ID]
		if result.Status != StatusNotStarted {
			return
		}

		for _, dep := range step.DependsOn {
			depStep, _ := r.registry.Get(dep)
			execute(depStep)
			if results[dep].Status != StatusCompleted {
				result.Status = StatusSkipped
				result.Error = fmt.Sprintf("dependency '%s' did not complete", dep)
				log.WithField("step_id", step.ID).Warnf("Skipping step '%s': dependency '%s' %s", step.ID, dep, results[dep].Status)
				metrics.RecordStep(step.ID, string(StatusSkipped), 0)
				return
			}
		}

		if err := r.executeStep(ctx, step, exec, result); err != nil {
			stepErrs = append(stepErrs, ierrors.NewStepError(step.ID, err))
		}
	}

	for _, step := range ordered {
		execute(step)
	}

	report.FinishedAt = time.Now().UTC()
	report.Status = StatusCompleted
	for _, step := range ordered {
		result := results[step.ID]
		report.Steps = append(report.Steps, *result)
		if result.Status != StatusCompleted {
			report.Status = StatusFailed
		}
	}
	if c, ok := exec.JobState.(counter); ok {
		report.Entities, report.Relationships = c.Counts()
		metrics.RecordRegistered(report.Entities, report.Relationships)
	}

	runErr := errors.Join(stepErrs...)
	metrics.RecordRun(string(report.Status), report.FinishedAt.Sub(report.StartedAt).Seconds())
	tracing.EndSpan(span, runErr)

	log.WithFields(map[string]any{
		"status":        report.Status,
		"entities":      report.Entities,
		"relationships": report.Relationships,
		"duration_ms":   report.FinishedAt.Sub(report.StartedAt).Milliseconds(),
	}).Info("Collection run finished")

	return report, runErr
}

func (r *Runner) executeStep(ctx context.Context, step steps.Step, exec *steps.ExecutionContext, result *StepResult) error {
	ctx, span := tracing.StartSpan(ctx, "step."+step.ID, attribute.String("step_id", step.ID))
	log := r.logger.WithContext(ctx).WithField("step_id", step.ID)

	started := time.Now().UTC()
	result.StartedAt = &started
	result.Status = StatusRunning
	log.Infof("Starting step '%s'", step.ID)

	err := ctx.Err()
	if err == nil {
		err = step.Handler(ctx, exec)
	}

	finished := time.Now().UTC()
	result.FinishedAt = &finished
	duration := finished.Sub(started)
	result.DurationMs = duration.Milliseconds()

	if err != nil {
		result.Status = StatusFailed
		result.Error = err.Error()
		log.WithError(err).Errorf("Step '%s' failed", step.ID)
	} else {
		result.Status = StatusCompleted
		log.WithField("duration_ms", result.DurationMs).Infof("Step '%s' completed", step.ID)
	}

	metrics.RecordStep(step.ID, string(result.Status), duration.Seconds())
	tracing.EndSpan(span, err)
	return err
}

func validate(registry *steps.Registry) error {
	for _, step := range registry.Steps() {
		for _, dep := range step.DependsOn {
			if _, ok := registry.Get(dep); !ok {
				return fmt.Errorf("step '%s' depends on unknown step '%s'", step.ID, dep)
			}
		}
	}

	const (
		visiting = iota + 1
		done
	)
	state := make(map[string]int)
	var visit func(id string, path []string) error
	visit = func(id string, path []string) error {
		switch state[id] {
		case visiting:
			return fmt.Errorf("dependency cycle: %v", append(path, id))
		case done:
			return nil
		}
		state[id] = visiting
		step, _ := registry.Get(id)
		for _, dep := range step.DependsOn {
			if err := visit(dep, append(path, id)); err != nil {
				return err
			}
		}
		state[id] = done
		return nil
	}

	for _, id := range registry.IDs() {
		if err := visit(id, nil); err != nil {
			return err
		}
	}
	return nil
}
