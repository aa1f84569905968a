// Package collector runs one collection end to end: steps, graph write, event publish and run history.
package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/jmountifield/graph-cisco-meraki/pkg/jobstate"
	"github.com/jmountifield/graph-cisco-meraki/pkg/models"
	"github.com/jmountifield/graph-cisco-meraki/pkg/redis"
	"github.com/jmountifield/graph-cisco-meraki/pkg/relationships"
	"github.com/jmountifield/graph-cisco-meraki/pkg/runner"
	"github.com/jmountifield/graph-cisco-meraki/pkg/steps"
)

// ErrRunInProgress is returned when another run holds the lock for the same API key
var ErrRunInProgress = errors.New("a collection run is already in progress")

// GraphWriter persists a run's graph
type GraphWriter interface {
	Write(ctx context.Context, runID string, entities []*models.Entity, relationships []*models.Relationship) error
}

// EventPublisher emits a run's graph as events
type EventPublisher interface {
	PublishRun(ctx context.Context, runID string, entities []*models.Entity, relationships []*models.Relationship) error
}

// RunStore records run history
type RunStore interface {
	Start(ctx context.Context, runID uuid.UUID, startedAt time.Time) error
	Finish(ctx context.Context, report *runner.Report, runErr error) error
}

// Result is a finished run plus everything it registered.
type Result struct {
	Report        *runner.Report         `json:"report" yaml:"report"`
	Entities      []*models.Entity       `json:"entities" yaml:"entities"`
	Relationships []*models.Relationship `json:"relationships" yaml:"relationships"`
}

// Options wires the optional outputs. Nil outputs are skipped.
type Options struct {
	Concurrency int
	Graph       GraphWriter
	Events      EventPublisher
	Runs        RunStore
	Locker      *redis.Locker
	LockKey     string
	LockTTL     time.Duration
}

type Service struct {
	client    steps.Client
	runner    *runner.Runner
	assembler *relationships.Assembler
	opts      Options
	logger    ectologger.Logger
}

// New builds the default step registry and validates it.
func New(client steps.Client, opts Options, logger ectologger.Logger) (*Service, error) {
	registry, err := steps.NewDefaultRegistry()
	if err != nil {
		return nil, err
	}
	r, err := runner.New(registry, logger)
	if err != nil {
		return nil, err
	}
	assembler, err := relationships.NewAssembler(relationships.DeviceConnectsInternet)
	if err != nil {
		return nil, err
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 30 * time.Minute
	}

	return &Service{
		client:    client,
		runner:    r,
		assembler: assembler,
		opts:      opts,
		logger:    logger,
	}, nil
}

// Collect runs synchronously under the run lock and returns the collected graph.
func (s *Service) Collect(ctx context.Context) (*Result, error) {
	runID := uuid.New()

	release, err := s.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := s.startRun(ctx, runID); err != nil {
		return nil, err
	}
	return s.run(ctx, runID)
}

// Start takes the run lock and runs in the background. The returned id can be looked up in the run history.
func (s *Service) Start(ctx context.Context) (uuid.UUID, error) {
	runID := uuid.New()

	release, err := s.lock(ctx)
	if err != nil {
		return uuid.Nil, err
	}

	if err := s.startRun(ctx, runID); err != nil {
		release()
		return uuid.Nil, err
	}

	bg := context.WithoutCancel(ctx)
	go func() {
		defer release()
		if _, err := s.run(bg, runID); err != nil {
			s.logger.WithContext(bg).WithError(err).WithField("run_id", runID.String()).Error("Collection run failed")
		}
	}()

	return runID, nil
}

func (s *Service) run(ctx context.Context, runID uuid.UUID) (*Result, error) {
	state := jobstate.NewMemoryJobState(s.logger)
	exec := &steps.ExecutionContext{
		Client:      s.client,
		JobState:    state,
		Assembler:   s.assembler,
		Logger:      s.logger,
		Concurrency: s.opts.Concurrency,
	}

	report, runErr := s.runner.RunWithID(ctx, runID, exec)
	result := &Result{
		Report:        report,
		Entities:      state.Entities(),
		Relationships: state.Relationships(),
	}

	// completed steps are kept even when a later step failed
	outErr := s.export(ctx, runID.String(), result)
	err := errors.Join(runErr, outErr)

	if s.opts.Runs != nil {
		if finishErr := s.opts.Runs.Finish(ctx, report, err); finishErr != nil {
			s.logger.WithContext(ctx).WithError(finishErr).Error("Failed to save run history")
			err = errors.Join(err, finishErr)
		}
	}

	return result, err
}

func (s *Service) export(ctx context.Context, runID string, result *Result) error {
	var errs []error
	if s.opts.Graph != nil {
		if err := s.opts.Graph.Write(ctx, runID, result.Entities, result.Relationships); err != nil {
			errs = append(errs, err)
		}
	}
	if s.opts.Events != nil {
		if err := s.opts.Events.PublishRun(ctx, runID, result.Entities, result.Relationships); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Service) startRun(ctx context.Context, runID uuid.UUID) error {
	if s.opts.Runs == nil {
		return nil
	}
	return s.opts.Runs.Start(ctx, runID, time.Now().UTC())
}

// lock returns a release func that also stops the lock keep-alive.
func (s *Service) lock(ctx context.Context) (func(), error) {
	if s.opts.Locker == nil {
		return func() {}, nil
	}

	lock, err := s.opts.Locker.Acquire(ctx, s.opts.LockKey, s.opts.LockTTL)
	if err != nil {
		if errors.Is(err, redis.ErrLockNotAcquired) {
			return nil, ErrRunInProgress
		}
		return nil, fmt.Errorf("failed to acquire run lock: %w", err)
	}

	keepAliveCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	go lock.KeepAlive(keepAliveCtx)

	return func() {
		cancel()
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.logger.WithContext(ctx).WithError(err).Warnf("Failed to release run lock %s", lock.Key())
		}
	}, nil
}
