package steps

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	ierrors "github.com/jmountifield/graph-cisco-meraki/pkg/errors"
	"github.com/jmountifield/graph-cisco-meraki/pkg/jobstate"
	"github.com/jmountifield/graph-cisco-meraki/pkg/models"
)

// childPipeline walks the registered parents of one type, fetches each parent's children, converts
// and registers them, then links them to the parent.
type childPipeline[P models.RawRecord, C any] struct {
	stepID     string
	operation  string
	parentType string
	// include skips parents whose children cannot exist, e.g. VLANs of a wireless-only network
	include func(parent P) bool
	fetch   func(ctx context.Context, client Client, parent P) ([]C, error)
	convert func(parent P, child C) (*models.Entity, error)
}

func (p childPipeline[P, C]) run(ctx context.Context, exec *ExecutionContext) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(exec.concurrency())

	iterErr := exec.JobState.IterateEntities(gctx, jobstate.EntityFilter{Type: p.parentType}, func(_ context.Context, parent *models.Entity) error {
		g.Go(func() error {
			return p.processParent(gctx, exec, parent)
		})
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	return iterErr
}

func (p childPipeline[P, C]) processParent(ctx context.Context, exec *ExecutionContext, parent *models.Entity) error {
	log := exec.Logger.WithContext(ctx).WithFields(map[string]any{
		"step_id":    p.stepID,
		"parent_key": parent.Key,
	})

	raw, err := jobstate.RawData[P](parent)
	if err != nil {
		return fmt.Errorf("failed to read raw data of %s: %w", parent.Key, err)
	}

	if p.include != nil && !p.include(raw) {
		log.Debug("Parent has no children of this kind, skipping")
		return nil
	}

	children, err := p.fetch(ctx, exec.Client, raw)
	if err != nil {
		if ierrors.IsFetchError(err) || ierrors.IsConversionError(err) {
			return err
		}
		return ierrors.NewFetchError(p.operation, parent.Key, err)
	}

	entities := make([]*models.Entity, 0, len(children))
	for _, child := range children {
		entity, err := p.convert(raw, child)
		if err != nil {
			return err
		}
		entities = append(entities, entity)
	}

	registered, err := exec.JobState.AddEntities(ctx, entities)
	if err != nil {
		return err
	}

	rels, err := exec.Assembler.Assemble(parent, registered)
	if err != nil {
		return err
	}
	if err := exec.JobState.AddRelationships(ctx, rels); err != nil {
		return err
	}

	log.WithFields(map[string]any{
		"entities":      len(registered),
		"relationships": len(rels),
	}).Debug("Processed parent")
	return nil
}
