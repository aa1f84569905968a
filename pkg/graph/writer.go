package graph

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jmountifield/graph-cisco-meraki/pkg/metrics"
	"github.com/jmountifield/graph-cisco-meraki/pkg/models"
	"github.com/jmountifield/graph-cisco-meraki/pkg/tracing"
)

type writeExecutor interface {
	ExecuteWrite(ctx context.Context, work neo4j.ManagedTransactionWork) (any, error)
}

// Writer upserts a run's graph. Nodes are identified by _key, so writing the same run twice is idempotent.
type Writer struct {
	client writeExecutor
	logger ectologger.Logger
}

func NewWriter(client *Client, logger ectologger.Logger) *Writer {
	return &Writer{
		client: client,
		logger: logger,
	}
}

// Write upserts every entity and relationship in a single write transaction.
func (w *Writer) Write(ctx context.Context, runID string, entities []*models.Entity, relationships []*models.Relationship) error {
	ctx, span := tracing.StartSpan(ctx, "graph.Writer.Write",
		attribute.String("run_id", runID),
		attribute.Int("entities", len(entities)),
		attribute.Int("relationships", len(relationships)),
	)

	log := w.logger.WithContext(ctx).WithFields(map[string]any{
		"run_id":        runID,
		"entities":      len(entities),
		"relationships": len(relationships),
	})

	statements := BuildStatements(runID, entities, relationships)
	if len(statements) == 0 {
		tracing.EndSpan(span, nil)
		return nil
	}

	_, err := w.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, statement := range statements {
			result, err := tx.Run(ctx, statement.Cypher, statement.Params)
			if err != nil {
				return nil, fmt.Errorf("%s batch: %w", statement.Kind, err)
			}
			if _, err := result.Consume(ctx); err != nil {
				return nil, fmt.Errorf("%s batch: %w", statement.Kind, err)
			}
		}
		return nil, nil
	})

	status := "success"
	if err != nil {
		status = "error"
	}
	for _, statement := range statements {
		metrics.RecordGraphWrite(statement.Kind, status)
	}
	tracing.EndSpan(span, err)

	if err != nil {
		log.WithError(err).Error("Failed to write graph")
		return fmt.Errorf("failed to write graph: %w", err)
	}

	log.Info("Wrote graph")
	return nil
}
