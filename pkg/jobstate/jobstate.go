// Package jobstate is the run-scoped store for converted entities and relationships.
package jobstate

import (
	"context"
	"fmt"
	"sync"

	"github.com/Gobusters/ectologger"

	ierrors "github.com/jmountifield/graph-cisco-meraki/pkg/errors"
	"github.com/jmountifield/graph-cisco-meraki/pkg/fingerprint"
	"github.com/jmountifield/graph-cisco-meraki/pkg/models"
)

// EntityFilter selects entities while iterating. An empty Type matches everything.
type EntityFilter struct {
	Type string
}

func (f EntityFilter) Matches(entity *models.Entity) bool {
	return f.Type == "" || f.Type == entity.Type
}

// JobState is what steps read parents from and register results into.
type JobState interface {
	// AddEntities registers a batch atomically and returns the registered entities. An entity whose
	// key and source are already registered resolves to the stored entity.
	AddEntities(ctx context.Context, entities []*models.Entity) ([]*models.Entity, error)
	// AddRelationships registers a batch atomically. Endpoints must already be registered.
	AddRelationships(ctx context.Context, relationships []*models.Relationship) error
	// IterateEntities calls fn for every entity matching filter, in registration order, over a
	// snapshot taken when iteration starts.
	IterateEntities(ctx context.Context, filter EntityFilter, fn func(ctx context.Context, entity *models.Entity) error) error
	FindEntity(ctx context.Context, key string) (*models.Entity, bool)
	HasKey(key string) bool
}

type storedEntity struct {
	entity      *models.Entity
	fingerprint string
}

// MemoryJobState keeps a run in memory. Safe for concurrent use.
type MemoryJobState struct {
	mu                sync.RWMutex
	entities          map[string]storedEntity
	entityOrder       []string
	relationships     map[string]*models.Relationship
	relationshipOrder []string
	logger            ectologger.Logger
}

var _ JobState = (*MemoryJobState)(nil)

func NewMemoryJobState(logger ectologger.Logger) *MemoryJobState {
	return &MemoryJobState{
		entities:      make(map[string]storedEntity),
		relationships: make(map[string]*models.Relationship),
		logger:        logger,
	}
}

func (s *MemoryJobState) AddEntities(ctx context.Context, entities []*models.Entity) ([]*models.Entity, error) {
	prints := make([]string, len(entities))
	for i, entity := range entities {
		fp, err := entityFingerprint(entity)
		if err != nil {
			return nil, fmt.Errorf("failed to fingerprint entity %s: %w", entity.Key, err)
		}
		prints[i] = fp
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	registered := make([]*models.Entity, len(entities))
	pending := make(map[string]storedEntity, len(entities))
	order := make([]string, 0, len(entities))
	for i, entity := range entities {
		existing, ok := s.entities[entity.Key]
		if !ok {
			existing, ok = pending[entity.Key]
		}
		if ok {
			if existing.fingerprint != prints[i] || existing.entity.Type != entity.Type {
				return nil, ierrors.NewDuplicateKeyError(entity.Key, entity.Type)
			}
			s.logger.WithContext(ctx).WithField("key", entity.Key).Debug("Entity already registered, skipping")
			registered[i] = existing.entity
			continue
		}

		pending[entity.Key] = storedEntity{entity: entity, fingerprint: prints[i]}
		order = append(order, entity.Key)
		registered[i] = entity
	}

	for _, key := range order {
		s.entities[key] = pending[key]
		s.entityOrder = append(s.entityOrder, key)
	}

	return registered, nil
}

func (s *MemoryJobState) AddRelationships(ctx context.Context, relationships []*models.Relationship) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := make(map[string]*models.Relationship, len(relationships))
	order := make([]string, 0, len(relationships))
	for _, rel := range relationships {
		if err := s.checkEndpoints(rel); err != nil {
			return err
		}

		existing, ok := s.relationships[rel.Key]
		if !ok {
			existing, ok = pending[rel.Key]
		}
		if ok {
			if !sameEndpoints(existing, rel) {
				return ierrors.NewDuplicateKeyError(rel.Key, rel.Type)
			}
			s.logger.WithContext(ctx).WithField("key", rel.Key).Debug("Relationship already registered, skipping")
			continue
		}

		pending[rel.Key] = rel
		order = append(order, rel.Key)
	}

	for _, key := range order {
		s.relationships[key] = pending[key]
		s.relationshipOrder = append(s.relationshipOrder, key)
	}
	return nil
}

func (s *MemoryJobState) IterateEntities(ctx context.Context, filter EntityFilter, fn func(ctx context.Context, entity *models.Entity) error) error {
	for _, entity := range s.snapshot(filter) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(ctx, entity); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemoryJobState) FindEntity(_ context.Context, key string) (*models.Entity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.entities[key]
	return stored.entity, ok
}

func (s *MemoryJobState) HasKey(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.entities[key]
	return ok
}

// Entities returns every registered entity in registration order.
func (s *MemoryJobState) Entities() []*models.Entity {
	return s.snapshot(EntityFilter{})
}

// Relationships returns every registered relationship in registration order.
func (s *MemoryJobState) Relationships() []*models.Relationship {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Relationship, 0, len(s.relationshipOrder))
	for _, key := range s.relationshipOrder {
		out = append(out, s.relationships[key])
	}
	return out
}

// Counts returns the number of registered entities and relationships.
func (s *MemoryJobState) Counts() (entities, relationships int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entityOrder), len(s.relationshipOrder)
}

func (s *MemoryJobState) snapshot(filter EntityFilter) []*models.Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Entity, 0, len(s.entityOrder))
	for _, key := range s.entityOrder {
		entity := s.entities[key].entity
		if filter.Matches(entity) {
			out = append(out, entity)
		}
	}
	return out
}

// checkEndpoints must be called with the lock held.
func (s *MemoryJobState) checkEndpoints(rel *models.Relationship) error {
	if rel.IsMapped() {
		if _, ok := s.entities[rel.Mapping.SourceEntityKey]; !ok {
			return ierrors.NewRelationshipIntegrityError(rel.Key, rel.Mapping.SourceEntityKey)
		}
		return nil
	}

	for _, key := range []string{rel.FromKey, rel.ToKey} {
		if _, ok := s.entities[key]; !ok {
			return ierrors.NewRelationshipIntegrityError(rel.Key, key)
		}
	}
	return nil
}

func sameEndpoints(a, b *models.Relationship) bool {
	if a.Type != b.Type || a.IsMapped() != b.IsMapped() {
		return false
	}
	if a.IsMapped() {
		return a.Mapping.SourceEntityKey == b.Mapping.SourceEntityKey &&
			a.Mapping.Direction == b.Mapping.Direction &&
			a.Mapping.TargetEntity.Key == b.Mapping.TargetEntity.Key
	}
	return a.FromKey == b.FromKey && a.ToKey == b.ToKey
}

// entityFingerprint identifies the record behind an entity, preferring the unmodified record.
// Entities without a source fall back to their properties.
func entityFingerprint(entity *models.Entity) (string, error) {
	record := entity.Original
	if record == nil {
		record = entity.RawSource
	}
	if record != nil {
		return fingerprint.FromRecord(map[string]any{
			"recordType": record.RecordType(),
			"record":     record,
		})
	}
	return fingerprint.FromRecord(entity.Properties)
}

// RawData returns the source record of an entity as T.
func RawData[T models.RawRecord](entity *models.Entity) (T, error) {
	var zero T
	if entity == nil || entity.RawSource == nil {
		return zero, fmt.Errorf("entity has no raw source")
	}
	record, ok := entity.RawSource.(T)
	if !ok {
		return zero, fmt.Errorf("raw source of %s is %T, not %T", entity.Key, entity.RawSource, zero)
	}
	return record, nil
}
