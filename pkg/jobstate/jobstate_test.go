package jobstate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmountifield/graph-cisco-meraki/pkg/converter"
	ierrors "github.com/jmountifield/graph-cisco-meraki/pkg/errors"
	"github.com/jmountifield/graph-cisco-meraki/pkg/models"
	"github.com/jmountifield/graph-cisco-meraki/pkg/relationships"
)

func newState() *MemoryJobState {
	return NewMemoryJobState(ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}))
}

func network(t *testing.T, id, name string) *models.Entity {
	t.Helper()
	entity, err := converter.ConvertNetwork(models.Network{ID: id, Name: name})
	require.NoError(t, err)
	return entity
}

func device(t *testing.T, networkID, mac, wanIP string) *models.Entity {
	t.Helper()
	entity, err := converter.ConvertDevice(models.Device{NetworkID: networkID, Mac: mac, WanIP: wanIP})
	require.NoError(t, err)
	return entity
}

func TestAddEntities(t *testing.T) {
	ctx := context.Background()

	t.Run("registers in order", func(t *testing.T) {
		s := newState()
		a, b := network(t, "N_1", "a"), network(t, "N_2", "b")

		registered, err := s.AddEntities(ctx, []*models.Entity{a, b})
		require.NoError(t, err)
		assert.Equal(t, []*models.Entity{a, b}, registered)
		assert.Equal(t, []*models.Entity{a, b}, s.Entities())
		assert.True(t, s.HasKey(a.Key))
	})

	t.Run("same record twice is a no-op returning the stored entity", func(t *testing.T) {
		s := newState()
		first := network(t, "N_1", "a")
		again := network(t, "N_1", "a")

		_, err := s.AddEntities(ctx, []*models.Entity{first})
		require.NoError(t, err)
		registered, err := s.AddEntities(ctx, []*models.Entity{again})
		require.NoError(t, err)

		assert.Same(t, first, registered[0])
		entities, _ := s.Counts()
		assert.Equal(t, 1, entities)
	})

	t.Run("distinct records with the same key are rejected", func(t *testing.T) {
		s := newState()
		_, err := s.AddEntities(ctx, []*models.Entity{network(t, "N_1", "a")})
		require.NoError(t, err)

		_, err = s.AddEntities(ctx, []*models.Entity{network(t, "N_1", "renamed")})
		var dup *ierrors.DuplicateKeyError
		require.True(t, errors.As(err, &dup))
		assert.Equal(t, "meraki_network:N_1", dup.Key)
	})

	t.Run("records differing only in tags are rejected", func(t *testing.T) {
		s := newState()
		prod, err := converter.ConvertDevice(models.Device{NetworkID: "n1", Mac: "aa", Tags: []string{"prod"}})
		require.NoError(t, err)
		lab, err := converter.ConvertDevice(models.Device{NetworkID: "n1", Mac: "aa", Tags: []string{"lab"}})
		require.NoError(t, err)

		_, err = s.AddEntities(ctx, []*models.Entity{prod})
		require.NoError(t, err)
		_, err = s.AddEntities(ctx, []*models.Entity{lab})
		require.True(t, ierrors.IsDuplicateKeyError(err))

		stored := s.Entities()
		require.Len(t, stored, 1)
		assert.Equal(t, []string{"prod"}, stored[0].Tags)
	})

	t.Run("a rejected batch registers nothing", func(t *testing.T) {
		s := newState()
		_, err := s.AddEntities(ctx, []*models.Entity{network(t, "N_1", "a"), network(t, "N_2", "b"), network(t, "N_1", "c")})
		require.Error(t, err)

		entities, _ := s.Counts()
		assert.Equal(t, 0, entities)
		assert.False(t, s.HasKey("meraki_network:N_2"))
	})

	t.Run("duplicates inside a batch are registered once", func(t *testing.T) {
		s := newState()
		n := network(t, "N_1", "a")
		registered, err := s.AddEntities(ctx, []*models.Entity{n, n})
		require.NoError(t, err)
		assert.Len(t, registered, 2)
		assert.Len(t, s.Entities(), 1)
	})
}

func TestAddRelationships(t *testing.T) {
	ctx := context.Background()
	assembler, err := relationships.NewAssembler(relationships.DeviceConnectsInternet)
	require.NoError(t, err)

	t.Run("missing endpoint is rejected", func(t *testing.T) {
		s := newState()
		n := network(t, "N_1", "a")
		d := device(t, "N_1", "aa", "")
		_, err := s.AddEntities(ctx, []*models.Entity{n})
		require.NoError(t, err)

		err = s.AddRelationships(ctx, []*models.Relationship{models.NewDirectRelationship(n, d, models.ClassHas)})
		var integrity *ierrors.RelationshipIntegrityError
		require.True(t, errors.As(err, &integrity))
		assert.Equal(t, d.Key, integrity.MissingKey)
	})

	t.Run("mapped relationship needs its source registered", func(t *testing.T) {
		s := newState()
		d := device(t, "N_1", "aa", "1.1.1.1")
		mapped, err := assembler.Mapped(d)
		require.NoError(t, err)
		require.Len(t, mapped, 1)

		err = s.AddRelationships(ctx, mapped)
		assert.True(t, ierrors.IsRelationshipIntegrityError(err))

		_, err = s.AddEntities(ctx, []*models.Entity{d})
		require.NoError(t, err)
		assert.NoError(t, s.AddRelationships(ctx, mapped))
	})

	t.Run("same relationship twice is a no-op", func(t *testing.T) {
		s := newState()
		n := network(t, "N_1", "a")
		d := device(t, "N_1", "aa", "")
		_, err := s.AddEntities(ctx, []*models.Entity{n, d})
		require.NoError(t, err)

		rel := models.NewDirectRelationship(n, d, models.ClassHas)
		require.NoError(t, s.AddRelationships(ctx, []*models.Relationship{rel}))
		require.NoError(t, s.AddRelationships(ctx, []*models.Relationship{models.NewDirectRelationship(n, d, models.ClassHas)}))
		assert.Len(t, s.Relationships(), 1)
	})

	t.Run("same key with different endpoints is rejected", func(t *testing.T) {
		s := newState()
		n := network(t, "N_1", "a")
		d1 := device(t, "N_1", "aa", "")
		d2 := device(t, "N_1", "bb", "")
		_, err := s.AddEntities(ctx, []*models.Entity{n, d1, d2})
		require.NoError(t, err)

		rel := models.NewDirectRelationship(n, d1, models.ClassHas)
		require.NoError(t, s.AddRelationships(ctx, []*models.Relationship{rel}))

		clash := models.NewDirectRelationship(n, d2, models.ClassHas)
		clash.Key = rel.Key
		assert.True(t, ierrors.IsDuplicateKeyError(s.AddRelationships(ctx, []*models.Relationship{clash})))
	})
}

func TestIterateEntities(t *testing.T) {
	ctx := context.Background()
	s := newState()
	n := network(t, "N_1", "a")
	d := device(t, "N_1", "aa", "")
	_, err := s.AddEntities(ctx, []*models.Entity{n, d})
	require.NoError(t, err)

	t.Run("filters by type", func(t *testing.T) {
		var seen []string
		err := s.IterateEntities(ctx, EntityFilter{Type: models.DeviceEntity.Type}, func(_ context.Context, e *models.Entity) error {
			seen = append(seen, e.Key)
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, []string{d.Key}, seen)
	})

	t.Run("registering while iterating does not change the snapshot", func(t *testing.T) {
		count := 0
		err := s.IterateEntities(ctx, EntityFilter{Type: models.NetworkEntity.Type}, func(ctx context.Context, _ *models.Entity) error {
			count++
			_, err := s.AddEntities(ctx, []*models.Entity{network(t, fmt.Sprintf("N_new_%d", count), "x")})
			return err
		})
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("callback errors stop iteration", func(t *testing.T) {
		boom := errors.New("boom")
		err := s.IterateEntities(ctx, EntityFilter{}, func(context.Context, *models.Entity) error { return boom })
		assert.ErrorIs(t, err, boom)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		err := s.IterateEntities(cctx, EntityFilter{}, func(context.Context, *models.Entity) error { return nil })
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestRawData(t *testing.T) {
	n := network(t, "N_1", "a")

	record, err := RawData[models.Network](n)
	require.NoError(t, err)
	assert.Equal(t, "N_1", record.ID)

	_, err = RawData[models.Device](n)
	assert.Error(t, err)

	_, err = RawData[models.Device](&models.Entity{Key: "x"})
	assert.Error(t, err)
}

func TestConcurrentRegistration(t *testing.T) {
	ctx := context.Background()
	s := newState()

	// every goroutine registers its own copy of the same network
	copies := make([]*models.Entity, 20)
	for i := range copies {
		copies[i] = network(t, "N_1", "a")
	}

	var wg sync.WaitGroup
	for _, entity := range copies {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.AddEntities(ctx, []*models.Entity{entity})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	entities, _ := s.Counts()
	assert.Equal(t, 1, entities)
}
