package collector

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ierrors "github.com/jmountifield/graph-cisco-meraki/pkg/errors"
	"github.com/jmountifield/graph-cisco-meraki/pkg/models"
	"github.com/jmountifield/graph-cisco-meraki/pkg/runner"
)

var testLogger = ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})

type dashboard struct {
	networksErr error
}

func (dashboard) ListOrganizations(context.Context) ([]models.Organization, error) {
	return []models.Organization{{ID: "1", Name: "Acme"}}, nil
}
func (dashboard) ListAdmins(context.Context, string) ([]models.AdminUser, error) { return nil, nil }
func (dashboard) ListSamlRoles(context.Context, string) ([]models.SamlRole, error) {
	return nil, nil
}
func (d dashboard) ListNetworks(context.Context, string) ([]models.Network, error) {
	if d.networksErr != nil {
		return nil, d.networksErr
	}
	return []models.Network{{ID: "N_1", OrganizationID: "1", Name: "HQ", ProductTypes: []string{"appliance"}}}, nil
}
func (dashboard) ListDevices(context.Context, string) ([]models.Device, error) {
	return []models.Device{
		{Serial: "Q1", Mac: "00:11:22:33:44:55", NetworkID: "N_1", WanIP: "1.2.3.4"},
		{Serial: "Q2", Mac: "00:11:22:33:44:66", NetworkID: "N_1"},
	}, nil
}
func (dashboard) ListVlans(context.Context, string) ([]models.Vlan, error) { return nil, nil }
func (dashboard) ListSSIDs(context.Context, string) ([]models.SSID, error) { return nil, nil }

type recordingSink struct {
	mu       sync.Mutex
	runIDs   []string
	entities int
	rels     int
	err      error
}

func (s *recordingSink) record(runID string, entities []*models.Entity, rels []*models.Relationship) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runIDs = append(s.runIDs, runID)
	s.entities, s.rels = len(entities), len(rels)
	return s.err
}

func (s *recordingSink) Write(_ context.Context, runID string, entities []*models.Entity, rels []*models.Relationship) error {
	return s.record(runID, entities, rels)
}

func (s *recordingSink) PublishRun(_ context.Context, runID string, entities []*models.Entity, rels []*models.Relationship) error {
	return s.record(runID, entities, rels)
}

type memoryRuns struct {
	mu       sync.Mutex
	started  []uuid.UUID
	finished chan *runner.Report
	errs     []error
}

func newMemoryRuns() *memoryRuns {
	return &memoryRuns{finished: make(chan *runner.Report, 1)}
}

func (m *memoryRuns) Start(_ context.Context, runID uuid.UUID, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = append(m.started, runID)
	return nil
}

func (m *memoryRuns) Finish(_ context.Context, report *runner.Report, runErr error) error {
	m.mu.Lock()
	m.errs = append(m.errs, runErr)
	m.mu.Unlock()
	m.finished <- report
	return nil
}

func TestCollect(t *testing.T) {
	graph, events, runs := &recordingSink{}, &recordingSink{}, newMemoryRuns()
	service, err := New(dashboard{}, Options{Concurrency: 2, Graph: graph, Events: events, Runs: runs}, testLogger)
	require.NoError(t, err)

	result, err := service.Collect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, runner.StatusCompleted, result.Report.Status)
	// account, organization, network, 2 devices
	assert.Len(t, result.Entities, 5)
	// account->org, org->network, 2x network->device, 1 device->internet
	assert.Len(t, result.Relationships, 5)
	assert.Equal(t, 5, result.Report.Entities)

	runID := result.Report.RunID.String()
	assert.Equal(t, []string{runID}, graph.runIDs)
	assert.Equal(t, []string{runID}, events.runIDs)
	assert.Equal(t, 5, graph.rels)

	require.Len(t, runs.started, 1)
	assert.Equal(t, result.Report.RunID, runs.started[0])
	finished := <-runs.finished
	assert.Equal(t, result.Report, finished)
}

func TestCollect_StepFailureKeepsCompletedSteps(t *testing.T) {
	graph := &recordingSink{}
	service, err := New(dashboard{networksErr: errors.New("503")}, Options{Graph: graph}, testLogger)
	require.NoError(t, err)

	result, err := service.Collect(context.Background())
	require.Error(t, err)
	assert.True(t, ierrors.IsFetchError(err))

	assert.Equal(t, runner.StatusFailed, result.Report.Status)
	devices, _ := result.Report.Step("fetch-devices")
	assert.Equal(t, runner.StatusSkipped, devices.Status)

	// account and organization were still written
	assert.Equal(t, 2, graph.entities)
}

func TestCollect_ExportErrorIsReported(t *testing.T) {
	runs := newMemoryRuns()
	service, err := New(dashboard{}, Options{Graph: &recordingSink{err: errors.New("bolt down")}, Runs: runs}, testLogger)
	require.NoError(t, err)

	result, err := service.Collect(context.Background())
	assert.ErrorContains(t, err, "bolt down")
	assert.Equal(t, runner.StatusCompleted, result.Report.Status)

	<-runs.finished
	require.Len(t, runs.errs, 1)
	assert.ErrorContains(t, runs.errs[0], "bolt down")
}

func TestStart_RunsInBackground(t *testing.T) {
	runs := newMemoryRuns()
	service, err := New(dashboard{}, Options{Runs: runs}, testLogger)
	require.NoError(t, err)

	runID, err := service.Start(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, runID)

	select {
	case report := <-runs.finished:
		assert.Equal(t, runID, report.RunID)
		assert.Equal(t, runner.StatusCompleted, report.Status)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish")
	}
}
