package steps

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmountifield/graph-cisco-meraki/pkg/converter"
	ierrors "github.com/jmountifield/graph-cisco-meraki/pkg/errors"
	"github.com/jmountifield/graph-cisco-meraki/pkg/jobstate"
	"github.com/jmountifield/graph-cisco-meraki/pkg/models"
	"github.com/jmountifield/graph-cisco-meraki/pkg/relationships"
)

type fakeClient struct {
	mu            sync.Mutex
	organizations []models.Organization
	admins        map[string][]models.AdminUser
	samlRoles     map[string][]models.SamlRole
	networks      map[string][]models.Network
	devices       map[string][]models.Device
	vlans         map[string][]models.Vlan
	ssids         map[string][]models.SSID
	errs          map[string]error
	calls         map[string][]string
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		admins:    map[string][]models.AdminUser{},
		samlRoles: map[string][]models.SamlRole{},
		networks:  map[string][]models.Network{},
		devices:   map[string][]models.Device{},
		vlans:     map[string][]models.Vlan{},
		ssids:     map[string][]models.SSID{},
		errs:      map[string]error{},
		calls:     map[string][]string{},
	}
}

func (f *fakeClient) record(op, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op] = append(f.calls[op], id)
	return f.errs[op]
}

func (f *fakeClient) ListOrganizations(context.Context) ([]models.Organization, error) {
	return f.organizations, f.record("ListOrganizations", "")
}

func (f *fakeClient) ListAdmins(_ context.Context, id string) ([]models.AdminUser, error) {
	return f.admins[id], f.record("ListAdmins", id)
}

func (f *fakeClient) ListSamlRoles(_ context.Context, id string) ([]models.SamlRole, error) {
	return f.samlRoles[id], f.record("ListSamlRoles", id)
}

func (f *fakeClient) ListNetworks(_ context.Context, id string) ([]models.Network, error) {
	return f.networks[id], f.record("ListNetworks", id)
}

func (f *fakeClient) ListDevices(_ context.Context, id string) ([]models.Device, error) {
	return f.devices[id], f.record("ListDevices", id)
}

func (f *fakeClient) ListVlans(_ context.Context, id string) ([]models.Vlan, error) {
	return f.vlans[id], f.record("ListVlans", id)
}

func (f *fakeClient) ListSSIDs(_ context.Context, id string) ([]models.SSID, error) {
	return f.ssids[id], f.record("ListSSIDs", id)
}

func newExec(t *testing.T, client Client) (*ExecutionContext, *jobstate.MemoryJobState) {
	t.Helper()
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	assembler, err := relationships.NewAssembler(relationships.DeviceConnectsInternet)
	require.NoError(t, err)

	state := jobstate.NewMemoryJobState(logger)
	return &ExecutionContext{
		Client:    client,
		JobState:  state,
		Assembler: assembler,
		Logger:    logger,
	}, state
}

func runSteps(t *testing.T, exec *ExecutionContext, ids ...string) {
	t.Helper()
	registry, err := NewDefaultRegistry()
	require.NoError(t, err)
	for _, id := range ids {
		step, ok := registry.Get(id)
		require.True(t, ok, id)
		require.NoError(t, step.Handler(context.Background(), exec), id)
	}
}

func relationshipsOfType(rels []*models.Relationship, relType string) []*models.Relationship {
	var out []*models.Relationship
	for _, rel := range rels {
		if rel.Type == relType {
			out = append(out, rel)
		}
	}
	return out
}

func TestFetchDevices_EndToEnd(t *testing.T) {
	client := newFakeClient()
	exec, state := newExec(t, client)

	network := models.Network{ID: "N_1", Name: "Office", ProductTypes: []string{"appliance"}}
	networkEntity := mustConvert(t, network)
	_, err := state.AddEntities(context.Background(), []*models.Entity{networkEntity})
	require.NoError(t, err)

	client.devices["N_1"] = []models.Device{
		{Mac: "aa", NetworkID: "N_1", WanIP: "1.1.1.1"},
		{Mac: "bb", NetworkID: "N_1"},
	}

	runSteps(t, exec, FetchDevices)

	devices := 0
	require.NoError(t, state.IterateEntities(context.Background(), jobstate.EntityFilter{Type: models.DeviceEntity.Type}, func(context.Context, *models.Entity) error {
		devices++
		return nil
	}))
	assert.Equal(t, 2, devices)

	rels := state.Relationships()
	has := relationshipsOfType(rels, models.NetworkHasDevice.Type)
	require.Len(t, has, 2)
	for _, rel := range has {
		assert.Equal(t, networkEntity.Key, rel.FromKey)
	}

	mapped := relationshipsOfType(rels, models.DeviceConnectsInternet.Type)
	require.Len(t, mapped, 1)
	assert.Equal(t, "meraki_device:N_1:aa", mapped[0].Mapping.SourceEntityKey)
	assert.Equal(t, []string{"N_1"}, client.calls["ListDevices"])
}

func mustConvert(t *testing.T, network models.Network) *models.Entity {
	t.Helper()
	entity, err := converter.ConvertNetwork(network)
	require.NoError(t, err)
	return entity
}

func TestFullRun(t *testing.T) {
	client := newFakeClient()
	client.organizations = []models.Organization{{ID: "1", Name: "Acme"}}
	client.admins["1"] = []models.AdminUser{{ID: "a1", Name: "Ann", Email: "ann@acme.io"}}
	client.samlRoles["1"] = []models.SamlRole{{ID: "r1", Role: "admins"}}
	client.networks["1"] = []models.Network{
		{ID: "N_1", Name: "HQ", ProductTypes: []string{"appliance", "wireless"}},
		{ID: "N_2", Name: "Branch", ProductTypes: []string{"switch"}},
	}
	client.devices["N_1"] = []models.Device{{Mac: "aa", NetworkID: "N_1", Wan1IP: "2.2.2.2"}}
	client.devices["N_2"] = []models.Device{{Serial: "Q2XX", NetworkID: "N_2"}}
	client.vlans["N_1"] = []models.Vlan{{ID: 1, NetworkID: "N_1", Name: "DMZ"}}
	client.ssids["N_1"] = []models.SSID{{Number: 0, Name: "Guest"}}

	exec, state := newExec(t, client)
	exec.Concurrency = 4

	registry, err := NewDefaultRegistry()
	require.NoError(t, err)
	runSteps(t, exec, registry.IDs()...)

	t.Run("vlans and ssids are only fetched for matching networks", func(t *testing.T) {
		assert.Equal(t, []string{"N_1"}, client.calls["ListVlans"])
		assert.Equal(t, []string{"N_1"}, client.calls["ListSSIDs"])
		assert.ElementsMatch(t, []string{"N_1", "N_2"}, client.calls["ListDevices"])
	})

	t.Run("every produced type is declared by a step", func(t *testing.T) {
		entityTypes := map[string]bool{}
		relTypes := map[string]bool{}
		for _, step := range registry.Steps() {
			for _, e := range step.Entities {
				entityTypes[e.Type] = true
			}
			for _, r := range step.Relationships {
				relTypes[r.Type] = true
			}
			for _, r := range step.MappedRelationships {
				relTypes[r.Type] = true
			}
		}

		for _, entity := range state.Entities() {
			assert.True(t, entityTypes[entity.Type], entity.Type)
		}
		for _, rel := range state.Relationships() {
			assert.True(t, relTypes[rel.Type], rel.Type)
		}
	})

	t.Run("counts", func(t *testing.T) {
		entities, rels := state.Counts()
		// account, org, admin, role, 2 networks, 2 devices, vlan, ssid
		assert.Equal(t, 10, entities)
		// account->org, org->admin, org->role, 2 org->network, 2 network->device, device->internet, network->vlan, network->wifi
		assert.Equal(t, 10, rels)
	})
}

func TestFetchErrorsFailTheStep(t *testing.T) {
	client := newFakeClient()
	client.organizations = []models.Organization{{ID: "1", Name: "Acme"}}
	client.errs["ListNetworks"] = errors.New("401 unauthorized")

	exec, _ := newExec(t, client)
	runSteps(t, exec, FetchOrganizations)

	registry, err := NewDefaultRegistry()
	require.NoError(t, err)
	step, _ := registry.Get(FetchNetworks)

	err = step.Handler(context.Background(), exec)
	var fetchErr *ierrors.FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, "ListNetworks", fetchErr.Operation)
	assert.Equal(t, "meraki_organization:1", fetchErr.ParentID)
}

func TestConversionErrorsFailTheStep(t *testing.T) {
	runNetworks := func(t *testing.T, client *fakeClient) error {
		t.Helper()
		exec, _ := newExec(t, client)
		runSteps(t, exec, FetchOrganizations)

		registry, err := NewDefaultRegistry()
		require.NoError(t, err)
		step, _ := registry.Get(FetchNetworks)
		return step.Handler(context.Background(), exec)
	}

	t.Run("invalid child record", func(t *testing.T) {
		client := newFakeClient()
		client.organizations = []models.Organization{{ID: "1", Name: "Acme"}}
		client.networks["1"] = []models.Network{{Name: "no id"}}

		assert.True(t, ierrors.IsConversionError(runNetworks(t, client)))
	})

	t.Run("client conversion errors are not reported as fetch failures", func(t *testing.T) {
		client := newFakeClient()
		client.organizations = []models.Organization{{ID: "1", Name: "Acme"}}
		client.errs["ListNetworks"] = ierrors.NewConversionError(models.NetworkEntity.Type, "id", "missing")

		err := runNetworks(t, client)
		require.Error(t, err)
		assert.True(t, ierrors.IsConversionError(err))
		assert.False(t, ierrors.IsFetchError(err))
		assert.Equal(t, http.StatusUnprocessableEntity, httperror.GetStatusCode(ierrors.ToHTTPError(err)))
	})

	t.Run("root step passes conversion errors through", func(t *testing.T) {
		client := newFakeClient()
		client.errs["ListOrganizations"] = ierrors.NewConversionError(models.OrganizationEntity.Type, "id", "missing")

		exec, _ := newExec(t, client)
		err := fetchOrganizations(context.Background(), exec)
		assert.True(t, ierrors.IsConversionError(err))
		assert.False(t, ierrors.IsFetchError(err))
	})
}

func TestNewRegistry(t *testing.T) {
	noop := func(context.Context, *ExecutionContext) error { return nil }

	_, err := NewRegistry(Step{ID: "a", Handler: noop}, Step{ID: "a", Handler: noop})
	assert.Error(t, err)

	_, err = NewRegistry(Step{Handler: noop})
	assert.Error(t, err)

	_, err = NewRegistry(Step{ID: "a"})
	assert.Error(t, err)

	registry, err := NewDefaultRegistry()
	require.NoError(t, err)
	assert.Equal(t, []string{
		FetchOrganizations, FetchAdmins, FetchSamlRoles, FetchNetworks, FetchDevices, FetchVlans, FetchSSIDs,
	}, registry.IDs())

	devices, ok := registry.Get(FetchDevices)
	require.True(t, ok)
	assert.Equal(t, []string{FetchNetworks}, devices.DependsOn)

	_, ok = registry.Get("missing")
	assert.False(t, ok)
}
