// Package steps defines the fetch, convert and link units of a collection run.
package steps

import (
	"context"
	"fmt"
	"slices"

	"github.com/Gobusters/ectologger"

	"github.com/jmountifield/graph-cisco-meraki/pkg/jobstate"
	"github.com/jmountifield/graph-cisco-meraki/pkg/models"
	"github.com/jmountifield/graph-cisco-meraki/pkg/relationships"
)

// Step ids
const (
	FetchOrganizations = "fetch-organizations"
	FetchAdmins        = "fetch-admins"
	FetchSamlRoles     = "fetch-saml-roles"
	FetchNetworks      = "fetch-networks"
	FetchDevices       = "fetch-devices"
	FetchVlans         = "fetch-vlans"
	FetchSSIDs         = "fetch-ssids"
)

// DefaultConcurrency is the number of parents a step processes at once when none is configured.
const DefaultConcurrency = 1

// Client fetches dashboard records. One call per parent.
type Client interface {
	ListOrganizations(ctx context.Context) ([]models.Organization, error)
	ListAdmins(ctx context.Context, organizationID string) ([]models.AdminUser, error)
	ListSamlRoles(ctx context.Context, organizationID string) ([]models.SamlRole, error)
	ListNetworks(ctx context.Context, organizationID string) ([]models.Network, error)
	ListDevices(ctx context.Context, networkID string) ([]models.Device, error)
	ListVlans(ctx context.Context, networkID string) ([]models.Vlan, error)
	ListSSIDs(ctx context.Context, networkID string) ([]models.SSID, error)
}

// ExecutionContext is everything a step handler works with.
type ExecutionContext struct {
	Client      Client
	JobState    jobstate.JobState
	Assembler   *relationships.Assembler
	Logger      ectologger.Logger
	Concurrency int
}

func (e *ExecutionContext) concurrency() int {
	if e.Concurrency <= 0 {
		return DefaultConcurrency
	}
	return e.Concurrency
}

// Handler executes a step.
type Handler func(ctx context.Context, exec *ExecutionContext) error

// Step is the static description of a unit of work plus its handler.
type Step struct {
	ID                  string                            `json:"id" yaml:"id"`
	Name                string                            `json:"name" yaml:"name"`
	Entities            []models.EntitySchema             `json:"entities" yaml:"entities"`
	Relationships       []models.RelationshipSchema       `json:"relationships" yaml:"relationships"`
	MappedRelationships []models.MappedRelationshipSchema `json:"mappedRelationships,omitempty" yaml:"mappedRelationships,omitempty"`
	DependsOn           []string                          `json:"dependsOn" yaml:"dependsOn"`
	Handler             Handler                           `json:"-" yaml:"-"`
}

// Registry is the ordered set of steps of an integration. Built once, read-only afterwards.
type Registry struct {
	steps []Step
	index map[string]int
}

// NewRegistry rejects empty and duplicate ids and steps without a handler.
// Dependency checks belong to the runner.
func NewRegistry(steps ...Step) (*Registry, error) {
	r := &Registry{
		steps: make([]Step, 0, len(steps)),
		index: make(map[string]int, len(steps)),
	}
	for _, step := range steps {
		if step.ID == "" {
			return nil, fmt.Errorf("step %q has no id", step.Name)
		}
		if _, ok := r.index[step.ID]; ok {
			return nil, fmt.Errorf("duplicate step id %q", step.ID)
		}
		if step.Handler == nil {
			return nil, fmt.Errorf("step %q has no handler", step.ID)
		}
		r.index[step.ID] = len(r.steps)
		r.steps = append(r.steps, step)
	}
	return r, nil
}

// Steps returns the steps in declaration order.
func (r *Registry) Steps() []Step {
	return slices.Clone(r.steps)
}

func (r *Registry) Get(id string) (Step, bool) {
	i, ok := r.index[id]
	if !ok {
		return Step{}, false
	}
	return r.steps[i], true
}

func (r *Registry) IDs() []string {
	ids := make([]string, len(r.steps))
	for i, step := range r.steps {
		ids[i] = step.ID
	}
	return ids
}

// NewDefaultRegistry returns every step of the integration.
func NewDefaultRegistry() (*Registry, error) {
	return NewRegistry(
		organizationStep(),
		adminStep(),
		samlRoleStep(),
		networkStep(),
		deviceStep(),
		vlanStep(),
		ssidStep(),
	)
}
