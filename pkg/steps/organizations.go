package steps

import (
	"context"

	"github.com/jmountifield/graph-cisco-meraki/pkg/converter"
	ierrors "github.com/jmountifield/graph-cisco-meraki/pkg/errors"
	"github.com/jmountifield/graph-cisco-meraki/pkg/models"
)

func organizationStep() Step {
	return Step{
		ID:            FetchOrganizations,
		Name:          "Fetch Organizations",
		Entities:      []models.EntitySchema{models.AccountEntity, models.OrganizationEntity},
		Relationships: []models.RelationshipSchema{models.AccountHasOrganization},
		DependsOn:     []string{},
		Handler:       fetchOrganizations,
	}
}

// fetchOrganizations is the root step: every organization yields its account and itself.
func fetchOrganizations(ctx context.Context, exec *ExecutionContext) error {
	orgs, err := exec.Client.ListOrganizations(ctx)
	if err != nil {
		if ierrors.IsFetchError(err) || ierrors.IsConversionError(err) {
			return err
		}
		return ierrors.NewFetchError("ListOrganizations", "", err)
	}

	for _, org := range orgs {
		account, err := converter.ConvertAccount(org)
		if err != nil {
			return err
		}
		organization, err := converter.ConvertOrganization(org)
		if err != nil {
			return err
		}

		registered, err := exec.JobState.AddEntities(ctx, []*models.Entity{account, organization})
		if err != nil {
			return err
		}

		rels, err := exec.Assembler.Assemble(registered[0], registered[1:])
		if err != nil {
			return err
		}
		if err := exec.JobState.AddRelationships(ctx, rels); err != nil {
			return err
		}
	}

	exec.Logger.WithContext(ctx).WithField("organizations", len(orgs)).Info("Fetched organizations")
	return nil
}

func adminStep() Step {
	pipeline := childPipeline[models.Organization, models.AdminUser]{
		stepID:     FetchAdmins,
		operation:  "ListAdmins",
		parentType: models.OrganizationEntity.Type,
		fetch: func(ctx context.Context, client Client, org models.Organization) ([]models.AdminUser, error) {
			return client.ListAdmins(ctx, org.ID)
		},
		convert: func(_ models.Organization, admin models.AdminUser) (*models.Entity, error) {
			return converter.ConvertAdminUser(admin)
		},
	}

	return Step{
		ID:            FetchAdmins,
		Name:          "Fetch Admins",
		Entities:      []models.EntitySchema{models.AdminEntity},
		Relationships: []models.RelationshipSchema{models.OrganizationHasAdmin},
		DependsOn:     []string{FetchOrganizations},
		Handler:       pipeline.run,
	}
}

func samlRoleStep() Step {
	pipeline := childPipeline[models.Organization, models.SamlRole]{
		stepID:     FetchSamlRoles,
		operation:  "ListSamlRoles",
		parentType: models.OrganizationEntity.Type,
		fetch: func(ctx context.Context, client Client, org models.Organization) ([]models.SamlRole, error) {
			return client.ListSamlRoles(ctx, org.ID)
		},
		convert: func(_ models.Organization, role models.SamlRole) (*models.Entity, error) {
			return converter.ConvertSamlRole(role)
		},
	}

	return Step{
		ID:            FetchSamlRoles,
		Name:          "Fetch SAML Roles",
		Entities:      []models.EntitySchema{models.SamlRoleEntity},
		Relationships: []models.RelationshipSchema{models.OrganizationHasRole},
		DependsOn:     []string{FetchOrganizations},
		Handler:       pipeline.run,
	}
}

func networkStep() Step {
	pipeline := childPipeline[models.Organization, models.Network]{
		stepID:     FetchNetworks,
		operation:  "ListNetworks",
		parentType: models.OrganizationEntity.Type,
		fetch: func(ctx context.Context, client Client, org models.Organization) ([]models.Network, error) {
			return client.ListNetworks(ctx, org.ID)
		},
		convert: func(_ models.Organization, network models.Network) (*models.Entity, error) {
			return converter.ConvertNetwork(network)
		},
	}

	return Step{
		ID:            FetchNetworks,
		Name:          "Fetch Networks",
		Entities:      []models.EntitySchema{models.NetworkEntity},
		Relationships: []models.RelationshipSchema{models.OrganizationHasNetwork},
		DependsOn:     []string{FetchOrganizations},
		Handler:       pipeline.run,
	}
}
