package steps

import (
	"context"

	"github.com/jmountifield/graph-cisco-meraki/pkg/converter"
	"github.com/jmountifield/graph-cisco-meraki/pkg/models"
)

const (
	productAppliance = "appliance"
	productWireless  = "wireless"
)

func deviceStep() Step {
	pipeline := childPipeline[models.Network, models.Device]{
		stepID:     FetchDevices,
		operation:  "ListDevices",
		parentType: models.NetworkEntity.Type,
		fetch: func(ctx context.Context, client Client, network models.Network) ([]models.Device, error) {
			return client.ListDevices(ctx, network.ID)
		},
		convert: func(_ models.Network, device models.Device) (*models.Entity, error) {
			return converter.ConvertDevice(device)
		},
	}

	return Step{
		ID:                  FetchDevices,
		Name:                "Fetch Devices",
		Entities:            []models.EntitySchema{models.DeviceEntity},
		Relationships:       []models.RelationshipSchema{models.NetworkHasDevice},
		MappedRelationships: []models.MappedRelationshipSchema{models.DeviceConnectsInternet},
		DependsOn:           []string{FetchNetworks},
		Handler:             pipeline.run,
	}
}

func vlanStep() Step {
	pipeline := childPipeline[models.Network, models.Vlan]{
		stepID:     FetchVlans,
		operation:  "ListVlans",
		parentType: models.NetworkEntity.Type,
		include: func(network models.Network) bool {
			return network.HasProductType(productAppliance)
		},
		fetch: func(ctx context.Context, client Client, network models.Network) ([]models.Vlan, error) {
			return client.ListVlans(ctx, network.ID)
		},
		convert: func(_ models.Network, vlan models.Vlan) (*models.Entity, error) {
			return converter.ConvertVlan(vlan)
		},
	}

	return Step{
		ID:            FetchVlans,
		Name:          "Fetch VLANs",
		Entities:      []models.EntitySchema{models.VlanEntity},
		Relationships: []models.RelationshipSchema{models.NetworkHasVlan},
		DependsOn:     []string{FetchNetworks},
		Handler:       pipeline.run,
	}
}

func ssidStep() Step {
	pipeline := childPipeline[models.Network, models.SSID]{
		stepID:     FetchSSIDs,
		operation:  "ListSSIDs",
		parentType: models.NetworkEntity.Type,
		include: func(network models.Network) bool {
			return network.HasProductType(productWireless)
		},
		fetch: func(ctx context.Context, client Client, network models.Network) ([]models.SSID, error) {
			return client.ListSSIDs(ctx, network.ID)
		},
		convert: func(network models.Network, ssid models.SSID) (*models.Entity, error) {
			return converter.ConvertSSID(ssid, network.ID)
		},
	}

	return Step{
		ID:            FetchSSIDs,
		Name:          "Fetch SSIDs",
		Entities:      []models.EntitySchema{models.WifiEntity},
		Relationships: []models.RelationshipSchema{models.NetworkHasWifi},
		DependsOn:     []string{FetchNetworks},
		Handler:       pipeline.run,
	}
}
