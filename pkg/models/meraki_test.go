package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumericID_UnmarshalJSON(t *testing.T) {
	t.Run("number", func(t *testing.T) {
		var v Vlan
		require.NoError(t, json.Unmarshal([]byte(`{"id": 20, "networkId": "N_1"}`), &v))
		assert.Equal(t, 20, v.ID.Int())
	})

	t.Run("numeric string", func(t *testing.T) {
		var v Vlan
		require.NoError(t, json.Unmarshal([]byte(`{"id": "1234", "networkId": "N_1"}`), &v))
		assert.Equal(t, 1234, v.ID.Int())
	})

	t.Run("non numeric string", func(t *testing.T) {
		var v Vlan
		assert.Error(t, json.Unmarshal([]byte(`{"id": "abc"}`), &v))
	})
}

func TestValidate(t *testing.T) {
	t.Run("organization requires an id", func(t *testing.T) {
		assert.NoError(t, Validate(Organization{ID: "1", Name: "Acme"}))

		err := Validate(Organization{Name: "Acme"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "field 'ID' failed rule 'required'")
	})

	t.Run("device needs a mac or a serial", func(t *testing.T) {
		assert.NoError(t, Validate(Device{NetworkID: "N_1", Mac: "aa:bb"}))
		assert.NoError(t, Validate(Device{NetworkID: "N_1", Serial: "Q2XX"}))
		assert.Error(t, Validate(Device{NetworkID: "N_1"}))
		assert.Error(t, Validate(Device{Mac: "aa:bb"}))
	})

	t.Run("vlan requires id and network", func(t *testing.T) {
		assert.NoError(t, Validate(Vlan{ID: 1, NetworkID: "N_1"}))
		assert.Error(t, Validate(Vlan{NetworkID: "N_1"}))
	})
}

func TestNetwork_HasProductType(t *testing.T) {
	n := Network{ProductTypes: []string{"appliance", "wireless"}}
	assert.True(t, n.HasProductType("wireless"))
	assert.False(t, n.HasProductType("switch"))
}

func TestNewDirectRelationship(t *testing.T) {
	network := &Entity{Key: "meraki_network:N_1", Type: NetworkEntity.Type}
	device := &Entity{Key: "meraki_device:N_1:aa", Type: DeviceEntity.Type}

	rel := NewDirectRelationship(network, device, ClassHas)

	assert.Equal(t, NetworkHasDevice.Type, rel.Type)
	assert.Equal(t, "HAS", rel.Class)
	assert.Equal(t, network.Key, rel.FromKey)
	assert.Equal(t, device.Key, rel.ToKey)
	assert.Equal(t, "meraki_network:N_1|has|meraki_device:N_1:aa", rel.Key)
	assert.False(t, rel.IsMapped())
}

func TestRelationshipSchemaTypes(t *testing.T) {
	assert.Equal(t, "meraki_account_has_organization", AccountHasOrganization.Type)
	assert.Equal(t, "meraki_organization_has_saml_role", OrganizationHasRole.Type)
	assert.Equal(t, "meraki_network_has_wifi", NetworkHasWifi.Type)
}
