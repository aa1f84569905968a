// Package converter turns dashboard records into graph entities. Every function is pure: the same
// record always produces the same key, type, class and properties.
package converter

import (
	"fmt"
	"slices"
	"time"

	ierrors "github.com/jmountifield/graph-cisco-meraki/pkg/errors"
	"github.com/jmountifield/graph-cisco-meraki/pkg/keys"
	"github.com/jmountifield/graph-cisco-meraki/pkg/models"
)

const (
	platformName = "Cisco Meraki"
	deviceMake   = "Cisco Meraki"
)

// ConvertAccount converts an organization into the account entity that owns it.
func ConvertAccount(data models.Organization) (*models.Entity, error) {
	if data.Name == "" {
		return nil, ierrors.NewConversionError(models.AccountEntity.Type, "name", "organization name is required")
	}

	props := models.Properties{}
	props.Set("name", data.Name).
		Set("displayName", fmt.Sprintf("%s %s Dashboard", data.Name, platformName))

	return newEntity(models.AccountEntity, keys.Build(models.AccountEntity.Type, data.Name), props, data, data), nil
}

func ConvertOrganization(data models.Organization) (*models.Entity, error) {
	if data.ID == "" {
		return nil, ierrors.NewConversionError(models.OrganizationEntity.Type, "id", "organization id is required")
	}

	props := models.Properties{}
	props.Set("id", data.ID).
		Set("name", data.Name).
		Set("displayName", data.Name).
		Set("url", data.URL).
		Set("webLink", data.URL)

	return newEntity(models.OrganizationEntity, keys.Build(models.OrganizationEntity.Type, data.ID), props, data, data), nil
}

// ConvertAdminUser converts a dashboard administrator. Tags are cleared on the stored source and
// never attached to the entity.
func ConvertAdminUser(data models.AdminUser) (*models.Entity, error) {
	if data.ID == "" {
		return nil, ierrors.NewConversionError(models.AdminEntity.Type, "id", "admin id is required")
	}

	source := data
	source.Tags = []models.AccessTag{}

	props := models.Properties{}
	props.Set("id", data.ID).
		Set("name", data.Name).
		Set("displayName", data.Name).
		Set("admin", true).
		Set("mfaEnabled", data.TwoFactorAuthEnabled).
		Set("lastActive", parseTimeMillis(data.LastActive)).
		Set("username", data.Email).
		Set("email", data.Email).
		Set("authenticationMethod", data.AuthenticationMethod).
		Set("orgAccess", data.OrgAccess).
		Set("accountStatus", data.AccountStatus).
		Set("twoFactorAuthEnabled", data.TwoFactorAuthEnabled).
		Set("hasApiKey", data.HasAPIKey)

	return newEntity(models.AdminEntity, keys.Build(models.AdminEntity.Type, data.ID), props, data, source), nil
}

// ConvertSamlRole converts a SAML administrator role. Tags are cleared like admins.
func ConvertSamlRole(data models.SamlRole) (*models.Entity, error) {
	if data.ID == "" {
		return nil, ierrors.NewConversionError(models.SamlRoleEntity.Type, "id", "saml role id is required")
	}

	source := data
	source.Tags = []models.AccessTag{}

	props := models.Properties{}
	props.Set("id", data.ID).
		Set("name", data.Role).
		Set("displayName", data.Role).
		Set("role", data.Role).
		Set("orgAccess", data.OrgAccess)

	return newEntity(models.SamlRoleEntity, keys.Build(models.SamlRoleEntity.Type, data.ID), props, data, source), nil
}

// ConvertNetwork converts a dashboard network. Tags bypass property conversion and are attached
// to the entity as-is when present.
func ConvertNetwork(data models.Network) (*models.Entity, error) {
	if data.ID == "" {
		return nil, ierrors.NewConversionError(models.NetworkEntity.Type, "id", "network id is required")
	}

	source := data
	source.Tags = []string{}

	props := models.Properties{}
	props.Set("id", data.ID).
		Set("name", data.Name).
		Set("displayName", data.Name).
		Set("organizationId", data.OrganizationID).
		Set("timeZone", data.TimeZone).
		Set("notes", data.Notes).
		Set("type", GetNetworkType(data.ProductTypes)).
		Set("productTypes", data.ProductTypes).
		Set("url", data.URL).
		Set("webLink", data.URL).
		Set("isBoundToConfigTemplate", data.IsBoundToConfigTemplate)

	entity := newEntity(models.NetworkEntity, keys.Build(models.NetworkEntity.Type, data.ID), props, data, source)
	attachTags(entity, data.Tags)
	return entity, nil
}

// ConvertSSID converts a wireless network of the given dashboard network. All scalar fields of the
// record are carried over before the derived fields are applied.
func ConvertSSID(data models.SSID, networkID string) (*models.Entity, error) {
	if networkID == "" {
		return nil, ierrors.NewConversionError(models.WifiEntity.Type, "networkId", "parent network id is required")
	}

	props, err := models.ConvertProperties(data)
	if err != nil {
		return nil, ierrors.NewConversionErrorf(models.WifiEntity.Type, "", "failed to convert properties: %v", err)
	}

	props.Set("name", data.Name).
		Set("displayName", data.Name).
		Set("networkId", networkID).
		Set("type", "wireless").
		Set("encrypted", data.EncryptionMode != "").
		Set("public", isOpenAuth(data.AuthMode)).
		Set("internal", !isOpenAuth(data.AuthMode)).
		Set("guest", IsGuestSSID(data.Name)).
		SetNull("CIDR")

	key := keys.Build(models.WifiEntity.Type, networkID, data.Number, data.Name)
	return newEntity(models.WifiEntity, key, props, data, data), nil
}

// ConvertVlan converts an appliance VLAN. The exported id is the composite "<networkId>:<vlanId>".
func ConvertVlan(data models.Vlan) (*models.Entity, error) {
	if data.NetworkID == "" {
		return nil, ierrors.NewConversionError(models.VlanEntity.Type, "networkId", "vlan network id is required")
	}

	vlanID := data.ID.Int()
	props := models.Properties{}
	props.Set("id", fmt.Sprintf("%s:%d", data.NetworkID, vlanID)).
		Set("vlanId", vlanID).
		Set("name", data.Name).
		Set("displayName", data.Name).
		Set("CIDR", data.Subnet).
		Set("defaultGateway", data.ApplianceIP).
		Set("internal", true).
		Set("dmz", IsDMZ(data.Name)).
		Set("public", IsPublicVlan(data.Name)).
		Set("wireless", IsWirelessVlan(data.Name)).
		Set("networkId", data.NetworkID).
		Set("applianceIp", data.ApplianceIP).
		Set("subnet", data.Subnet).
		Set("groupPolicyId", data.GroupPolicyID).
		Set("dnsNameservers", data.DNSNameservers).
		Set("dhcpHandling", data.DHCPHandling).
		Set("dhcpLeaseTime", data.DHCPLeaseTime).
		Set("dhcpBootOptionsEnabled", data.DHCPBootOptionsEnabled)

	return newEntity(models.VlanEntity, keys.Build(models.VlanEntity.Type, data.NetworkID, vlanID), props, data, data), nil
}

// ConvertDevice converts a device claimed into a network. Devices are keyed by network and mac,
// falling back to the serial when the mac is missing.
func ConvertDevice(data models.Device) (*models.Entity, error) {
	if data.NetworkID == "" {
		return nil, ierrors.NewConversionError(models.DeviceEntity.Type, "networkId", "device network id is required")
	}
	identifier := data.Mac
	if identifier == "" {
		identifier = data.Serial
	}
	if identifier == "" {
		return nil, ierrors.NewConversionError(models.DeviceEntity.Type, "mac", "device mac or serial is required")
	}

	source := data
	source.Tags = []string{}

	name := data.Name
	if name == "" {
		name = data.NetworkID
	}
	publicIP := GetPublicIP(data)

	props := models.Properties{}
	props.Set("category", "network").
		Set("make", deviceMake).
		Set("name", name).
		Set("displayName", name).
		Set("hostname", data.Name).
		Set("macAddress", data.Mac).
		Set("ipAddress", data.LanIP).
		Set("privateIp", data.LanIP).
		Set("privateIpAddress", data.LanIP).
		Set("publicIp", publicIP).
		Set("publicIpAddress", publicIP).
		SetNull("deviceId").
		Set("serial", data.Serial).
		Set("model", data.Model).
		Set("productType", data.ProductType).
		Set("lat", data.Lat).
		Set("lng", data.Lng).
		Set("latitude", data.Lat).
		Set("longitude", data.Lng).
		Set("address", data.Address).
		Set("mac", data.Mac).
		Set("firmware", data.Firmware).
		Set("networkId", data.NetworkID).
		Set("floorPlanId", data.FloorPlanID).
		Set("url", data.URL).
		Set("webLink", data.URL).
		Set("notes", data.Notes).
		Set("lanIp", data.LanIP).
		Set("wanIp", data.WanIP).
		Set("wan1Ip", data.Wan1IP).
		Set("wan2Ip", data.Wan2IP)

	entity := newEntity(models.DeviceEntity, keys.Build(models.DeviceEntity.Type, data.NetworkID, identifier), props, data, source)
	attachTags(entity, data.Tags)
	return entity, nil
}

func newEntity(schema models.EntitySchema, key string, props models.Properties, original, source models.RawRecord) *models.Entity {
	return &models.Entity{
		Key:        key,
		Type:       schema.Type,
		Class:      slices.Clone(schema.Class),
		Properties: props,
		RawSource:  source,
		Original:   original,
	}
}

func attachTags(entity *models.Entity, tags []string) {
	if len(tags) > 0 {
		entity.Tags = slices.Clone(tags)
	}
}

// parseTimeMillis returns epoch milliseconds, or nil when the value is empty or unparseable.
func parseTimeMillis(value string) any {
	if value == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UnixMilli()
		}
	}
	return nil
}
