package models

// Relationship classes
const (
	ClassHas      = "HAS"
	ClassConnects = "CONNECTS"
)

// EntitySchema describes an entity type a step produces.
type EntitySchema struct {
	ResourceName string   `json:"resourceName" yaml:"resourceName"`
	Type         string   `json:"_type" yaml:"_type"`
	Class        []string `json:"_class" yaml:"_class"`
}

// RelationshipSchema describes a direct relationship type a step produces.
type RelationshipSchema struct {
	Type       string `json:"_type" yaml:"_type"`
	Class      string `json:"_class" yaml:"_class"`
	SourceType string `json:"sourceType" yaml:"sourceType"`
	TargetType string `json:"targetType" yaml:"targetType"`
}

// MappedRelationshipSchema describes a relationship whose target is matched, not converted.
type MappedRelationshipSchema struct {
	Type       string                `json:"_type" yaml:"_type"`
	Class      string                `json:"_class" yaml:"_class"`
	SourceType string                `json:"sourceType" yaml:"sourceType"`
	TargetType string                `json:"targetType" yaml:"targetType"`
	Direction  RelationshipDirection `json:"direction" yaml:"direction"`
}

// Entities produced by the integration.
var (
	AccountEntity      = EntitySchema{ResourceName: "Account", Type: "meraki_account", Class: []string{"Account"}}
	OrganizationEntity = EntitySchema{ResourceName: "Organization", Type: "meraki_organization", Class: []string{"Organization"}}
	AdminEntity        = EntitySchema{ResourceName: "Admin", Type: "meraki_admin", Class: []string{"User"}}
	SamlRoleEntity     = EntitySchema{ResourceName: "SAML Role", Type: "meraki_saml_role", Class: []string{"AccessRole"}}
	NetworkEntity      = EntitySchema{ResourceName: "Network", Type: "meraki_network", Class: []string{"Site"}}
	VlanEntity         = EntitySchema{ResourceName: "VLAN", Type: "meraki_vlan", Class: []string{"Network"}}
	WifiEntity         = EntitySchema{ResourceName: "Wireless Network", Type: "meraki_wifi", Class: []string{"Network"}}
	DeviceEntity       = EntitySchema{ResourceName: "Device", Type: "meraki_device", Class: []string{"Device"}}
)

// Direct relationships produced by the integration.
var (
	AccountHasOrganization = hasRelationship(AccountEntity, OrganizationEntity)
	OrganizationHasAdmin   = hasRelationship(OrganizationEntity, AdminEntity)
	OrganizationHasRole    = hasRelationship(OrganizationEntity, SamlRoleEntity)
	OrganizationHasNetwork = hasRelationship(OrganizationEntity, NetworkEntity)
	NetworkHasDevice       = hasRelationship(NetworkEntity, DeviceEntity)
	NetworkHasVlan         = hasRelationship(NetworkEntity, VlanEntity)
	NetworkHasWifi         = hasRelationship(NetworkEntity, WifiEntity)
)

// Mapped relationships produced by the integration.
var (
	DeviceConnectsInternet = MappedRelationshipSchema{
		Type:       "meraki_device_connects_internet",
		Class:      ClassConnects,
		SourceType: DeviceEntity.Type,
		TargetType: "internet",
		Direction:  DirectionForward,
	}
)

func hasRelationship(from, to EntitySchema) RelationshipSchema {
	return RelationshipSchema{
		Type:       from.Type + "_has_" + trimPrefix(to.Type, from.Type),
		Class:      ClassHas,
		SourceType: from.Type,
		TargetType: to.Type,
	}
}
