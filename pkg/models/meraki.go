package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// RawRecord is an unmodified dashboard API payload for one domain object.
type RawRecord interface {
	RecordType() string
}

// Organization is a dashboard organization (GET /organizations)
type Organization struct {
	ID   string `json:"id" validate:"required"`
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

func (Organization) RecordType() string { return "organization" }

// AccessTag is the tag shape used by admins and SAML roles: a tag name plus the access level
// granted on networks carrying that tag.
type AccessTag struct {
	Tag    string `json:"tag"`
	Access string `json:"access"`
}

// NetworkAccess grants access on a single network.
type NetworkAccess struct {
	ID     string `json:"id"`
	Access string `json:"access"`
}

// AdminUser is a dashboard administrator (GET /organizations/{id}/admins)
type AdminUser struct {
	ID                   string          `json:"id" validate:"required"`
	Name                 string          `json:"name"`
	Email                string          `json:"email"`
	OrgAccess            string          `json:"orgAccess,omitempty"`
	AccountStatus        string          `json:"accountStatus,omitempty"`
	TwoFactorAuthEnabled bool            `json:"twoFactorAuthEnabled"`
	HasAPIKey            bool            `json:"hasApiKey"`
	LastActive           string          `json:"lastActive,omitempty"`
	AuthenticationMethod string          `json:"authenticationMethod,omitempty"`
	Tags                 []AccessTag     `json:"tags"`
	Networks             []NetworkAccess `json:"networks,omitempty"`
}

func (AdminUser) RecordType() string { return "admin" }

// SamlRole is a SAML administrator role (GET /organizations/{id}/samlRoles)
type SamlRole struct {
	ID        string          `json:"id" validate:"required"`
	Role      string          `json:"role"`
	OrgAccess string          `json:"orgAccess,omitempty"`
	Tags      []AccessTag     `json:"tags"`
	Networks  []NetworkAccess `json:"networks,omitempty"`
}

func (SamlRole) RecordType() string { return "saml_role" }

// Network is a dashboard network (GET /organizations/{id}/networks)
type Network struct {
	ID                      string   `json:"id" validate:"required"`
	OrganizationID          string   `json:"organizationId"`
	Name                    string   `json:"name"`
	ProductTypes            []string `json:"productTypes"`
	TimeZone                string   `json:"timeZone,omitempty"`
	Tags                    []string `json:"tags"`
	Notes                   string   `json:"notes,omitempty"`
	URL                     string   `json:"url,omitempty"`
	EnrollmentString        string   `json:"enrollmentString,omitempty"`
	IsBoundToConfigTemplate bool     `json:"isBoundToConfigTemplate"`
}

func (Network) RecordType() string { return "network" }

// HasProductType reports whether the network contains the given product type.
func (n Network) HasProductType(productType string) bool {
	for _, p := range n.ProductTypes {
		if p == productType {
			return true
		}
	}
	return false
}

// SSID is a wireless network of a dashboard network (GET /networks/{id}/wireless/ssids).
// Pre-shared keys and RADIUS secrets are never decoded.
type SSID struct {
	Number                      int     `json:"number"`
	Name                        string  `json:"name"`
	Enabled                     bool    `json:"enabled"`
	SplashPage                  string  `json:"splashPage,omitempty"`
	SSIDAdminAccessible         bool    `json:"ssidAdminAccessible"`
	AuthMode                    string  `json:"authMode,omitempty"`
	EncryptionMode              string  `json:"encryptionMode,omitempty"`
	WPAEncryptionMode           string  `json:"wpaEncryptionMode,omitempty"`
	IPAssignmentMode            string  `json:"ipAssignmentMode,omitempty"`
	MinBitrate                  float64 `json:"minBitrate,omitempty"`
	BandSelection               string  `json:"bandSelection,omitempty"`
	PerClientBandwidthLimitUp   int     `json:"perClientBandwidthLimitUp"`
	PerClientBandwidthLimitDown int     `json:"perClientBandwidthLimitDown"`
	Visible                     bool    `json:"visible"`
	AvailableOnAllAps           bool    `json:"availableOnAllAps"`
}

func (SSID) RecordType() string { return "ssid" }

// Vlan is an appliance VLAN (GET /networks/{id}/appliance/vlans)
type Vlan struct {
	ID                     NumericID `json:"id" validate:"required"`
	NetworkID              string    `json:"networkId" validate:"required"`
	Name                   string    `json:"name"`
	ApplianceIP            string    `json:"applianceIp,omitempty"`
	Subnet                 string    `json:"subnet,omitempty"`
	GroupPolicyID          string    `json:"groupPolicyId,omitempty"`
	DNSNameservers         string    `json:"dnsNameservers,omitempty"`
	DHCPHandling           string    `json:"dhcpHandling,omitempty"`
	DHCPLeaseTime          string    `json:"dhcpLeaseTime,omitempty"`
	DHCPBootOptionsEnabled bool      `json:"dhcpBootOptionsEnabled"`
}

func (Vlan) RecordType() string { return "vlan" }

// Device is a device claimed into a network (GET /networks/{id}/devices)
type Device struct {
	Name        string   `json:"name,omitempty"`
	Lat         *float64 `json:"lat,omitempty"`
	Lng         *float64 `json:"lng,omitempty"`
	Address     string   `json:"address,omitempty"`
	Serial      string   `json:"serial" validate:"required_without=Mac"`
	Mac         string   `json:"mac" validate:"required_without=Serial"`
	Model       string   `json:"model,omitempty"`
	ProductType string   `json:"productType,omitempty"`
	NetworkID   string   `json:"networkId" validate:"required"`
	Firmware    string   `json:"firmware,omitempty"`
	FloorPlanID string   `json:"floorPlanId,omitempty"`
	URL         string   `json:"url,omitempty"`
	Notes       string   `json:"notes,omitempty"`
	LanIP       string   `json:"lanIp,omitempty"`
	WanIP       string   `json:"wanIp,omitempty"`
	Wan1IP      string   `json:"wan1Ip,omitempty"`
	Wan2IP      string   `json:"wan2Ip,omitempty"`
	Tags        []string `json:"tags"`
}

func (Device) RecordType() string { return "device" }

// NumericID is an identifier the dashboard API returns either as a JSON number or a numeric string.
type NumericID int

func (id *NumericID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		data = []byte(s)
	}
	n, err := strconv.Atoi(string(data))
	if err != nil {
		return fmt.Errorf("invalid numeric id %q: %w", string(data), err)
	}
	*id = NumericID(n)
	return nil
}

func (id NumericID) Int() int {
	return int(id)
}
