package converter

import (
	"strings"

	"github.com/jmountifield/graph-cisco-meraki/pkg/models"
)

const (
	NetworkTypeUnknown  = "unknown"
	NetworkTypeCombined = "combined"
)

// GetNetworkType classifies a network by its product types: none is "unknown", one is that
// product type, several are "combined".
func GetNetworkType(productTypes []string) string {
	switch len(productTypes) {
	case 0:
		return NetworkTypeUnknown
	case 1:
		return productTypes[0]
	default:
		return NetworkTypeCombined
	}
}

// GetPublicIP returns the first set of wanIp, wan1Ip and wan2Ip, in that order.
func GetPublicIP(data models.Device) string {
	for _, ip := range []string{data.WanIP, data.Wan1IP, data.Wan2IP} {
		if ip != "" {
			return ip
		}
	}
	return ""
}

func IsGuestSSID(name string) bool {
	return containsFold(name, "guest")
}

func IsDMZ(name string) bool {
	return containsFold(name, "dmz")
}

func IsPublicVlan(name string) bool {
	return containsFold(name, "dmz") || containsFold(name, "public")
}

func IsWirelessVlan(name string) bool {
	return containsFold(name, "wireless") || containsFold(name, "wifi")
}

func isOpenAuth(authMode string) bool {
	return authMode == "open"
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), substr)
}
