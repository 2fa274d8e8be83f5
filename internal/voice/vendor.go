package voice

import "strings"

// Vendor classifies the voice-list flavor an engine exposes. Engines ship
// overlapping voice packs under the same language tags; the catalog filter
// and ordering rules differ per flavor.
type Vendor int

const (
	// VendorGeneric applies the plain language allow-list.
	VendorGeneric Vendor = iota
	// VendorChrome keeps the "Google …" voice pack.
	VendorChrome
	// VendorEdge keeps the "Microsoft …" voice pack and orders it.
	VendorEdge
)

func (v Vendor) String() string {
	switch v {
	case VendorChrome:
		return "chrome"
	case VendorEdge:
		return "edge"
	}
	return "generic"
}

// ClassifyAgent maps an engine's identification string to a Vendor. An
// "edg" substring wins over "chrome"; anything else is generic.
func ClassifyAgent(agent string) Vendor {
	a := strings.ToLower(agent)
	switch {
	case strings.Contains(a, "edg"):
		return VendorEdge
	case strings.Contains(a, "chrome"):
		return VendorChrome
	}
	return VendorGeneric
}
