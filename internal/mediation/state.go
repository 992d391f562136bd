package mediation

import "fmt"

// State is the readiness of an interstitial slot. The zero value is
// StateNotReady.
type State int

const (
	StateNotReady State = iota
	StateFirstPartyReady
	StateNativeReady
)

func (s State) String() string {
	switch s {
	case StateNotReady:
		return "not_ready"
	case StateFirstPartyReady:
		return "first_party_ready"
	case StateNativeReady:
		return "native_ready"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// IsReady reports whether a presentable ad is held.
func (s State) IsReady() bool {
	return s == StateFirstPartyReady || s == StateNativeReady
}

// SourceKind tags where a presentable ad comes from.
type SourceKind int

const (
	SourceFirstParty SourceKind = iota
	SourceNetwork
	SourceCustomEvent
)

func (k SourceKind) String() string {
	switch k {
	case SourceFirstParty:
		return "first_party"
	case SourceNetwork:
		return "network"
	case SourceCustomEvent:
		return "custom_event"
	default:
		return fmt.Sprintf("source(%d)", int(k))
	}
}

// LocationAwareness controls how much location the serving source may send.
type LocationAwareness int

const (
	LocationNormal LocationAwareness = iota
	LocationTruncated
	LocationDisabled
)

func (l LocationAwareness) String() string {
	switch l {
	case LocationNormal:
		return "normal"
	case LocationTruncated:
		return "truncated"
	case LocationDisabled:
		return "disabled"
	default:
		return fmt.Sprintf("location(%d)", int(l))
	}
}

// ParseLocationAwareness is the inverse of LocationAwareness.String.
func ParseLocationAwareness(s string) (LocationAwareness, error) {
	switch s {
	case "normal", "":
		return LocationNormal, nil
	case "truncated":
		return LocationTruncated, nil
	case "disabled":
		return LocationDisabled, nil
	default:
		return LocationNormal, fmt.Errorf("unknown location awareness %q", s)
	}
}

// DefaultLocationPrecision is the number of decimal places kept when
// location awareness is truncated.
const DefaultLocationPrecision = 6

// SlotMetadata is slot configuration the controller passes through to the
// serving source unchanged.
type SlotMetadata struct {
	AdUnitID          string            `json:"ad_unit_id"`
	Keywords          string            `json:"keywords,omitempty"`
	LocationAwareness LocationAwareness `json:"location_awareness"`
	LocationPrecision int               `json:"location_precision"`
	Testing           bool              `json:"testing"`
	LocalExtras       map[string]any    `json:"local_extras,omitempty"`
}

// Clone returns a copy whose LocalExtras map is not shared.
func (m SlotMetadata) Clone() SlotMetadata {
	if m.LocalExtras != nil {
		extras := make(map[string]any, len(m.LocalExtras))
		for k, v := range m.LocalExtras {
			extras[k] = v
		}
		m.LocalExtras = extras
	}
	return m
}

// Content is an inline creative, either served first-party or displayed by
// an adapter through its Host.
type Content struct {
	AdUnitID        string `json:"ad_unit_id,omitempty"`
	Network         string `json:"network,omitempty"`
	Markup          string `json:"markup"`
	ClickthroughURL string `json:"clickthrough_url,omitempty"`
	ImpressionURL   string `json:"impression_url,omitempty"`
	ClickURL        string `json:"click_url,omitempty"`
}
