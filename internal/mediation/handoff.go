package mediation

import (
	"fmt"
	"strings"

	"github.com/echoface/adslot/pkg/jsonx"
)

// CustomEventType is the registry token of the custom event adapter.
const CustomEventType = "custom_event"

// Parameter keys understood by the custom event adapter.
const (
	ParamClassName = "class_name"
	ParamClassData = "class_data"
)

// Header keys of a mediation response.
const (
	HeaderAdType               = "X-Adtype"
	HeaderFullAdType           = "X-Fulladtype"
	HeaderNativeParams         = "X-Nativeparams"
	HeaderCustomEventClassName = "X-Custom-Event-Class-Name"
	HeaderCustomEventClassData = "X-Custom-Event-Class-Data"
)

// Params are opaque, adapter specific parameters.
type Params map[string]string

// Get returns the value for key, or "".
func (p Params) Get(key string) string {
	if p == nil {
		return ""
	}
	return p[key]
}

// Decode unmarshals the JSON value stored under key into v.
func (p Params) Decode(key string, v any) error {
	raw, ok := p[key]
	if !ok {
		return fmt.Errorf("param %q not set", key)
	}
	if err := jsonx.UnmarshalString(raw, v); err != nil {
		return fmt.Errorf("decode param %q: %w", key, err)
	}
	return nil
}

// ParseParams flattens a JSON object into Params. String values are kept
// as is; any other value keeps its JSON encoding.
func ParseParams(data string) (Params, error) {
	if strings.TrimSpace(data) == "" {
		return Params{}, nil
	}
	var raw map[string]any
	if err := jsonx.UnmarshalString(data, &raw); err != nil {
		return nil, fmt.Errorf("parse adapter params: %w", err)
	}
	return ParamsFrom(raw), nil
}

// ParamsFrom flattens decoded JSON values into Params.
func ParamsFrom(raw map[string]any) Params {
	params := make(Params, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			params[k] = s
			continue
		}
		params[k] = jsonx.JSONS(v)
	}
	return params
}

// Handoff instructs the controller to load an adapter instead of inline
// content.
type Handoff struct {
	Kind    SourceKind
	Network string
	Params  Params
}

// TypeToken is the registry key for the adapter this hand-off names.
func (h Handoff) TypeToken() string {
	if h.Kind == SourceCustomEvent {
		return CustomEventType
	}
	return h.Network
}

// NetworkHandoff builds a hand-off to a network adapter.
func NetworkHandoff(network string, params Params) Handoff {
	return Handoff{Kind: SourceNetwork, Network: network, Params: params}
}

// CustomEventHandoff builds a hand-off to the custom event adapter.
func CustomEventHandoff(className, classData string) Handoff {
	return Handoff{
		Kind:    SourceCustomEvent,
		Network: className,
		Params:  Params{ParamClassName: className, ParamClassData: classData},
	}
}

// ParseHandoff resolves a header-style mediation response. ad type
// "interstitial" names the adapter in X-Fulladtype, "mraid" always uses the
// mraid adapter, and "custom" selects the custom event adapter. ok is false
// for anything that is not a hand-off.
func ParseHandoff(headers map[string]string) (Handoff, bool) {
	if headers == nil {
		return Handoff{}, false
	}
	switch adType := headers[HeaderAdType]; adType {
	case "interstitial", "mraid":
		network := "mraid"
		if adType == "interstitial" {
			network = headers[HeaderFullAdType]
		}
		if network == "" {
			return Handoff{}, false
		}
		params, err := ParseParams(headers[HeaderNativeParams])
		if err != nil {
			params = Params{}
		}
		return NetworkHandoff(network, params), true
	case "custom":
		className := headers[HeaderCustomEventClassName]
		if className == "" {
			return Handoff{}, false
		}
		return CustomEventHandoff(className, headers[HeaderCustomEventClassData]), true
	default:
		return Handoff{}, false
	}
}
