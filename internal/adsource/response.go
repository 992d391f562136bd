package adsource

import (
	"github.com/echoface/adslot/internal/mediation"
)

// CandidateKind is the shape of one waterfall entry.
type CandidateKind string

const (
	KindHTML        CandidateKind = "html"
	KindNetwork     CandidateKind = "network"
	KindCustomEvent CandidateKind = "custom_event"
)

// Candidate is one waterfall entry returned by the ad server. Entries that
// carry Headers are resolved the way header-style mediation responses are.
type Candidate struct {
	Kind    CandidateKind     `json:"kind"`
	Network string            `json:"network,omitempty"`
	Params  map[string]any    `json:"params,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`

	ClassName string `json:"class_name,omitempty"`
	ClassData string `json:"class_data,omitempty"`

	Markup          string `json:"markup,omitempty"`
	ClickthroughURL string `json:"clickthrough_url,omitempty"`

	ImpressionURL string `json:"impression_url,omitempty"`
	ClickURL      string `json:"click_url,omitempty"`
	FailURL       string `json:"fail_url,omitempty"`
}

// Response is the ad server's answer to a waterfall fetch.
type Response struct {
	AdUnitID   string      `json:"ad_unit_id"`
	Candidates []Candidate `json:"candidates"`
}

// HealthKey is the network name health is tracked under, "" for first-party
// content.
func (c Candidate) HealthKey() string {
	switch c.Kind {
	case KindNetwork:
		return c.Network
	case KindCustomEvent:
		return c.ClassName
	default:
		if h, ok := mediation.ParseHandoff(c.Headers); ok {
			return h.Network
		}
		return ""
	}
}

// outcome resolves the candidate into inline content or a hand-off. ok is
// false for malformed entries.
func (c Candidate) outcome(adUnitID string) (content *mediation.Content, handoff *mediation.Handoff, ok bool) {
	if len(c.Headers) > 0 {
		h, ok := mediation.ParseHandoff(c.Headers)
		if !ok {
			return nil, nil, false
		}
		return nil, &h, true
	}

	switch c.Kind {
	case KindHTML:
		if c.Markup == "" {
			return nil, nil, false
		}
		return &mediation.Content{
			AdUnitID:        adUnitID,
			Markup:          c.Markup,
			ClickthroughURL: c.ClickthroughURL,
			ImpressionURL:   c.ImpressionURL,
			ClickURL:        c.ClickURL,
		}, nil, true
	case KindNetwork:
		if c.Network == "" {
			return nil, nil, false
		}
		h := mediation.NetworkHandoff(c.Network, mediation.ParamsFrom(c.Params))
		return nil, &h, true
	case KindCustomEvent:
		if c.ClassName == "" {
			return nil, nil, false
		}
		h := mediation.CustomEventHandoff(c.ClassName, c.ClassData)
		return nil, &h, true
	default:
		return nil, nil, false
	}
}
