package customevent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/echoface/adslot/internal/mediation"
	"github.com/echoface/adslot/pkg/jsonx"
)

// StaticClassName is the class name of the built-in static event.
const StaticClassName = "static"

// StaticData is the class data understood by the static event.
type StaticData struct {
	Markup          string `json:"markup"`
	ClickthroughURL string `json:"clickthrough_url,omitempty"`
	// TTL, when set, expires the creative, e.g. "15m".
	TTL string `json:"ttl,omitempty"`
}

// StaticEvent serves the creative carried in its class data.
type StaticEvent struct {
	mu       sync.Mutex
	host     mediation.Host
	content  mediation.Content
	expiry   *time.Timer
	listener EventListener
	done     bool
}

func NewStaticEvent() Event {
	return &StaticEvent{}
}

func (e *StaticEvent) Load(_ context.Context, host mediation.Host, classData string, listener EventListener) {
	var data StaticData
	if err := jsonx.UnmarshalString(classData, &data); err != nil {
		listener.DidFail(fmt.Errorf("decode static class data: %w", err))
		return
	}
	if data.Markup == "" {
		listener.DidFail(errors.New("static event has no markup"))
		return
	}
	var ttl time.Duration
	if data.TTL != "" {
		d, err := time.ParseDuration(data.TTL)
		if err != nil {
			listener.DidFail(fmt.Errorf("invalid static ttl %q: %w", data.TTL, err))
			return
		}
		ttl = d
	}

	e.mu.Lock()
	e.host = host
	e.listener = listener
	e.content = mediation.Content{
		Network:         StaticClassName,
		Markup:          data.Markup,
		ClickthroughURL: data.ClickthroughURL,
	}
	if ttl > 0 {
		e.expiry = time.AfterFunc(ttl, e.expire)
	}
	e.mu.Unlock()

	listener.DidLoad()
}

func (e *StaticEvent) expire() {
	e.mu.Lock()
	if e.done {
		e.mu.Unlock()
		return
	}
	listener := e.listener
	e.mu.Unlock()
	listener.DidExpire()
}

func (e *StaticEvent) Show() {
	e.mu.Lock()
	host, content, done := e.host, e.content, e.done
	e.mu.Unlock()
	if done || host == nil {
		return
	}
	host.Display(content)
}

func (e *StaticEvent) Invalidate() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.done = true
	if e.expiry != nil {
		e.expiry.Stop()
	}
}
