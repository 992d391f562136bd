package slotserver

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/echoface/adslot/internal/autoshow"
	"github.com/echoface/adslot/internal/mediation"
	"github.com/echoface/adslot/pkg/logger"
)

var (
	ErrSlotNotFound = &SlotError{Message: "slot not found", Code: "SLOT_NOT_FOUND"}
	ErrSlotExists   = &SlotError{Message: "slot already exists", Code: "SLOT_EXISTS"}
	ErrTooManySlots = &SlotError{Message: "slot limit reached", Code: "TOO_MANY_SLOTS"}
)

type SlotError struct {
	Message string
	Code    string
}

func (e *SlotError) Error() string {
	return e.Message
}

// InterstitialFactory builds the controller behind a new slot.
type InterstitialFactory func(slotID string, meta mediation.SlotMetadata) *mediation.Interstitial

// Slot is a hosted interstitial plus the listener events it has seen.
type Slot struct {
	ID        string
	AdUnitID  string
	CreatedAt time.Time

	*mediation.Interstitial
	events *eventCounter
}

// Events returns how many loads succeeded and failed so far.
func (s *Slot) Events() (loaded, failed int64) {
	return s.events.loaded.Load(), s.events.failed.Load()
}

// LoadAndShow loads the slot and shows the ad once it is ready.
func (s *Slot) LoadAndShow() {
	autoshow.Load(s.Interstitial)
}

type eventCounter struct {
	loaded atomic.Int64
	failed atomic.Int64
}

func (c *eventCounter) OnInterstitialLoaded() { c.loaded.Add(1) }
func (c *eventCounter) OnInterstitialFailed() { c.failed.Add(1) }

// SlotManager owns the slots hosted by the server.
type SlotManager struct {
	newSlot  InterstitialFactory
	maxSlots int
	log      logger.Logger

	mu    sync.RWMutex
	slots map[string]*Slot
}

func NewSlotManager(maxSlots int, newSlot InterstitialFactory, log logger.Logger) *SlotManager {
	return &SlotManager{
		newSlot:  newSlot,
		maxSlots: maxSlots,
		log:      logger.OrDefault(log),
		slots:    make(map[string]*Slot),
	}
}

// Create registers a slot for meta.AdUnitID. An empty id gets a random one.
func (m *SlotManager) Create(id string, meta mediation.SlotMetadata) (*Slot, error) {
	if id == "" {
		id = uuid.NewString()
	}

	m.mu.Lock()
	if _, exists := m.slots[id]; exists {
		m.mu.Unlock()
		return nil, ErrSlotExists
	}
	if m.maxSlots > 0 && len(m.slots) >= m.maxSlots {
		m.mu.Unlock()
		return nil, ErrTooManySlots
	}
	// reserve the id so a concurrent create cannot take it
	m.slots[id] = nil
	m.mu.Unlock()

	slot := &Slot{
		ID:           id,
		AdUnitID:     meta.AdUnitID,
		CreatedAt:    time.Now(),
		Interstitial: m.newSlot(id, meta),
		events:       &eventCounter{},
	}
	slot.SetListener(slot.events)

	m.mu.Lock()
	m.slots[id] = slot
	m.mu.Unlock()

	m.log.Info("slot created", "slot_id", id, "ad_unit_id", meta.AdUnitID)
	return slot, nil
}

// Get returns the slot with the given id.
func (m *SlotManager) Get(id string) (*Slot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	slot := m.slots[id]
	if slot == nil {
		return nil, ErrSlotNotFound
	}
	return slot, nil
}

// Destroy removes and destroys a slot.
func (m *SlotManager) Destroy(id string) error {
	m.mu.Lock()
	slot := m.slots[id]
	if slot == nil {
		m.mu.Unlock()
		return ErrSlotNotFound
	}
	delete(m.slots, id)
	m.mu.Unlock()

	slot.Destroy()
	m.log.Info("slot destroyed", "slot_id", id)
	return nil
}

// DestroyAll destroys every slot. Used on shutdown.
func (m *SlotManager) DestroyAll() {
	m.mu.Lock()
	slots := make([]*Slot, 0, len(m.slots))
	for id, slot := range m.slots {
		if slot != nil {
			slots = append(slots, slot)
			delete(m.slots, id)
		}
	}
	m.mu.Unlock()

	for _, slot := range slots {
		slot.Destroy()
	}
	m.log.Info("all slots destroyed", "count", len(slots))
}

// IDs returns the ids of all slots, sorted.
func (m *SlotManager) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.slots))
	for id, slot := range m.slots {
		if slot != nil {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func (m *SlotManager) Len() int {
	return len(m.IDs())
}
