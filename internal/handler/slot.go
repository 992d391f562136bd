package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/echoface/adslot/internal/mediation"
	"github.com/echoface/adslot/internal/presenter"
	"github.com/echoface/adslot/internal/slotserver"
)

type SlotHandler struct {
	appCtx *slotserver.AppContext
}

func NewSlotHandler(appCtx *slotserver.AppContext) *SlotHandler {
	return &SlotHandler{appCtx: appCtx}
}

// CreateSlotRequest is the body of POST /v1/slots.
type CreateSlotRequest struct {
	SlotID   string `json:"slot_id"`
	AdUnitID string `json:"ad_unit_id" binding:"required"`
	SlotSettings
}

// SlotSettings are the pass-through slot settings. Nil fields are left
// unchanged.
type SlotSettings struct {
	Keywords          *string        `json:"keywords,omitempty"`
	LocationAwareness *string        `json:"location_awareness,omitempty"`
	LocationPrecision *int           `json:"location_precision,omitempty"`
	Testing           *bool          `json:"testing,omitempty"`
	LocalExtras       map[string]any `json:"local_extras,omitempty"`
}

// SlotStatus is the polling view of a slot.
type SlotStatus struct {
	ID           string                  `json:"id"`
	AdUnitID     string                  `json:"ad_unit_id"`
	State        string                  `json:"state"`
	Ready        bool                    `json:"ready"`
	Loaded       int64                   `json:"loaded"`
	Failed       int64                   `json:"failed"`
	LastError    *ErrorStatus            `json:"last_error,omitempty"`
	Metadata     mediation.SlotMetadata  `json:"metadata"`
	Presentation *presenter.Presentation `json:"presentation,omitempty"`
	CreatedAt    time.Time               `json:"created_at"`
}

type ErrorStatus struct {
	Kind        string `json:"kind"`
	AdapterType string `json:"adapter_type,omitempty"`
	Message     string `json:"message"`
}

func (h *SlotHandler) Create(c *gin.Context) {
	var req CreateSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid slot request",
			"details": err.Error(),
		})
		return
	}

	meta := h.appCtx.Config.SlotMetadata(req.AdUnitID)
	if err := req.SlotSettings.applyTo(&meta); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid slot settings",
			"details": err.Error(),
		})
		return
	}

	slot, err := h.appCtx.Slots.Create(req.SlotID, meta)
	if err != nil {
		h.slotError(c, err)
		return
	}
	c.JSON(http.StatusCreated, h.status(slot))
}

func (h *SlotHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"slots": h.appCtx.Slots.IDs()})
}

func (h *SlotHandler) Get(c *gin.Context) {
	slot, ok := h.slot(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.status(slot))
}

// Load starts a load. With ?auto_show=true the ad is shown once it loads.
func (h *SlotHandler) Load(c *gin.Context) {
	slot, ok := h.slot(c)
	if !ok {
		return
	}
	if c.Query("auto_show") == "true" {
		slot.LoadAndShow()
	} else {
		slot.Load()
	}
	c.JSON(http.StatusAccepted, h.status(slot))
}

func (h *SlotHandler) Refresh(c *gin.Context) {
	slot, ok := h.slot(c)
	if !ok {
		return
	}
	slot.ForceRefresh()
	c.JSON(http.StatusAccepted, h.status(slot))
}

func (h *SlotHandler) Show(c *gin.Context) {
	slot, ok := h.slot(c)
	if !ok {
		return
	}
	if !slot.Show() {
		c.JSON(http.StatusConflict, gin.H{
			"shown": false,
			"state": slot.State().String(),
		})
		return
	}
	resp := gin.H{"shown": true}
	if p, found := h.appCtx.Recorder.Last(slot.ID); found {
		resp["presentation"] = p
	}
	c.JSON(http.StatusOK, resp)
}

// Click reports a click on whatever the slot last presented.
func (h *SlotHandler) Click(c *gin.Context) {
	slot, ok := h.slot(c)
	if !ok {
		return
	}
	if !h.appCtx.Recorder.Click(slot.ID) {
		c.JSON(http.StatusConflict, gin.H{"clicked": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"clicked": true})
}

func (h *SlotHandler) UpdateSettings(c *gin.Context) {
	slot, ok := h.slot(c)
	if !ok {
		return
	}

	var settings SlotSettings
	if err := c.ShouldBindJSON(&settings); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid slot settings",
			"details": err.Error(),
		})
		return
	}
	if err := settings.applyToSlot(slot); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid slot settings",
			"details": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, h.status(slot))
}

func (h *SlotHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.appCtx.Slots.Destroy(id); err != nil {
		h.slotError(c, err)
		return
	}
	h.appCtx.Recorder.Forget(id)
	c.Status(http.StatusNoContent)
}

func (h *SlotHandler) slot(c *gin.Context) (*slotserver.Slot, bool) {
	slot, err := h.appCtx.Slots.Get(c.Param("id"))
	if err != nil {
		h.slotError(c, err)
		return nil, false
	}
	return slot, true
}

func (h *SlotHandler) slotError(c *gin.Context, err error) {
	var se *slotserver.SlotError
	if !errors.As(err, &se) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	status := http.StatusInternalServerError
	switch se {
	case slotserver.ErrSlotNotFound:
		status = http.StatusNotFound
	case slotserver.ErrSlotExists:
		status = http.StatusConflict
	case slotserver.ErrTooManySlots:
		status = http.StatusTooManyRequests
	}
	c.JSON(status, gin.H{
		"error": se.Message,
		"code":  se.Code,
	})
}

func (h *SlotHandler) status(slot *slotserver.Slot) SlotStatus {
	loaded, failed := slot.Events()
	st := SlotStatus{
		ID:        slot.ID,
		AdUnitID:  slot.AdUnitID,
		State:     slot.State().String(),
		Ready:     slot.IsReady(),
		Loaded:    loaded,
		Failed:    failed,
		Metadata:  slot.Metadata(),
		CreatedAt: slot.CreatedAt,
	}

	var me *mediation.Error
	if err := slot.LastError(); errors.As(err, &me) {
		st.LastError = &ErrorStatus{
			Kind:        me.Kind.String(),
			AdapterType: me.AdapterType,
			Message:     me.Error(),
		}
	}
	if p, found := h.appCtx.Recorder.Last(slot.ID); found {
		st.Presentation = &p
	}
	return st
}

func (s SlotSettings) applyTo(meta *mediation.SlotMetadata) error {
	if s.LocationAwareness != nil {
		awareness, err := mediation.ParseLocationAwareness(*s.LocationAwareness)
		if err != nil {
			return err
		}
		meta.LocationAwareness = awareness
	}
	if s.Keywords != nil {
		meta.Keywords = *s.Keywords
	}
	if s.LocationPrecision != nil {
		meta.LocationPrecision = *s.LocationPrecision
	}
	if s.Testing != nil {
		meta.Testing = *s.Testing
	}
	if s.LocalExtras != nil {
		meta.LocalExtras = s.LocalExtras
	}
	return nil
}

func (s SlotSettings) applyToSlot(slot *slotserver.Slot) error {
	var awareness mediation.LocationAwareness
	if s.LocationAwareness != nil {
		var err error
		if awareness, err = mediation.ParseLocationAwareness(*s.LocationAwareness); err != nil {
			return err
		}
	}

	if s.LocationAwareness != nil {
		slot.SetLocationAwareness(awareness)
	}
	if s.Keywords != nil {
		slot.SetKeywords(*s.Keywords)
	}
	if s.LocationPrecision != nil {
		slot.SetLocationPrecision(*s.LocationPrecision)
	}
	if s.Testing != nil {
		slot.SetTesting(*s.Testing)
	}
	if s.LocalExtras != nil {
		slot.SetLocalExtras(s.LocalExtras)
	}
	return nil
}
