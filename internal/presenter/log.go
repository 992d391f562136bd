package presenter

import (
	"github.com/echoface/adslot/internal/mediation"
	"github.com/echoface/adslot/pkg/jsonx"
	"github.com/echoface/adslot/pkg/logger"
)

// LogPresenter logs every presentation before handing it to next.
type LogPresenter struct {
	next mediation.PresentationHost
	log  logger.Logger
}

func NewLogPresenter(next mediation.PresentationHost, log logger.Logger) *LogPresenter {
	return &LogPresenter{next: next, log: logger.OrDefault(log).With("component", "presenter")}
}

func (p *LogPresenter) PresentInlineContent(slotID string, content mediation.Content, meta mediation.SlotMetadata) {
	p.log.Info("presenting inline interstitial",
		"slot_id", slotID, "ad_unit_id", content.AdUnitID, "meta", jsonx.LzJSON(meta))
	p.next.PresentInlineContent(slotID, content, meta)
}

func (p *LogPresenter) PresentViaAdapter(slotID string, a mediation.Adapter) {
	p.log.Info("presenting interstitial via adapter", "slot_id", slotID)
	p.next.PresentViaAdapter(slotID, a)
}

// DisplayCreative forwards when next can display adapter creatives.
func (p *LogPresenter) DisplayCreative(slotID string, content mediation.Content) {
	d, ok := p.next.(mediation.CreativeDisplayer)
	if !ok {
		p.log.Warn("dropping adapter creative, host cannot display it", "slot_id", slotID)
		return
	}
	p.log.Info("displaying adapter creative", "slot_id", slotID, "network", content.Network)
	d.DisplayCreative(slotID, content)
}
