package nats

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/brokerdesk/offer-service/internal/domain/entity"
	"github.com/brokerdesk/offer-service/internal/platform/logger"
	"github.com/nats-io/nats.go"
)

const (
	OfferPublishedSubject = "offer.published"
	StatusChangedSubject  = "offer.status_changed"
)

// Publisher fans offer lifecycle events out to interested consumers
// (reporting, CRM sync). Delivery is best effort; the offer store is
// the source of truth.
type Publisher struct {
	nc  *nats.Conn
	log logger.Logger
}

func NewPublisher(nc *nats.Conn, log logger.Logger) *Publisher {
	return &Publisher{nc: nc, log: log}
}

func (p *Publisher) PublishOfferPublished(ctx context.Context, offer *entity.Offer) error {
	data, err := json.Marshal(offer)
	if err != nil {
		return fmt.Errorf("failed to marshal offer %d for %s: %w", offer.ID, OfferPublishedSubject, err)
	}
	if err := p.nc.Publish(OfferPublishedSubject, data); err != nil {
		p.log.Errorf("Failed to publish NATS message on %s: %v", OfferPublishedSubject, err)
		return fmt.Errorf("failed to publish NATS message for %s: %w", OfferPublishedSubject, err)
	}
	p.log.Infof("Published NATS message on %s for offer %d", OfferPublishedSubject, offer.ID)
	return nil
}

func (p *Publisher) PublishStatusChanged(ctx context.Context, event entity.StatusEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal status event for %s: %w", StatusChangedSubject, err)
	}
	if err := p.nc.Publish(StatusChangedSubject, data); err != nil {
		p.log.Errorf("Failed to publish NATS message on %s: %v", StatusChangedSubject, err)
		return fmt.Errorf("failed to publish NATS message for %s: %w", StatusChangedSubject, err)
	}
	p.log.Infof("Published NATS message on %s for offer %d", StatusChangedSubject, event.OfferID)
	return nil
}

func (p *Publisher) Close() {
	if p.nc != nil && !p.nc.IsClosed() {
		if err := p.nc.Drain(); err != nil {
			p.log.Errorf("Error draining NATS connection: %v", err)
		}
		p.nc.Close()
	}
}
