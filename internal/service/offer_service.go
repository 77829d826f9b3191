package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/brokerdesk/offer-service/internal/domain/entity"
	"github.com/brokerdesk/offer-service/internal/platform/logger"
	"github.com/brokerdesk/offer-service/internal/repository"
)

var (
	// ErrNoPhotos blocks publication of an offer without visual
	// material.
	ErrNoPhotos = errors.New("offer has no photos")

	// ErrRenderFailed signals that the store committed the change but
	// the published rendering could not be refreshed. Callers report
	// it and move on; the store is the source of truth.
	ErrRenderFailed = errors.New("published rendering update failed")
)

// PublicationGateway renders offers into the shared group chat.
// Implemented by the Telegram adapter.
type PublicationGateway interface {
	Publish(ctx context.Context, offer *entity.Offer) (entity.PublicationRef, error)
	UpdatePublished(ctx context.Context, ref entity.PublicationRef, offer *entity.Offer) error
}

// EventPublisher fans lifecycle events out to downstream consumers.
// Optional; failures are logged, never propagated.
type EventPublisher interface {
	PublishOfferPublished(ctx context.Context, offer *entity.Offer) error
	PublishStatusChanged(ctx context.Context, event entity.StatusEvent) error
}

type OfferService struct {
	repo     repository.OfferRepository
	cache    repository.OfferCache // optional
	gateway  PublicationGateway
	events   EventPublisher // optional
	schema   *entity.Schema
	logger   logger.Logger
	cacheTTL time.Duration
}

func NewOfferService(
	repo repository.OfferRepository,
	cache repository.OfferCache,
	gateway PublicationGateway,
	events EventPublisher,
	schema *entity.Schema,
	log logger.Logger,
	cacheTTL time.Duration,
) *OfferService {
	return &OfferService{
		repo:     repo,
		cache:    cache,
		gateway:  gateway,
		events:   events,
		schema:   schema,
		logger:   log,
		cacheTTL: cacheTTL,
	}
}

// CreateDraft allocates a fresh offer with every schema field unset
// and the initial UNKNOWN status event recorded.
func (s *OfferService) CreateDraft(ctx context.Context, creatorID int64, creatorHandle string) (*entity.Offer, error) {
	s.logger.Infof("OfferService.CreateDraft: creating draft for actor %d (%s)", creatorID, creatorHandle)

	offer, err := entity.NewOffer(creatorID, creatorHandle, s.schema)
	if err != nil {
		return nil, err
	}
	offer.BrokerHandle = creatorHandle

	id, err := s.repo.Create(ctx, offer)
	if err != nil {
		s.logger.Errorf("OfferService.CreateDraft: failed to create draft: %v", err)
		return nil, err
	}
	offer.ID = id
	return offer, nil
}

func (s *OfferService) Get(ctx context.Context, id int64) (*entity.Offer, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, id)
		if err != nil {
			s.logger.Warnf("OfferService.Get: cache lookup for offer %d failed: %v", id, err)
		} else if cached != nil {
			return cached, nil
		}
	}

	offer, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, offer, s.cacheTTL); err != nil {
			s.logger.Warnf("OfferService.Get: failed to cache offer %d: %v", id, err)
		}
	}
	return offer, nil
}

// SetField overwrites one schema field. Keys outside the schema are a
// caller bug and come back as ErrInvalidField.
func (s *OfferService) SetField(ctx context.Context, id int64, key, value string) error {
	if _, ok := s.schema.ByKey(key); !ok {
		return fmt.Errorf("key %q: %w", key, repository.ErrInvalidField)
	}
	if err := s.repo.SetField(ctx, id, key, value); err != nil {
		return err
	}
	s.evict(ctx, id)
	return nil
}

func (s *OfferService) AppendPhoto(ctx context.Context, id int64, photoRef string) error {
	if err := s.repo.AppendPhoto(ctx, id, photoRef); err != nil {
		return err
	}
	s.evict(ctx, id)
	return nil
}

// DeleteDraft removes an unpublished offer together with its status
// log. Published offers return ErrConflict.
func (s *OfferService) DeleteDraft(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.evict(ctx, id)
	return nil
}

// Publish hands the offer to the publication gateway, then marks it
// published and moves it UNKNOWN -> ACTIVE. The gateway call comes
// first because the publication reference is part of the committed
// state; a gateway failure leaves the store untouched.
func (s *OfferService) Publish(ctx context.Context, id int64, actorID int64, actorHandle string) (*entity.Offer, error) {
	offer, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if offer.IsPublished {
		return nil, repository.ErrConflict
	}
	if len(offer.Photos) == 0 {
		return nil, ErrNoPhotos
	}

	ref, err := s.gateway.Publish(ctx, offer)
	if err != nil {
		s.logger.Errorf("OfferService.Publish: gateway rejected offer %d: %v", id, err)
		return nil, fmt.Errorf("failed to publish offer %d: %w", id, err)
	}

	if err := s.repo.MarkPublished(ctx, id, ref); err != nil {
		s.logger.Errorf("OfferService.Publish: offer %d rendered but not marked published: %v", id, err)
		return nil, err
	}
	if err := s.repo.RecordStatusChange(ctx, id, entity.StatusActive, actorID, actorHandle); err != nil {
		s.logger.Errorf("OfferService.Publish: failed to record ACTIVE for offer %d: %v", id, err)
		return nil, err
	}
	s.evict(ctx, id)

	offer, err = s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.events != nil {
		if err := s.events.PublishOfferPublished(ctx, offer); err != nil {
			s.logger.Warnf("OfferService.Publish: event fan-out failed for offer %d: %v", id, err)
		}
	}
	s.logger.Infof("OfferService.Publish: offer %d published by %d (%s)", id, actorID, actorHandle)
	return offer, nil
}

// ChangeStatus applies a status change requested from the group chat.
// The raw status comes straight from the transport; anything outside
// the workflow's closed set is ErrInvalidTransition. On success the
// published rendering is refreshed best effort: a render failure
// returns the updated offer together with ErrRenderFailed.
func (s *OfferService) ChangeStatus(ctx context.Context, id int64, rawStatus string, actorID int64, actorHandle string) (*entity.Offer, error) {
	status, err := entity.ParseStatus(rawStatus)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, repository.ErrInvalidTransition)
	}

	if err := s.repo.RecordStatusChange(ctx, id, status, actorID, actorHandle); err != nil {
		return nil, err
	}
	s.evict(ctx, id)

	offer, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logger.Infof("OfferService.ChangeStatus: offer %d -> %s by %d (%s)", id, status, actorID, actorHandle)

	if s.events != nil {
		event := entity.StatusEvent{
			OfferID:     id,
			Timestamp:   time.Now().UTC(),
			ActorID:     actorID,
			ActorHandle: actorHandle,
			Status:      status,
		}
		if err := s.events.PublishStatusChanged(ctx, event); err != nil {
			s.logger.Warnf("OfferService.ChangeStatus: event fan-out failed for offer %d: %v", id, err)
		}
	}

	if offer.Publication != nil {
		if err := s.gateway.UpdatePublished(ctx, *offer.Publication, offer); err != nil {
			s.logger.Warnf("OfferService.ChangeStatus: re-render of offer %d failed: %v", id, err)
			return offer, fmt.Errorf("%w: %v", ErrRenderFailed, err)
		}
	}
	return offer, nil
}

func (s *OfferService) evict(ctx context.Context, id int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, id); err != nil {
		s.logger.Warnf("OfferService: failed to evict offer %d from cache: %v", id, err)
	}
}
