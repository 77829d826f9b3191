package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/brokerdesk/offer-service/internal/domain/entity"
	"github.com/brokerdesk/offer-service/internal/repository"
)

// OfferRepository is the in-memory storage backend. It backs unit
// tests and the STORAGE=memory mode; the contract is identical to the
// MongoDB adapter. One mutex serializes all mutations, which is enough
// for the single-process model.
type OfferRepository struct {
	mu     sync.RWMutex
	nextID int64
	offers map[int64]*entity.Offer
	events []entity.StatusEvent
}

func NewOfferRepository() *OfferRepository {
	return &OfferRepository{
		nextID: 1,
		offers: make(map[int64]*entity.Offer),
	}
}

func (r *OfferRepository) Create(ctx context.Context, offer *entity.Offer) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := offer.Clone()
	stored.ID = r.nextID
	r.nextID++

	r.offers[stored.ID] = stored
	r.events = append(r.events, entity.StatusEvent{
		OfferID:     stored.ID,
		Timestamp:   stored.CreatedAt,
		ActorID:     stored.CreatorID,
		ActorHandle: stored.CreatorHandle,
		Status:      stored.Status,
	})
	return stored.ID, nil
}

func (r *OfferRepository) GetByID(ctx context.Context, id int64) (*entity.Offer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	offer, ok := r.offers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return offer.Clone(), nil
}

func (r *OfferRepository) SetField(ctx context.Context, id int64, key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	offer, ok := r.offers[id]
	if !ok {
		return repository.ErrNotFound
	}
	if _, ok := offer.Fields[key]; !ok {
		return repository.ErrInvalidField
	}
	offer.Fields[key] = value
	return nil
}

func (r *OfferRepository) AppendPhoto(ctx context.Context, id int64, photoRef string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	offer, ok := r.offers[id]
	if !ok {
		return repository.ErrNotFound
	}
	offer.Photos = append(offer.Photos, photoRef)
	return nil
}

func (r *OfferRepository) MarkPublished(ctx context.Context, id int64, ref entity.PublicationRef) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	offer, ok := r.offers[id]
	if !ok {
		return repository.ErrNotFound
	}
	if offer.IsPublished {
		return repository.ErrConflict
	}
	offer.IsPublished = true
	offer.Publication = &ref
	return nil
}

func (r *OfferRepository) RecordStatusChange(ctx context.Context, id int64, status entity.Status, actorID int64, actorHandle string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	offer, ok := r.offers[id]
	if !ok {
		return repository.ErrNotFound
	}
	if !offer.IsPublished {
		// Drafts are not addressable from the group chat; to callers
		// they do not exist yet.
		return repository.ErrNotFound
	}
	if !entity.CanTransition(offer.Status, status) {
		return repository.ErrInvalidTransition
	}

	offer.Status = status
	r.events = append(r.events, entity.StatusEvent{
		OfferID:     id,
		Timestamp:   time.Now().UTC(),
		ActorID:     actorID,
		ActorHandle: actorHandle,
		Status:      status,
	})
	return nil
}

func (r *OfferRepository) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	offer, ok := r.offers[id]
	if !ok {
		return repository.ErrNotFound
	}
	if offer.IsPublished {
		return repository.ErrConflict
	}
	delete(r.offers, id)

	kept := r.events[:0]
	for _, ev := range r.events {
		if ev.OfferID != id {
			kept = append(kept, ev)
		}
	}
	r.events = kept
	return nil
}

func (r *OfferRepository) StatusEventsBetween(ctx context.Context, from, to time.Time) ([]entity.StatusEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []entity.StatusEvent
	for _, ev := range r.events {
		if !ev.Timestamp.Before(from) && ev.Timestamp.Before(to) {
			out = append(out, ev)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (r *OfferRepository) StatusEventsByOffer(ctx context.Context, id int64) ([]entity.StatusEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []entity.StatusEvent
	for _, ev := range r.events {
		if ev.OfferID == id {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (r *OfferRepository) ListAll(ctx context.Context) ([]*entity.Offer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*entity.Offer, 0, len(r.offers))
	for _, offer := range r.offers {
		out = append(out, offer.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
