package repository

import (
	"context"
	"time"

	"github.com/brokerdesk/offer-service/internal/domain/entity"
)

// OfferRepository is the single shared mutable resource of the
// service. Every mutation is durable before the call returns and is
// atomic with respect to other mutations on the same offer.
type OfferRepository interface {
	// Create assigns the next monotonic ID, persists the offer and
	// records the initial UNKNOWN status event in one step.
	Create(ctx context.Context, offer *entity.Offer) (int64, error)
	GetByID(ctx context.Context, id int64) (*entity.Offer, error)

	// SetField overwrites one field value. The key must already be
	// present in the offer's field map (ErrInvalidField otherwise).
	SetField(ctx context.Context, id int64, key, value string) error

	// AppendPhoto appends a photo reference. Duplicates are accepted;
	// insertion order is preserved.
	AppendPhoto(ctx context.Context, id int64, photoRef string) error

	// MarkPublished sets the publication reference. Publication is
	// single-use per offer: a second call returns ErrConflict.
	MarkPublished(ctx context.Context, id int64, ref entity.PublicationRef) error

	// RecordStatusChange validates the transition against the status
	// workflow, updates the current status and appends a StatusEvent.
	// Unpublished or missing offers return ErrNotFound; targets the
	// workflow does not recognize return ErrInvalidTransition.
	RecordStatusChange(ctx context.Context, id int64, status entity.Status, actorID int64, actorHandle string) error

	// Delete removes a draft and its status events. Published offers
	// cannot be deleted (ErrConflict).
	Delete(ctx context.Context, id int64) error

	// StatusEventsBetween returns events with from <= ts < to, in
	// timestamp order.
	StatusEventsBetween(ctx context.Context, from, to time.Time) ([]entity.StatusEvent, error)

	// StatusEventsByOffer returns the full log of one offer, oldest
	// first.
	StatusEventsByOffer(ctx context.Context, id int64) ([]entity.StatusEvent, error)

	// ListAll returns every offer ordered by ID. Used by the export
	// collaborator; read-only.
	ListAll(ctx context.Context) ([]*entity.Offer, error)
}

// OfferCache is a read-through cache for offers keyed by ID. A nil,
// nil return is a miss.
type OfferCache interface {
	Get(ctx context.Context, id int64) (*entity.Offer, error)
	Set(ctx context.Context, offer *entity.Offer, ttl time.Duration) error
	Delete(ctx context.Context, id int64) error
}
