package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/brokerdesk/offer-service/internal/app/config"
	"github.com/brokerdesk/offer-service/internal/domain/entity"
	"github.com/brokerdesk/offer-service/internal/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	offerCollectionName     = "offers"
	statusLogCollectionName = "status_log"
	counterCollectionName   = "counters"

	// the optimistic status filter rarely misses; a couple of retries
	// is enough to absorb an interleaved writer
	statusChangeAttempts = 3
)

type offerRepository struct {
	offers    *mongo.Collection
	statusLog *mongo.Collection
	counters  *mongo.Collection
}

func NewOfferRepository(client *mongo.Client, cfg config.MongoDBConfig) repository.OfferRepository {
	db := client.Database(cfg.Database)
	return &offerRepository{
		offers:    db.Collection(offerCollectionName),
		statusLog: db.Collection(statusLogCollectionName),
		counters:  db.Collection(counterCollectionName),
	}
}

// nextID allocates a monotonically increasing offer ID from the
// counters collection.
func (r *offerRepository) nextID(ctx context.Context) (int64, error) {
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := r.counters.FindOneAndUpdate(
		ctx,
		bson.M{"_id": offerCollectionName},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		opts,
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate offer ID: %w", err)
	}
	return counter.Seq, nil
}

func (r *offerRepository) Create(ctx context.Context, offer *entity.Offer) (int64, error) {
	id, err := r.nextID(ctx)
	if err != nil {
		return 0, err
	}

	stored := offer.Clone()
	stored.ID = id
	if _, err := r.offers.InsertOne(ctx, stored); err != nil {
		return 0, fmt.Errorf("failed to create offer: %w", err)
	}

	event := entity.StatusEvent{
		OfferID:     id,
		Timestamp:   stored.CreatedAt,
		ActorID:     stored.CreatorID,
		ActorHandle: stored.CreatorHandle,
		Status:      stored.Status,
	}
	if _, err := r.statusLog.InsertOne(ctx, event); err != nil {
		return 0, fmt.Errorf("failed to record initial status event for offer %d: %w", id, err)
	}
	return id, nil
}

func (r *offerRepository) GetByID(ctx context.Context, id int64) (*entity.Offer, error) {
	var offer entity.Offer
	err := r.offers.FindOne(ctx, bson.M{"_id": id}).Decode(&offer)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get offer %d: %w", id, err)
	}
	return &offer, nil
}

func (r *offerRepository) SetField(ctx context.Context, id int64, key, value string) error {
	// the filter requires the key to already exist in the field map, so
	// keys outside the schema never create stray document paths
	filter := bson.M{"_id": id, "fields." + key: bson.M{"$exists": true}}
	update := bson.M{"$set": bson.M{"fields." + key: value}}

	result, err := r.offers.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to set field %s on offer %d: %w", key, id, err)
	}
	if result.MatchedCount == 0 {
		if exists, err := r.exists(ctx, id); err != nil {
			return err
		} else if !exists {
			return repository.ErrNotFound
		}
		return repository.ErrInvalidField
	}
	return nil
}

func (r *offerRepository) AppendPhoto(ctx context.Context, id int64, photoRef string) error {
	result, err := r.offers.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$push": bson.M{"photos": photoRef}},
	)
	if err != nil {
		return fmt.Errorf("failed to append photo to offer %d: %w", id, err)
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *offerRepository) MarkPublished(ctx context.Context, id int64, ref entity.PublicationRef) error {
	filter := bson.M{"_id": id, "is_published": false}
	update := bson.M{"$set": bson.M{"is_published": true, "publication": ref}}

	result, err := r.offers.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to mark offer %d published: %w", id, err)
	}
	if result.MatchedCount == 0 {
		if exists, err := r.exists(ctx, id); err != nil {
			return err
		} else if !exists {
			return repository.ErrNotFound
		}
		return repository.ErrConflict
	}
	return nil
}

func (r *offerRepository) RecordStatusChange(ctx context.Context, id int64, status entity.Status, actorID int64, actorHandle string) error {
	for attempt := 0; attempt < statusChangeAttempts; attempt++ {
		offer, err := r.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !offer.IsPublished {
			return repository.ErrNotFound
		}
		if !entity.CanTransition(offer.Status, status) {
			return repository.ErrInvalidTransition
		}

		// optimistic filter on the status read above; a concurrent
		// change makes the update miss and we re-validate
		filter := bson.M{"_id": id, "status": offer.Status}
		update := bson.M{"$set": bson.M{"status": status}}
		result, err := r.offers.UpdateOne(ctx, filter, update)
		if err != nil {
			return fmt.Errorf("failed to update status of offer %d: %w", id, err)
		}
		if result.MatchedCount == 0 {
			continue
		}

		event := entity.StatusEvent{
			OfferID:     id,
			Timestamp:   time.Now().UTC(),
			ActorID:     actorID,
			ActorHandle: actorHandle,
			Status:      status,
		}
		if _, err := r.statusLog.InsertOne(ctx, event); err != nil {
			return fmt.Errorf("failed to record status event for offer %d: %w", id, err)
		}
		return nil
	}
	return fmt.Errorf("status change for offer %d kept losing to concurrent writers: %w", id, repository.ErrUpdateFailed)
}

func (r *offerRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.offers.DeleteOne(ctx, bson.M{"_id": id, "is_published": false})
	if err != nil {
		return fmt.Errorf("failed to delete offer %d: %w", id, err)
	}
	if result.DeletedCount == 0 {
		if exists, err := r.exists(ctx, id); err != nil {
			return err
		} else if !exists {
			return repository.ErrNotFound
		}
		return repository.ErrConflict
	}
	if _, err := r.statusLog.DeleteMany(ctx, bson.M{"offer_id": id}); err != nil {
		return fmt.Errorf("failed to delete status log of offer %d: %w", id, err)
	}
	return nil
}

func (r *offerRepository) StatusEventsBetween(ctx context.Context, from, to time.Time) ([]entity.StatusEvent, error) {
	filter := bson.M{"ts": bson.M{"$gte": from, "$lt": to}}
	opts := options.Find().SetSort(bson.D{{Key: "ts", Value: 1}})

	cursor, err := r.statusLog.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query status events: %w", err)
	}
	defer cursor.Close(ctx)

	var events []entity.StatusEvent
	if err := cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("failed to decode status events: %w", err)
	}
	return events, nil
}

func (r *offerRepository) StatusEventsByOffer(ctx context.Context, id int64) ([]entity.StatusEvent, error) {
	opts := options.Find().SetSort(bson.D{{Key: "ts", Value: 1}})
	cursor, err := r.statusLog.Find(ctx, bson.M{"offer_id": id}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query status events of offer %d: %w", id, err)
	}
	defer cursor.Close(ctx)

	var events []entity.StatusEvent
	if err := cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("failed to decode status events of offer %d: %w", id, err)
	}
	return events, nil
}

func (r *offerRepository) ListAll(ctx context.Context) ([]*entity.Offer, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := r.offers.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list offers: %w", err)
	}
	defer cursor.Close(ctx)

	var offers []*entity.Offer
	if err := cursor.All(ctx, &offers); err != nil {
		return nil, fmt.Errorf("failed to decode offers: %w", err)
	}
	return offers, nil
}

func (r *offerRepository) exists(ctx context.Context, id int64) (bool, error) {
	err := r.offers.FindOne(ctx, bson.M{"_id": id}).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check offer %d: %w", id, err)
	}
	return true, nil
}
