package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/brokerdesk/offer-service/internal/domain/entity"
	"github.com/brokerdesk/offer-service/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedOffer(t *testing.T, repo *OfferRepository) int64 {
	t.Helper()
	offer, err := entity.NewOffer(42, "broker_ann", entity.DefaultSchema())
	require.NoError(t, err)
	id, err := repo.Create(context.Background(), offer)
	require.NoError(t, err)
	return id
}

func seedPublished(t *testing.T, repo *OfferRepository) int64 {
	t.Helper()
	ctx := context.Background()
	id := seedOffer(t, repo)
	require.NoError(t, repo.MarkPublished(ctx, id, entity.PublicationRef{ChatID: -1, MessageID: 1}))
	require.NoError(t, repo.RecordStatusChange(ctx, id, entity.StatusActive, 42, "broker_ann"))
	return id
}

func TestOfferRepository_Create_MonotonicIDsAndInitialEvent(t *testing.T) {
	repo := NewOfferRepository()
	ctx := context.Background()

	first := seedOffer(t, repo)
	second := seedOffer(t, repo)
	assert.Equal(t, first+1, second)

	events, err := repo.StatusEventsByOffer(ctx, first)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, entity.StatusUnknown, events[0].Status)
	assert.Equal(t, int64(42), events[0].ActorID)
}

func TestOfferRepository_GetByID_ReturnsClone(t *testing.T) {
	repo := NewOfferRepository()
	ctx := context.Background()
	id := seedOffer(t, repo)

	got, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	got.Fields["city"] = "змінено ззовні"

	fresh, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, fresh.Fields["city"])

	_, err = repo.GetByID(ctx, 9999)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestOfferRepository_SetField(t *testing.T) {
	repo := NewOfferRepository()
	ctx := context.Background()
	id := seedOffer(t, repo)

	require.NoError(t, repo.SetField(ctx, id, "city", "Ужгород"))
	assert.ErrorIs(t, repo.SetField(ctx, id, "floor", "3"), repository.ErrInvalidField)
	assert.ErrorIs(t, repo.SetField(ctx, 9999, "city", "Ужгород"), repository.ErrNotFound)

	offer, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Ужгород", offer.Fields["city"])
}

func TestOfferRepository_AppendPhoto_KeepsOrderAndDuplicates(t *testing.T) {
	repo := NewOfferRepository()
	ctx := context.Background()
	id := seedOffer(t, repo)

	for _, ref := range []string{"p1", "p2", "p1"} {
		require.NoError(t, repo.AppendPhoto(ctx, id, ref))
	}
	offer, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2", "p1"}, offer.Photos)
}

func TestOfferRepository_MarkPublished_SingleUse(t *testing.T) {
	repo := NewOfferRepository()
	ctx := context.Background()
	id := seedOffer(t, repo)
	ref := entity.PublicationRef{ChatID: -100, MessageID: 5}

	require.NoError(t, repo.MarkPublished(ctx, id, ref))
	assert.ErrorIs(t, repo.MarkPublished(ctx, id, ref), repository.ErrConflict)

	offer, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.True(t, offer.IsPublished)
	require.NotNil(t, offer.Publication)
	assert.Equal(t, ref, *offer.Publication)
}

func TestOfferRepository_RecordStatusChange_Guards(t *testing.T) {
	repo := NewOfferRepository()
	ctx := context.Background()

	draft := seedOffer(t, repo)
	err := repo.RecordStatusChange(ctx, draft, entity.StatusActive, 42, "broker_ann")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	id := seedPublished(t, repo)
	err = repo.RecordStatusChange(ctx, id, entity.StatusUnknown, 42, "broker_ann")
	assert.ErrorIs(t, err, repository.ErrInvalidTransition)

	require.NoError(t, repo.RecordStatusChange(ctx, id, entity.StatusReserved, 42, "broker_ann"))
	offer, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusReserved, offer.Status)
}

func TestOfferRepository_RecordStatusChange_Concurrent(t *testing.T) {
	repo := NewOfferRepository()
	ctx := context.Background()
	id := seedPublished(t, repo)

	var wg sync.WaitGroup
	statuses := []entity.Status{entity.StatusReserved, entity.StatusClosed}
	for _, st := range statuses {
		wg.Add(1)
		go func(st entity.Status) {
			defer wg.Done()
			assert.NoError(t, repo.RecordStatusChange(ctx, id, st, 42, "broker_ann"))
		}(st)
	}
	wg.Wait()

	// both writers serialize; each leaves its event
	events, err := repo.StatusEventsByOffer(ctx, id)
	require.NoError(t, err)
	assert.Len(t, events, 4) // UNKNOWN, ACTIVE, plus the two above

	offer, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Contains(t, statuses, offer.Status)
}

func TestOfferRepository_Delete(t *testing.T) {
	repo := NewOfferRepository()
	ctx := context.Background()

	draft := seedOffer(t, repo)
	require.NoError(t, repo.Delete(ctx, draft))
	assert.ErrorIs(t, repo.Delete(ctx, draft), repository.ErrNotFound)

	events, err := repo.StatusEventsByOffer(ctx, draft)
	require.NoError(t, err)
	assert.Empty(t, events)

	published := seedPublished(t, repo)
	assert.ErrorIs(t, repo.Delete(ctx, published), repository.ErrConflict)
}

func TestOfferRepository_StatusEventsBetween_HalfOpen(t *testing.T) {
	repo := NewOfferRepository()
	ctx := context.Background()
	id := seedPublished(t, repo)

	events, err := repo.StatusEventsByOffer(ctx, id)
	require.NoError(t, err)
	require.Len(t, events, 2)
	anchor := events[1].Timestamp

	// [anchor, anchor+1s) contains the event, [anchor+1s, ...) does not
	within, err := repo.StatusEventsBetween(ctx, anchor, anchor.Add(time.Second))
	require.NoError(t, err)
	assert.NotEmpty(t, within)

	before, err := repo.StatusEventsBetween(ctx, anchor.Add(-time.Hour), anchor)
	require.NoError(t, err)
	for _, ev := range before {
		assert.True(t, ev.Timestamp.Before(anchor))
	}
}

func TestOfferRepository_ListAll_OrderedByID(t *testing.T) {
	repo := NewOfferRepository()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		seedOffer(t, repo)
	}
	offers, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, offers, 3)
	for i := 1; i < len(offers); i++ {
		assert.Greater(t, offers[i].ID, offers[i-1].ID)
	}
}
