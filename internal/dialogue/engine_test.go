package dialogue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/brokerdesk/offer-service/internal/adapter/memory"
	"github.com/brokerdesk/offer-service/internal/domain/entity"
	"github.com/brokerdesk/offer-service/internal/platform/logger"
	"github.com/brokerdesk/offer-service/internal/repository"
	"github.com/brokerdesk/offer-service/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPublicationGateway struct {
	mock.Mock
}

func (m *MockPublicationGateway) Publish(ctx context.Context, offer *entity.Offer) (entity.PublicationRef, error) {
	args := m.Called(ctx, offer)
	return args.Get(0).(entity.PublicationRef), args.Error(1)
}

func (m *MockPublicationGateway) UpdatePublished(ctx context.Context, ref entity.PublicationRef, offer *entity.Offer) error {
	args := m.Called(ctx, ref, offer)
	return args.Error(0)
}

type engineFixture struct {
	engine   *Engine
	sessions *SessionStore
	repo     *memory.OfferRepository
	gateway  *MockPublicationGateway
	schema   *entity.Schema
}

func newEngineFixture() *engineFixture {
	schema := entity.DefaultSchema()
	repo := memory.NewOfferRepository()
	gateway := new(MockPublicationGateway)
	svc := service.NewOfferService(repo, nil, gateway, nil, schema, logger.NoOp{}, time.Hour)
	sessions := NewSessionStore()
	return &engineFixture{
		engine:   NewEngine(schema, sessions, svc, logger.NoOp{}),
		sessions: sessions,
		repo:     repo,
		gateway:  gateway,
		schema:   schema,
	}
}

// answerFor produces a valid signal for any schema field.
func answerFor(field *entity.FieldDefinition) Signal {
	if len(field.Choices) > 0 {
		return Signal{Kind: SignalChoice, Value: field.Choices[0]}
	}
	value := "відповідь " + field.Key
	if field.Validate(value) != nil {
		value = "350" // amount fields only take digits
	}
	return Signal{Kind: SignalText, Value: value}
}

// fillFields walks the whole field phase and stops at the photo
// prompt.
func fillFields(t *testing.T, f *engineFixture, actorID int64) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < f.schema.Len(); i++ {
		reply, err := f.engine.Handle(ctx, actorID, answerFor(f.schema.At(i)))
		require.NoError(t, err)
		if i < f.schema.Len()-1 {
			require.Equal(t, ReplyAskField, reply.Kind, "after field %d", i)
			require.Equal(t, f.schema.At(i+1).Key, reply.Field.Key)
		} else {
			require.Equal(t, ReplyPhotoProgress, reply.Kind)
			require.Zero(t, reply.PhotoCount)
		}
	}
}

func TestEngine_FullFlow_Publish(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()

	reply, err := f.engine.StartCreate(ctx, 42, "broker_ann", 42)
	require.NoError(t, err)
	assert.Equal(t, ReplyAskField, reply.Kind)
	assert.Equal(t, "category", reply.Field.Key)
	assert.False(t, reply.DiscardedDraft)

	fillFields(t, f, 42)

	reply, err = f.engine.Handle(ctx, 42, Signal{Kind: SignalPhoto, Value: "photo-1"})
	require.NoError(t, err)
	assert.Equal(t, ReplyPhotoProgress, reply.Kind)
	assert.Equal(t, 1, reply.PhotoCount)

	reply, err = f.engine.Handle(ctx, 42, Signal{Kind: SignalPhoto, Value: "photo-2"})
	require.NoError(t, err)
	assert.Equal(t, 2, reply.PhotoCount)

	reply, err = f.engine.Handle(ctx, 42, Signal{Kind: SignalComplete})
	require.NoError(t, err)
	require.Equal(t, ReplyReview, reply.Kind)
	require.NotNil(t, reply.Offer)
	assert.Equal(t, "Оренда", reply.Offer.Fields["category"])
	assert.Equal(t, []string{"photo-1", "photo-2"}, reply.Offer.Photos)
	for _, key := range f.schema.Keys() {
		assert.NotEmpty(t, reply.Offer.Fields[key], "field %s", key)
	}

	f.gateway.On("Publish", mock.Anything, mock.Anything).
		Return(entity.PublicationRef{ChatID: -100500, MessageID: 7}, nil).Once()

	reply, err = f.engine.Handle(ctx, 42, Signal{Kind: SignalPublish})
	require.NoError(t, err)
	require.Equal(t, ReplyPublished, reply.Kind)
	assert.True(t, reply.Offer.IsPublished)
	assert.Equal(t, entity.StatusActive, reply.Offer.Status)

	log, err := f.repo.StatusEventsByOffer(ctx, reply.Offer.ID)
	require.NoError(t, err)
	assert.Len(t, log, 2)

	// the session is gone, further signals bounce
	reply, err = f.engine.Handle(ctx, 42, Signal{Kind: SignalText, Value: "ще щось"})
	require.NoError(t, err)
	assert.Equal(t, ReplyNoSession, reply.Kind)
	assert.Zero(t, f.sessions.Len())
	f.gateway.AssertExpectations(t)
}

func TestEngine_CustomChoice(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()

	_, err := f.engine.StartCreate(ctx, 42, "broker_ann", 42)
	require.NoError(t, err)

	reply, err := f.engine.Handle(ctx, 42, Signal{Kind: SignalCustom})
	require.NoError(t, err)
	assert.Equal(t, ReplyAskCustom, reply.Kind)

	// while waiting for the custom value, only text counts
	reply, err = f.engine.Handle(ctx, 42, Signal{Kind: SignalPhoto, Value: "p"})
	require.NoError(t, err)
	assert.Equal(t, ReplyAskCustom, reply.Kind)

	reply, err = f.engine.Handle(ctx, 42, Signal{Kind: SignalText, Value: "Подобова оренда"})
	require.NoError(t, err)
	require.Equal(t, ReplyAskField, reply.Kind)
	assert.Equal(t, "housing_type", reply.Field.Key)

	sess, ok := f.sessions.Get(42)
	require.True(t, ok)
	offer, err := f.repo.GetByID(ctx, sess.OfferID)
	require.NoError(t, err)
	assert.Equal(t, "Подобова оренда", offer.Fields["category"])
}

func TestEngine_RejectsInvalidInput(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()

	_, err := f.engine.StartCreate(ctx, 42, "broker_ann", 42)
	require.NoError(t, err)

	// free text that is not one of the choices does not advance
	reply, err := f.engine.Handle(ctx, 42, Signal{Kind: SignalText, Value: "Суборенда"})
	require.NoError(t, err)
	assert.Equal(t, ReplyInvalidInput, reply.Kind)
	assert.Equal(t, "category", reply.Field.Key)

	// a choice value typed as text is fine
	reply, err = f.engine.Handle(ctx, 42, Signal{Kind: SignalText, Value: "Продаж"})
	require.NoError(t, err)
	assert.Equal(t, ReplyAskField, reply.Kind)
	assert.Equal(t, "housing_type", reply.Field.Key)

	// unknown callback choice is rejected too
	reply, err = f.engine.Handle(ctx, 42, Signal{Kind: SignalChoice, Value: "Гараж"})
	require.NoError(t, err)
	assert.Equal(t, ReplyInvalidInput, reply.Kind)
}

func TestEngine_AmountValidation(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()

	_, err := f.engine.StartCreate(ctx, 42, "broker_ann", 42)
	require.NoError(t, err)

	for i := 0; ; i++ {
		field := f.schema.At(i)
		if field.Key == "rent" {
			break
		}
		_, err := f.engine.Handle(ctx, 42, answerFor(field))
		require.NoError(t, err)
	}

	reply, err := f.engine.Handle(ctx, 42, Signal{Kind: SignalText, Value: "триста"})
	require.NoError(t, err)
	assert.Equal(t, ReplyInvalidInput, reply.Kind)
	assert.Equal(t, "rent", reply.Field.Key)
	assert.NotEmpty(t, reply.ErrText)

	reply, err = f.engine.Handle(ctx, 42, Signal{Kind: SignalText, Value: "300"})
	require.NoError(t, err)
	assert.Equal(t, ReplyAskField, reply.Kind)
	assert.Equal(t, "deposit", reply.Field.Key)
}

func TestEngine_PhotosRequired(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()

	_, err := f.engine.StartCreate(ctx, 42, "broker_ann", 42)
	require.NoError(t, err)
	fillFields(t, f, 42)

	reply, err := f.engine.Handle(ctx, 42, Signal{Kind: SignalComplete})
	require.NoError(t, err)
	assert.Equal(t, ReplyPhotosRequired, reply.Kind)

	// text during the photo phase is nagged, not stored
	reply, err = f.engine.Handle(ctx, 42, Signal{Kind: SignalText, Value: "ось фото"})
	require.NoError(t, err)
	assert.Equal(t, ReplyPhotosRequired, reply.Kind)

	_, err = f.engine.Handle(ctx, 42, Signal{Kind: SignalPhoto, Value: "photo-1"})
	require.NoError(t, err)
	reply, err = f.engine.Handle(ctx, 42, Signal{Kind: SignalComplete})
	require.NoError(t, err)
	assert.Equal(t, ReplyReview, reply.Kind)
}

func TestEngine_EditFlow(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()

	_, err := f.engine.StartCreate(ctx, 42, "broker_ann", 42)
	require.NoError(t, err)
	fillFields(t, f, 42)
	_, err = f.engine.Handle(ctx, 42, Signal{Kind: SignalPhoto, Value: "photo-1"})
	require.NoError(t, err)
	_, err = f.engine.Handle(ctx, 42, Signal{Kind: SignalComplete})
	require.NoError(t, err)

	reply, err := f.engine.Handle(ctx, 42, Signal{Kind: SignalEdit})
	require.NoError(t, err)
	assert.Equal(t, ReplyAskEditField, reply.Kind)

	// unknown field key stays on the menu
	reply, err = f.engine.Handle(ctx, 42, Signal{Kind: SignalChoice, Value: "floor"})
	require.NoError(t, err)
	assert.Equal(t, ReplyAskEditField, reply.Kind)
	assert.NotEmpty(t, reply.ErrText)

	reply, err = f.engine.Handle(ctx, 42, Signal{Kind: SignalChoice, Value: "city"})
	require.NoError(t, err)
	require.Equal(t, ReplyAskField, reply.Kind)
	assert.Equal(t, "city", reply.Field.Key)

	reply, err = f.engine.Handle(ctx, 42, Signal{Kind: SignalText, Value: "Львів"})
	require.NoError(t, err)
	require.Equal(t, ReplyReview, reply.Kind)
	assert.Equal(t, "Львів", reply.Offer.Fields["city"])
	// the rest of the record is untouched
	assert.Equal(t, "відповідь street", reply.Offer.Fields["street"])
}

func TestEngine_CancelDeletesDraft(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()

	_, err := f.engine.StartCreate(ctx, 42, "broker_ann", 42)
	require.NoError(t, err)
	sess, ok := f.sessions.Get(42)
	require.True(t, ok)
	offerID := sess.OfferID

	reply, err := f.engine.Handle(ctx, 42, Signal{Kind: SignalCancel})
	require.NoError(t, err)
	assert.Equal(t, ReplyCancelled, reply.Kind)
	assert.Zero(t, f.sessions.Len())

	_, err = f.repo.GetByID(ctx, offerID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	events, err := f.repo.StatusEventsByOffer(ctx, offerID)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestEngine_StartCreate_DiscardsPreviousDraft(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()

	_, err := f.engine.StartCreate(ctx, 42, "broker_ann", 42)
	require.NoError(t, err)
	first, _ := f.sessions.Get(42)
	firstOfferID := first.OfferID

	reply, err := f.engine.StartCreate(ctx, 42, "broker_ann", 42)
	require.NoError(t, err)
	assert.True(t, reply.DiscardedDraft)
	assert.Equal(t, ReplyAskField, reply.Kind)
	assert.Equal(t, "category", reply.Field.Key)

	_, err = f.repo.GetByID(ctx, firstOfferID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Equal(t, 1, f.sessions.Len())
}

func TestEngine_PublishFailureKeepsSession(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()

	_, err := f.engine.StartCreate(ctx, 42, "broker_ann", 42)
	require.NoError(t, err)
	fillFields(t, f, 42)
	_, err = f.engine.Handle(ctx, 42, Signal{Kind: SignalPhoto, Value: "photo-1"})
	require.NoError(t, err)
	_, err = f.engine.Handle(ctx, 42, Signal{Kind: SignalComplete})
	require.NoError(t, err)

	f.gateway.On("Publish", mock.Anything, mock.Anything).
		Return(entity.PublicationRef{}, errors.New("group chat unreachable")).Once()

	reply, err := f.engine.Handle(ctx, 42, Signal{Kind: SignalPublish})
	require.NoError(t, err)
	assert.Equal(t, ReplyPublishFailed, reply.Kind)
	assert.NotEmpty(t, reply.ErrText)

	// still in review: a retry can succeed
	f.gateway.On("Publish", mock.Anything, mock.Anything).
		Return(entity.PublicationRef{ChatID: -1, MessageID: 1}, nil).Once()
	reply, err = f.engine.Handle(ctx, 42, Signal{Kind: SignalPublish})
	require.NoError(t, err)
	assert.Equal(t, ReplyPublished, reply.Kind)
}

func TestEngine_SessionLostWhenOfferVanishes(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()

	_, err := f.engine.StartCreate(ctx, 42, "broker_ann", 42)
	require.NoError(t, err)
	sess, _ := f.sessions.Get(42)
	require.NoError(t, f.repo.Delete(ctx, sess.OfferID))

	reply, err := f.engine.Handle(ctx, 42, Signal{Kind: SignalChoice, Value: "Оренда"})
	require.NoError(t, err)
	assert.Equal(t, ReplySessionLost, reply.Kind)
	assert.Zero(t, f.sessions.Len())
}

func TestEngine_NoSession(t *testing.T) {
	f := newEngineFixture()

	reply, err := f.engine.Handle(context.Background(), 42, Signal{Kind: SignalText, Value: "привіт"})
	require.NoError(t, err)
	assert.Equal(t, ReplyNoSession, reply.Kind)
}

func TestSessionStore_OneSessionPerActor(t *testing.T) {
	store := NewSessionStore()

	old := store.Put(&Session{ActorID: 42, OfferID: 1})
	assert.Nil(t, old)

	old = store.Put(&Session{ActorID: 42, OfferID: 2})
	require.NotNil(t, old)
	assert.Equal(t, int64(1), old.OfferID)
	assert.Equal(t, 1, store.Len())

	sess, ok := store.Get(42)
	require.True(t, ok)
	assert.Equal(t, int64(2), sess.OfferID)

	store.Delete(42)
	_, ok = store.Get(42)
	assert.False(t, ok)
}
