// Package dialogue implements the per-actor conversational state
// machine that walks a broker through registering an offer: the fixed
// field steps, the open-ended photo phase and the review phase, with
// a one-field edit sub-flow.
package dialogue

import (
	"context"
	"errors"
	"strings"

	"github.com/brokerdesk/offer-service/internal/domain/entity"
	"github.com/brokerdesk/offer-service/internal/platform/logger"
	"github.com/brokerdesk/offer-service/internal/repository"
	"github.com/brokerdesk/offer-service/internal/service"
)

type Engine struct {
	schema   *entity.Schema
	sessions *SessionStore
	offers   *service.OfferService
	logger   logger.Logger
}

func NewEngine(schema *entity.Schema, sessions *SessionStore, offers *service.OfferService, log logger.Logger) *Engine {
	return &Engine{
		schema:   schema,
		sessions: sessions,
		offers:   offers,
		logger:   log,
	}
}

// StartCreate opens a fresh dialogue for the actor. An already-open
// session is discarded together with its draft offer: one actor, one
// session, and never a half-built record left behind.
func (e *Engine) StartCreate(ctx context.Context, actorID int64, actorHandle string, chatID int64) (*Reply, error) {
	discarded := false
	if old, ok := e.sessions.Get(actorID); ok {
		e.discardDraft(ctx, old)
		e.sessions.Delete(actorID)
		discarded = true
	}

	offer, err := e.offers.CreateDraft(ctx, actorID, actorHandle)
	if err != nil {
		return nil, err
	}

	e.sessions.Put(&Session{
		ActorID:     actorID,
		ActorHandle: actorHandle,
		ChatID:      chatID,
		OfferID:     offer.ID,
		Phase:       PhaseFields,
	})

	e.logger.Infof("Engine.StartCreate: actor %d started offer %d", actorID, offer.ID)
	return &Reply{Kind: ReplyAskField, Field: e.schema.At(0), DiscardedDraft: discarded}, nil
}

// Handle feeds one signal into the actor's session and returns what
// to render next.
func (e *Engine) Handle(ctx context.Context, actorID int64, sig Signal) (*Reply, error) {
	sess, ok := e.sessions.Get(actorID)
	if !ok {
		return &Reply{Kind: ReplyNoSession}, nil
	}

	if sig.Kind == SignalCancel {
		e.discardDraft(ctx, sess)
		e.sessions.Delete(actorID)
		e.logger.Infof("Engine.Handle: actor %d cancelled offer %d", actorID, sess.OfferID)
		return &Reply{Kind: ReplyCancelled}, nil
	}

	switch sess.Phase {
	case PhaseFields:
		return e.handleFields(ctx, sess, sig)
	case PhasePhotos:
		return e.handlePhotos(ctx, sess, sig)
	case PhaseReview:
		return e.handleReview(ctx, sess, sig)
	case PhaseEditing:
		return e.handleEditing(ctx, sess, sig)
	}
	return &Reply{Kind: ReplyNoSession}, nil
}

func (e *Engine) handleFields(ctx context.Context, sess *Session, sig Signal) (*Reply, error) {
	field := e.schema.At(sess.Step)

	value, reply := e.resolveInput(sess, field, sig)
	if reply != nil {
		return reply, nil
	}

	if reply, err := e.writeField(ctx, sess, field, value); reply != nil || err != nil {
		return reply, err
	}

	sess.AwaitingCustom = false
	sess.Step++
	if sess.Step >= e.schema.Len() {
		sess.Phase = PhasePhotos
		return &Reply{Kind: ReplyPhotoProgress, PhotoCount: 0}, nil
	}
	return &Reply{Kind: ReplyAskField, Field: e.schema.At(sess.Step)}, nil
}

func (e *Engine) handlePhotos(ctx context.Context, sess *Session, sig Signal) (*Reply, error) {
	switch sig.Kind {
	case SignalPhoto:
		err := e.offers.AppendPhoto(ctx, sess.OfferID, sig.Value)
		if errors.Is(err, repository.ErrNotFound) {
			return e.sessionLost(sess), nil
		}
		if err != nil {
			return nil, err
		}
		sess.PhotoCount++
		return &Reply{Kind: ReplyPhotoProgress, PhotoCount: sess.PhotoCount}, nil

	case SignalComplete:
		// publication needs visual material; an empty album is not an
		// offer
		if sess.PhotoCount == 0 {
			return &Reply{Kind: ReplyPhotosRequired}, nil
		}
		sess.Phase = PhaseReview
		return e.review(ctx, sess)

	default:
		return &Reply{Kind: ReplyPhotosRequired, PhotoCount: sess.PhotoCount}, nil
	}
}

func (e *Engine) handleReview(ctx context.Context, sess *Session, sig Signal) (*Reply, error) {
	if sess.ChoosingField {
		if sig.Kind == SignalChoice {
			field, ok := e.schema.ByKey(sig.Value)
			if !ok {
				return &Reply{Kind: ReplyAskEditField, ErrText: "невідоме поле"}, nil
			}
			sess.ChoosingField = false
			sess.Phase = PhaseEditing
			sess.EditingKey = field.Key
			return &Reply{Kind: ReplyAskField, Field: field}, nil
		}
		return &Reply{Kind: ReplyAskEditField}, nil
	}

	switch sig.Kind {
	case SignalPublish:
		offer, err := e.offers.Publish(ctx, sess.OfferID, sess.ActorID, sess.ActorHandle)
		if errors.Is(err, repository.ErrNotFound) {
			return e.sessionLost(sess), nil
		}
		if err != nil {
			// stay in review; the actor may retry or cancel
			return &Reply{Kind: ReplyPublishFailed, ErrText: err.Error()}, nil
		}
		e.sessions.Delete(sess.ActorID)
		return &Reply{Kind: ReplyPublished, Offer: offer}, nil

	case SignalEdit:
		sess.ChoosingField = true
		return &Reply{Kind: ReplyAskEditField}, nil

	default:
		return e.review(ctx, sess)
	}
}

func (e *Engine) handleEditing(ctx context.Context, sess *Session, sig Signal) (*Reply, error) {
	field, ok := e.schema.ByKey(sess.EditingKey)
	if !ok {
		// EditingKey is only ever set from the schema; treat a miss as
		// a lost session rather than guessing
		return e.sessionLost(sess), nil
	}

	value, reply := e.resolveInput(sess, field, sig)
	if reply != nil {
		return reply, nil
	}

	if reply, err := e.writeField(ctx, sess, field, value); reply != nil || err != nil {
		return reply, err
	}

	sess.AwaitingCustom = false
	sess.EditingKey = ""
	sess.Phase = PhaseReview
	return e.review(ctx, sess)
}

// resolveInput turns a signal into a candidate field value, or into
// the reply to send when the signal does not produce one (custom
// escape, wrong input kind, unknown choice).
func (e *Engine) resolveInput(sess *Session, field *entity.FieldDefinition, sig Signal) (string, *Reply) {
	if sess.AwaitingCustom {
		if sig.Kind == SignalText {
			return strings.TrimSpace(sig.Value), nil
		}
		return "", &Reply{Kind: ReplyAskCustom, Field: field}
	}

	switch sig.Kind {
	case SignalChoice:
		if field.HasChoice(sig.Value) {
			return sig.Value, nil
		}
		return "", &Reply{Kind: ReplyInvalidInput, Field: field, ErrText: "оберіть один із запропонованих варіантів"}

	case SignalCustom:
		if field.AllowsCustom {
			sess.AwaitingCustom = true
			return "", &Reply{Kind: ReplyAskCustom, Field: field}
		}
		return "", &Reply{Kind: ReplyInvalidInput, Field: field, ErrText: "це поле не приймає власних варіантів"}

	case SignalText:
		text := strings.TrimSpace(sig.Value)
		if len(field.Choices) == 0 || field.HasChoice(text) {
			return text, nil
		}
		return "", &Reply{Kind: ReplyInvalidInput, Field: field, ErrText: "оберіть один із запропонованих варіантів"}

	default:
		return "", &Reply{Kind: ReplyInvalidInput, Field: field, ErrText: "очікується текстова відповідь"}
	}
}

// writeField validates and persists one value. A non-nil reply means
// the value was rejected (validator) or the offer is gone.
func (e *Engine) writeField(ctx context.Context, sess *Session, field *entity.FieldDefinition, value string) (*Reply, error) {
	if verr := field.Validate(value); verr != nil {
		return &Reply{Kind: ReplyInvalidInput, Field: field, ErrText: verr.Msg}, nil
	}

	err := e.offers.SetField(ctx, sess.OfferID, field.Key, value)
	if errors.Is(err, repository.ErrNotFound) {
		return e.sessionLost(sess), nil
	}
	if err != nil {
		return nil, err
	}
	return nil, nil
}

func (e *Engine) review(ctx context.Context, sess *Session) (*Reply, error) {
	offer, err := e.offers.Get(ctx, sess.OfferID)
	if errors.Is(err, repository.ErrNotFound) {
		return e.sessionLost(sess), nil
	}
	if err != nil {
		return nil, err
	}
	return &Reply{Kind: ReplyReview, Offer: offer}, nil
}

func (e *Engine) sessionLost(sess *Session) *Reply {
	e.logger.Warnf("Engine: offer %d vanished, closing session of actor %d", sess.OfferID, sess.ActorID)
	e.sessions.Delete(sess.ActorID)
	return &Reply{Kind: ReplySessionLost}
}

// discardDraft deletes the session's offer if it is still a draft.
// Published offers are left alone.
func (e *Engine) discardDraft(ctx context.Context, sess *Session) {
	err := e.offers.DeleteDraft(ctx, sess.OfferID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) && !errors.Is(err, repository.ErrConflict) {
		e.logger.Warnf("Engine: failed to discard draft %d: %v", sess.OfferID, err)
	}
}
