package telegram

import (
	"context"
	"fmt"

	"github.com/brokerdesk/offer-service/internal/domain/entity"
	"github.com/brokerdesk/offer-service/internal/platform/logger"
	"github.com/mymmrac/telego"
)

// Gateway publishes offers into the shared group chat and keeps the
// rendering in sync after status changes. It implements
// service.PublicationGateway.
//
// The photo album and the card are two messages because Telegram does
// not attach inline keyboards to media groups; the publication
// reference points at the card, which is the message edited later.
type Gateway struct {
	api         *telego.Bot
	schema      *entity.Schema
	groupChatID int64
	logger      logger.Logger
}

func NewGateway(api *telego.Bot, schema *entity.Schema, groupChatID int64, log logger.Logger) *Gateway {
	return &Gateway{
		api:         api,
		schema:      schema,
		groupChatID: groupChatID,
		logger:      log,
	}
}

func (g *Gateway) Publish(ctx context.Context, offer *entity.Offer) (entity.PublicationRef, error) {
	media := make([]telego.InputMedia, 0, len(offer.Photos))
	for _, ref := range offer.Photos {
		media = append(media, &telego.InputMediaPhoto{
			Type:  telego.MediaTypePhoto,
			Media: telego.InputFile{FileID: ref},
		})
	}

	if _, err := g.api.SendMediaGroup(ctx, &telego.SendMediaGroupParams{
		ChatID: telego.ChatID{ID: g.groupChatID},
		Media:  media,
	}); err != nil {
		return entity.PublicationRef{}, fmt.Errorf("failed to send photo album for offer %d: %w", offer.ID, err)
	}

	// the card carries ACTIVE already: publication and the first
	// status change are one action from the broker's point of view
	card := offer.Clone()
	card.Status = entity.StatusActive

	msg, err := g.api.SendMessage(ctx, &telego.SendMessageParams{
		ChatID:      telego.ChatID{ID: g.groupChatID},
		Text:        renderOffer(g.schema, card),
		ParseMode:   telego.ModeHTML,
		ReplyMarkup: statusKeyboard(offer.ID),
	})
	if err != nil {
		return entity.PublicationRef{}, fmt.Errorf("failed to send offer card for offer %d: %w", offer.ID, err)
	}

	g.logger.Infof("Gateway.Publish: offer %d rendered as message %d in chat %d", offer.ID, msg.MessageID, msg.Chat.ID)
	return entity.PublicationRef{ChatID: msg.Chat.ID, MessageID: msg.MessageID}, nil
}

func (g *Gateway) UpdatePublished(ctx context.Context, ref entity.PublicationRef, offer *entity.Offer) error {
	_, err := g.api.EditMessageText(ctx, &telego.EditMessageTextParams{
		ChatID:      telego.ChatID{ID: ref.ChatID},
		MessageID:   ref.MessageID,
		Text:        renderOffer(g.schema, offer),
		ParseMode:   telego.ModeHTML,
		ReplyMarkup: statusKeyboard(offer.ID),
	})
	if err != nil {
		return fmt.Errorf("failed to update published card of offer %d: %w", offer.ID, err)
	}
	return nil
}
