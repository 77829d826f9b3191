// Package telegram is the transport: it maps bot updates into
// dialogue signals, renders engine replies, and implements the
// publication gateway. No dialogue or workflow decisions are made
// here.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/brokerdesk/offer-service/internal/auth"
	"github.com/brokerdesk/offer-service/internal/dialogue"
	"github.com/brokerdesk/offer-service/internal/domain/entity"
	"github.com/brokerdesk/offer-service/internal/platform/logger"
	"github.com/brokerdesk/offer-service/internal/repository"
	"github.com/brokerdesk/offer-service/internal/service"
	"github.com/mymmrac/telego"
)

// completionWords end the photo phase when typed instead of pressing
// the button. Compared case-insensitively.
var completionWords = []string{photosDoneCap, "готово", "done"}

// Exporter writes a tabular snapshot and returns where it landed.
type Exporter interface {
	Export(ctx context.Context) (string, error)
}

type Bot struct {
	api      *telego.Bot
	engine   *dialogue.Engine
	offers   *service.OfferService
	stats    *service.StatsService
	exporter Exporter
	authz    auth.Authorizer
	schema   *entity.Schema
	logger   logger.Logger
}

func NewAPI(token string) (*telego.Bot, error) {
	api, err := telego.NewBot(token, telego.WithDefaultLogger(false, true))
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return api, nil
}

func NewBot(
	api *telego.Bot,
	engine *dialogue.Engine,
	offers *service.OfferService,
	stats *service.StatsService,
	exporter Exporter,
	authz auth.Authorizer,
	schema *entity.Schema,
	log logger.Logger,
) *Bot {
	return &Bot{
		api:      api,
		engine:   engine,
		offers:   offers,
		stats:    stats,
		exporter: exporter,
		authz:    authz,
		schema:   schema,
		logger:   log,
	}
}

// Run consumes updates until the context is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	updates, err := b.api.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start long polling: %w", err)
	}
	b.logger.Info("Telegram bot started, waiting for updates")

	for update := range updates {
		b.handleUpdate(ctx, update)
	}
	return nil
}

func (b *Bot) handleUpdate(ctx context.Context, update telego.Update) {
	switch {
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *telego.Message) {
	if msg.From == nil {
		return
	}
	actorID := msg.From.ID
	actorHandle := msg.From.Username
	chatID := msg.Chat.ID

	if !b.authz.IsAllowed(actorID) {
		// silent drop: disallowed actors learn nothing
		return
	}

	text := strings.TrimSpace(msg.Text)
	switch {
	case text == "/start":
		b.send(ctx, chatID, "Вітаю! Оберіть дію:", menuKeyboard())
		return
	case text == "/new":
		b.startCreate(ctx, actorID, actorHandle, chatID)
		return
	case text == "/cancel":
		b.dispatch(ctx, actorID, chatID, dialogue.Signal{Kind: dialogue.SignalCancel})
		return
	case text == "/stats":
		b.sendStats(ctx, chatID)
		return
	case text == "/export":
		b.sendExport(ctx, chatID)
		return
	}

	if len(msg.Photo) > 0 {
		// Telegram lists sizes smallest first; the last one is the
		// original
		ref := msg.Photo[len(msg.Photo)-1].FileID
		b.dispatch(ctx, actorID, chatID, dialogue.Signal{Kind: dialogue.SignalPhoto, Value: ref})
		return
	}

	if isCompletionWord(text) {
		b.dispatch(ctx, actorID, chatID, dialogue.Signal{Kind: dialogue.SignalComplete})
		return
	}
	b.dispatch(ctx, actorID, chatID, dialogue.Signal{Kind: dialogue.SignalText, Value: msg.Text})
}

func (b *Bot) handleCallback(ctx context.Context, query *telego.CallbackQuery) {
	actorID := query.From.ID
	actorHandle := query.From.Username
	// dialogues run in private chats, where the chat ID equals the
	// actor ID
	chatID := actorID

	if !b.authz.IsAllowed(actorID) {
		b.answerCallback(ctx, query.ID, "")
		return
	}

	data := query.Data
	switch {
	case data == cbNewOffer:
		b.startCreate(ctx, actorID, actorHandle, chatID)
	case data == cbStats:
		b.sendStats(ctx, chatID)
	case data == cbExport:
		b.sendExport(ctx, chatID)
	case data == cbCustom:
		b.dispatch(ctx, actorID, chatID, dialogue.Signal{Kind: dialogue.SignalCustom})
	case data == cbPublish:
		b.dispatch(ctx, actorID, chatID, dialogue.Signal{Kind: dialogue.SignalPublish})
	case data == cbEdit:
		b.dispatch(ctx, actorID, chatID, dialogue.Signal{Kind: dialogue.SignalEdit})
	case data == cbCancel:
		b.dispatch(ctx, actorID, chatID, dialogue.Signal{Kind: dialogue.SignalCancel})
	case strings.HasPrefix(data, cbChoice):
		b.dispatch(ctx, actorID, chatID, dialogue.Signal{Kind: dialogue.SignalChoice, Value: strings.TrimPrefix(data, cbChoice)})
	case strings.HasPrefix(data, cbEditField):
		b.dispatch(ctx, actorID, chatID, dialogue.Signal{Kind: dialogue.SignalChoice, Value: strings.TrimPrefix(data, cbEditField)})
	case strings.HasPrefix(data, cbStatus):
		b.changeStatus(ctx, query, actorID, actorHandle, strings.TrimPrefix(data, cbStatus))
		return
	}
	b.answerCallback(ctx, query.ID, "")
}

// changeStatus handles the group-chat status buttons: any allowed
// actor, not just the offer's creator.
func (b *Bot) changeStatus(ctx context.Context, query *telego.CallbackQuery, actorID int64, actorHandle, payload string) {
	parts := strings.SplitN(payload, ":", 2)
	if len(parts) != 2 {
		b.answerCallback(ctx, query.ID, "")
		return
	}
	offerID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		b.answerCallback(ctx, query.ID, "")
		return
	}

	offer, err := b.offers.ChangeStatus(ctx, offerID, parts[1], actorID, actorHandle)
	switch {
	case err == nil:
		b.answerCallback(ctx, query.ID, "Статус: "+statusLabel(offer.Status))
	case errors.Is(err, service.ErrRenderFailed):
		// the change is committed; only the card refresh failed
		b.answerCallback(ctx, query.ID, "Статус змінено, але картку не оновлено")
	case errors.Is(err, repository.ErrNotFound):
		b.answerCallback(ctx, query.ID, "Пропозицію не знайдено")
	case errors.Is(err, repository.ErrInvalidTransition):
		b.answerCallback(ctx, query.ID, "Такий статус неможливий")
	default:
		b.logger.Errorf("Bot.changeStatus: offer %d: %v", offerID, err)
		b.answerCallback(ctx, query.ID, "Сталася помилка")
	}
}

func (b *Bot) startCreate(ctx context.Context, actorID int64, actorHandle string, chatID int64) {
	reply, err := b.engine.StartCreate(ctx, actorID, actorHandle, chatID)
	if err != nil {
		b.logger.Errorf("Bot.startCreate: actor %d: %v", actorID, err)
		b.send(ctx, chatID, "⚠️ Не вдалося почати нову пропозицію, спробуйте пізніше.", nil)
		return
	}
	b.render(ctx, chatID, reply)
}

func (b *Bot) dispatch(ctx context.Context, actorID, chatID int64, sig dialogue.Signal) {
	reply, err := b.engine.Handle(ctx, actorID, sig)
	if err != nil {
		b.logger.Errorf("Bot.dispatch: actor %d signal %d: %v", actorID, sig.Kind, err)
		b.send(ctx, chatID, "⚠️ Сталася помилка, спробуйте ще раз.", nil)
		return
	}
	b.render(ctx, chatID, reply)
}

func (b *Bot) render(ctx context.Context, chatID int64, reply *dialogue.Reply) {
	if reply.DiscardedDraft {
		b.send(ctx, chatID, "Попередню незавершену пропозицію скасовано.", nil)
	}

	switch reply.Kind {
	case dialogue.ReplyAskField:
		b.askField(ctx, chatID, reply.Field, "")
	case dialogue.ReplyAskCustom:
		b.send(ctx, chatID, "Введіть власний варіант:", nil)
	case dialogue.ReplyInvalidInput:
		b.askField(ctx, chatID, reply.Field, "⚠️ "+reply.ErrText)
	case dialogue.ReplyPhotoProgress:
		if reply.PhotoCount == 0 {
			b.send(ctx, chatID, "Надішліть фото (можна декілька). Коли завершите — натисніть «"+photosDoneCap+"».", photosDoneKeyboard())
		} else {
			b.send(ctx, chatID, fmt.Sprintf("📷 Фото додано: %d", reply.PhotoCount), nil)
		}
	case dialogue.ReplyPhotosRequired:
		b.send(ctx, chatID, "Потрібно додати хоча б одне фото.", photosDoneKeyboard())
	case dialogue.ReplyAskEditField:
		text := "Оберіть поле для редагування:"
		if reply.ErrText != "" {
			text = "⚠️ " + reply.ErrText + "\n" + text
		}
		b.send(ctx, chatID, text, editFieldKeyboard(b.schema))
	case dialogue.ReplyReview:
		b.send(ctx, chatID, renderOffer(b.schema, reply.Offer), reviewKeyboard())
	case dialogue.ReplyPublished:
		b.send(ctx, chatID, fmt.Sprintf("✅ Пропозицію №%d опубліковано в групі.", reply.Offer.ID), &telego.ReplyKeyboardRemove{RemoveKeyboard: true})
	case dialogue.ReplyPublishFailed:
		b.send(ctx, chatID, "⚠️ Не вдалося опублікувати: "+reply.ErrText, reviewKeyboard())
	case dialogue.ReplyCancelled:
		b.send(ctx, chatID, "❌ Пропозицію скасовано.", &telego.ReplyKeyboardRemove{RemoveKeyboard: true})
	case dialogue.ReplySessionLost:
		b.send(ctx, chatID, "⚠️ Пропозиція більше не існує, діалог закрито.", nil)
	case dialogue.ReplyNoSession:
		b.send(ctx, chatID, "Немає активного діалогу. Почніть з /start.", nil)
	}
}

func (b *Bot) askField(ctx context.Context, chatID int64, field *entity.FieldDefinition, prefix string) {
	if field == nil {
		return
	}
	text := field.Prompt
	if prefix != "" {
		text = prefix + "\n" + text
	}
	var kb telego.ReplyMarkup
	if len(field.Choices) > 0 {
		kb = choiceKeyboard(field)
	}
	b.send(ctx, chatID, text, kb)
}

func (b *Bot) sendStats(ctx context.Context, chatID int64) {
	report, err := b.stats.Aggregate(ctx, time.Now())
	if err != nil {
		b.logger.Errorf("Bot.sendStats: %v", err)
		b.send(ctx, chatID, "⚠️ Не вдалося порахувати статистику.", nil)
		return
	}
	b.send(ctx, chatID, renderStats(report), nil)
}

func (b *Bot) sendExport(ctx context.Context, chatID int64) {
	path, err := b.exporter.Export(ctx)
	if err != nil {
		b.logger.Errorf("Bot.sendExport: %v", err)
		b.send(ctx, chatID, "⚠️ Експорт не вдався.", nil)
		return
	}
	b.send(ctx, chatID, "💾 Експорт збережено: "+path, nil)
}

func (b *Bot) send(ctx context.Context, chatID int64, text string, markup telego.ReplyMarkup) {
	params := &telego.SendMessageParams{
		ChatID:    telego.ChatID{ID: chatID},
		Text:      text,
		ParseMode: telego.ModeHTML,
	}
	if markup != nil {
		params.ReplyMarkup = markup
	}
	if _, err := b.api.SendMessage(ctx, params); err != nil {
		b.logger.Errorf("Bot.send: chat %d: %v", chatID, err)
	}
}

func (b *Bot) answerCallback(ctx context.Context, queryID, text string) {
	err := b.api.AnswerCallbackQuery(ctx, &telego.AnswerCallbackQueryParams{
		CallbackQueryID: queryID,
		Text:            text,
	})
	if err != nil {
		b.logger.Warnf("Bot.answerCallback: %v", err)
	}
}

func isCompletionWord(text string) bool {
	for _, w := range completionWords {
		if strings.EqualFold(strings.TrimSpace(text), w) {
			return true
		}
	}
	return false
}
