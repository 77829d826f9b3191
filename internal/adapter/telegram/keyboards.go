package telegram

import (
	"fmt"

	"github.com/brokerdesk/offer-service/internal/domain/entity"
	"github.com/mymmrac/telego"
)

// Callback data prefixes. The transport owns these strings; the
// dialogue engine only ever sees Signals.
const (
	cbNewOffer    = "menu:new"
	cbStats       = "menu:stats"
	cbExport      = "menu:export"
	cbChoice      = "choice:"
	cbCustom      = "custom"
	cbPublish     = "review:publish"
	cbEdit        = "review:edit"
	cbCancel      = "review:cancel"
	cbEditField   = "editf:"
	cbStatus      = "st:"
	customButton  = "✍️ Інше"
	photosDoneCap = "✅ Готово"
)

func menuKeyboard() *telego.InlineKeyboardMarkup {
	return &telego.InlineKeyboardMarkup{InlineKeyboard: [][]telego.InlineKeyboardButton{
		{{Text: "🏠 Нова пропозиція", CallbackData: cbNewOffer}},
		{
			{Text: "📊 Статистика", CallbackData: cbStats},
			{Text: "💾 Експорт", CallbackData: cbExport},
		},
	}}
}

// choiceKeyboard renders a field's preset choices two per row, with
// the custom escape on its own row when the field allows it.
func choiceKeyboard(field *entity.FieldDefinition) *telego.InlineKeyboardMarkup {
	var rows [][]telego.InlineKeyboardButton
	var row []telego.InlineKeyboardButton
	for _, choice := range field.Choices {
		row = append(row, telego.InlineKeyboardButton{Text: choice, CallbackData: cbChoice + choice})
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	if field.AllowsCustom {
		rows = append(rows, []telego.InlineKeyboardButton{{Text: customButton, CallbackData: cbCustom}})
	}
	return &telego.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func photosDoneKeyboard() *telego.ReplyKeyboardMarkup {
	return &telego.ReplyKeyboardMarkup{
		Keyboard:        [][]telego.KeyboardButton{{{Text: photosDoneCap}}},
		ResizeKeyboard:  true,
		OneTimeKeyboard: true,
	}
}

func reviewKeyboard() *telego.InlineKeyboardMarkup {
	return &telego.InlineKeyboardMarkup{InlineKeyboard: [][]telego.InlineKeyboardButton{
		{{Text: "✅ Опублікувати", CallbackData: cbPublish}},
		{
			{Text: "✏️ Редагувати", CallbackData: cbEdit},
			{Text: "❌ Скасувати", CallbackData: cbCancel},
		},
	}}
}

// editFieldKeyboard derives its layout from the schema order; nothing
// here is numbered by hand.
func editFieldKeyboard(schema *entity.Schema) *telego.InlineKeyboardMarkup {
	var rows [][]telego.InlineKeyboardButton
	var row []telego.InlineKeyboardButton
	for _, field := range schema.Ordered() {
		row = append(row, telego.InlineKeyboardButton{Text: field.Label, CallbackData: cbEditField + field.Key})
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return &telego.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func statusKeyboard(offerID int64) *telego.InlineKeyboardMarkup {
	btn := func(label string, status entity.Status) telego.InlineKeyboardButton {
		return telego.InlineKeyboardButton{
			Text:         label,
			CallbackData: fmt.Sprintf("%s%d:%s", cbStatus, offerID, status),
		}
	}
	return &telego.InlineKeyboardMarkup{InlineKeyboard: [][]telego.InlineKeyboardButton{
		{btn("🟢 Актуально", entity.StatusActive), btn("🟡 Резерв", entity.StatusReserved)},
		{btn("🔴 Знято", entity.StatusRemoved), btn("✅ Закрито", entity.StatusClosed)},
	}}
}
