package telegram

import (
	"fmt"
	"html"
	"strings"

	"github.com/brokerdesk/offer-service/internal/domain/entity"
	"github.com/brokerdesk/offer-service/internal/service"
)

// statusLabels is presentation only. The workflow never branches on
// these strings.
var statusLabels = map[entity.Status]string{
	entity.StatusUnknown:  "⚪️ Чернетка",
	entity.StatusActive:   "🟢 Актуально",
	entity.StatusReserved: "🟡 Резерв",
	entity.StatusRemoved:  "🔴 Знято",
	entity.StatusClosed:   "✅ Закрито",
}

func statusLabel(st entity.Status) string {
	if label, ok := statusLabels[st]; ok {
		return label
	}
	return string(st)
}

// renderOffer builds the HTML card used both for the review preview
// and for the group-chat publication.
func renderOffer(schema *entity.Schema, offer *entity.Offer) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>🏠 Пропозиція №%d</b>\n\n", offer.ID)
	for _, field := range schema.Ordered() {
		value := offer.Fields[field.Key]
		if value == "" {
			value = "—"
		}
		fmt.Fprintf(&b, "<b>%s:</b> %s\n", field.Label, html.EscapeString(value))
	}
	fmt.Fprintf(&b, "<b>Фото:</b> %d\n", len(offer.Photos))
	fmt.Fprintf(&b, "\n<b>Статус:</b> %s", statusLabel(offer.Status))
	return b.String()
}

func renderWindow(title string, w service.WindowStats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b> (%s — %s)\n", title, w.From.Format("2006-01-02"), w.To.Format("2006-01-02"))
	for _, st := range entity.AllStatuses {
		fmt.Fprintf(&b, "  %s: %d\n", statusLabel(st), w.TotalsByStatus[st])
	}
	if len(w.ByActor) > 0 {
		b.WriteString("  <i>По маклерах:</i>\n")
		for handle, counts := range w.ByActor {
			total := 0
			for _, n := range counts {
				total += n
			}
			fmt.Fprintf(&b, "    %s: %d\n", html.EscapeString(handle), total)
		}
	}
	return b.String()
}

func renderStats(report *service.Report) string {
	var b strings.Builder
	b.WriteString("📊 <b>Статистика змін статусів</b>\n\n")
	b.WriteString(renderWindow("За день", report.Day))
	b.WriteString("\n")
	b.WriteString(renderWindow("За місяць", report.Month))
	b.WriteString("\n")
	b.WriteString(renderWindow("За рік", report.Year))
	return b.String()
}
