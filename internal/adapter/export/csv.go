// Package export renders the offer store as a CSV file on disk, one
// row per offer, for hand-off to spreadsheets.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/brokerdesk/offer-service/internal/domain/entity"
	"github.com/brokerdesk/offer-service/internal/platform/logger"
	"github.com/brokerdesk/offer-service/internal/repository"
)

type CSVExporter struct {
	repo   repository.OfferRepository
	schema *entity.Schema
	path   string
	logger logger.Logger
}

func NewCSVExporter(repo repository.OfferRepository, schema *entity.Schema, path string, log logger.Logger) *CSVExporter {
	return &CSVExporter{repo: repo, schema: schema, path: path, logger: log}
}

// Export writes every offer to the configured path and returns that
// path. The file is rewritten on each call.
func (e *CSVExporter) Export(ctx context.Context) (string, error) {
	offers, err := e.repo.ListAll(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list offers for export: %w", err)
	}

	if dir := filepath.Dir(e.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("failed to create export directory: %w", err)
		}
	}
	f, err := os.Create(e.path)
	if err != nil {
		return "", fmt.Errorf("failed to create export file: %w", err)
	}
	defer f.Close()

	// UTF-8 BOM so spreadsheet apps decode Cyrillic correctly
	if _, err := f.WriteString("\uFEFF"); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(e.header()); err != nil {
		return "", fmt.Errorf("failed to write export header: %w", err)
	}
	for _, offer := range offers {
		if err := w.Write(e.row(offer)); err != nil {
			return "", fmt.Errorf("failed to write offer %d: %w", offer.ID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("failed to flush export file: %w", err)
	}

	e.logger.Infof("CSVExporter.Export: wrote %d offers to %s", len(offers), e.path)
	return e.path, nil
}

func (e *CSVExporter) header() []string {
	header := []string{"№", "Статус", "Опубліковано", "Створено"}
	for _, field := range e.schema.Ordered() {
		header = append(header, field.Label)
	}
	header = append(header, "Фото")
	return header
}

func (e *CSVExporter) row(offer *entity.Offer) []string {
	published := "ні"
	if offer.IsPublished {
		published = "так"
	}
	row := []string{
		strconv.FormatInt(offer.ID, 10),
		string(offer.Status),
		published,
		offer.CreatedAt.Format("2006-01-02 15:04"),
	}
	for _, field := range e.schema.Ordered() {
		row = append(row, offer.Fields[field.Key])
	}
	row = append(row, strings.Join(offer.Photos, " "))
	return row
}
