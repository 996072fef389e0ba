package scraper

import (
	"context"

	"labelscraper/pkg/models"
)

// LabelAPI defines the Discogs operations the scan depends on
type LabelAPI interface {
	CountLabels(ctx context.Context) (int, error)
	GetLabel(ctx context.Context, id int) (*models.Label, error)
}

// RecordStore is the append-only record file that also holds the resume cursor
type RecordStore interface {
	Cursor() int
	Append(record models.ExtractedRecord) error
}
