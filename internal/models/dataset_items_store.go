package models

import (
	"context"
	"database/sql"
	"strings"
)

// DatalabItemsParams selects rows from a datalab dataset_items table.
type DatalabItemsParams struct {
	Dataset string
	Limit   int // 0 = all
}

// ImportDatalabItems reads the items of one datalab dataset, oldest first,
// and parses each row's data column as one export line.
func ImportDatalabItems(ctx context.Context, db *sql.DB, im *Importer, p DatalabItemsParams) (ImportReport, error) {
	name := strings.TrimSpace(p.Dataset)
	if name == "" {
		return ImportReport{}, ErrInvalidInput
	}

	var datasetID int64
	err := db.QueryRowContext(ctx, `
SELECT id
FROM datasets
WHERE name = $1
`, name).Scan(&datasetID)
	if err != nil {
		if err == sql.ErrNoRows {
			return ImportReport{}, ErrNotFound
		}
		return ImportReport{}, err
	}

	var rows *sql.Rows
	if p.Limit > 0 {
		rows, err = db.QueryContext(ctx, `
SELECT source_ref, data
FROM dataset_items
WHERE dataset_id = $1
ORDER BY id ASC
LIMIT $2
`, datasetID, p.Limit)
	} else {
		rows, err = db.QueryContext(ctx, `
SELECT source_ref, data
FROM dataset_items
WHERE dataset_id = $1
ORDER BY id ASC
`, datasetID)
	}
	if err != nil {
		return ImportReport{}, err
	}
	defer rows.Close()

	return im.ImportRows(ctx, rows)
}
