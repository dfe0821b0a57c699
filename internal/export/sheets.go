// Package export writes allocation views to a Google spreadsheet. Like the
// events package it is optional: without a spreadsheet id configured the
// application simply has no exporter.
package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"bilancio/internal/budget"
	"bilancio/internal/core"
	"bilancio/internal/log"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	logger        *log.Logger
}

// NewClient builds a Sheets client from service account credentials. The
// credentials come from GOOGLE_SERVICE_ACCOUNT_JSON,
// GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_APPLICATION_CREDENTIALS.
func NewClient(ctx context.Context, spreadsheetID string, logger *log.Logger) (*Client, error) {
	if strings.TrimSpace(spreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	credentialsJSON, err := loadCredentialsJSON()
	if err != nil {
		return nil, err
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		logger:        logger.WithComponent(log.ComponentExport),
	}, nil
}

func loadCredentialsJSON() ([]byte, error) {
	if inline := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")); inline != "" {
		return []byte(inline), nil
	}
	file := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if file == "" {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
	raw, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return raw, nil
}

// ExportAllocation writes the allocation to a tab named after the scope,
// replacing whatever was there. One row per line plus the total and the
// remainder bucket.
func (c *Client) ExportAllocation(ctx context.Context, alloc budget.Allocation) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	tab := alloc.Scope.Key()

	clearRange := fmt.Sprintf("%s!A:E", tab)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear sheet %s: %w", tab, err)
	}

	values := [][]any{
		{"Name", "Category", "Budgeted", "Spent", "Remaining"},
		lineRow(alloc.Total),
	}
	for _, l := range alloc.Lines {
		values = append(values, lineRow(l))
	}
	values = append(values, lineRow(alloc.Other))

	writeRange := fmt.Sprintf("%s!A1:E%d", tab, len(values))
	vr := &gsheet.ValueRange{Values: values}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, writeRange, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do(); err != nil {
		return fmt.Errorf("update sheet %s: %w", tab, err)
	}

	c.logger.InfoContext(ctx, "Exported allocation",
		log.FieldOperation, log.OpExport,
		log.FieldScope, tab, log.FieldCount, len(alloc.Lines))
	return nil
}

func lineRow(l budget.Line) []any {
	return []any{
		l.Name,
		l.Category,
		core.FormatCents(l.Budgeted.Cents),
		core.FormatCents(l.Spent.Cents),
		core.FormatCents(l.Remaining.Cents),
	}
}
