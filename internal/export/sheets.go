package export

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/fieldtrip-agent/internal/config"
	"github.com/fieldtrip-agent/internal/models"
	"github.com/fieldtrip-agent/pkg/logger"
)

// SheetColumns defines the column headers for the weekly events sheet
var SheetColumns = []string{
	"Event",
	"Date",
	"Location",
	"Drive (min)",
	"Cost",
	"Category",
	"Why It Fits",
	"Source",
	"Group",
	"Link",
}

// SheetsExporter writes a household's cached event window to a Google
// spreadsheet tab. It is a read-only consumer of the event store: it
// never triggers a refresh and never writes back.
type SheetsExporter struct {
	service       *sheets.Service
	spreadsheetID string
	sheetName     string
	log           *logger.Logger
}

// NewSheetsExporter creates a new exporter. Returns (nil, nil) when the
// export feature is disabled.
func NewSheetsExporter(cfg config.ExportConfig, log *logger.Logger) (*SheetsExporter, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	ctx := context.Background()

	var srv *sheets.Service
	var err error

	// Try service account JSON first (for env var injection)
	if cfg.ServiceAccountJSON != "" {
		srv, err = sheets.NewService(ctx, option.WithCredentialsJSON([]byte(cfg.ServiceAccountJSON)))
	} else if cfg.CredentialsFile != "" {
		srv, err = sheets.NewService(ctx, option.WithCredentialsFile(cfg.CredentialsFile))
	} else {
		return nil, fmt.Errorf("no Google credentials provided: set credentials_file or service_account_json")
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	sheetName := cfg.SheetName
	if sheetName == "" {
		sheetName = "Events"
	}

	return &SheetsExporter{
		service:       srv,
		spreadsheetID: cfg.SpreadsheetID,
		sheetName:     sheetName,
		log:           log.WithComponent("sheets-export"),
	}, nil
}

// SyncEvents replaces the sheet contents with the given event window.
func (e *SheetsExporter) SyncEvents(ctx context.Context, familyName string, events []*models.DiscoveredEvent) error {
	if err := e.writeHeader(ctx); err != nil {
		return err
	}

	// Clear stale rows before writing; the sheet mirrors the window.
	clearRange := fmt.Sprintf("%s!A2:J", e.sheetName)
	if _, err := e.service.Spreadsheets.Values.Clear(e.spreadsheetID, clearRange, &sheets.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to clear sheet: %w", err)
	}

	if len(events) == 0 {
		e.log.Info().Str("family", familyName).Msg("No events to export")
		return nil
	}

	rows := make([][]interface{}, 0, len(events))
	for _, ev := range events {
		rows = append(rows, eventRow(ev))
	}

	writeRange := fmt.Sprintf("%s!A2", e.sheetName)
	valueRange := &sheets.ValueRange{
		Values: rows,
	}

	_, err := e.service.Spreadsheets.Values.Update(e.spreadsheetID, writeRange, valueRange).
		ValueInputOption("RAW").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to write events: %w", err)
	}

	e.log.Info().
		Str("family", familyName).
		Int("count", len(events)).
		Msg("Exported events to spreadsheet")
	return nil
}

func (e *SheetsExporter) writeHeader(ctx context.Context) error {
	header := make([]interface{}, len(SheetColumns))
	for i, col := range SheetColumns {
		header[i] = col
	}

	headerRange := fmt.Sprintf("%s!A1:J1", e.sheetName)
	valueRange := &sheets.ValueRange{
		Values: [][]interface{}{header},
	}

	_, err := e.service.Spreadsheets.Values.Update(e.spreadsheetID, headerRange, valueRange).
		ValueInputOption("RAW").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	return nil
}

func eventRow(ev *models.DiscoveredEvent) []interface{} {
	drive := ""
	if ev.DriveMinutes != nil {
		drive = fmt.Sprintf("%d", *ev.DriveMinutes)
	}
	return []interface{}{
		ev.Name,
		ev.EventDate.Format(time.RFC1123),
		ev.Location,
		drive,
		ev.CostDisplay,
		ev.Category,
		ev.WhyItFits,
		string(ev.Source),
		ev.GroupName,
		ev.TicketURL,
	}
}
