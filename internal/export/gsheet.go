package export

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/shrimpsizemoose/attemptlog/internal/models"
)

const spreadsheetMimeType = "application/vnd.google-apps.spreadsheet"

// Publisher puts the report statistics somewhere people can see them.
type Publisher interface {
	Publish(ctx context.Context, stats models.ReportStats) error
}

type SheetsConfig struct {
	CredentialsPath string
	// SheetName is the spreadsheet title looked up through Drive when
	// SpreadsheetID is empty.
	SheetName     string
	SpreadsheetID string
}

// SheetsPublisher writes the three report numbers into B1:B3 of the first
// sheet of a spreadsheet.
type SheetsPublisher struct {
	config SheetsConfig
	log    *zap.SugaredLogger
	opts   []option.ClientOption
}

// NewSheetsPublisher authenticates with the service-account file from cfg.
// Extra options are appended after the credentials and may override them.
func NewSheetsPublisher(cfg SheetsConfig, log *zap.SugaredLogger, opts ...option.ClientOption) *SheetsPublisher {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	base := []option.ClientOption{
		option.WithScopes(sheets.SpreadsheetsScope, drive.DriveMetadataReadonlyScope),
	}
	if cfg.CredentialsPath != "" {
		base = append(base, option.WithCredentialsFile(cfg.CredentialsPath))
	}
	return &SheetsPublisher{
		config: cfg,
		log:    log,
		opts:   append(base, opts...),
	}
}

func (p *SheetsPublisher) Publish(ctx context.Context, stats models.ReportStats) error {
	sheetsService, err := sheets.NewService(ctx, p.opts...)
	if err != nil {
		return fmt.Errorf("failed to create sheets service: %w", err)
	}

	spreadsheetID, err := p.resolveSpreadsheet(ctx)
	if err != nil {
		return err
	}

	spreadsheet, err := sheetsService.Spreadsheets.Get(spreadsheetID).
		Fields("sheets.properties.title").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to read spreadsheet %s: %w", spreadsheetID, err)
	}
	if len(spreadsheet.Sheets) == 0 || spreadsheet.Sheets[0].Properties == nil {
		return fmt.Errorf("spreadsheet %s has no sheets", spreadsheetID)
	}
	title := spreadsheet.Sheets[0].Properties.Title

	cell := func(ref string) string {
		return fmt.Sprintf("'%s'!%s", strings.ReplaceAll(title, "'", "''"), ref)
	}
	update := &sheets.BatchUpdateValuesRequest{
		ValueInputOption: "RAW",
		Data: []*sheets.ValueRange{
			{Range: cell("B1"), Values: [][]interface{}{{stats.Attempts}}},
			{Range: cell("B2"), Values: [][]interface{}{{stats.Successful}}},
			{Range: cell("B3"), Values: [][]interface{}{{stats.DistinctUsers}}},
		},
	}

	_, err = sheetsService.Spreadsheets.Values.BatchUpdate(spreadsheetID, update).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to update cells: %w", err)
	}

	p.log.Info("Daily report created successfully.")
	return nil
}

func (p *SheetsPublisher) resolveSpreadsheet(ctx context.Context) (string, error) {
	if p.config.SpreadsheetID != "" {
		return p.config.SpreadsheetID, nil
	}

	driveService, err := drive.NewService(ctx, p.opts...)
	if err != nil {
		return "", fmt.Errorf("failed to create drive service: %w", err)
	}

	query := fmt.Sprintf(
		"name = '%s' and mimeType = '%s' and trashed = false",
		strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(p.config.SheetName),
		spreadsheetMimeType,
	)
	files, err := driveService.Files.List().
		Q(query).
		Fields("files(id, name)").
		PageSize(1).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("failed to look up spreadsheet %q: %w", p.config.SheetName, err)
	}
	if len(files.Files) == 0 {
		return "", fmt.Errorf("spreadsheet %q not found", p.config.SheetName)
	}

	p.log.Debugf("Spreadsheet %q resolved to %s", p.config.SheetName, files.Files[0].Id)
	return files.Files[0].Id, nil
}
