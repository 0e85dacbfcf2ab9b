package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"seva-signup/core/config"
	"seva-signup/core/logger"
	signupent "seva-signup/modules/signup/entity"

	"github.com/google/uuid"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// EventStore persists the spreadsheet id the first time a roster sheet is
// created for an event.
type EventStore interface {
	SetSpreadsheetID(ctx context.Context, eventID uuid.UUID, spreadsheetID string) error
}

const (
	rosterSheetTitle = "Roster"
	// Signup id lives in the last column and is the upsert key.
	rosterRange = rosterSheetTitle + "!A:M"
)

var rosterHeader = []interface{}{
	"Date", "Day", "Shift", "Seva", "Capacity", "Filled",
	"Name", "Email", "Phone", "Notes", "Status", "Updated At", "Signup ID",
}

// SheetsRoster mirrors signups into a per-event Google Sheet. All writes key
// on the signup id column, so re-running an upsert rewrites the same row
// instead of appending a duplicate.
type SheetsRoster struct {
	sheets   *sheets.Service
	drive    *drive.Service
	events   EventStore
	folderID string
	disabled bool

	mu sync.Mutex // serializes first-time spreadsheet creation
}

func NewSheetsRoster(ctx context.Context, cfg config.GoogleConfig, events EventStore) (*SheetsRoster, error) {
	if cfg.DisableSheets || cfg.CredentialsJSON == "" {
		logger.Warn("SheetsRoster:New:Disabled")
		return &SheetsRoster{disabled: true}, nil
	}

	jwt, err := google.JWTConfigFromJSON(
		[]byte(cfg.CredentialsJSON),
		sheets.SpreadsheetsScope,
		drive.DriveFileScope,
	)
	if err != nil {
		return nil, fmt.Errorf("parse google credentials: %w", err)
	}
	client := jwt.Client(ctx)

	sheetsSvc, err := sheets.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("init sheets client: %w", err)
	}
	driveSvc, err := drive.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("init drive client: %w", err)
	}

	return &SheetsRoster{
		sheets:   sheetsSvc,
		drive:    driveSvc,
		events:   events,
		folderID: cfg.DriveFolderID,
	}, nil
}

// Upsert writes the signup's current state into its event's roster sheet and
// returns "<spreadsheetId>#<row>".
func (r *SheetsRoster) Upsert(ctx context.Context, d *signupent.SignupDetail) (string, error) {
	if r.disabled {
		logger.Info("SheetsRoster:Upsert:Skipped", "signup_id", d.Signup.ID)
		return "", nil
	}

	spreadsheetID, err := r.ensureSpreadsheet(ctx, d)
	if err != nil {
		return "", err
	}

	row, err := r.findRow(ctx, spreadsheetID, d.Signup.ID.String())
	if err != nil {
		return "", err
	}

	values := &sheets.ValueRange{Values: [][]interface{}{rosterRow(d)}}

	if row > 0 {
		target := fmt.Sprintf("%s!A%d:M%d", rosterSheetTitle, row, row)
		_, err = r.sheets.Spreadsheets.Values.Update(spreadsheetID, target, values).
			ValueInputOption("RAW").
			Context(ctx).Do()
		if err != nil {
			return "", fmt.Errorf("update roster row: %w", err)
		}
		return fmt.Sprintf("%s#%d", spreadsheetID, row), nil
	}

	resp, err := r.sheets.Spreadsheets.Values.Append(spreadsheetID, rosterRange, values).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append roster row: %w", err)
	}
	if resp.Updates != nil {
		if n := rowFromRange(resp.Updates.UpdatedRange); n > 0 {
			return fmt.Sprintf("%s#%d", spreadsheetID, n), nil
		}
	}
	return spreadsheetID, nil
}

// MarkCancelled rewrites the row with the signup's CANCELLED state. The row
// write is the same find-or-create as Upsert, so a cancellation that arrives
// before the original upsert still lands correctly.
func (r *SheetsRoster) MarkCancelled(ctx context.Context, d *signupent.SignupDetail) error {
	_, err := r.Upsert(ctx, d)
	return err
}

func (r *SheetsRoster) ensureSpreadsheet(ctx context.Context, d *signupent.SignupDetail) (string, error) {
	if d.Event.SpreadsheetID.Valid && d.Event.SpreadsheetID.String != "" {
		return d.Event.SpreadsheetID.String, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	ss, err := r.sheets.Spreadsheets.Create(&sheets.Spreadsheet{
		Properties: &sheets.SpreadsheetProperties{
			Title: fmt.Sprintf("%s Roster", d.Event.Name),
		},
		Sheets: []*sheets.Sheet{
			{Properties: &sheets.SheetProperties{Title: rosterSheetTitle}},
		},
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("create spreadsheet: %w", err)
	}

	header := &sheets.ValueRange{Values: [][]interface{}{rosterHeader}}
	_, err = r.sheets.Spreadsheets.Values.Update(ss.SpreadsheetId, rosterSheetTitle+"!A1:M1", header).
		ValueInputOption("RAW").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("write roster header: %w", err)
	}

	if r.folderID != "" {
		_, err = r.drive.Files.Update(ss.SpreadsheetId, nil).
			AddParents(r.folderID).
			SupportsAllDrives(true).
			Context(ctx).Do()
		if err != nil {
			// The sheet still works from the service account's own drive.
			logger.Warn("SheetsRoster:EnsureSpreadsheet:Move", "error", err.Error(), "spreadsheet_id", ss.SpreadsheetId)
		}
	}

	if err := r.events.SetSpreadsheetID(ctx, d.Event.ID, ss.SpreadsheetId); err != nil {
		return "", fmt.Errorf("persist spreadsheet id: %w", err)
	}

	logger.Info("SheetsRoster:EnsureSpreadsheet:Created", "event_id", d.Event.ID, "spreadsheet_id", ss.SpreadsheetId)
	return ss.SpreadsheetId, nil
}

// findRow returns the 1-based sheet row holding signupID, or 0 if absent.
func (r *SheetsRoster) findRow(ctx context.Context, spreadsheetID, signupID string) (int, error) {
	resp, err := r.sheets.Spreadsheets.Values.Get(spreadsheetID, rosterSheetTitle+"!M2:M").
		Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read roster ids: %w", err)
	}
	for i, row := range resp.Values {
		if len(row) == 0 {
			continue
		}
		if v, ok := row[0].(string); ok && v == signupID {
			return i + 2, nil
		}
	}
	return 0, nil
}

func rosterRow(d *signupent.SignupDetail) []interface{} {
	return []interface{}{
		d.Day.Date.Format("2006-01-02"),
		d.Day.Date.Weekday().String(),
		d.Event.ShiftLabel,
		d.Seva.Name,
		d.Slot.Capacity,
		d.Slot.FilledCount,
		d.Signup.Name,
		d.Signup.Email,
		d.Signup.Phone.String,
		d.Signup.Notes.String,
		string(d.Signup.Status),
		time.Now().UTC().Format(time.RFC3339),
		d.Signup.ID.String(),
	}
}

// rowFromRange extracts the row number from an A1 range like "Roster!A7:M7".
func rowFromRange(a1 string) int {
	_, ref, ok := strings.Cut(a1, "!")
	if !ok {
		return 0
	}
	first, _, _ := strings.Cut(ref, ":")
	digits := strings.TrimLeftFunc(first, func(r rune) bool {
		return r < '0' || r > '9'
	})
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return n
}
