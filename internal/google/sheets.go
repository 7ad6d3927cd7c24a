package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"fleetbook/internal/domain"
	"fleetbook/internal/models"
)

const (
	bookingsSheetName = "Bookings"
	// Booking rows span columns A:M; status lives in column K.
	bookingsRowRange = "A%d:M%d"
	statusCellRange  = "K%d:K%d"
	updatedCellRange = "M%d:M%d"
)

var errRowNotFound = errors.New("booking row not found")

// SheetsService mirrors bookings and the fleet schedule into a Google
// spreadsheet. Row positions are cached by booking id to avoid a full column
// scan on every update.
type SheetsService struct {
	service           *sheets.Service
	spreadsheetID     string
	scheduleSheetName string
	calendar          domain.CalendarBuilder
	rowCache          map[int64]int
	cacheMu           sync.RWMutex
}

func NewSheetsService(credentialsFile, spreadsheetID, scheduleSheetName string, calendar domain.CalendarBuilder) (*SheetsService, error) {
	ctx := context.Background()

	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %v", err)
	}

	config, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %v", err)
	}

	client := config.Client(ctx)

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %v", err)
	}

	service := &SheetsService{
		service:           srv,
		spreadsheetID:     spreadsheetID,
		scheduleSheetName: scheduleSheetName,
		calendar:          calendar,
		rowCache:          make(map[int64]int),
	}

	// Warm up cache in background
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = service.WarmUpCache(ctx)
	}()

	return service, nil
}

// TestConnection reads the first cell to verify access.
func (s *SheetsService) TestConnection(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, bookingsSheetName+"!A1").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("connection test failed: %v", err)
	}
	return nil
}

// GetServiceAccountEmail extracts the service account email from credentials,
// for sharing instructions.
func (s *SheetsService) GetServiceAccountEmail(credentialsFile string) (string, error) {
	file, err := os.ReadFile(credentialsFile)
	if err != nil {
		return "", err
	}

	var creds struct {
		ClientEmail string `json:"client_email"`
	}

	if err := json.Unmarshal(file, &creds); err != nil {
		return "", err
	}

	return creds.ClientEmail, nil
}

// WarmUpCache populates the row index cache by reading the entire ID column.
func (s *SheetsService) WarmUpCache(ctx context.Context) error {
	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, bookingsSheetName+"!A:A").Context(ctx).Do()
	if err != nil {
		return err
	}

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache = make(map[int64]int)

	for i, row := range resp.Values {
		if len(row) == 0 {
			continue
		}
		var id int64
		switch v := row[0].(type) {
		case float64:
			id = int64(v)
		case string:
			fmt.Sscanf(v, "%d", &id)
		}
		if id > 0 {
			s.rowCache[id] = i + 1
		}
	}
	return nil
}

// UpsertBooking updates an existing booking row or appends a new one if not found.
func (s *SheetsService) UpsertBooking(ctx context.Context, booking *models.Booking) error {
	if booking == nil {
		return fmt.Errorf("booking is nil")
	}

	rowIdx, err := s.findBookingRow(ctx, booking.ID)
	if err != nil {
		if errors.Is(err, errRowNotFound) {
			return s.appendBooking(ctx, booking)
		}
		return err
	}

	rangeData := bookingsSheetName + "!" + fmt.Sprintf(bookingsRowRange, rowIdx, rowIdx)
	valueRange := &sheets.ValueRange{
		Values: [][]interface{}{bookingRowValues(booking)},
	}

	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, rangeData, valueRange).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	return err
}

func (s *SheetsService) appendBooking(ctx context.Context, booking *models.Booking) error {
	rangeData := bookingsSheetName + "!A:A"
	valueRange := &sheets.ValueRange{
		Values: [][]interface{}{bookingRowValues(booking)},
	}

	_, err := s.service.Spreadsheets.Values.Append(s.spreadsheetID, rangeData, valueRange).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()

	return err
}

// UpdateBookingStatus updates status (and UpdatedAt) for a booking row.
func (s *SheetsService) UpdateBookingStatus(ctx context.Context, bookingID int64, status string) error {
	rowIdx, err := s.findBookingRow(ctx, bookingID)
	if err != nil {
		return err
	}

	statusRange := bookingsSheetName + "!" + fmt.Sprintf(statusCellRange, rowIdx, rowIdx)
	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, statusRange, &sheets.ValueRange{
		Values: [][]interface{}{{status}},
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return err
	}

	now := time.Now().Format("2006-01-02 15:04:05")
	updatedRange := bookingsSheetName + "!" + fmt.Sprintf(updatedCellRange, rowIdx, rowIdx)
	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, updatedRange, &sheets.ValueRange{
		Values: [][]interface{}{{now}},
	}).ValueInputOption("RAW").Context(ctx).Do()
	return err
}

// UpdateScheduleSheet rewrites the schedule grid: one row per vehicle, one
// column per day, cells listing the trips and blocks touching that day.
func (s *SheetsService) UpdateScheduleSheet(ctx context.Context, start, end time.Time) error {
	if s.calendar == nil {
		return errors.New("calendar builder is not configured")
	}

	days := int(end.Sub(start).Hours()/24) + 1
	if days <= 0 {
		return fmt.Errorf("invalid date range: start %s, end %s", start, end)
	}
	if days > 31 {
		days = 31
	}

	window := models.Window{
		Start: time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location()),
		End:   time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location()).AddDate(0, 0, days),
	}
	calendars, err := s.calendar.BuildCalendarView(ctx, models.ResourceVehicle, window, nil)
	if err != nil {
		return err
	}

	clearRange := s.scheduleSheetName + "!A:Z"
	_, err = s.service.Spreadsheets.Values.Clear(s.spreadsheetID, clearRange, &sheets.ClearValuesRequest{}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("unable to clear schedule sheet: %v", err)
	}

	var data [][]interface{}

	headerRow := []interface{}{"Vehicle"}
	for d := 0; d < days; d++ {
		headerRow = append(headerRow, window.Start.AddDate(0, 0, d).Format("02.01"))
	}
	data = append(data, headerRow)

	for _, cal := range calendars {
		rowData := []interface{}{fmt.Sprintf("vehicle %d", cal.ResourceID)}
		for d := 0; d < days; d++ {
			dayStart := window.Start.AddDate(0, 0, d)
			day := models.Window{Start: dayStart, End: dayStart.AddDate(0, 0, 1)}

			var lines []string
			for _, ev := range cal.Events {
				if !ev.Window().Overlaps(day) {
					continue
				}
				if ev.Kind == models.EventAssignment {
					lines = append(lines, fmt.Sprintf("[#%d] %s-%s %s (%s)",
						ev.RefID, ev.Start.Format("15:04"), ev.End.Format("15:04"), ev.Title, ev.Status))
				} else {
					lines = append(lines, fmt.Sprintf("%s: %s", ev.Kind, ev.Title))
				}
			}
			rowData = append(rowData, strings.Join(lines, "\n"))
		}
		data = append(data, rowData)
	}

	rangeData := s.scheduleSheetName + "!A1"
	valueRange := &sheets.ValueRange{Values: data}

	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, rangeData, valueRange).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("unable to update schedule sheet: %v", err)
	}

	return nil
}

// findBookingRow locates row index (1-based) for booking id in column A with cache.
func (s *SheetsService) findBookingRow(ctx context.Context, bookingID int64) (int, error) {
	if bookingID == 0 {
		return 0, fmt.Errorf("booking id is required")
	}

	if row, ok := s.getCachedRow(bookingID); ok {
		return row, nil
	}

	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, bookingsSheetName+"!A:A").Context(ctx).Do()
	if err != nil {
		return 0, err
	}

	for i, row := range resp.Values {
		if len(row) == 0 {
			continue
		}
		switch v := row[0].(type) {
		case float64:
			if int64(v) == bookingID {
				rowIdx := i + 1 // Values are zero-based; sheet rows are 1-based
				s.setCachedRow(bookingID, rowIdx)
				return rowIdx, nil
			}
		case string:
			if v == fmt.Sprintf("%d", bookingID) {
				rowIdx := i + 1
				s.setCachedRow(bookingID, rowIdx)
				return rowIdx, nil
			}
		}
	}

	return 0, errRowNotFound
}

func (s *SheetsService) getCachedRow(id int64) (int, bool) {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	row, ok := s.rowCache[id]
	return row, ok
}

func (s *SheetsService) setCachedRow(id int64, row int) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache[id] = row
}

// ClearCache clears the row index cache.
func (s *SheetsService) ClearCache() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache = make(map[int64]int)
}

func bookingRowValues(booking *models.Booking) []interface{} {
	submitted := ""
	if booking.SubmittedAt != nil {
		submitted = booking.SubmittedAt.Format("2006-01-02 15:04:05")
	}
	return []interface{}{
		booking.ID,
		booking.RequesterID,
		booking.Department,
		booking.Purpose,
		booking.PassengerCount,
		booking.StartTime.Format("2006-01-02 15:04"),
		booking.EndTime.Format("2006-01-02 15:04"),
		booking.PickupPoint,
		booking.DropoffPoint,
		string(booking.VehiclePreference),
		string(booking.Status),
		submitted,
		booking.UpdatedAt.Format("2006-01-02 15:04:05"),
	}
}
