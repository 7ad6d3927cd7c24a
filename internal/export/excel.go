package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"fleetbook/internal/domain"
	"fleetbook/internal/models"
)

// Exporter writes fleet schedule workbooks: one row per resource, one column
// per day, cells listing the trips and blocks touching that day.
type Exporter struct {
	calendar domain.CalendarBuilder
	path     string
	logger   *zerolog.Logger
}

func NewExporter(calendar domain.CalendarBuilder, path string, logger *zerolog.Logger) *Exporter {
	return &Exporter{calendar: calendar, path: path, logger: logger}
}

// ScheduleWorkbook renders the schedule for one resource type over a day
// range and returns the saved file path.
func (e *Exporter) ScheduleWorkbook(ctx context.Context, resource models.ResourceType, startDate, endDate time.Time) (string, error) {
	if err := os.MkdirAll(e.path, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %v", err)
	}

	days := int(endDate.Sub(startDate).Hours()/24) + 1
	if days <= 0 {
		return "", fmt.Errorf("invalid date range: %s - %s", startDate, endDate)
	}

	dayStart := time.Date(startDate.Year(), startDate.Month(), startDate.Day(), 0, 0, 0, 0, startDate.Location())
	window := models.Window{Start: dayStart, End: dayStart.AddDate(0, 0, days)}
	calendars, err := e.calendar.BuildCalendarView(ctx, resource, window, nil)
	if err != nil {
		return "", fmt.Errorf("error building calendar: %v", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Schedule"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", fmt.Errorf("error creating sheet: %v", err)
	}
	f.SetActiveSheet(index)

	_ = f.SetCellValue(sheetName, "A1", fmt.Sprintf("Period: %s - %s",
		startDate.Format("02.01.2006"), endDate.Format("02.01.2006")))

	e.writeDateHeaders(f, sheetName, dayStart, days)
	e.writeResourceRows(f, sheetName, resource, calendars, dayStart, days)

	_ = f.SetColWidth(sheetName, "A", "A", 25)
	for i := 'B'; i <= 'Z'; i++ {
		_ = f.SetColWidth(sheetName, string(i), string(i), 20)
	}

	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheetName, "A1", "A1", titleStyle)

	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("%s_schedule_%s_to_%s.xlsx",
		resource,
		startDate.Format("2006-01-02"),
		endDate.Format("2006-01-02"))
	filePath := filepath.Join(e.path, fileName)

	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %v", err)
	}

	e.logger.Info().Str("file_path", filePath).Msg("schedule workbook created")
	return filePath, nil
}

func (e *Exporter) writeDateHeaders(f *excelize.File, sheetName string, dayStart time.Time, days int) {
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})

	for d := 0; d < days; d++ {
		cell, _ := excelize.CoordinatesToCellName(d+2, 2)
		_ = f.SetCellValue(sheetName, cell, dayStart.AddDate(0, 0, d).Format("02.01"))
		_ = f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}
}

func (e *Exporter) writeResourceRows(f *excelize.File, sheetName string, resource models.ResourceType, calendars []models.ResourceCalendar, dayStart time.Time, days int) {
	nameStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E2EFDA"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})

	for i, cal := range calendars {
		row := i + 3
		cell, _ := excelize.CoordinatesToCellName(1, row)
		_ = f.SetCellValue(sheetName, cell, fmt.Sprintf("%s %d", resource, cal.ResourceID))
		_ = f.SetCellStyle(sheetName, cell, cell, nameStyle)

		for d := 0; d < days; d++ {
			day := models.Window{
				Start: dayStart.AddDate(0, 0, d),
				End:   dayStart.AddDate(0, 0, d+1),
			}

			var lines []string
			busy := false
			blocked := false
			for _, ev := range cal.Events {
				if !ev.Window().Overlaps(day) {
					continue
				}
				if ev.Kind == models.EventAssignment {
					busy = true
					lines = append(lines, fmt.Sprintf("[#%d] %s-%s %s",
						ev.RefID, ev.Start.Format("15:04"), ev.End.Format("15:04"), ev.Title))
				} else {
					blocked = true
					lines = append(lines, fmt.Sprintf("%s: %s", ev.Kind, ev.Title))
				}
			}

			cell, _ := excelize.CoordinatesToCellName(d+2, row)
			if len(lines) == 0 {
				_ = f.SetCellValue(sheetName, cell, "free")
			} else {
				_ = f.SetCellValue(sheetName, cell, strings.Join(lines, "\n"))
			}

			styleID, err := e.dayCellStyle(f, busy, blocked)
			if err == nil {
				_ = f.SetCellStyle(sheetName, cell, cell, styleID)
			}
		}
	}
}

func (e *Exporter) dayCellStyle(f *excelize.File, busy, blocked bool) (int, error) {
	color := "#FFFFFF"
	switch {
	case blocked:
		color = "#FFC7CE"
	case busy:
		color = "#FFEB9C"
	}
	return f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "left",
			Vertical:   "top",
			WrapText:   true,
		},
	})
}
