package app

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

var exportHeader = []interface{}{
	"booking_id",
	"slot_id",
	"date",
	"time",
	"capacity",
	"booked",
	"user_id",
	"user_name",
	"user_email",
	"booked_at",
}

// WriteBookingsXLSX renders the admin booking rows of one day as a workbook.
func WriteBookingsXLSX(w io.Writer, date string, rows []AdminBookingRow) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	if err := f.SetSheetName(sheet, date); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	sheet = date

	header := exportHeader
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, r := range rows {
		row := []interface{}{
			r.BookingID,
			r.SlotID,
			r.Date,
			r.Time,
			r.Capacity,
			r.Booked,
			r.UserID,
			r.UserName,
			r.UserEmail,
			r.BookedAt.UTC().Format("2006-01-02 15:04:05"),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	return f.Write(w)
}
