package reports

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"
)

// Порядок колонок фиксированный — его ждут внешние потребители выгрузки.
var csvHeader = []string{"month", "revenue", "subscriptions", "bookings", "lockers", "expenses", "profit", "occupancy%"}

func WriteCSV(w io.Writer, rows []MonthlyAggregate) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			r.Month,
			money(r.Revenue),
			money(r.Subscriptions),
			money(r.Bookings),
			money(r.Lockers),
			money(r.Expenses),
			money(r.Profit),
			strconv.FormatFloat(r.OccupancyPct, 'f', 1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX — та же таблица в Excel, чтобы отправлять файлом в чат.
func WriteXLSX(rows []MonthlyAggregate) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())

	header := make([]interface{}, len(csvHeader))
	for i, h := range csvHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, err
	}

	row := 2
	for _, r := range rows {
		excelRow := []interface{}{
			r.Month, r.Revenue, r.Subscriptions, r.Bookings,
			r.Lockers, r.Expenses, r.Profit, r.OccupancyPct,
		}
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheet, cell, &excelRow); err != nil {
			return nil, err
		}
		row++
	}

	buf := &bytes.Buffer{}
	if err := f.Write(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func money(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
