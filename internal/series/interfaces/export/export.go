package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"energy-series/internal/series/application"
	series "energy-series/internal/series/domain"
)

var sampleHeader = []string{"timestamp", "power", "energy_raw", "energy_wh"}

// WriteWindowCSV writes one row per sample with its cumulative energy.
func WriteWindowCSV(w io.Writer, result application.WindowResult) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(sampleHeader); err != nil {
		return err
	}
	for i, sample := range result.Samples {
		if err := writer.Write([]string{
			series.FormatTimestamp(sample.At),
			formatFloat(sample.Power),
			formatFloat(sample.Energy),
			formatFloat(cumulative(result, i)),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// BuildWindowXLSX renders a window as a workbook with a summary and a samples sheet.
func BuildWindowXLSX(result application.WindowResult) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	summarySheet := "summary"
	samplesSheet := "samples"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(samplesSheet); err != nil {
		return nil, err
	}

	res := result.Resolution
	_ = f.SetCellValue(summarySheet, "A1", "Series Window")
	_ = f.SetCellValue(summarySheet, "A3", "Series")
	_ = f.SetCellValue(summarySheet, "B3", res.Series)
	_ = f.SetCellValue(summarySheet, "A4", "Mode")
	_ = f.SetCellValue(summarySheet, "B4", res.Kind.String())
	_ = f.SetCellValue(summarySheet, "A5", "Direction")
	_ = f.SetCellValue(summarySheet, "B5", res.Direction.String())
	_ = f.SetCellValue(summarySheet, "A6", "Start")
	_ = f.SetCellValue(summarySheet, "B6", series.FormatTimestamp(res.Window.Start))
	_ = f.SetCellValue(summarySheet, "A7", "End")
	_ = f.SetCellValue(summarySheet, "B7", series.FormatTimestamp(res.Window.End))
	_ = f.SetCellValue(summarySheet, "A8", "Samples")
	_ = f.SetCellValue(summarySheet, "B8", len(result.Samples))
	_ = f.SetCellValue(summarySheet, "A9", "Energy (Wh)")
	_ = f.SetCellValue(summarySheet, "B9", cumulative(result, len(result.Samples)-1))

	for i, title := range sampleHeader {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		_ = f.SetCellValue(samplesSheet, cell, title)
	}
	for i, sample := range result.Samples {
		row := i + 2
		_ = f.SetCellValue(samplesSheet, fmt.Sprintf("A%d", row), series.FormatTimestamp(sample.At))
		_ = f.SetCellValue(samplesSheet, fmt.Sprintf("B%d", row), sample.Power)
		_ = f.SetCellValue(samplesSheet, fmt.Sprintf("C%d", row), sample.Energy)
		_ = f.SetCellValue(samplesSheet, fmt.Sprintf("D%d", row), cumulative(result, i))
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildMonthStatementPDF renders the monthly energy statement of a series.
func BuildMonthStatementPDF(result application.MonthResult, generatedAt time.Time) ([]byte, error) {
	res := result.Resolution
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Monthly Energy Statement")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Series: %s", res.Series))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Month: %s", res.Window.Start.Format("2006-01")))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Window: %s - %s",
		series.FormatTimestamp(res.Window.Start), series.FormatTimestamp(res.Window.End)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Samples: %d", result.Samples))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", generatedAt.Format(time.RFC3339)))
	pdf.Ln(5)

	pdf.Ln(4)
	pdf.Cell(0, 6, fmt.Sprintf("Total Energy (Wh): %.3f", result.TotalWh))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(40, 6, "Day", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Samples", "1", 0, "C", false, 0, "")
	pdf.CellFormat(50, 6, "Energy (Wh)", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, day := range result.Daily {
		pdf.CellFormat(40, 6, day.Day.Format("2006-01-02"), "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, strconv.Itoa(day.Samples), "1", 0, "R", false, 0, "")
		pdf.CellFormat(50, 6, fmt.Sprintf("%.3f", day.EnergyWh), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func cumulative(result application.WindowResult, i int) float64 {
	if i < 0 || i >= len(result.Output.Energy) {
		return 0
	}
	return result.Output.Energy[i].Y
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
