package stats

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	csvFlushEvery = 200
	csvBufferSize = 32 * 1024
)

type csvStreamer struct {
	buf          *bufio.Writer
	csv          *csv.Writer
	flushEvery   int
	pendingLines int
}

func newCSVStreamer(w io.Writer) *csvStreamer {
	buf := bufio.NewWriterSize(w, csvBufferSize)
	writer := csv.NewWriter(buf)
	writer.UseCRLF = true
	return &csvStreamer{buf: buf, csv: writer, flushEvery: csvFlushEvery}
}

func (s *csvStreamer) writeComment(line string) error {
	if s == nil || s.buf == nil {
		return fmt.Errorf("csv streamer not initialised")
	}
	if !strings.HasSuffix(line, "\r\n") {
		line = strings.TrimSuffix(line, "\n")
		line += "\r\n"
	}
	_, err := s.buf.WriteString(line)
	return err
}

func (s *csvStreamer) writeRow(row []string) error {
	if s == nil || s.csv == nil {
		return fmt.Errorf("csv streamer not initialised")
	}
	if err := s.csv.Write(row); err != nil {
		return err
	}
	s.pendingLines++
	if s.flushEvery > 0 && s.pendingLines >= s.flushEvery {
		return s.Flush()
	}
	return nil
}

func (s *csvStreamer) Flush() error {
	if s == nil || s.csv == nil || s.buf == nil {
		return fmt.Errorf("csv streamer not initialised")
	}
	s.csv.Flush()
	if err := s.csv.Error(); err != nil {
		return err
	}
	if err := s.buf.Flush(); err != nil {
		return err
	}
	s.pendingLines = 0
	return nil
}

func (s *csvStreamer) Close() error {
	return s.Flush()
}

var csvPrinter = message.NewPrinter(language.English)

func formatQuantity(v float64) string {
	return csvPrinter.Sprintf("%v", v)
}

func formatMoney(v float64) string {
	return csvPrinter.Sprintf("%.2f", v)
}

// WriteCSV renders the report, one row per product-room pair with product
// and store total rows.
func WriteCSV(w io.Writer, report InventoryReport) error {
	streamer := newCSVStreamer(w)
	if err := streamer.writeComment(fmt.Sprintf("# Inventory report,store %d,%s", report.StoreID, report.GeneratedAt.Format("2006-01-02 15:04:05"))); err != nil {
		return err
	}
	if err := streamer.writeRow([]string{"SKU", "Product", "Room", "Quantity", "Avg Cost", "Est. Cost", "Est. Value", "Synthesized"}); err != nil {
		return err
	}
	for _, p := range report.Products {
		synthesized := ""
		if p.Synthesized {
			synthesized = "yes"
		}
		for _, room := range p.Rooms {
			if err := streamer.writeRow([]string{
				p.SKU,
				p.Name,
				room.RoomName,
				formatQuantity(room.Quantity),
				formatMoney(room.AvgCost),
				formatMoney(room.Quantity * room.AvgCost),
				"",
				synthesized,
			}); err != nil {
				return err
			}
		}
		if err := streamer.writeRow([]string{
			p.SKU,
			p.Name,
			"TOTAL",
			formatQuantity(p.Stock),
			"",
			formatMoney(p.EstimatedCost),
			formatMoney(p.EstimatedValue),
			synthesized,
		}); err != nil {
			return err
		}
	}
	if err := streamer.writeRow([]string{
		"", "STORE TOTAL", "",
		formatQuantity(report.Totals.Stock),
		"",
		formatMoney(report.Totals.EstimatedCost),
		formatMoney(report.Totals.EstimatedValue),
		"",
	}); err != nil {
		return err
	}
	return streamer.Close()
}
