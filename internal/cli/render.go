package cli

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"

	"github.com/runnerr0/auditlog/internal/logquery"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatCSV   = "csv"
	formatYAML  = "yaml"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	levelColors = map[string]lipgloss.Color{
		"debug":     "240",
		"notice":    "39",
		"warning":   "220",
		"error":     "196",
		"critical":  "196",
		"alert":     "196",
		"emergency": "196",
	}
)

// renderResult writes one page of a listing in the requested format.
func renderResult(w io.Writer, res *logquery.QueryResult, format string) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(res); err != nil {
			return err
		}
		return enc.Close()
	case formatCSV:
		return renderCSV(w, res.Rows)
	default:
		return renderTable(w, res)
	}
}

func renderTable(w io.Writer, res *logquery.QueryResult) error {
	if len(res.Rows) == 0 {
		_, err := fmt.Fprintln(w, "No events found")
		return err
	}

	levels := make([]string, len(res.Rows))
	rows := make([][]string, len(res.Rows))
	for i, r := range res.Rows {
		levels[i] = r.Level
		rows[i] = []string{
			strconv.FormatInt(r.ID, 10),
			r.Date.Format("2006-01-02 15:04"),
			r.InitiatorText,
			r.Message,
			r.Level,
			occasionsText(r),
		}
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(dimStyle).
		Headers("ID", "DATE", "INITIATOR", "DESCRIPTION", "LEVEL", "COUNT").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 4 && row >= 0 && row < len(levels) {
				if c, ok := levelColors[levels[row]]; ok {
					return cellStyle.Foreground(c)
				}
			}
			return cellStyle
		})

	if _, err := fmt.Fprintln(w, t.Render()); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, pageFooter(res))
	return err
}

// occasionsText shows how many events a row stands for.
func occasionsText(r logquery.ResultRow) string {
	if r.SubsequentOccasionsCount <= 1 {
		return ""
	}
	s := strconv.Itoa(r.SubsequentOccasionsCount)
	if r.ContinuesOnNextPage {
		s += "+"
	}
	return s
}

// pageFooter summarizes the page and tells how to request the next one.
func pageFooter(res *logquery.QueryResult) string {
	s := fmt.Sprintf("Page %d of %d (%s)", res.PageCurrent, res.PagesCount, plural(res.TotalRowCount, "event"))
	if res.PageCurrent < res.PagesCount && (res.Mode == "offset" || res.Mode == "snapshot") {
		next := fmt.Sprintf("--page %d", res.PageCurrent+1)
		if res.SnapshotMaxID > 0 {
			next += fmt.Sprintf(" --max-id %d", res.SnapshotMaxID)
		}
		s += ". Next page: " + next
	}
	return s
}

func renderCSV(w io.Writer, rows []logquery.ResultRow) error {
	cw := csv.NewWriter(w)
	header := []string{"id", "date", "logger", "level", "message_key", "initiator", "message", "occasions", "occasions_id"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range rows {
		record := []string{
			strconv.FormatInt(r.ID, 10),
			r.Date.Format(time.RFC3339),
			r.Logger,
			r.Level,
			r.MessageKey,
			r.InitiatorText,
			r.Message,
			strconv.Itoa(r.SubsequentOccasionsCount),
			r.OccasionsID,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// renderEvent prints the full details of one row.
func renderEvent(w io.Writer, r *logquery.ResultRow) {
	fmt.Fprintf(w, "Event #%d\n", r.ID)
	fmt.Fprintln(w, strings.Repeat("=", 40))
	fmt.Fprintf(w, "Date:       %s\n", r.Date.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(w, "Date (GMT): %s\n", r.DateGMT.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Logger:     %s\n", r.Logger)
	fmt.Fprintf(w, "Message:    %s (%s)\n", r.MessageKey, r.Level)
	fmt.Fprintf(w, "Initiator:  %s\n", r.InitiatorText)
	fmt.Fprintf(w, "Occasions:  %s\n", r.OccasionsID)
	fmt.Fprintln(w)
	fmt.Fprintln(w, r.Message)
	if len(r.Context) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Context:")
		renderContext(w, r.Context, "  ")
	}
}

// renderContext prints context entries sorted by key.
func renderContext(w io.Writer, fields map[string]string, indent string) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%s%s = %s\n", indent, k, fields[k])
	}
}
