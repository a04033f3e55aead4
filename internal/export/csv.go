package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"arkoon-rule-exporter/internal/model"
)

var Header = []string{
	"Id", "Enabled", "Name", "Description", "Sources", "Destinations", "Services",
	"Action", "Log", "Source Translation", "Destination Translation",
}

// FileName returns the report name for hostname on the day of t.
func FileName(hostname string, t time.Time) string {
	return fmt.Sprintf("%s_%s_RULES.csv", hostname, t.Format("20060102"))
}

// WriteCSV writes the header and one semicolon separated line per rule,
// encoded as ISO-8859-1. Characters outside Latin-1 are substituted.
func WriteCSV(w io.Writer, rules []model.Rule) error {
	enc := transform.NewWriter(w, encoding.ReplaceUnsupported(charmap.ISO8859_1.NewEncoder()))

	csvWriter := csv.NewWriter(enc)
	csvWriter.Comma = ';'

	if err := csvWriter.Write(Header); err != nil {
		return err
	}
	for _, r := range rules {
		if err := csvWriter.Write(record(r)); err != nil {
			return fmt.Errorf("rule %d: %w", r.ID, err)
		}
	}
	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		return err
	}
	return enc.Close()
}

// WriteFile creates path and writes the report into it.
func WriteFile(path string, rules []model.Rule) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := WriteCSV(file, rules); err != nil {
		file.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return file.Close()
}

func record(r model.Rule) []string {
	return []string{
		strconv.Itoa(r.ID),
		r.Enabled,
		r.Name,
		r.Description,
		strings.Join(r.Sources, " "),
		strings.Join(r.Destinations, " "),
		strings.Join(r.Services, " "),
		string(r.Action),
		r.Log,
		r.NAT,
		r.PAT,
	}
}
