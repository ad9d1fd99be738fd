// package formatter renders batch status reports and user listings as text, JSON, YAML, or CSV
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/affmigrate/internal/models"
	"github.com/desertthunder/affmigrate/internal/progress"
	"github.com/desertthunder/affmigrate/internal/shared"
	"gopkg.in/yaml.v3"
)

// Output formats accepted by [Render]. Listings also accept FormatCSV.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatCSV  = "csv"
)

// StatusReport is the printable view of a batch's stored progress.
type StatusReport struct {
	BatchID       string   `json:"batch_id" yaml:"batch_id"`
	Roles         []string `json:"roles,omitempty" yaml:"roles,omitempty"`
	HasSnapshot   bool     `json:"has_snapshot" yaml:"has_snapshot"`
	ExcludedCount int      `json:"excluded_count" yaml:"excluded_count"`
	Total         int64    `json:"total" yaml:"total"`
	Migrated      int64    `json:"migrated" yaml:"migrated"`
	Remaining     int64    `json:"remaining" yaml:"remaining"`
	Percent       float64  `json:"percent" yaml:"percent"`
	NextStep      string   `json:"next_step" yaml:"next_step"`
}

// NewStatusReport builds a report from a loaded progress record. nextStep is shown verbatim.
func NewStatusReport(batchID string, roles []string, rec progress.Record, nextStep string) StatusReport {
	return StatusReport{
		BatchID:       batchID,
		Roles:         roles,
		HasSnapshot:   rec.HasSnapshot,
		ExcludedCount: len(rec.ExcludedIDs),
		Total:         rec.TotalCount,
		Migrated:      rec.MigratedCount,
		Remaining:     rec.Remaining(),
		Percent:       percent(rec),
		NextStep:      nextStep,
	}
}

func percent(rec progress.Record) float64 {
	if rec.TotalCount <= 0 {
		return rec.Percent() * 100
	}
	return min(float64(rec.MigratedCount)*100/float64(rec.TotalCount), 100)
}

// StatusToText renders the report as aligned plain text.
func StatusToText(r StatusReport) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Batch: %s\n", r.BatchID))
	if len(r.Roles) > 0 {
		buf.WriteString(fmt.Sprintf("Roles: %s\n", strings.Join(r.Roles, ", ")))
	}

	if !r.HasSnapshot {
		buf.WriteString("Status: not started\n")
		return buf.Bytes()
	}

	buf.WriteString(fmt.Sprintf("Skipped (existing affiliates): %d\n", r.ExcludedCount))
	buf.WriteString(fmt.Sprintf("Migrated: %d/%d (%.1f%%)\n", r.Migrated, r.Total, r.Percent))
	buf.WriteString(fmt.Sprintf("Remaining: %d\n", r.Remaining))
	buf.WriteString(fmt.Sprintf("Next step: %s\n", r.NextStep))

	return buf.Bytes()
}

// StatusToJSON renders the report as indented JSON.
func StatusToJSON(r StatusReport) ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	return append(data, '\n'), nil
}

// StatusToYAML renders the report as YAML.
func StatusToYAML(r StatusReport) ([]byte, error) {
	data, err := yaml.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	return data, nil
}

// Render writes the report to w in format.
func Render(w io.Writer, format string, r StatusReport) error {
	var (
		data []byte
		err  error
	)

	switch strings.ToLower(format) {
	case FormatText, "":
		data = StatusToText(r)
	case FormatJSON:
		data, err = StatusToJSON(r)
	case FormatYAML, "yml":
		data, err = StatusToYAML(r)
	default:
		return fmt.Errorf("%w: unknown format %q (want text, json, or yaml)", shared.ErrInvalidFlag, format)
	}
	if err != nil {
		return err
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// WriteReport renders the report to a file, choosing the format from the extension.
func WriteReport(path string, r StatusReport) error {
	format := FormatText
	switch {
	case strings.HasSuffix(path, ".json"):
		format = FormatJSON
	case strings.HasSuffix(path, ".yaml"), strings.HasSuffix(path, ".yml"):
		format = FormatYAML
	}

	var buf bytes.Buffer
	if err := Render(&buf, format, r); err != nil {
		return err
	}

	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write report file: %w", err)
	}
	return nil
}

// UsersToCSV converts users to CSV with columns: ID, Login, Email, Registered, Roles
func UsersToCSV(users []models.User) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Login", "Email", "Registered", "Roles"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, u := range users {
		record := []string{
			strconv.FormatInt(u.ID, 10),
			u.Login,
			u.Email,
			u.RegisteredAt.UTC().Format(time.RFC3339),
			strings.Join(u.Roles, ";"),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// UsersToText converts users to a numbered plain text listing
func UsersToText(users []models.User) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Users: %d\n\n", len(users)))
	for _, u := range users {
		roles := "-"
		if len(u.Roles) > 0 {
			roles = strings.Join(u.Roles, ", ")
		}
		buf.WriteString(fmt.Sprintf("%d. %s <%s> [%s]\n", u.ID, u.Login, u.Email, roles))
	}

	return buf.Bytes()
}

// AffiliatesToText converts affiliates to a plain text listing
func AffiliatesToText(affiliates []*models.Affiliate) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Affiliates: %d\n\n", len(affiliates)))
	for _, a := range affiliates {
		buf.WriteString(fmt.Sprintf("%d. user %d %s <%s>\n", a.ID, a.UserID, a.Status, a.PaymentEmail))
	}

	return buf.Bytes()
}

// AffiliatesToCSV converts affiliates to CSV with columns: ID, UserID, Status, PaymentEmail, Registered
func AffiliatesToCSV(affiliates []*models.Affiliate) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{"ID", "UserID", "Status", "PaymentEmail", "Registered"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, a := range affiliates {
		record := []string{
			strconv.FormatInt(a.ID, 10),
			strconv.FormatInt(a.UserID, 10),
			string(a.Status),
			a.PaymentEmail,
			a.DateRegistered.UTC().Format(time.RFC3339),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}
