package audit

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"time"
)

// ExportColumns is the fixed header of an export.
var ExportColumns = []string{
	"event_id",
	"actor_id",
	"actor_email",
	"application_id",
	"application_name",
	"action",
	"resource",
	"resource_id",
	"ip",
	"user_agent",
	"timestamp",
	"details",
}

// Export renders events matching f as CSV, newest first, bounded to
// MaxExportRows rows.
func (p *Pipeline) Export(ctx context.Context, f Filter) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := p.WriteCSV(ctx, &buf, f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteCSV streams the export to w and returns the number of data rows.
func (p *Pipeline) WriteCSV(ctx context.Context, w io.Writer, f Filter) (int, error) {
	if err := f.Validate(); err != nil {
		return 0, err
	}

	events, _, err := p.store.Find(ctx, f, DefaultSort, p.limits.MaxExportRows, 0)
	if err != nil {
		return 0, err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(ExportColumns); err != nil {
		return 0, err
	}
	for _, e := range events {
		detail, err := encodeDetail(e.Detail)
		if err != nil {
			detail = unencodableDetail
		}
		record := []string{
			e.ID,
			e.ActorID,
			e.ActorEmail,
			e.ApplicationID,
			e.ApplicationName,
			string(e.Action),
			e.Resource,
			e.ResourceID,
			e.IP,
			e.UserAgent,
			e.Timestamp.UTC().Format(time.RFC3339Nano),
			detail,
		}
		if err := cw.Write(record); err != nil {
			return 0, err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, err
	}
	return len(events), nil
}

// unencodableDetail replaces a detail map that cannot be marshaled so the
// remaining rows still export.
const unencodableDetail = `{"_error":"unencodable"}`

func encodeDetail(detail map[string]any) (string, error) {
	if len(detail) == 0 {
		return "{}", nil
	}
	raw, err := json.Marshal(detail)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
