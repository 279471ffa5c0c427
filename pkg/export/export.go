// Package export serializes receipt sets into the wire formats consumed
// by downstream SIEM and audit tooling. All formats are plain text,
// suitable for file or stream output.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/trustrail/trustrail-core/pkg/receipt"
)

// Common errors returned by this package.
var (
	ErrUnknownFormat = errors.New("unknown export format")
)

// Format selects the output serialization.
type Format string

const (
	// FormatJSON is one JSON object: {"metadata": ..., "receipts": [...]}.
	FormatJSON Format = "json"

	// FormatJSONL is one metadata line followed by one line per receipt.
	FormatJSONL Format = "jsonl"

	// FormatCSV is a header row plus one row per receipt.
	FormatCSV Format = "csv"

	// FormatKV is one key=value line per receipt (syslog-style).
	FormatKV Format = "kv"

	// FormatSIEM is one JSON object per line with fixed host/service tags
	// (HEC-style collectors).
	FormatSIEM Format = "siem"
)

// Formats lists every supported format name.
var Formats = []Format{FormatJSON, FormatJSONL, FormatCSV, FormatKV, FormatSIEM}

// Options configures one export.
type Options struct {
	Format Format

	// Filter, if set, selects receipts before serialization.
	Filter *Filter

	// Host and Service tag FormatSIEM lines. Defaults: "trustrail",
	// "trust-receipts".
	Host    string
	Service string

	// Now overrides the export timestamp (for testing).
	Now func() time.Time
}

// Metadata heads JSON and JSONL exports.
type Metadata struct {
	ExportedAt string `json:"exported_at"`
	Count      int    `json:"count"`
	Format     Format `json:"format"`
	Tool       string `json:"tool"`
}

const toolName = "trustrail-core"

// Export filters and serializes receipts. The input slice is never
// mutated or reordered.
func Export(receipts []*receipt.TrustReceipt, opts Options) (string, error) {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	selected := opts.Filter.Apply(receipts)

	meta := Metadata{
		ExportedAt: now().UTC().Format(time.RFC3339),
		Count:      len(selected),
		Format:     opts.Format,
		Tool:       toolName,
	}

	switch opts.Format {
	case FormatJSON:
		return exportJSON(selected, meta)
	case FormatJSONL:
		return exportJSONL(selected, meta)
	case FormatCSV:
		return exportCSV(selected)
	case FormatKV:
		return exportKV(selected)
	case FormatSIEM:
		return exportSIEM(selected, opts)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, opts.Format)
	}
}

func exportJSON(receipts []*receipt.TrustReceipt, meta Metadata) (string, error) {
	doc := struct {
		Metadata Metadata                 `json:"metadata"`
		Receipts []*receipt.TrustReceipt `json:"receipts"`
	}{meta, receipts}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal export: %w", err)
	}
	return string(data), nil
}

func exportJSONL(receipts []*receipt.TrustReceipt, meta Metadata) (string, error) {
	var b strings.Builder

	metaLine, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("failed to marshal metadata: %w", err)
	}
	b.Write(metaLine)
	b.WriteByte('\n')

	for _, r := range receipts {
		line, err := json.Marshal(r)
		if err != nil {
			return "", fmt.Errorf("failed to marshal receipt %s: %w", r.ID, err)
		}
		b.Write(line)
		b.WriteByte('\n')
	}

	return b.String(), nil
}

var csvHeader = []string{
	"id", "session_id", "timestamp", "agent_did", "mode",
	"status", "overall_score", "chain_length", "previous_hash",
}

func exportCSV(receipts []*receipt.TrustReceipt) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader); err != nil {
		return "", fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, r := range receipts {
		status, score := telemetrySummary(r)
		row := []string{
			r.ID,
			r.SessionID,
			r.Timestamp,
			r.AgentDID,
			string(r.Mode),
			status,
			score,
			strconv.Itoa(r.Chain.ChainLength),
			r.Chain.PreviousHash,
		}
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("failed to write CSV row for %s: %w", r.ID, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("failed to flush CSV: %w", err)
	}
	return buf.String(), nil
}

func exportKV(receipts []*receipt.TrustReceipt) (string, error) {
	var b strings.Builder

	for _, r := range receipts {
		status, score := telemetrySummary(r)
		pairs := []string{
			"ts=" + r.Timestamp,
			"receipt_id=" + r.ID,
			"session_id=" + r.SessionID,
			"agent_did=" + r.AgentDID,
			"mode=" + string(r.Mode),
			"status=" + status,
			"overall_score=" + score,
			"chain_length=" + strconv.Itoa(r.Chain.ChainLength),
			"chain_hash=" + r.Chain.ChainHash,
		}
		b.WriteString(strings.Join(pairs, " "))
		b.WriteByte('\n')
	}

	return b.String(), nil
}

func exportSIEM(receipts []*receipt.TrustReceipt, opts Options) (string, error) {
	host := opts.Host
	if host == "" {
		host = "trustrail"
	}
	service := opts.Service
	if service == "" {
		service = "trust-receipts"
	}

	var b strings.Builder
	for _, r := range receipts {
		event := struct {
			Host    string                `json:"host"`
			Service string                `json:"service"`
			Time    string                `json:"time"`
			Event   *receipt.TrustReceipt `json:"event"`
		}{host, service, r.Timestamp, r}

		line, err := json.Marshal(event)
		if err != nil {
			return "", fmt.Errorf("failed to marshal SIEM event for %s: %w", r.ID, err)
		}
		b.Write(line)
		b.WriteByte('\n')
	}

	return b.String(), nil
}

// telemetrySummary extracts the status and score columns; receipts
// without telemetry export empty values rather than zeros.
func telemetrySummary(r *receipt.TrustReceipt) (string, string) {
	if r.Telemetry == nil {
		return "", ""
	}
	return string(r.Telemetry.Status), strconv.Itoa(r.Telemetry.OverallScore)
}
