// Package telemetry moves MetricSamples across the pipeline boundary:
// CSV ingest from the external collector, JSON report output for the
// controller/dashboard, and a seeded synthetic generator for demos and
// tests.
package telemetry

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/meshwise/internal/mesh"
	"github.com/banshee-data/meshwise/internal/monitoring"
)

// CSVHeader is the canonical column order for telemetry CSV files.
// Timestamps are RFC 3339 or Unix seconds.
var CSVHeader = []string{
	"zone_id",
	"ap_id",
	"timestamp",
	"rssi_dbm",
	"packet_error_rate",
	"latency_ms",
	"throughput_mbps",
	"channel_utilization",
	"bytes_transferred",
}

// ReadSamples parses telemetry CSV into MetricSamples. A leading header
// row is accepted and skipped. Rows that fail to parse are logged and
// skipped so one mangled line cannot sink a whole batch; the skipped
// count is returned alongside the samples. Range validation happens
// later, in the pipeline's reject path.
func ReadSamples(r io.Reader) (samples []mesh.MetricSample, skipped int, err error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(CSVHeader)
	cr.TrimLeadingSpace = true

	for line := 1; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, skipped, fmt.Errorf("read telemetry CSV line %d: %w", line, err)
		}
		if line == 1 && record[0] == CSVHeader[0] {
			continue // header row
		}
		s, err := parseRecord(record)
		if err != nil {
			monitoring.Logf("telemetry: skipping line %d: %v", line, err)
			skipped++
			continue
		}
		samples = append(samples, s)
	}
	return samples, skipped, nil
}

func parseRecord(record []string) (mesh.MetricSample, error) {
	ts, err := parseTimestamp(record[2])
	if err != nil {
		return mesh.MetricSample{}, err
	}
	fields := make([]float64, 5)
	for i, col := range []int{3, 4, 5, 6, 7} {
		v, err := strconv.ParseFloat(record[col], 64)
		if err != nil {
			return mesh.MetricSample{}, fmt.Errorf("column %s: %w", CSVHeader[col], err)
		}
		fields[i] = v
	}
	bytesTransferred, err := strconv.ParseInt(record[8], 10, 64)
	if err != nil {
		return mesh.MetricSample{}, fmt.Errorf("column bytes_transferred: %w", err)
	}
	return mesh.MetricSample{
		SampleID:           uuid.NewString(),
		ZoneID:             record[0],
		APID:               record[1],
		Timestamp:          ts,
		RSSIDbm:            fields[0],
		PacketErrorRate:    fields[1],
		LatencyMs:          fields[2],
		ThroughputMbps:     fields[3],
		ChannelUtilization: fields[4],
		BytesTransferred:   bytesTransferred,
	}, nil
}

func parseTimestamp(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("timestamp %q is neither RFC3339 nor unix seconds", s)
}

// WriteSamplesCSV writes samples in the canonical CSV layout, header
// included. This is the inverse of ReadSamples, used by the synthetic
// generator.
func WriteSamplesCSV(w io.Writer, samples []mesh.MetricSample) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("write CSV header: %w", err)
	}
	for i := range samples {
		s := &samples[i]
		record := []string{
			s.ZoneID,
			s.APID,
			s.Timestamp.UTC().Format(time.RFC3339),
			strconv.FormatFloat(s.RSSIDbm, 'f', 2, 64),
			strconv.FormatFloat(s.PacketErrorRate, 'f', 4, 64),
			strconv.FormatFloat(s.LatencyMs, 'f', 2, 64),
			strconv.FormatFloat(s.ThroughputMbps, 'f', 2, 64),
			strconv.FormatFloat(s.ChannelUtilization, 'f', 3, 64),
			strconv.FormatInt(s.BytesTransferred, 10),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write CSV record %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
