package tables

import (
	"bytes"
	"fmt"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"

	"github.com/withObsrvr/obsrvr-quantum-backend/internal/results"
)

// Rows flattens a shot table into one row per (shot, bit).
func Rows(jobID string, cfg ParquetConfig, table results.ShotTable, now time.Time) []ShotRow {
	rows := make([]ShotRow, 0, len(table.Rows)*len(table.Bits))
	for s, shot := range table.Rows {
		for c, b := range table.Bits {
			rows = append(rows, ShotRow{
				JobID:      jobID,
				Device:     cfg.Device,
				Shot:       int32(s),
				Register:   b.Reg,
				Bit:        int32(b.Index),
				Column:     int32(c),
				Value:      int32(shot[c]),
				ExportedAt: now,
			})
		}
	}
	return rows
}

// WriteShots encodes a job's shot table as a parquet file.
func WriteShots(jobID string, cfg ParquetConfig, table results.ShotTable) ([]byte, error) {
	codec, err := compression(cfg.Compression)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := parquet.NewGenericWriter[ShotRow](&buf, parquet.Compression(codec))
	if _, err := w.Write(Rows(jobID, cfg, table, time.Now().UTC())); err != nil {
		return nil, fmt.Errorf("write rows: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}

// ReadShots decodes rows written by WriteShots.
func ReadShots(data []byte) ([]ShotRow, error) {
	rows, err := parquet.Read[ShotRow](bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("read parquet: %w", err)
	}
	return rows, nil
}

func compression(name string) (compress.Codec, error) {
	switch name {
	case "", "zstd":
		return &parquet.Zstd, nil
	case "snappy":
		return &parquet.Snappy, nil
	case "none":
		return &parquet.Uncompressed, nil
	default:
		return nil, fmt.Errorf("unknown compression %q", name)
	}
}
