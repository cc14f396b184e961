// Package tables exports decoded shot tables as parquet.
package tables

import (
	"time"
)

// ShotRow is one measured bit of one shot.
type ShotRow struct {
	JobID    string `parquet:"job_id"`
	Device   string `parquet:"device"`
	Shot     int32  `parquet:"shot"`
	Register string `parquet:"register"`
	Bit      int32  `parquet:"bit"`
	Column   int32  `parquet:"column"` // position in the shot table
	Value    int32  `parquet:"value"`

	ExportedAt time.Time `parquet:"exported_at,timestamp(millisecond)"`
}

// TableName returns the canonical table name.
func (ShotRow) TableName() string {
	return "job_shots"
}

// ParquetConfig configures parquet output generation.
type ParquetConfig struct {
	Device      string
	Compression string // "snappy" | "zstd" | "none"
}

// DefaultParquetConfig returns sensible defaults.
func DefaultParquetConfig() ParquetConfig {
	return ParquetConfig{
		Compression: "zstd",
	}
}

// SchemaVersion returns the version of the schema.
// Increment this when making breaking changes.
const SchemaVersion = "1.0.0"
