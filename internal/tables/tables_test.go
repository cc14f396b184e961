package tables

import (
	"strings"
	"testing"

	"github.com/withObsrvr/obsrvr-quantum-backend/internal/results"
)

func TestWriteShotsRoundTrip(t *testing.T) {
	table, err := results.Decode(map[string][]string{"c": {"01", "10", "11"}})
	if err != nil {
		t.Fatal(err)
	}

	for _, comp := range []string{"zstd", "snappy", "none"} {
		t.Run(comp, func(t *testing.T) {
			data, err := WriteShots("job-1", ParquetConfig{Device: "H1-1E", Compression: comp}, table)
			if err != nil {
				t.Fatalf("WriteShots failed: %v", err)
			}
			rows, err := ReadShots(data)
			if err != nil {
				t.Fatalf("ReadShots failed: %v", err)
			}
			if len(rows) != 6 {
				t.Fatalf("got %d rows, want 6", len(rows))
			}
			// shot 0 is "01": c[1]=0, c[0]=1
			if rows[0].Register != "c" || rows[0].Bit != 1 || rows[0].Value != 0 {
				t.Errorf("row 0 = %+v", rows[0])
			}
			if rows[1].Bit != 0 || rows[1].Value != 1 || rows[1].Column != 1 {
				t.Errorf("row 1 = %+v", rows[1])
			}
			if rows[5].Shot != 2 || rows[5].JobID != "job-1" || rows[5].Device != "H1-1E" {
				t.Errorf("row 5 = %+v", rows[5])
			}
		})
	}
}

func TestWriteShotsCompressionCodecs(t *testing.T) {
	table := results.Zeros(2, 2)
	for _, name := range []string{"", "zstd", "snappy", "none"} {
		codec, err := compression(name)
		if err != nil || codec == nil {
			t.Fatalf("compression(%q) = %v, %v", name, codec, err)
		}
		data, err := WriteShots("j", ParquetConfig{Device: "H1-1", Compression: name}, table)
		if err != nil {
			t.Fatalf("WriteShots with %q: %v", name, err)
		}
		rows, err := ReadShots(data)
		if err != nil {
			t.Fatalf("ReadShots with %q: %v", name, err)
		}
		if len(rows) != 4 {
			t.Errorf("%q: got %d rows, want 4", name, len(rows))
		}
	}
}

func TestWriteShotsUnknownCompression(t *testing.T) {
	if _, err := WriteShots("j", ParquetConfig{Compression: "lzma"}, results.Zeros(1, 1)); err == nil {
		t.Error("expected error for unknown compression")
	}
}

func TestChecksum(t *testing.T) {
	data := []byte("shots")
	sum := ComputeChecksum(data)
	if len(sum) != len("sha256:")+64 {
		t.Errorf("unexpected checksum %q", sum)
	}
	if !VerifyChecksum(data, sum) {
		t.Error("checksum should verify")
	}
	if VerifyChecksum([]byte("other"), sum) {
		t.Error("checksum should not verify different data")
	}
	if !VerifyChecksum(data, strings.TrimPrefix(sum, "sha256:")) {
		t.Error("bare hex digest should verify")
	}
	if VerifyChecksum(data, "sha256:not-hex") {
		t.Error("malformed digest should not verify")
	}
}
