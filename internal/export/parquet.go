package export

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/parquet-go/parquet-go"

	"imcitrack/internal/scoring"
)

// ScoreRecord is one scored encounter in the parquet export. The payload
// column holds the flat "<key>_score" / "<key>_maxScore" object as JSON.
type ScoreRecord struct {
	Row              int64  `parquet:"row"`
	Ref              string `parquet:"ref"`
	CourseID         string `parquet:"course_id"`
	ParticipantID    string `parquet:"participant_id"`
	ChecklistVersion int32  `parquet:"checklist_version"`
	OverallScore     int32  `parquet:"overall_score"`
	OverallMaxScore  int32  `parquet:"overall_max_score"`
	Payload          string `parquet:"payload"`
	Diagnostics      int32  `parquet:"diagnostics"`
	Degraded         bool   `parquet:"degraded"`
}

// RecordOf converts a scoring result into an export record.
func RecordOf(row int, ref, courseID, participantID string, version int, r *scoring.Result) (ScoreRecord, error) {
	payload, err := json.Marshal(r.Payload())
	if err != nil {
		return ScoreRecord{}, fmt.Errorf("encode payload: %w", err)
	}
	return ScoreRecord{
		Row:              int64(row),
		Ref:              ref,
		CourseID:         courseID,
		ParticipantID:    participantID,
		ChecklistVersion: int32(version),
		OverallScore:     int32(r.Overall.Score),
		OverallMaxScore:  int32(r.Overall.MaxScore),
		Payload:          string(payload),
		Diagnostics:      int32(len(r.Diagnostics)),
		Degraded:         r.Degraded(),
	}, nil
}

const parquetFlushInterval = 10_000

// ParquetWriter writes score records to a Snappy-compressed parquet file
type ParquetWriter struct {
	file   *os.File
	writer *parquet.GenericWriter[ScoreRecord]
	count  int
}

// NewParquetWriter creates a new Parquet file writer
func NewParquetWriter(filename string) (*ParquetWriter, error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet file: %w", err)
	}

	writer := parquet.NewGenericWriter[ScoreRecord](file,
		parquet.Compression(&parquet.Snappy),
		parquet.CreatedBy("imcitrack", "1.0", ""),
	)

	return &ParquetWriter{
		file:   file,
		writer: writer,
	}, nil
}

// Write appends one record
func (pw *ParquetWriter) Write(rec ScoreRecord) error {
	if _, err := pw.writer.Write([]ScoreRecord{rec}); err != nil {
		return fmt.Errorf("failed to write parquet record: %w", err)
	}
	pw.count++

	if pw.count%parquetFlushInterval == 0 {
		if err := pw.writer.Flush(); err != nil {
			return fmt.Errorf("failed to flush parquet row group: %w", err)
		}
	}
	return nil
}

// Close flushes and closes the Parquet writer
func (pw *ParquetWriter) Close() error {
	if err := pw.writer.Close(); err != nil {
		pw.file.Close()
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return pw.file.Close()
}

// Count returns the number of records written
func (pw *ParquetWriter) Count() int {
	return pw.count
}

// ReadFile loads every record of an export.
func ReadFile(filename string) ([]ScoreRecord, error) {
	return parquet.ReadFile[ScoreRecord](filename)
}
