package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"imcitrack/internal/app"
	"imcitrack/internal/config"
	"imcitrack/internal/export"
	"imcitrack/internal/model"
	"imcitrack/internal/service"
)

// Identity columns carry no dot; every other header is <namespace>.<key>.
const (
	colRef         = "ref"
	colCourse      = "courseId"
	colParticipant = "participantId"
	colSupervisor  = "supervisorId"
	colFacility    = "facilityId"
)

func scoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score a CSV export offline and write the payloads to parquet",
		RunE: func(cmd *cobra.Command, args []string) error {
			in, _ := cmd.Flags().GetString("in")
			out, _ := cmd.Flags().GetString("out")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := app.NewLogger(cfg, os.Stderr)
			cl, err := app.LoadChecklist(cfg)
			if err != nil {
				return fmt.Errorf("load checklist: %w", err)
			}

			stats, err := scoreFile(in, out, service.NewScorer(cl, logger), logger)
			if err != nil {
				return err
			}
			logger.Info().
				Str("in", in).
				Str("out", out).
				Int("written", stats.written).
				Int("rejected", stats.rejected).
				Msg("scoring finished")
			return nil
		},
	}
	cmd.Flags().String("in", "", "CSV file with <namespace>.<key> headers")
	cmd.Flags().String("out", "scores.parquet", "Parquet file to write")
	cmd.MarkFlagRequired("in")
	return cmd
}

type scoreStats struct {
	written  int
	rejected int
}

func scoreFile(in, out string, scorer *service.Scorer, logger zerolog.Logger) (scoreStats, error) {
	var stats scoreStats

	f, err := os.Open(in)
	if err != nil {
		return stats, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	rows, err := readRows(f)
	if err != nil {
		return stats, err
	}

	w, err := export.NewParquetWriter(out)
	if err != nil {
		return stats, err
	}

	version := scorer.Checklist().Version
	for i, row := range rows {
		a, err := scorer.Normalize(row.Answers)
		if err != nil {
			stats.rejected++
			logger.Warn().Int("row", i).Str("ref", row.Ref).Err(err).Msg("row rejected")
			continue
		}
		ref := row.Ref
		if ref == "" {
			ref = fmt.Sprintf("row-%d", i)
		}
		rec, err := export.RecordOf(i, ref, row.CourseID, row.ParticipantID, version, scorer.Score(ref, a))
		if err == nil {
			err = w.Write(rec)
		}
		if err != nil {
			w.Close()
			return stats, err
		}
		stats.written++
	}
	return stats, w.Close()
}

// readRows parses a CSV export. Header cells other than the identity
// columns name an answer as <namespace>.<key>; blank header cells are
// ignored. Multi-label cells keep their ";" separators for the normalizer.
func readRows(r io.Reader) ([]model.ImportRow, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty input")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	type column struct {
		skip     bool
		identity string
		ns, key  string
	}
	cols := make([]column, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" {
			cols[i] = column{skip: true}
			continue
		}
		ns, key, ok := strings.Cut(h, ".")
		if !ok {
			cols[i] = column{identity: h}
			continue
		}
		if ns == "" || key == "" {
			return nil, fmt.Errorf("column %d: malformed header %q", i+1, h)
		}
		cols[i] = column{ns: ns, key: key}
	}

	var rows []model.ImportRow
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		row := model.ImportRow{Answers: model.RawAnswers{}}
		for i, cell := range rec {
			c := cols[i]
			if c.skip {
				continue
			}
			switch c.identity {
			case "":
			case colRef:
				row.Ref = cell
				continue
			case colCourse:
				row.CourseID = cell
				continue
			case colParticipant:
				row.ParticipantID = cell
				continue
			case colSupervisor:
				row.SupervisorID = cell
				continue
			case colFacility:
				row.FacilityID = cell
				continue
			default:
				continue
			}
			if strings.TrimSpace(cell) == "" {
				continue
			}
			if row.Answers[c.ns] == nil {
				row.Answers[c.ns] = make(map[string]interface{})
			}
			row.Answers[c.ns][c.key] = cell
		}
		rows = append(rows, row)
	}
	return rows, nil
}
