package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"attendance-kiosk/internal/core/models"
	"attendance-kiosk/internal/database"
	"attendance-kiosk/internal/util/timezone"

	"github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type attendanceFlags struct {
	limit     int
	name      string
	knownOnly bool
	since     time.Duration
	stats     bool
	asJSON    bool
}

func newAttendanceCommand(ctx *commandContext) *cobra.Command {
	var flags attendanceFlags

	cmd := &cobra.Command{
		Use:   "attendance",
		Short: "List recorded attendance from the journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if !cfg.DB.Enabled {
				return errors.New("attendance journal is disabled (db.enabled=false)")
			}
			// Keep table output free of connection and migration logs.
			if log.GetLevel() < log.DebugLevel {
				log.SetLevel(log.WarnLevel)
			}
			timezone.Initialize(cfg.Kiosk.Timezone)

			db, err := database.Open(cfg.DB.File)
			if err != nil {
				return fmt.Errorf("open journal: %w", err)
			}
			if sqlDB, err := db.DB(); err == nil {
				defer sqlDB.Close()
			}
			return printAttendance(cmd.Context(), cmd.OutOrStdout(), database.NewJournal(db), flags)
		},
	}

	cmd.Flags().IntVarP(&flags.limit, "limit", "n", 20, "Maximum number of rows (0 = all)")
	cmd.Flags().StringVar(&flags.name, "name", "", "Only rows for this name")
	cmd.Flags().BoolVar(&flags.knownOnly, "known", false, "Only recognised faces")
	cmd.Flags().DurationVar(&flags.since, "since", 0, "Only rows newer than this age, e.g. 24h")
	cmd.Flags().BoolVar(&flags.stats, "stats", false, "Print a summary instead of rows")
	cmd.Flags().BoolVar(&flags.asJSON, "json", false, "Print JSON")
	return cmd
}

type journalReader interface {
	List(ctx context.Context, opts database.ListOptions) ([]models.Attendance, error)
	Stats(ctx context.Context) (models.Statistics, error)
}

func printAttendance(ctx context.Context, w io.Writer, journal journalReader, flags attendanceFlags) error {
	if flags.stats {
		st, err := journal.Stats(ctx)
		if err != nil {
			return err
		}
		if flags.asJSON {
			return writeJSON(w, st)
		}
		_, err = fmt.Fprintln(w, renderTable(statsColumns, statsRows(st, time.Now())))
		return err
	}

	opts := database.ListOptions{Limit: flags.limit, Name: flags.name, KnownOnly: flags.knownOnly}
	if flags.since > 0 {
		opts.Since = time.Now().Add(-flags.since)
	}
	rows, err := journal.List(ctx, opts)
	if err != nil {
		return err
	}
	if flags.asJSON {
		return writeJSON(w, rows)
	}
	if len(rows) == 0 {
		_, err = fmt.Fprintln(w, "No attendance recorded.")
		return err
	}
	_, err = fmt.Fprintln(w, renderTable(attendanceColumns, attendanceRows(rows, time.Now())))
	return err
}

func attendanceRows(rows []models.Attendance, now time.Time) [][]string {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		token := "-"
		if r.Token != nil {
			token = strconv.Itoa(*r.Token)
		}
		known := "no"
		if r.Known {
			known = "yes"
		}
		snapshot := r.SnapshotPath
		if snapshot == "" {
			snapshot = "-"
		}
		out = append(out, []string{
			strconv.FormatUint(uint64(r.ID), 10),
			timezone.Format(r.RecognizedAt, "2006-01-02 15:04:05"),
			humanize.RelTime(r.RecognizedAt, now, "ago", "from now"),
			r.Name,
			known,
			token,
			snapshot,
		})
	}
	return out
}

func statsRows(st models.Statistics, now time.Time) [][]string {
	latest := "-"
	if !st.LatestAt.IsZero() {
		latest = humanize.RelTime(st.LatestAt, now, "ago", "from now")
	}
	return [][]string{
		{"Total", humanize.Comma(st.Total)},
		{"Recognised", humanize.Comma(st.Known)},
		{"Not recognised", humanize.Comma(st.Unknown)},
		{"People", humanize.Comma(st.People)},
		{"Latest", latest},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
