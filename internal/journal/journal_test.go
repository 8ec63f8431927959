package journal

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hammamikhairi/calmcoach/internal/domain"
	"github.com/hammamikhairi/calmcoach/internal/logger"
)

func quietLog() *logger.Logger {
	return logger.New(logger.LevelOff, nil)
}

func at(hour, minute int) time.Time {
	return time.Date(2026, 3, 14, hour, minute, 0, 0, time.Local)
}

func openBoth(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()

	csvJ, err := Open(BackendCSV, filepath.Join(dir, "log.csv"), quietLog())
	require.NoError(t, err)
	sqlJ, err := Open(BackendSQLite, filepath.Join(dir, "log.db"), quietLog())
	require.NoError(t, err)

	t.Cleanup(func() {
		csvJ.Close()
		sqlJ.Close()
	})
	return map[string]Store{BackendCSV: csvJ, BackendSQLite: sqlJ}
}

func TestAppendAndList(t *testing.T) {
	ctx := context.Background()
	for name, j := range openBoth(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, j.Append(ctx, domain.Entry{
				Time: at(9, 5), Module: domain.ModuleQuickCalm, DurationSec: 50, Notes: "panic reset",
			}))
			require.NoError(t, j.Append(ctx, domain.Entry{
				Time: at(9, 30), Module: domain.ModuleBreathing, DurationSec: 32, Notes: "Box Breathing x2", Rating: 4,
			}))

			got, err := j.List(ctx)
			require.NoError(t, err)
			require.Len(t, got, 2)
			require.Equal(t, domain.ModuleQuickCalm, got[0].Module)
			require.Equal(t, 50, got[0].DurationSec)
			require.Equal(t, 0, got[0].Rating)
			require.True(t, at(9, 5).Equal(got[0].Time))
			require.Equal(t, "Box Breathing x2", got[1].Notes)
			require.Equal(t, 4, got[1].Rating)
		})
	}
}

func TestAppendRejectsBadRows(t *testing.T) {
	ctx := context.Background()
	for name, j := range openBoth(t) {
		t.Run(name, func(t *testing.T) {
			err := j.Append(ctx, domain.Entry{Time: at(8, 0), DurationSec: 10})
			require.ErrorIs(t, err, domain.ErrValidation)

			err = j.Append(ctx, domain.Entry{Time: at(8, 0), Module: "Other", DurationSec: 10, Rating: 9})
			require.ErrorIs(t, err, domain.ErrValidation)

			got, err := j.List(ctx)
			require.NoError(t, err)
			require.Empty(t, got)
		})
	}
}

func TestCSVFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "calm.csv")
	j, err := OpenCSV(path, quietLog())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, j.Append(ctx, domain.Entry{
		Time: at(7, 45), Module: domain.ModulePrimerPractice, DurationSec: 120, Notes: "1:1 2r x 60s",
	}))
	require.NoError(t, j.Append(ctx, domain.Entry{
		Time: at(7, 50), Module: domain.ModuleOther, DurationSec: 60, Notes: "walk, then stretch", Rating: 5,
	}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	want := "time,module,duration_sec,notes,rating\n" +
		"2026-03-14 07:45,Meeting Primer - practice,120,1:1 2r x 60s,\n" +
		"2026-03-14 07:50,Other,60,\"walk, then stretch\",5\n"
	require.Equal(t, want, string(data))
}

func TestCSVReopenKeepsRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calm.csv")
	ctx := context.Background()

	j, err := OpenCSV(path, quietLog())
	require.NoError(t, err)
	require.NoError(t, j.Append(ctx, domain.Entry{Time: at(6, 0), Module: "Other", DurationSec: 30}))

	j, err = OpenCSV(path, quietLog())
	require.NoError(t, err)
	require.NoError(t, j.Append(ctx, domain.Entry{Time: at(6, 1), Module: "Other", DurationSec: 40}))

	got, err := j.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, 1, strings.Count(string(data), "time,module"))
}

func TestCSVSkipsCorruptLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calm.csv")
	body := "time,module,duration_sec,notes,rating\n" +
		"2026-03-14 07:45,Other,60,,\n" +
		"yesterday,Other,60,,\n" +
		"2026-03-14 07:46,Other,sixty,,\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	j, err := OpenCSV(path, quietLog())
	require.NoError(t, err)
	got, err := j.List(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestExport(t *testing.T) {
	ctx := context.Background()
	j := openBoth(t)[BackendSQLite]
	require.NoError(t, j.Append(ctx, domain.Entry{Time: at(10, 0), Module: domain.ModuleTriangleGaze, DurationSec: 24, Notes: "8 rounds"}))

	var buf bytes.Buffer
	require.NoError(t, Export(ctx, j, &buf))
	require.Equal(t,
		"time,module,duration_sec,notes,rating\n2026-03-14 10:00,Triangle Gaze,24,8 rounds,\n",
		buf.String())
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open("parquet", "x", quietLog())
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestSummarize(t *testing.T) {
	entries := []domain.Entry{
		{Time: at(8, 0), Module: "Quick Calm", DurationSec: 50, Rating: 4},
		{Time: at(9, 0), Module: "Quick Calm", DurationSec: 50, Rating: 2},
		{Time: at(9, 30), Module: "Quick Calm", DurationSec: 50},
		{Time: at(8, 30), Module: "Triangle Gaze", DurationSec: 24},
	}

	stats := Summarize(entries)
	require.Len(t, stats, 2)
	require.Equal(t, "Quick Calm", stats[0].Module)
	require.Equal(t, 3, stats[0].Count)
	require.Equal(t, 150, stats[0].TotalSec)
	require.InDelta(t, 3.0, stats[0].AvgRating, 0.001)
	require.True(t, at(9, 30).Equal(stats[0].LastActive))
	require.Zero(t, stats[1].AvgRating)
}
