package inspector

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brensch/edgarfsn/internal/config"
	"github.com/brensch/edgarfsn/internal/converter"
)

func TestInspectSummarizesTablesAcrossPeriods(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dataDir := t.TempDir()
	for dir, body := range map[string]string{
		"2019_3": "adsh\tvalue\n0001\t1.5\n0002\t2\n",
		"2019_4": "adsh\tvalue\n0003\t4\n",
	} {
		src := filepath.Join(dataDir, dir, "source")
		require.NoError(t, os.MkdirAll(src, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(src, "num.tsv"), []byte(body), 0o644))
	}

	cfg := config.Default()
	cfg.DataDir = dataDir
	sum := converter.New(cfg, nil, logger).ConvertAll(context.Background())
	require.Equal(t, 2, sum.Succeeded())

	var buf bytes.Buffer
	tables, err := Inspect(context.Background(), dataDir, &buf, logger)
	require.NoError(t, err)
	require.Len(t, tables, 1)

	num := tables[0]
	assert.Equal(t, "num", num.Table)
	assert.Len(t, num.Files, 2)
	assert.Equal(t, []string{"2019_3", "2019_4"}, num.Periods)
	assert.Equal(t, int64(3), num.TotalRows)
	assert.Equal(t, []string{"adsh", "value"}, num.ColumnNames)
	assert.Contains(t, buf.String(), "=== Table: num ===")
}

func TestInspectEmptyDir(t *testing.T) {
	var buf bytes.Buffer
	tables, err := Inspect(context.Background(), t.TempDir(), &buf, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.NoError(t, err)
	assert.Empty(t, tables)
	assert.Contains(t, buf.String(), "No Parquet files found.")
}
