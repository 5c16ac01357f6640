package converter

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/marcboeker/go-duckdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brensch/edgarfsn/internal/config"
	"github.com/brensch/edgarfsn/internal/report"
)

const numTSV = "adsh\ttag\tddate\tvalue\tzip\r\n" +
	"0001\tAssets\t20191231\t100.5\t02139\r\n" +
	"0002\tLiabilities\t20191231\t7\t\r\n" +
	"0003\tonly three\tfields\r\n" +
	"0004\tCash\tNotADate\t3\t10001\r\n"

// "Société Générale" in ISO-8859-1.
const subTSV = "adsh\tname\n0001\tSoci\xe9t\xe9 G\xe9n\xe9rale\n"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupData(t *testing.T) (config.Config, string) {
	t.Helper()
	dataDir := t.TempDir()
	src := filepath.Join(dataDir, "2019_3", "source")
	require.NoError(t, os.MkdirAll(src, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "num.tsv"), []byte(numTSV), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "sub.tsv"), []byte(subTSV), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "readme.htm"), []byte("<html></html>"), 0o644))

	cfg := config.Default()
	cfg.DataDir = dataDir
	cfg.Convert.Workers = 2
	cfg.Convert.SchemaRowLimit = 2
	return cfg, dataDir
}

func queryParquet(t *testing.T, path, query string, dest ...any) {
	t.Helper()
	conn, err := sql.Open("duckdb", "")
	require.NoError(t, err)
	defer conn.Close()
	q := fmt.Sprintf(query, "read_parquet('"+filepath.ToSlash(path)+"')")
	require.NoError(t, conn.QueryRow(q).Scan(dest...))
}

func TestOutputPath(t *testing.T) {
	in := filepath.Join("data", "2019_3", "source", "num.tsv")
	assert.Equal(t, filepath.Join("data", "2019_3", "parquet", "num.parquet"), OutputPath(in))
}

func TestJobsListsOnlyTSV(t *testing.T) {
	cfg, dataDir := setupData(t)
	jobs, err := New(cfg, nil, testLogger()).Jobs()
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, filepath.Join(dataDir, "2019_3", "source", "num.tsv"), jobs[0].Input)
	assert.Equal(t, filepath.Join(dataDir, "2019_3", "parquet", "sub.parquet"), jobs[1].Output)
}

func TestConvertFile(t *testing.T) {
	cfg, dataDir := setupData(t)
	c := New(cfg, nil, testLogger())
	in := filepath.Join(dataDir, "2019_3", "source", "num.tsv")

	res, err := c.ConvertFile(context.Background(), Job{Input: in, Output: OutputPath(in)})
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, int64(3), res.Rows)
	assert.Equal(t, int64(1), res.BadRows)
	assert.Equal(t, int64(1), res.Nulled)

	var rows, nullDates int64
	var total float64
	queryParquet(t, res.Output, "SELECT count(*), count(*) FILTER (WHERE ddate IS NULL), sum(value) FROM %s", &rows, &nullDates, &total)
	assert.Equal(t, int64(3), rows)
	assert.Equal(t, int64(1), nullDates)
	assert.InDelta(t, 110.5, total, 1e-9)

	var zip string
	queryParquet(t, res.Output, "SELECT zip FROM %s WHERE adsh = '0001'", &zip)
	assert.Equal(t, "02139", zip)

	_, err = os.Stat(res.Output + ".part")
	assert.True(t, os.IsNotExist(err))
}

func TestConvertDecodesLatin1(t *testing.T) {
	cfg, dataDir := setupData(t)
	in := filepath.Join(dataDir, "2019_3", "source", "sub.tsv")

	res, err := New(cfg, nil, testLogger()).ConvertFile(context.Background(), Job{Input: in, Output: OutputPath(in)})
	require.NoError(t, err)

	var name string
	queryParquet(t, res.Output, "SELECT name FROM %s", &name)
	assert.Equal(t, "Société Générale", name)
}

func TestConvertAllSkipsExisting(t *testing.T) {
	cfg, _ := setupData(t)
	c := New(cfg, nil, testLogger())

	var notified int
	c.Notify = func(report.Item) { notified++ }

	sum := c.ConvertAll(context.Background())
	assert.Equal(t, 2, sum.Succeeded())
	assert.Zero(t, sum.Failed())
	assert.Equal(t, 2, notified)

	sum = c.ConvertAll(context.Background())
	assert.Equal(t, 2, sum.Skipped())
	assert.Zero(t, sum.Succeeded())
	assert.Equal(t, []string{"2019_3/num.tsv", "2019_3/sub.tsv"}, sum.IDs(report.Skipped))
}

func TestConvertEmptyFileFails(t *testing.T) {
	cfg, dataDir := setupData(t)
	empty := filepath.Join(dataDir, "2019_3", "source", "dim.tsv")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))

	sum := New(cfg, nil, testLogger()).ConvertAll(context.Background())
	assert.Equal(t, []string{"2019_3/dim.tsv"}, sum.FailedIDs())
	_, err := os.Stat(OutputPath(empty))
	assert.True(t, os.IsNotExist(err))
}

func TestInferSchema(t *testing.T) {
	s := inferSchema(
		[]string{"a", "b", "c", "d", "a", "e f"},
		[][]string{
			{"1", "1.5", "x", "", "7", "0"},
			{"2", "3", "4", "", "007", "0.5"},
		},
	)
	assert.Equal(t, []string{"a", "b", "c", "d", "a_2", "e_f"}, s.Columns)
	assert.Equal(t, []string{TypeInt64, TypeDouble, TypeString, TypeString, TypeString, TypeDouble}, s.Types)
	assert.Equal(t, "name=a, type=INT64, repetitiontype=OPTIONAL", s.Metadata()[0])
	assert.Equal(t, "name=c, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL", s.Metadata()[2])
}
