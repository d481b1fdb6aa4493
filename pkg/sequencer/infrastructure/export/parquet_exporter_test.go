package export_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"

	"github.com/tigerroll/sequencer/pkg/sequencer/adapter/storage"
	storagelocal "github.com/tigerroll/sequencer/pkg/sequencer/adapter/storage/local"
	config "github.com/tigerroll/sequencer/pkg/sequencer/core/config"
	model "github.com/tigerroll/sequencer/pkg/sequencer/core/domain/model"
	"github.com/tigerroll/sequencer/pkg/sequencer/infrastructure/export"
)

func newResolver(t *testing.T, baseDir string) storage.StorageConnectionResolver {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Sequencer.AdapterConfigs["storage"] = map[string]interface{}{
		"exports": map[string]interface{}{"type": "local", "base_dir": baseDir},
	}
	return storage.NewConnectionResolver(storage.ResolverParams{
		Providers: []storage.StorageProvider{storagelocal.NewLocalProvider(cfg)},
		Cfg:       cfg,
	})
}

func TestParquetExporter_WritesReadableSchedule(t *testing.T) {
	baseDir := t.TempDir()
	exporter, err := export.NewParquetExporter(newResolver(t, baseDir), "exports", "schedules", "SNAPPY")
	require.NoError(t, err)

	at := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	rows := []model.ScheduleRow{
		{CompanyID: "c1", JobID: "j1", OperationID: "A", JobMakeMethodID: "m0", Description: "Cut", SortOrder: 1,
			OperationOrder: model.OperationOrderAfterPrevious, InputQuantity: decimal.RequireFromString("12.5"), CalculatedAt: &at},
		{CompanyID: "c1", JobID: "j1", OperationID: "B", JobMakeMethodID: "m0", Description: "Weld", SortOrder: 2,
			OperationOrder: model.OperationOrderAfterPrevious, DependsOn: []string{"A"}},
	}
	object, err := exporter.Export(context.Background(), "c1", "j1", rows)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(object, "schedules/company=c1/job=j1/schedule_"), object)
	assert.True(t, strings.HasSuffix(object, ".parquet"))

	file, err := local.NewLocalFileReader(filepath.Join(baseDir, filepath.FromSlash(object)))
	require.NoError(t, err)
	defer file.Close()
	pr, err := reader.NewParquetReader(file, new(export.ScheduleRecord), 1)
	require.NoError(t, err)
	defer pr.ReadStop()

	require.Equal(t, int64(2), pr.GetNumRows())
	records := make([]export.ScheduleRecord, 2)
	require.NoError(t, pr.Read(&records))
	assert.Equal(t, "A", records[0].OperationID)
	assert.Equal(t, "12.5", records[0].InputQuantity)
	require.NotNil(t, records[0].CalculatedAt)
	assert.Equal(t, at.UnixMilli(), *records[0].CalculatedAt)
	assert.Equal(t, "A", records[1].DependsOn)
	assert.Nil(t, records[1].CalculatedAt)
}

func TestParquetExporter_Configuration(t *testing.T) {
	_, err := export.NewParquetExporter(nil, "", "schedules", "SNAPPY")
	assert.Error(t, err)
	_, err = export.NewParquetExporter(nil, "exports", "schedules", "LZMA")
	assert.ErrorContains(t, err, "unsupported compression")
}

func TestParquetExporter_UnknownStorage(t *testing.T) {
	exporter, err := export.NewParquetExporter(newResolver(t, t.TempDir()), "archive", "schedules", "NONE")
	require.NoError(t, err)
	_, err = exporter.Export(context.Background(), "c1", "j1", nil)
	assert.Error(t, err)
}
