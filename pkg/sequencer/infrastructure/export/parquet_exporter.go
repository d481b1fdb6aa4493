// Package export writes job schedules to object storage as Parquet files.
package export

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/tigerroll/sequencer/pkg/sequencer/adapter/storage"
	"github.com/tigerroll/sequencer/pkg/sequencer/core/application/usecase"
	config "github.com/tigerroll/sequencer/pkg/sequencer/core/config"
	model "github.com/tigerroll/sequencer/pkg/sequencer/core/domain/model"
	"github.com/tigerroll/sequencer/pkg/sequencer/support/util/exception"
	"github.com/tigerroll/sequencer/pkg/sequencer/support/util/logger"
)

const moduleName = "export"

// ScheduleRecord is the Parquet row of one scheduled operation. Quantities are written
// as decimal strings so no precision is lost.
type ScheduleRecord struct {
	CompanyID                   string `parquet:"name=company_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	JobID                       string `parquet:"name=job_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	OperationID                 string `parquet:"name=operation_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	JobMakeMethodID             string `parquet:"name=job_make_method_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Description                 string `parquet:"name=description, type=BYTE_ARRAY, convertedtype=UTF8"`
	SortOrder                   int32  `parquet:"name=sort_order, type=INT32"`
	WorkCenterID                string `parquet:"name=work_center_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	OperationOrder              string `parquet:"name=operation_order, type=BYTE_ARRAY, convertedtype=UTF8"`
	Priority                    int32  `parquet:"name=priority, type=INT32"`
	DependsOn                   string `parquet:"name=depends_on, type=BYTE_ARRAY, convertedtype=UTF8"` // comma separated
	InputQuantity               string `parquet:"name=input_quantity, type=BYTE_ARRAY, convertedtype=UTF8"`
	OutputQuantity              string `parquet:"name=output_quantity, type=BYTE_ARRAY, convertedtype=UTF8"`
	MaterialQuantity            string `parquet:"name=material_quantity, type=BYTE_ARRAY, convertedtype=UTF8"`
	AccumulatedMaterialQuantity string `parquet:"name=accumulated_material_quantity, type=BYTE_ARRAY, convertedtype=UTF8"`
	EstimatedHours              string `parquet:"name=estimated_hours, type=BYTE_ARRAY, convertedtype=UTF8"`
	AccumulatedHours            string `parquet:"name=accumulated_hours, type=BYTE_ARRAY, convertedtype=UTF8"`
	CalculatedAt                *int64 `parquet:"name=calculated_at, type=INT64, convertedtype=TIMESTAMP_MILLIS, repetitiontype=OPTIONAL"`
}

func toRecord(row model.ScheduleRow) ScheduleRecord {
	rec := ScheduleRecord{
		CompanyID:                   row.CompanyID,
		JobID:                       row.JobID,
		OperationID:                 row.OperationID,
		JobMakeMethodID:             row.JobMakeMethodID,
		Description:                 row.Description,
		SortOrder:                   int32(row.SortOrder),
		WorkCenterID:                row.WorkCenterID,
		OperationOrder:              string(row.OperationOrder),
		Priority:                    int32(row.Priority),
		DependsOn:                   strings.Join(row.DependsOn, ","),
		InputQuantity:               row.InputQuantity.String(),
		OutputQuantity:              row.OutputQuantity.String(),
		MaterialQuantity:            row.MaterialQuantity.String(),
		AccumulatedMaterialQuantity: row.AccumulatedMaterialQuantity.String(),
		EstimatedHours:              row.EstimatedHours.String(),
		AccumulatedHours:            row.AccumulatedHours.String(),
	}
	if row.CalculatedAt != nil {
		ms := row.CalculatedAt.UnixMilli()
		rec.CalculatedAt = &ms
	}
	return rec
}

// ParquetExporter implements usecase.ScheduleExporter on a storage connection.
type ParquetExporter struct {
	resolver    storage.StorageConnectionResolver
	storageRef  string
	baseDir     string
	compression parquet.CompressionCodec
	now         func() time.Time
}

var _ usecase.ScheduleExporter = (*ParquetExporter)(nil)

// NewParquetExporter creates an exporter writing under baseDir of the storageRef connection.
//
// Parameters:
//
//	resolver: Resolves storageRef to a storage connection on each export.
//	storageRef: The name of the storage connection in the configuration.
//	baseDir: The object prefix every schedule file is written under.
//	compression: "SNAPPY", "GZIP" or "NONE".
//
// Returns:
//
//	A `*ParquetExporter`, or an error if compression is unknown.
func NewParquetExporter(resolver storage.StorageConnectionResolver, storageRef, baseDir, compression string) (*ParquetExporter, error) {
	if storageRef == "" {
		return nil, fmt.Errorf("parquet exporter requires a storage connection name")
	}
	codec, err := getCompressionCodec(compression)
	if err != nil {
		return nil, err
	}
	return &ParquetExporter{
		resolver:    resolver,
		storageRef:  storageRef,
		baseDir:     baseDir,
		compression: codec,
		now:         time.Now,
	}, nil
}

// NewScheduleExporter builds the exporter from the infrastructure configuration.
func NewScheduleExporter(resolver storage.StorageConnectionResolver, cfg *config.Config) (*ParquetExporter, error) {
	infra := cfg.Sequencer.Infrastructure
	return NewParquetExporter(resolver, infra.ExportStorageRef, infra.ExportBaseDir, infra.ExportCompression)
}

// ObjectName returns the Hive-style object path of one export of a job.
func (e *ParquetExporter) ObjectName(companyID, jobID string, at time.Time) string {
	fileName := fmt.Sprintf("schedule_%s_%s.parquet", at.UTC().Format("20060102150405"), uuid.NewString()[:8])
	return path.Join(e.baseDir, "company="+companyID, "job="+jobID, fileName)
}

// Export writes rows as one Parquet file and uploads it.
func (e *ParquetExporter) Export(ctx context.Context, companyID, jobID string, rows []model.ScheduleRow) (string, error) {
	buf := new(bytes.Buffer)
	rowGroupSize := int64(len(rows))
	if rowGroupSize == 0 {
		rowGroupSize = 1
	}
	pw, err := writer.NewParquetWriterFromWriter(buf, new(ScheduleRecord), rowGroupSize)
	if err != nil {
		return "", exception.NewInternalError(moduleName, "failed to create parquet writer", err)
	}
	pw.CompressionType = e.compression
	for _, row := range rows {
		if err := pw.Write(toRecord(row)); err != nil {
			return "", exception.NewInternalError(moduleName, fmt.Sprintf("failed to write operation %s", row.OperationID), err)
		}
	}
	if err := writeStop(pw); err != nil {
		return "", exception.NewInternalError(moduleName, "failed to finalize parquet file", err)
	}

	conn, err := e.resolver.ResolveStorageConnection(ctx, e.storageRef)
	if err != nil {
		return "", exception.NewInternalError(moduleName, fmt.Sprintf("failed to resolve storage connection '%s'", e.storageRef), err)
	}
	objectName := e.ObjectName(companyID, jobID, e.now())
	if err := conn.Upload(ctx, "", objectName, buf, "application/x-parquet"); err != nil {
		return "", exception.NewInternalError(moduleName, fmt.Sprintf("failed to upload '%s'", objectName), err)
	}
	logger.Debugf("ParquetExporter: uploaded %d rows to '%s' on '%s'.", len(rows), objectName, e.storageRef)
	return objectName, nil
}

// writeStop finalizes the file. The parquet writer can panic on malformed input.
func writeStop(pw *writer.ParquetWriter) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parquet writer panicked during WriteStop: %v", r)
			logger.Errorf("ParquetExporter: recovered from panic during WriteStop: %v", r)
		}
	}()
	return pw.WriteStop()
}

// getCompressionCodec returns the Parquet compression codec from a string.
func getCompressionCodec(compressionType string) (parquet.CompressionCodec, error) {
	switch strings.ToUpper(compressionType) {
	case "SNAPPY":
		return parquet.CompressionCodec_SNAPPY, nil
	case "GZIP":
		return parquet.CompressionCodec_GZIP, nil
	case "NONE", "":
		return parquet.CompressionCodec_UNCOMPRESSED, nil
	default:
		return 0, fmt.Errorf("unsupported compression type: %s", compressionType)
	}
}
