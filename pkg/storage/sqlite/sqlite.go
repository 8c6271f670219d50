// Package sqlite mirrors published snapshots into a relational schema so
// SQL consumers (reporting tools, text-to-SQL services) can read KPIs
// without going through the HTTP API.
package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/keshavaimill/al-hatab-insights-main/pkg/frame"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/kpi"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/quality"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/storage"
)

// insertBatch bounds the rows per INSERT statement.
const insertBatch = 500

// Snapshot is one archived build.
type Snapshot struct {
	ID       string    `gorm:"type:varchar(64);primaryKey"`
	BuiltAt  time.Time `gorm:"index"`
	RowCount int
}

func (Snapshot) TableName() string { return "snapshots" }

// KPIRow is one KPI row with its dimensions as columns. Metrics live in
// KPIMetric, one row per value.
type KPIRow struct {
	ID         uint        `gorm:"primaryKey"`
	SnapshotID string      `gorm:"type:varchar(64);index:idx_kpi_rows_snapshot_level"`
	Level      string      `gorm:"type:varchar(32);index:idx_kpi_rows_snapshot_level"`
	Domain     string      `gorm:"type:varchar(16)"`
	RowKey     string      `gorm:"type:text"`
	FactoryID  string      `gorm:"type:varchar(64)"`
	LineID     string      `gorm:"type:varchar(64)"`
	DCID       string      `gorm:"column:dc_id;type:varchar(64)"`
	StoreID    string      `gorm:"type:varchar(64)"`
	SKUID      string      `gorm:"column:sku_id;type:varchar(64)"`
	Date       string      `gorm:"type:varchar(10)"`
	Hour       string      `gorm:"type:varchar(4)"`
	Metrics    []KPIMetric `gorm:"foreignKey:RowID;constraint:OnDelete:CASCADE"`
}

func (KPIRow) TableName() string { return "kpi_rows" }

// KPIMetric is one metric value. Null metrics are stored with a NULL value.
type KPIMetric struct {
	ID    uint     `gorm:"primaryKey"`
	RowID uint     `gorm:"index"`
	Name  string   `gorm:"type:varchar(64);index"`
	Value *float64 `gorm:"column:value"`
}

func (KPIMetric) TableName() string { return "kpi_metrics" }

// QualityReport is the quality report of one fact table.
type QualityReport struct {
	ID            uint   `gorm:"primaryKey"`
	SnapshotID    string `gorm:"type:varchar(64);index"`
	Name          string `gorm:"type:varchar(64)"`
	OriginalRows  int
	FinalRows     int
	RowsDropped   int
	MissingValues string `gorm:"type:text"`
	InvalidValues string `gorm:"type:text"`
	Score         float64
}

func (QualityReport) TableName() string { return "quality_reports" }

// Storage implements storage.Storage on SQLite via gorm.
type Storage struct {
	db *gorm.DB
}

// Config holds SQLite configuration
type Config struct {
	// DSN is a file path or ":memory:"
	DSN string
}

// New opens the database and migrates the schema.
func New(cfg Config) (*Storage, error) {
	db, err := gorm.Open(sqlite.Open(cfg.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// One connection: SQLite serializes writers, and every connection to
	// ":memory:" would open its own empty database.
	sqlDB.SetMaxOpenConns(1)

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return &Storage{db: db}, nil
}

// Migrate creates or updates the mirror tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Snapshot{}, &KPIRow{}, &KPIMetric{}, &QualityReport{}); err != nil {
		return fmt.Errorf("failed to migrate sqlite schema: %w", err)
	}
	return nil
}

// DB exposes the underlying handle for read-only SQL consumers.
func (s *Storage) DB() *gorm.DB {
	return s.db
}

// Save writes the snapshot in one transaction, replacing any snapshot with
// the same ID.
func (s *Storage) Save(ctx context.Context, rec storage.Record) error {
	rows := make([]KPIRow, len(rec.Rows))
	for i, r := range rec.Rows {
		rows[i] = toModel(rec.ID, r)
	}
	reports := make([]QualityReport, 0, len(rec.Reports))
	for _, r := range rec.Reports {
		m, err := reportModel(rec.ID, r)
		if err != nil {
			return err
		}
		reports = append(reports, m)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteSnapshots(tx, []string{rec.ID}); err != nil {
			return err
		}
		snap := Snapshot{ID: rec.ID, BuiltAt: rec.BuiltAt, RowCount: len(rec.Rows)}
		if err := tx.Create(&snap).Error; err != nil {
			return fmt.Errorf("failed to write snapshot: %w", err)
		}
		if len(rows) > 0 {
			if err := tx.CreateInBatches(rows, insertBatch).Error; err != nil {
				return fmt.Errorf("failed to write KPI rows: %w", err)
			}
		}
		if len(reports) > 0 {
			if err := tx.Create(&reports).Error; err != nil {
				return fmt.Errorf("failed to write quality reports: %w", err)
			}
		}
		return nil
	})
}

// Latest returns the newest snapshot and its quality reports.
func (s *Storage) Latest(ctx context.Context) (*storage.Record, error) {
	db := s.db.WithContext(ctx)

	var snap Snapshot
	err := db.Order("built_at DESC").First(&snap).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var models []QualityReport
	if err := db.Where("snapshot_id = ?", snap.ID).Order("id").Find(&models).Error; err != nil {
		return nil, err
	}

	out := &storage.Record{ID: snap.ID, BuiltAt: snap.BuiltAt}
	for _, m := range models {
		r, err := fromReportModel(m)
		if err != nil {
			return nil, err
		}
		out.Reports = append(out.Reports, r)
	}
	return out, nil
}

// Rows loads the rows of one snapshot. Level filters run in SQL; dimension
// filters run on the decoded rows.
func (s *Storage) Rows(ctx context.Context, id string, q storage.RowQuery) ([]kpi.Row, error) {
	db := s.db.WithContext(ctx)

	var count int64
	if err := db.Model(&Snapshot{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, storage.ErrNotFound
	}

	query := db.Preload("Metrics").Where("snapshot_id = ?", id)
	if len(q.Levels) > 0 {
		levels := make([]string, len(q.Levels))
		for i, l := range q.Levels {
			levels[i] = string(l)
		}
		query = query.Where("level IN ?", levels)
	}

	var models []KPIRow
	if err := query.Order("row_key").Find(&models).Error; err != nil {
		return nil, err
	}

	var out []kpi.Row
	for _, m := range models {
		r := fromModel(m)
		if !q.Matches(r) {
			continue
		}
		out = append(out, r)
		if q.Limit > 0 && len(out) >= q.Limit {
			break
		}
	}
	return out, nil
}

// Delete removes snapshots built before the given time.
func (s *Storage) Delete(ctx context.Context, before time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []string
		if err := tx.Model(&Snapshot{}).Where("built_at < ?", before).Pluck("id", &ids).Error; err != nil {
			return err
		}
		return deleteSnapshots(tx, ids)
	})
}

// Close closes the underlying connection pool.
func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Stats returns storage statistics
func (s *Storage) Stats(ctx context.Context) (*storage.Stats, error) {
	db := s.db.WithContext(ctx)

	var snaps []Snapshot
	if err := db.Order("built_at").Find(&snaps).Error; err != nil {
		return nil, err
	}

	stats := &storage.Stats{Snapshots: uint64(len(snaps))}
	for _, snap := range snaps {
		stats.Rows += uint64(snap.RowCount)
	}
	if len(snaps) > 0 {
		stats.Oldest = snaps[0].BuiltAt
		stats.Newest = snaps[len(snaps)-1].BuiltAt
	}

	var pageCount, pageSize int64
	if err := db.Raw("PRAGMA page_count").Scan(&pageCount).Error; err == nil {
		if err := db.Raw("PRAGMA page_size").Scan(&pageSize).Error; err == nil {
			stats.SizeBytes = uint64(pageCount * pageSize)
		}
	}
	return stats, nil
}

func deleteSnapshots(tx *gorm.DB, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	rowIDs := tx.Model(&KPIRow{}).Select("id").Where("snapshot_id IN ?", ids)
	if err := tx.Where("row_id IN (?)", rowIDs).Delete(&KPIMetric{}).Error; err != nil {
		return err
	}
	if err := tx.Where("snapshot_id IN ?", ids).Delete(&KPIRow{}).Error; err != nil {
		return err
	}
	if err := tx.Where("snapshot_id IN ?", ids).Delete(&QualityReport{}).Error; err != nil {
		return err
	}
	return tx.Where("id IN ?", ids).Delete(&Snapshot{}).Error
}

// dimFields maps dimension columns onto KPIRow fields.
var dimFields = map[string]func(*KPIRow) *string{
	kpi.ColFactory: func(m *KPIRow) *string { return &m.FactoryID },
	kpi.ColLine:    func(m *KPIRow) *string { return &m.LineID },
	kpi.ColDC:      func(m *KPIRow) *string { return &m.DCID },
	kpi.ColStore:   func(m *KPIRow) *string { return &m.StoreID },
	kpi.ColSKU:     func(m *KPIRow) *string { return &m.SKUID },
	kpi.ColDate:    func(m *KPIRow) *string { return &m.Date },
	kpi.ColHour:    func(m *KPIRow) *string { return &m.Hour },
}

func toModel(snapshotID string, r kpi.Row) KPIRow {
	m := KPIRow{
		SnapshotID: snapshotID,
		Level:      string(r.Level),
		Domain:     string(r.Level.Domain()),
		RowKey:     r.Key(),
	}
	for col, v := range r.Dims {
		if field, ok := dimFields[col]; ok {
			*field(&m) = v
		}
	}
	for name, n := range r.Metrics {
		metric := KPIMetric{Name: name}
		if n.Valid {
			v := n.V
			metric.Value = &v
		}
		m.Metrics = append(m.Metrics, metric)
	}
	return m
}

func fromModel(m KPIRow) kpi.Row {
	r := kpi.NewRow(kpi.Level(m.Level))
	for col, field := range dimFields {
		if v := *field(&m); v != "" {
			r.Dims[col] = v
		}
	}
	for _, metric := range m.Metrics {
		if metric.Value == nil {
			r.Metrics[metric.Name] = frame.Null
			continue
		}
		r.Metrics[metric.Name] = frame.Some(*metric.Value)
	}
	return r
}

func reportModel(snapshotID string, r quality.Report) (QualityReport, error) {
	missing, err := json.Marshal(r.Missing)
	if err != nil {
		return QualityReport{}, fmt.Errorf("failed to encode missing values: %w", err)
	}
	invalid, err := json.Marshal(r.Invalid)
	if err != nil {
		return QualityReport{}, fmt.Errorf("failed to encode invalid values: %w", err)
	}
	return QualityReport{
		SnapshotID:    snapshotID,
		Name:          r.Name,
		OriginalRows:  r.OriginalRows,
		FinalRows:     r.FinalRows,
		RowsDropped:   r.RowsDropped,
		MissingValues: string(missing),
		InvalidValues: string(invalid),
		Score:         r.Score,
	}, nil
}

func fromReportModel(m QualityReport) (quality.Report, error) {
	r := quality.Report{
		Name:         m.Name,
		OriginalRows: m.OriginalRows,
		FinalRows:    m.FinalRows,
		RowsDropped:  m.RowsDropped,
		Score:        m.Score,
	}
	if err := json.Unmarshal([]byte(m.MissingValues), &r.Missing); err != nil {
		return r, fmt.Errorf("failed to decode missing values: %w", err)
	}
	if err := json.Unmarshal([]byte(m.InvalidValues), &r.Invalid); err != nil {
		return r, fmt.Errorf("failed to decode invalid values: %w", err)
	}
	return r, nil
}
