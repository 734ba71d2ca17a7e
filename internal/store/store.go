// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// UpmixManager - 立体声升混批处理工具
//
// Package store keeps the batch, the selection and the run history in a
// sqlite database so they survive restarts.

package store

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ZSC714725/upmixmanager/internal/batch"
	"github.com/ZSC714725/upmixmanager/internal/catalog"
	"github.com/ZSC714725/upmixmanager/internal/logger"
)

var ErrNotFound = errors.New("run not found")

type batchEntry struct {
	ID       string `gorm:"primaryKey"`
	Position int    `gorm:"index"`
	Name     string
	Path     string
	Token    []byte
}

func (batchEntry) TableName() string { return "batch_entries" }

type settingsRow struct {
	ID          uint `gorm:"primaryKey"`
	OutputPath  string
	OutputToken []byte
	Format      string
	Quality     string
	UpdatedAt   time.Time
}

func (settingsRow) TableName() string { return "settings" }

type runRow struct {
	ID        string    `gorm:"primaryKey"`
	Started   time.Time `gorm:"index"`
	Finished  time.Time
	Outcome   string
	Format    string
	Quality   string
	Output    string
	Total     int
	Completed int
	Failed    int
	Cancelled int
	Error     string
	Results   []resultRow `gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE"`
}

func (runRow) TableName() string { return "runs" }

type resultRow struct {
	ID       uint   `gorm:"primaryKey"`
	RunID    string `gorm:"index"`
	Position int
	ItemID   string
	Name     string
	Status   string
	Output   string
	Error    string
}

func (resultRow) TableName() string { return "run_results" }

// Store implements batch.Journal on top of gorm
type Store struct {
	db     *gorm.DB
	logger logger.Logger
}

// Open opens or creates the database at path. ":memory:" gives a private
// in-memory database.
func Open(path string, log logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.Nop()
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// one connection: sqlite serializes writers and ":memory:" is per connection
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&batchEntry{}, &settingsRow{}, &runRow{}, &resultRow{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}

	log.Debug("store opened at %s", path)
	return &Store{db: db, logger: log}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveBatch replaces the stored batch.
func (s *Store) SaveBatch(entries []batch.Entry) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&batchEntry{}).Error; err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}
		rows := make([]batchEntry, len(entries))
		for i, e := range entries {
			rows[i] = batchEntry{ID: e.ID, Position: i, Name: e.Name, Path: e.Path, Token: e.Token}
		}
		return tx.Create(&rows).Error
	})
}

// SaveSettings stores the selection.
func (s *Store) SaveSettings(settings batch.Settings) error {
	row := settingsRow{
		ID:          1,
		OutputPath:  settings.OutputPath,
		OutputToken: settings.OutputToken,
		Format:      string(settings.Format),
		Quality:     string(settings.Quality),
	}
	return s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
}

// RecordRun appends a finished run with its per item results.
func (s *Store) RecordRun(run batch.RunRecord) error {
	row := runRow{
		ID:        run.ID,
		Started:   run.Started,
		Finished:  run.Finished,
		Outcome:   run.Outcome,
		Format:    string(run.Format),
		Quality:   string(run.Quality),
		Output:    run.Output,
		Total:     run.Total,
		Completed: run.Completed,
		Failed:    run.Failed,
		Cancelled: run.Cancelled,
		Error:     run.Error,
	}
	for i, r := range run.Results {
		row.Results = append(row.Results, resultRow{
			Position: i,
			ItemID:   r.ItemID,
			Name:     r.Name,
			Status:   string(r.Status),
			Output:   r.Output,
			Error:    r.Error,
		})
	}
	if err := s.db.Create(&row).Error; err != nil {
		return fmt.Errorf("record run %s: %w", run.ID, err)
	}
	s.logger.Debug("recorded run %s (%s)", run.ID, run.Outcome)
	return nil
}

// Load returns the stored batch in order and the stored selection.
func (s *Store) Load() ([]batch.Entry, batch.Settings, error) {
	var rows []batchEntry
	if err := s.db.Order("position").Find(&rows).Error; err != nil {
		return nil, batch.Settings{}, err
	}
	entries := make([]batch.Entry, len(rows))
	for i, r := range rows {
		entries[i] = batch.Entry{ID: r.ID, Name: r.Name, Path: r.Path, Token: r.Token}
	}

	var settings batch.Settings
	var row settingsRow
	err := s.db.Where("id = ?", 1).Limit(1).Find(&row).Error
	if err != nil {
		return nil, batch.Settings{}, err
	}
	if row.ID == 1 {
		settings = batch.Settings{
			OutputPath:  row.OutputPath,
			OutputToken: row.OutputToken,
			Format:      catalog.FormatID(row.Format),
			Quality:     catalog.QualityID(row.Quality),
		}
	}
	return entries, settings, nil
}

// Runs lists the most recent runs first. limit <= 0 means all.
func (s *Store) Runs(limit int) ([]batch.RunRecord, error) {
	q := s.db.Preload("Results", func(db *gorm.DB) *gorm.DB {
		return db.Order("position")
	}).Order("started desc")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var rows []runRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	runs := make([]batch.RunRecord, len(rows))
	for i, r := range rows {
		runs[i] = toRecord(r)
	}
	return runs, nil
}

// Run returns a single run.
func (s *Store) Run(id string) (batch.RunRecord, error) {
	var row runRow
	err := s.db.Preload("Results", func(db *gorm.DB) *gorm.DB {
		return db.Order("position")
	}).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return batch.RunRecord{}, ErrNotFound
	}
	if err != nil {
		return batch.RunRecord{}, err
	}
	return toRecord(row), nil
}

func toRecord(r runRow) batch.RunRecord {
	rec := batch.RunRecord{
		ID:        r.ID,
		Started:   r.Started,
		Finished:  r.Finished,
		Outcome:   r.Outcome,
		Format:    catalog.FormatID(r.Format),
		Quality:   catalog.QualityID(r.Quality),
		Output:    r.Output,
		Total:     r.Total,
		Completed: r.Completed,
		Failed:    r.Failed,
		Cancelled: r.Cancelled,
		Error:     r.Error,
		Results:   make([]batch.Result, len(r.Results)),
	}
	for i, res := range r.Results {
		rec.Results[i] = batch.Result{
			ItemID: res.ItemID,
			Name:   res.Name,
			Status: batch.Status(res.Status),
			Output: res.Output,
			Error:  res.Error,
		}
	}
	return rec
}
