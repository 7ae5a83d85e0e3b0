// Package importer loads vocabulary items from spreadsheet exports into the
// item store. Excel workbooks are read with excelize; .csv files with
// encoding/csv.
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/phrazzld/kotoba-api/internal/domain"
	"github.com/phrazzld/kotoba-api/internal/platform/logger"
	"github.com/xuri/excelize/v2"
)

// DefaultBatchSize is the number of items written per UpsertMany call.
const DefaultBatchSize = 500

// itemNamespace seeds the name-based item ids.
var itemNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("kotoba-api/vocabulary-item"))

// ItemID returns the stable id of the item with the given level and written
// forms, so re-importing a file updates rows in place.
func ItemID(level, kanji, reading string) uuid.UUID {
	return uuid.NewSHA1(itemNamespace, []byte(level+"\x00"+kanji+"\x00"+reading))
}

// ItemUpserter is the write side of the item store.
type ItemUpserter interface {
	UpsertMany(ctx context.Context, items []*domain.VocabularyItem) error
}

// Config maps spreadsheet columns to item fields. Columns are letters ("A").
// An empty column letter means the field is absent from the file.
type Config struct {
	Sheet              string // empty means the first sheet
	SkipHeader         bool
	KanjiColumn        string
	ReadingColumn      string
	RomajiColumn       string
	MeaningColumn      string
	PartOfSpeechColumn string
	LevelColumn        string
	// Level, when set, tags every row and LevelColumn is ignored.
	Level     string
	BatchSize int
}

// DefaultConfig returns the column layout A..F = kanji, reading, romaji,
// meaning, part of speech, level, with a header row.
func DefaultConfig() Config {
	return Config{
		SkipHeader:         true,
		KanjiColumn:        "A",
		ReadingColumn:      "B",
		RomajiColumn:       "C",
		MeaningColumn:      "D",
		PartOfSpeechColumn: "E",
		LevelColumn:        "F",
		BatchSize:          DefaultBatchSize,
	}
}

// RowError describes a row that was skipped.
type RowError struct {
	Row int // 1-based, as shown by spreadsheet tools
	Err error
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

// Result summarizes an import.
type Result struct {
	Processed int
	Imported  int
	// Duplicates counts rows that repeated an earlier row's item; the later row wins.
	Duplicates int
	Errors     []RowError
}

// Importer reads files and writes their items.
type Importer struct {
	items  ItemUpserter
	logger *slog.Logger
}

// NewImporter creates an Importer. It panics if items is nil.
func NewImporter(items ItemUpserter, logger *slog.Logger) *Importer {
	if items == nil {
		panic("items cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{items: items, logger: logger.With(slog.String("component", "importer"))}
}

// ImportFile reads path and upserts every valid row. Rows that fail
// validation are reported in Result.Errors and do not stop the import.
func (im *Importer) ImportFile(ctx context.Context, path string, cfg Config) (*Result, error) {
	log := logger.FromContextOrDefault(ctx, im.logger)

	cols, err := cfg.columns()
	if err != nil {
		return nil, err
	}

	var rows [][]string
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		rows, err = readCSV(path)
	} else {
		rows, err = readWorkbook(path, cfg.Sheet)
	}
	if err != nil {
		return nil, err
	}

	res, items := parseRows(rows, cols, cfg)
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}
	for start := 0; start < len(items); start += batch {
		end := min(start+batch, len(items))
		if err := im.items.UpsertMany(ctx, items[start:end]); err != nil {
			return res, fmt.Errorf("failed to write items %d-%d: %w", start+1, end, err)
		}
		res.Imported = end
	}

	log.Info("vocabulary import finished",
		slog.String("path", path),
		slog.Int("processed", res.Processed),
		slog.Int("imported", res.Imported),
		slog.Int("duplicates", res.Duplicates),
		slog.Int("errors", len(res.Errors)))
	return res, nil
}

type columns struct {
	kanji, reading, romaji, meaning, pos, level int
}

func (c Config) columns() (columns, error) {
	var cols columns
	var err error
	resolve := func(name string, dst *int) {
		if err != nil {
			return
		}
		*dst = -1
		if name == "" {
			return
		}
		var n int
		n, err = excelize.ColumnNameToNumber(name)
		*dst = n - 1
	}
	resolve(c.KanjiColumn, &cols.kanji)
	resolve(c.ReadingColumn, &cols.reading)
	resolve(c.RomajiColumn, &cols.romaji)
	resolve(c.MeaningColumn, &cols.meaning)
	resolve(c.PartOfSpeechColumn, &cols.pos)
	resolve(c.LevelColumn, &cols.level)
	if err != nil {
		return cols, fmt.Errorf("invalid column: %w", err)
	}
	if cols.meaning < 0 || (cols.kanji < 0 && cols.reading < 0) {
		return cols, errors.New("meaning and at least one of kanji or reading columns are required")
	}
	if cols.level < 0 && c.Level == "" {
		return cols, errors.New("either a level column or a fixed level is required")
	}
	return cols, nil
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func parseRows(rows [][]string, cols columns, cfg Config) (*Result, []*domain.VocabularyItem) {
	res := &Result{}
	fixedLevel := domain.NormalizeLevelTag(cfg.Level)

	byID := make(map[uuid.UUID]int)
	var items []*domain.VocabularyItem
	for i, row := range rows {
		if i == 0 && cfg.SkipHeader {
			continue
		}
		if isBlank(row) {
			continue
		}
		res.Processed++

		level := fixedLevel
		if level == "" {
			level = domain.NormalizeLevelTag(cell(row, cols.level))
		}
		item := &domain.VocabularyItem{
			Kanji:        cell(row, cols.kanji),
			Reading:      cell(row, cols.reading),
			Romaji:       cell(row, cols.romaji),
			Meaning:      cell(row, cols.meaning),
			PartOfSpeech: cell(row, cols.pos),
			Level:        level,
		}
		item.ID = ItemID(item.Level, item.Kanji, item.Reading)
		if err := item.Validate(); err != nil {
			res.Errors = append(res.Errors, RowError{Row: i + 1, Err: err})
			continue
		}

		if at, dup := byID[item.ID]; dup {
			items[at] = item
			res.Duplicates++
			continue
		}
		byID[item.ID] = len(items)
		items = append(items, item)
	}
	return res, items
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var rows [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV: %w", err)
		}
		if len(rows) == 0 && len(rec) > 0 {
			rec[0] = strings.TrimPrefix(rec[0], "﻿")
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

func readWorkbook(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.New("workbook has no sheets")
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	return rows, nil
}
