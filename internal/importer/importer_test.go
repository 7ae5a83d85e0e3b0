package importer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/phrazzld/kotoba-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type fakeUpserter struct {
	batches [][]*domain.VocabularyItem
	err     error
}

func (f *fakeUpserter) UpsertMany(_ context.Context, items []*domain.VocabularyItem) error {
	if f.err != nil {
		return f.err
	}
	f.batches = append(f.batches, items)
	return nil
}

func (f *fakeUpserter) all() []*domain.VocabularyItem {
	var out []*domain.VocabularyItem
	for _, b := range f.batches {
		out = append(out, b...)
	}
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeWorkbook(t *testing.T, sheet string, rows [][]any) string {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if sheet != "Sheet1" {
		_, err := f.NewSheet(sheet)
		require.NoError(t, err)
	}
	for i, row := range rows {
		cellRef, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cellRef, &row))
	}
	path := filepath.Join(t.TempDir(), "vocab.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vocab.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestNewImporterPanicsOnNilStore(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() { NewImporter(nil, nil) })
}

func TestImportWorkbook(t *testing.T) {
	t.Parallel()

	path := writeWorkbook(t, "Sheet1", [][]any{
		{"Kanji", "Reading", "Romaji", "Meaning", "POS", "Level"},
		{"水", "みず", "mizu", "water", "noun", "N5"},
		{"", "これ", "kore", "this", "pronoun", "n5"},
		{"食べる", "たべる", "taberu", "to eat", "verb", "N5"},
	})
	up := &fakeUpserter{}
	res, err := NewImporter(up, discardLogger()).ImportFile(context.Background(), path, DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, 3, res.Processed)
	assert.Equal(t, 3, res.Imported)
	assert.Empty(t, res.Errors)

	items := up.all()
	require.Len(t, items, 3)
	assert.Equal(t, "水", items[0].Kanji)
	assert.Equal(t, "water", items[0].Meaning)
	assert.Equal(t, "noun", items[0].PartOfSpeech)
	assert.Equal(t, "N5", items[1].Level)
	assert.Equal(t, ItemID("N5", "水", "みず"), items[0].ID)
}

func TestImportNamedSheetAndFixedLevel(t *testing.T) {
	t.Parallel()

	path := writeWorkbook(t, "Words", [][]any{
		{"猫", "ねこ", "neko", "cat"},
	})
	cfg := DefaultConfig()
	cfg.SkipHeader = false
	cfg.LevelColumn = ""
	cfg.PartOfSpeechColumn = ""
	cfg.Level = "N4"
	cfg.Sheet = "Words"

	up := &fakeUpserter{}
	res, err := NewImporter(up, discardLogger()).ImportFile(context.Background(), path, cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Imported)
	require.Len(t, up.all(), 1)
	assert.Equal(t, "N4", up.all()[0].Level)
}

func TestImportCSVReportsInvalidRows(t *testing.T) {
	t.Parallel()

	path := writeCSV(t, "kanji,reading,romaji,meaning,pos,level\n"+
		"水,みず,mizu,water,noun,N5\n"+
		",,,nothing,noun,N5\n"+
		"火,ひ,hi,,noun,N5\n"+
		"山,やま,yama,mountain,noun,N9\n"+
		"\n"+
		"木,き,ki,tree,noun,N5\n")

	up := &fakeUpserter{}
	res, err := NewImporter(up, discardLogger()).ImportFile(context.Background(), path, DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, 5, res.Processed)
	assert.Equal(t, 2, res.Imported)
	require.Len(t, res.Errors, 3)
	assert.Equal(t, 3, res.Errors[0].Row)
	assert.ErrorIs(t, res.Errors[0].Err, domain.ErrItemWrittenFormEmpty)
	assert.ErrorIs(t, res.Errors[1].Err, domain.ErrItemMeaningEmpty)
	assert.ErrorIs(t, res.Errors[2].Err, domain.ErrInvalidLevelTag)
	assert.Contains(t, res.Errors[2].Error(), "row 5")
}

func TestImportDuplicateRowsLaterWins(t *testing.T) {
	t.Parallel()

	path := writeCSV(t, "k,r,ro,m,p,l\n"+
		"水,みず,mizu,water,noun,N5\n"+
		"水,みず,mizu,water (drink),noun,N5\n")

	up := &fakeUpserter{}
	res, err := NewImporter(up, discardLogger()).ImportFile(context.Background(), path, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Duplicates)
	assert.Equal(t, 1, res.Imported)
	assert.Equal(t, "water (drink)", up.all()[0].Meaning)
}

func TestImportBatches(t *testing.T) {
	t.Parallel()

	path := writeCSV(t, "k,r,ro,m,p,l\n"+
		"一,いち,ichi,one,numeral,N5\n"+
		"二,に,ni,two,numeral,N5\n"+
		"三,さん,san,three,numeral,N5\n")
	cfg := DefaultConfig()
	cfg.BatchSize = 2

	up := &fakeUpserter{}
	res, err := NewImporter(up, discardLogger()).ImportFile(context.Background(), path, cfg)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Imported)
	require.Len(t, up.batches, 2)
	assert.Len(t, up.batches[0], 2)
	assert.Len(t, up.batches[1], 1)
}

func TestImportStoreFailure(t *testing.T) {
	t.Parallel()

	path := writeCSV(t, "k,r,ro,m,p,l\n水,みず,mizu,water,noun,N5\n")
	boom := errors.New("boom")
	res, err := NewImporter(&fakeUpserter{err: boom}, discardLogger()).
		ImportFile(context.Background(), path, DefaultConfig())
	require.ErrorIs(t, err, boom)
	require.NotNil(t, res)
	assert.Equal(t, 0, res.Imported)
}

func TestImportConfigErrors(t *testing.T) {
	t.Parallel()

	path := writeCSV(t, "k\n")
	im := NewImporter(&fakeUpserter{}, discardLogger())

	cfg := DefaultConfig()
	cfg.KanjiColumn = "1"
	_, err := im.ImportFile(context.Background(), path, cfg)
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.MeaningColumn = ""
	_, err = im.ImportFile(context.Background(), path, cfg)
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.LevelColumn = ""
	_, err = im.ImportFile(context.Background(), path, cfg)
	assert.Error(t, err)
}

func TestImportMissingFile(t *testing.T) {
	t.Parallel()

	im := NewImporter(&fakeUpserter{}, discardLogger())
	_, err := im.ImportFile(context.Background(), filepath.Join(t.TempDir(), "nope.xlsx"), DefaultConfig())
	assert.Error(t, err)
	_, err = im.ImportFile(context.Background(), filepath.Join(t.TempDir(), "nope.csv"), DefaultConfig())
	assert.Error(t, err)
}

func TestItemIDIsStable(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ItemID("N5", "水", "みず"), ItemID("N5", "水", "みず"))
	assert.NotEqual(t, ItemID("N5", "水", "みず"), ItemID("N4", "水", "みず"))
	assert.NotEqual(t, ItemID("N5", "水", "みず"), ItemID("N5", "水", "すい"))
}
