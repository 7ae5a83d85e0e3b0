package domain

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestVocabularyItemValidate(t *testing.T) {
	t.Parallel()

	base := func() *VocabularyItem {
		return &VocabularyItem{
			ID:      uuid.New(),
			Kanji:   "水",
			Reading: "みず",
			Romaji:  "mizu",
			Meaning: "water",
			Level:   "N5",
		}
	}

	testCases := []struct {
		name    string
		mutate  func(v *VocabularyItem)
		wantErr error
	}{
		{name: "valid", mutate: func(v *VocabularyItem) {}},
		{name: "kana only", mutate: func(v *VocabularyItem) { v.Kanji = "" }},
		{name: "nil id", mutate: func(v *VocabularyItem) { v.ID = uuid.Nil }, wantErr: ErrItemIDEmpty},
		{name: "no written form", mutate: func(v *VocabularyItem) { v.Kanji = ""; v.Reading = " " }, wantErr: ErrItemWrittenFormEmpty},
		{name: "no meaning", mutate: func(v *VocabularyItem) { v.Meaning = "" }, wantErr: ErrItemMeaningEmpty},
		{name: "bad level", mutate: func(v *VocabularyItem) { v.Level = "N6" }, wantErr: ErrInvalidLevelTag},
		{name: "lowercase level", mutate: func(v *VocabularyItem) { v.Level = "n5" }, wantErr: ErrInvalidLevelTag},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			v := base()
			tc.mutate(v)
			err := v.Validate()
			if tc.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tc.wantErr), "got %v", err)
		})
	}
}

func TestVocabularyItemTraceText(t *testing.T) {
	t.Parallel()

	item := VocabularyItem{Kanji: "食べる", Reading: "たべる"}
	assert.Equal(t, "食べる", item.TraceText(WritingModeKanji))
	assert.Equal(t, "たべる", item.TraceText(WritingModeReading))
	assert.Equal(t, "食べる", item.DisplayForm())

	kanaOnly := VocabularyItem{Reading: "これ"}
	assert.Equal(t, "これ", kanaOnly.TraceText(WritingModeKanji))
	assert.Equal(t, "これ", kanaOnly.DisplayForm())
}

func TestLevelTags(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "N4", NormalizeLevelTag(" n4 "))
	for _, level := range []string{"N1", "N2", "N3", "N4", "N5"} {
		assert.True(t, IsValidLevelTag(level), level)
	}
	for _, level := range []string{"", "N", "N0", "N6", "A1", "N10"} {
		assert.False(t, IsValidLevelTag(level), level)
	}
	assert.True(t, WritingModeKanji.IsValid())
	assert.False(t, WritingMode("romaji").IsValid())
}
