package excel

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/example/lexiday/internal/streak"
	"github.com/example/lexiday/pkg/models"
)

const wordsSheet = "Learned words"

// ExportLearnedWords writes words to an xlsx file at path
func ExportLearnedWords(path string, words []models.LearnedWord) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", wordsSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	if err := f.SetSheetRow(wordsSheet, "A1", &[]interface{}{"Word", "Meaning", "Emoji", "Learned"}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, w := range words {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{w.Word, w.Meaning, w.Emoji, w.LearnedDate}
		if err := f.SetSheetRow(wordsSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

// ReadLearnedWords reads back a workbook written by ExportLearnedWords
func ReadLearnedWords(path string) ([]models.LearnedWord, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(wordsSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %w", err)
	}
	words := make([]models.LearnedWord, 0, len(rows))
	for i, row := range rows {
		if i == 0 || len(row) == 0 {
			continue
		}
		w := models.LearnedWord{Word: row[0]}
		if len(row) > 1 {
			w.Meaning = row[1]
		}
		if len(row) > 2 {
			w.Emoji = row[2]
		}
		if len(row) > 3 {
			w.LearnedDate = row[3]
		}
		words = append(words, w)
	}
	return words, nil
}

// Backuper saves a user's learned words before their account is deleted
type Backuper struct {
	Dir   string
	Clock streak.Clock
}

// Backup writes the words to <Dir>/<user>-<timestamp>.xlsx and returns the path
func (b *Backuper) Backup(ctx context.Context, userID string, words []models.LearnedWord) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	clock := b.Clock
	if clock == nil {
		clock = streak.SystemClock{}
	}
	name := fmt.Sprintf("%s-%s.xlsx", userID, clock.Now().UTC().Format("20060102-150405"))
	path := filepath.Join(b.Dir, name)
	if err := ExportLearnedWords(path, words); err != nil {
		return "", err
	}
	return path, nil
}
