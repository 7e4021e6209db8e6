package excel

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/example/lexiday/pkg/models"
)

// BankWriter stores imported bank entries
type BankWriter interface {
	Upsert(ctx context.Context, e *models.BankEntry, now time.Time) (bool, error)
}

// ImportConfig defines the import configuration
type ImportConfig struct {
	FilePath         string // Path to the Excel or CSV file
	WordColumn       string
	DefinitionColumn string
	StoryColumn      string
	EmojiColumn      string
	LevelColumn      string
	SheetName        string // Name of the sheet to import
	StartRow         int    // The row to start importing from (1-based index)
}

// DefaultImportConfig returns the default import configuration
func DefaultImportConfig() ImportConfig {
	return ImportConfig{
		WordColumn:       "A",
		DefinitionColumn: "B",
		StoryColumn:      "C",
		EmojiColumn:      "D",
		LevelColumn:      "E",
		SheetName:        "Sheet1",
		StartRow:         2, // skip header
	}
}

// ImportResult holds the result of an import operation
type ImportResult struct {
	TotalProcessed int      `json:"total_processed"`
	Created        int      `json:"created"`
	Updated        int      `json:"updated"`
	Skipped        int      `json:"skipped"`
	Errors         []string `json:"errors"`
}

var errSkipRow = errors.New("skipping row")

// ImportBank loads offline lessons from an Excel or CSV file
func ImportBank(ctx context.Context, bank BankWriter, config ImportConfig, now time.Time) (*ImportResult, error) {
	var (
		rows [][]string
		err  error
	)
	if strings.ToLower(filepath.Ext(config.FilePath)) == ".csv" {
		rows, err = readCSV(config.FilePath)
	} else {
		rows, err = readExcel(config.FilePath, config.SheetName)
	}
	if err != nil {
		return nil, err
	}

	result := &ImportResult{Errors: make([]string, 0)}
	for i, row := range rows {
		if i < config.StartRow-1 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.TotalProcessed++

		entry, err := entryFromRow(row, config)
		if errors.Is(err, errSkipRow) {
			result.Skipped++
			continue
		}
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", i+1, err))
			continue
		}

		created, err := bank.Upsert(ctx, entry, now)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", i+1, err))
			continue
		}
		if created {
			result.Created++
		} else {
			result.Updated++
		}
	}
	return result, nil
}

func readExcel(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %w", err)
	}
	return rows, nil
}

func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1 // Allow variable number of fields
	reader.LazyQuotes = true

	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading CSV: %w", err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func entryFromRow(row []string, config ImportConfig) (*models.BankEntry, error) {
	cell := func(column string) string {
		if column == "" {
			return ""
		}
		if idx := columnToIndex(column); idx < len(row) {
			return strings.TrimSpace(row[idx])
		}
		return ""
	}

	word := cleanWord(cell(config.WordColumn))
	definition := cell(config.DefinitionColumn)
	if word == "" && definition == "" {
		return nil, errSkipRow
	}
	if word == "" {
		return nil, fmt.Errorf("word cannot be empty")
	}
	if strings.ContainsAny(word, " \t") {
		return nil, fmt.Errorf("%q is not a single word", word)
	}
	if definition == "" {
		return nil, fmt.Errorf("definition cannot be empty")
	}

	return &models.BankEntry{
		Word:       strings.ToLower(word),
		Definition: definition,
		Story:      cell(config.StoryColumn),
		Emoji:      cell(config.EmojiColumn),
		Level:      models.ParseLevel(cell(config.LevelColumn)),
	}, nil
}

// cleanWord drops extra information in parentheses, e.g. "go (went, gone)"
func cleanWord(word string) string {
	if i := strings.Index(word, "("); i > 0 {
		return strings.TrimSpace(word[:i])
	}
	return strings.TrimSpace(word)
}

// columnToIndex converts an Excel column letter to a zero-based index
func columnToIndex(column string) int {
	column = strings.ToUpper(column)
	index := 0
	for i := 0; i < len(column); i++ {
		index = index*26 + int(column[i]-'A'+1)
	}
	return index - 1
}
