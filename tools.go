package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/lexiday/internal/database"
	"github.com/example/lexiday/internal/excel"
)

var (
	importFile  string
	importSheet string
	exportUser  string
	exportOut   string
)

func init() {
	importBankCmd.Flags().StringVar(&importFile, "file", "", "xlsx or csv file with word, definition, story, emoji, level columns")
	importBankCmd.Flags().StringVar(&importSheet, "sheet", "Sheet1", "sheet to read from an xlsx file")
	_ = importBankCmd.MarkFlagRequired("file")

	exportWordsCmd.Flags().StringVar(&exportUser, "user", "", "user id")
	exportWordsCmd.Flags().StringVar(&exportOut, "out", "", "output xlsx path")
	_ = exportWordsCmd.MarkFlagRequired("user")
	_ = exportWordsCmd.MarkFlagRequired("out")
}

// importBankCmd loads offline lessons
var importBankCmd = &cobra.Command{
	Use:   "import-bank",
	Short: "Import offline lessons into the lesson bank",
	Long: `Import offline lessons from an Excel or CSV file.

Examples:
  lexiday import-bank --file words.xlsx
  lexiday import-bank --file words.csv`,
	RunE: runImportBank,
}

// exportWordsCmd writes a user's learned words to a workbook
var exportWordsCmd = &cobra.Command{
	Use:   "export-words",
	Short: "Export a user's learned words to xlsx",
	RunE:  runExportWords,
}

func runImportBank(cmd *cobra.Command, args []string) error {
	_, log, db, err := bootstrap()
	if err != nil {
		return err
	}
	defer log.Sync()
	defer db.Close()

	cfg := excel.DefaultImportConfig()
	cfg.FilePath = importFile
	cfg.SheetName = importSheet

	res, err := excel.ImportBank(context.Background(), database.NewLessonBankRepository(db), cfg, time.Now())
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}
	cmd.Printf("Processed %d rows: %d created, %d updated, %d skipped\n", res.TotalProcessed, res.Created, res.Updated, res.Skipped)
	for _, e := range res.Errors {
		cmd.Println("  " + e)
	}
	return nil
}

func runExportWords(cmd *cobra.Command, args []string) error {
	_, log, db, err := bootstrap()
	if err != nil {
		return err
	}
	defer log.Sync()
	defer db.Close()

	words, err := database.NewLearnedWordRepository(db).ListByUser(context.Background(), exportUser)
	if err != nil {
		return err
	}
	if err := excel.ExportLearnedWords(exportOut, words); err != nil {
		return err
	}
	cmd.Printf("Exported %d words to %s\n", len(words), exportOut)
	return nil
}
