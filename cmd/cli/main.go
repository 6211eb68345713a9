package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"ddreport/adapters/excel"
	"ddreport/app"
	"ddreport/domain/cellref"
	"ddreport/domain/mapping"
	"ddreport/domain/run"
	"ddreport/internal"
	"ddreport/internal/config"
	"ddreport/internal/container"
	"ddreport/internal/docx"
	"ddreport/internal/errors"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var verbose bool

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:          "ddreport-cli",
		Short:        "Due-diligence report generator: fill templates from workbooks and append an AI conclusion",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log pipeline steps to stderr")

	rootCmd.AddCommand(
		newGenerateCmd(),
		newResolveCmd(),
		newMappingCmd(),
		newTemplateCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// exitCode separates configuration mistakes (2) from failed runs (1)
func exitCode(err error) int {
	if errors.HasCode(err, errors.CodeConfigInvalid) {
		return 2
	}
	return 1
}

func newLogger() (*zap.Logger, error) {
	level := zapcore.WarnLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	return internal.NewLogger(level, true)
}

func newGenerateCmd() *cobra.Command {
	var workbook, templatePath, mappingFile, outDir string
	var skipNarrative bool

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a report from one workbook",
		Long: `Fill the template with values from the workbook's active sheet, ask the
text-generation service for a risk assessment conclusion and append it.

Example: ddreport-cli generate --workbook survey.xlsx --template 模板.docx --out outputs`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()
			if templatePath != "" {
				cfg.Report.TemplatePath = templatePath
			}
			if mappingFile != "" {
				cfg.Report.MappingFile = mappingFile
			}
			if outDir != "" {
				cfg.Report.OutputDir = outDir
			}
			if err := cfg.Validate(!skipNarrative); err != nil {
				return err
			}
			return runGenerate(cmd.Context(), cfg, workbook, skipNarrative)
		},
	}

	cmd.Flags().StringVarP(&workbook, "workbook", "w", "", "Workbook to read (.xlsx or .xlsm)")
	cmd.Flags().StringVarP(&templatePath, "template", "t", "", "Template document (default $TEMPLATE_PATH)")
	cmd.Flags().StringVarP(&mappingFile, "mapping", "m", "", "YAML placeholder mapping (default built-in)")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Output directory (default $OUTPUT_DIR or outputs)")
	cmd.Flags().BoolVar(&skipNarrative, "skip-narrative", false, "Only fill the template; do not call the text-generation service")
	_ = cmd.MarkFlagRequired("workbook")

	return cmd
}

func runGenerate(ctx context.Context, cfg *config.Config, workbook string, skipNarrative bool) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	c, err := container.New(ctx, cfg, logger, container.Options{SkipNarrative: skipNarrative})
	if err != nil {
		return err
	}
	defer c.Close()

	fmt.Printf("📑 Generating report from %s\n", workbook)
	r := c.Pipeline.Generate(ctx, app.Request{WorkbookPath: workbook, WorkbookName: filepath.Base(workbook)})

	for _, m := range r.Messages {
		fmt.Printf("%s %s\n", levelIcon(m.Level), m.Text)
	}
	fmt.Printf("\nRun:      %s\n", r.ID)
	fmt.Printf("State:    %s\n", r.State)
	fmt.Printf("Duration: %v\n", r.Duration())
	if r.FilledPath != "" {
		fmt.Printf("Filled:   %s\n", r.FilledPath)
	}
	if r.FinalPath != "" {
		fmt.Printf("Final:    %s\n", r.FinalPath)
	}
	if r.Narrative != "" {
		fmt.Printf("\n--- AI生成结论 ---\n%s\n", r.Narrative)
	}

	if r.State == run.StateFailed {
		return fmt.Errorf("run failed at %s", r.FailedAt)
	}
	return nil
}

func levelIcon(l run.Level) string {
	switch l {
	case run.LevelSuccess:
		return "✅"
	case run.LevelWarning:
		return "⚠️ "
	case run.LevelError:
		return "❌"
	default:
		return "ℹ️ "
	}
}

func newResolveCmd() *cobra.Command {
	var workbook string
	var raw bool

	cmd := &cobra.Command{
		Use:   "resolve [cell...]",
		Short: "Resolve cell addresses to row/column pairs, optionally reading their values",
		Long: `Resolve cell addresses such as D2 or AA10 to 1-based row and column numbers.
With --workbook the value of each cell on the active sheet is printed too.

Example: ddreport-cli resolve D2 AA10 --workbook survey.xlsx`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var wb *excel.Workbook
			if workbook != "" {
				cfg := excel.DefaultExcelConfig()
				cfg.RawValues = raw
				var err error
				wb, err = excel.OpenWorkbook(workbook, cfg, nil)
				if err != nil {
					return err
				}
				defer wb.Close()
				fmt.Printf("Sheet: %s\n", wb.ActiveSheet())
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			header := "CELL\tROW\tCOLUMN\tLETTERS"
			if wb != nil {
				header += "\tVALUE"
			}
			fmt.Fprintln(w, header)
			for _, arg := range args {
				addr, err := cellref.Parse(arg)
				if err != nil {
					return err
				}
				line := fmt.Sprintf("%s\t%d\t%d\t%s", addr, addr.Row, addr.ColumnNumber(), cellref.ColumnLetters(addr.ColumnNumber()))
				if wb != nil {
					v, err := wb.CellValue(arg)
					if err != nil {
						return err
					}
					line += "\t" + v
				}
				fmt.Fprintln(w, line)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&workbook, "workbook", "w", "", "Read the cells from this workbook")
	cmd.Flags().BoolVar(&raw, "raw", false, "Print stored values instead of display-formatted ones")
	return cmd
}

func newMappingCmd() *cobra.Command {
	var mappingFile string

	cmd := &cobra.Command{
		Use:   "mapping",
		Short: "Print the effective placeholder mapping and fact cells",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if mappingFile == "" {
				mappingFile = os.Getenv("MAPPING_FILE")
			}
			cfg, err := mapping.Load(mappingFile)
			if err != nil {
				return err
			}

			source := "built-in"
			if mappingFile != "" {
				source = mappingFile
			}
			fmt.Printf("Mapping (%s), %d placeholders\n\n", source, len(cfg.Mapping))

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TOKEN\tCELL")
			for _, e := range cfg.Mapping {
				fmt.Fprintf(w, "%s\t%s\n", e.Token, e.Cell)
			}
			fmt.Fprintln(w)
			fmt.Fprintln(w, "FACT\tCELL")
			fmt.Fprintf(w, "organization\t%s\n", cfg.Facts.Organization)
			fmt.Fprintf(w, "responsible\t%s\n", cfg.Facts.Responsible)
			fmt.Fprintf(w, "start_date\t%s\n", cfg.Facts.StartDate)
			fmt.Fprintf(w, "end_date\t%s\n", cfg.Facts.EndDate)
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&mappingFile, "mapping", "m", "", "YAML placeholder mapping (default $MAPPING_FILE or built-in)")
	return cmd
}

func newTemplateCmd() *cobra.Command {
	var mappingFile string

	cmd := &cobra.Command{
		Use:   "template [output.docx]",
		Short: "Write a starter template containing every placeholder of the mapping",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := mapping.Load(mappingFile)
			if err != nil {
				return err
			}
			if err := writeStarterTemplate(args[0], cfg.Mapping); err != nil {
				return err
			}
			fmt.Printf("✅ Template with %d placeholders written to %s\n", len(cfg.Mapping), args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&mappingFile, "mapping", "m", "", "YAML placeholder mapping (default built-in)")
	return cmd
}

// writeStarterTemplate lays every token out in a two-column table under a
// title, so operators can see the mapping in Word and rearrange from there.
func writeStarterTemplate(path string, m mapping.Mapping) error {
	doc := docx.New()
	if _, err := doc.AddHeading("尽职调查报告", 1); err != nil {
		return err
	}
	doc.AddParagraph("本模板由 ddreport-cli 生成，占位符将被Excel对应单元格的内容替换。")

	rows := [][]string{{"单元格", "内容"}}
	for _, e := range m {
		rows = append(rows, []string{strings.ToUpper(e.Cell), e.Token})
	}
	doc.AddTable(rows)

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return doc.Save(path)
}
