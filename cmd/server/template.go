package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rpattn/projectanalysis/internal/export"
	"github.com/rpattn/projectanalysis/internal/logging"
	"github.com/rpattn/projectanalysis/internal/projects"
)

func newTemplateCommand() *cobra.Command {
	var (
		out   string
		sheet string
	)
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Write a blank xlsx template whose columns follow the project mapping",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := export.NewTemplate(sheet, projects.Mapping.Columns())
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()
			if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
				return fmt.Errorf("create template dir: %w", err)
			}
			if err := f.SaveAs(out); err != nil {
				return fmt.Errorf("save template: %w", err)
			}
			logging.Info().Str("path", out).Msg("[TEMPLATE] written")
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "templates/projects.xlsx", "output path")
	cmd.Flags().StringVar(&sheet, "sheet", "data", "name of the data sheet")
	return cmd
}
