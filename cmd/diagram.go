package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/annexlab/cleanroom/internal/diagram"
	"github.com/annexlab/cleanroom/internal/progress"
)

var diagramCmd = &cobra.Command{
	Use:   "diagram",
	Short: "Inspect, validate and export HVAC diagrams",
}

var diagramListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the loaded diagrams",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cat, err := loadCatalog(cfg, cliLogger(cfg))
		if err != nil {
			return err
		}
		slugs := cat.Slugs()
		if len(slugs) == 0 {
			fmt.Printf("No diagrams found in %s.\n", cfg.Diagrams.Dir)
			return nil
		}
		for _, slug := range slugs {
			d, _ := cat.Get(slug)
			fmt.Printf("%-24s %s %s\n", slug, d.Title, faint(fmt.Sprintf("(%d hotspots)", len(d.Hotspots))))
		}
		return nil
	},
}

var (
	renderFormat string
	renderOut    string
	renderX      float64
	renderY      float64
	renderScale  float64
	renderActive string
)

var diagramRenderCmd = &cobra.Command{
	Use:   "render <slug>",
	Short: "Render one diagram view to SVG, PNG or PDF",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		f, err := diagram.ParseFormat(renderFormat)
		if err != nil {
			return err
		}
		cat, err := loadCatalog(cfg, cliLogger(cfg))
		if err != nil {
			return err
		}
		d, err := cat.Get(args[0])
		if err != nil {
			return err
		}

		view := diagram.View{X: renderX, Y: renderY, Scale: diagram.ClampScale(renderScale)}
		s := diagram.NewScene(d, view, cfg.Diagrams.Width, cfg.Diagrams.Height)
		if renderActive != "" {
			s = s.WithActive(renderActive)
		}

		out := renderOut
		if out == "" {
			out = d.Slug + "." + string(f)
		}
		if err := writeExport(cmd.Context(), diagram.NewExporter(nil), f, s, out); err != nil {
			return err
		}
		fmt.Printf("%s %s\n", success("✓"), out)
		return nil
	},
}

var (
	exportDir     string
	exportFormats []string
)

var diagramExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export every diagram at its default view",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		formats := make([]diagram.Format, 0, len(exportFormats))
		for _, s := range exportFormats {
			f, err := diagram.ParseFormat(s)
			if err != nil {
				return err
			}
			formats = append(formats, f)
		}
		cat, err := loadCatalog(cfg, cliLogger(cfg))
		if err != nil {
			return err
		}
		if err := os.MkdirAll(exportDir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", exportDir, err)
		}

		slugs := cat.Slugs()
		ex := diagram.NewExporter(nil)
		rep := progress.NewReporter("Exporting diagrams")
		rep.Start(len(slugs) * len(formats))
		defer rep.Finish()

		done := 0
		for _, slug := range slugs {
			d, _ := cat.Get(slug)
			s := diagram.NewScene(d, diagram.DefaultView(), cfg.Diagrams.Width, cfg.Diagrams.Height)
			for _, f := range formats {
				out := filepath.Join(exportDir, slug+"."+string(f))
				if err := writeExport(cmd.Context(), ex, f, s, out); err != nil {
					return err
				}
				done++
				rep.Update(done, out)
			}
		}
		return nil
	},
}

var diagramValidateCmd = &cobra.Command{
	Use:   "validate [files...]",
	Short: "Check diagram configs for parse errors and duplicate hotspot ids",
	RunE: func(cmd *cobra.Command, args []string) error {
		files := args
		if len(files) == 0 {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			matches, err := doublestar.Glob(os.DirFS(cfg.Diagrams.Dir), "**/*.{json,yaml,yml}")
			if err != nil {
				return err
			}
			for _, m := range matches {
				files = append(files, filepath.Join(cfg.Diagrams.Dir, m))
			}
		}

		bad := 0
		for _, path := range files {
			if err := validateDiagramFile(path); err != nil {
				fmt.Printf("%s %s: %v\n", failure("✗"), path, err)
				bad++
				continue
			}
			fmt.Printf("%s %s\n", success("✓"), path)
		}
		if bad > 0 {
			return fmt.Errorf("%d of %d diagram files invalid", bad, len(files))
		}
		return nil
	},
}

func validateDiagramFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	d, err := diagram.ParseConfig(path, data)
	if err != nil {
		return err
	}
	if issues := d.Issues(); len(issues) > 0 {
		return errors.Join(issues...)
	}
	return d.Validate()
}

// writeExport renders into memory first so a failed export leaves no
// partial file behind.
func writeExport(ctx context.Context, ex *diagram.Exporter, f diagram.Format, s *diagram.Scene, path string) error {
	var buf bytes.Buffer
	if err := ex.Export(ctx, f, s, &buf); err != nil {
		return fmt.Errorf("exporting %s: %w", path, err)
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

func init() {
	diagramRenderCmd.Flags().StringVarP(&renderFormat, "format", "f", "png", "output format: svg, png or pdf")
	diagramRenderCmd.Flags().StringVarP(&renderOut, "out", "o", "", "output file (default <slug>.<format>)")
	diagramRenderCmd.Flags().Float64Var(&renderX, "x", 0, "horizontal translation in pixels")
	diagramRenderCmd.Flags().Float64Var(&renderY, "y", 0, "vertical translation in pixels")
	diagramRenderCmd.Flags().Float64Var(&renderScale, "scale", 1, "zoom factor (0.4 to 4)")
	diagramRenderCmd.Flags().StringVar(&renderActive, "active", "", "hotspot id whose info panel is shown")

	diagramExportCmd.Flags().StringVarP(&exportDir, "dir", "d", "exports", "output directory")
	diagramExportCmd.Flags().StringSliceVar(&exportFormats, "formats", []string{"svg", "png", "pdf"}, "formats to export")

	diagramCmd.AddCommand(diagramListCmd, diagramRenderCmd, diagramExportCmd, diagramValidateCmd)
	rootCmd.AddCommand(diagramCmd)
}
