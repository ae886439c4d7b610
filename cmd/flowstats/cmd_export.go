package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/spboyer/flowstats/internal/export"
	"github.com/spboyer/flowstats/internal/reporting"
	"github.com/spboyer/flowstats/internal/transcript"
)

const envStorageAccountURL = "AZURE_STORAGE_ACCOUNT_URL"

var (
	exportDir             string
	exportGzip            bool
	exportStamp           bool
	exportTranscriptsDir  string
	exportUploadAccount   string
	exportUploadContainer string
	exportUploadPrefix    string
)

// uploader copies finished files to remote storage.
type uploader interface {
	UploadFiles(ctx context.Context, files ...string) ([]string, error)
}

// newUploader is replaced in tests.
var newUploader = func(accountURL, container, prefix string) (uploader, error) {
	return export.NewBlobUploader(accountURL, container, prefix)
}

func newExportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Fetch transcripts and write export files",
		Long: `Run one fetch cycle and write the results to a directory:

  metrics.json          aggregated metrics per evaluation
  metrics.csv           the same metrics, one row per evaluation
  course_analysis.json  course rankings and every detected choice
  course_ranking.csv    course rankings
  project_dump.json     definitions, transcripts, results and the summary
  report.html           the rendered report

With --upload-container the files are also copied to Azure Blob Storage using
the default Azure credential chain.`,
		Args: cobra.NoArgs,
		RunE: exportCommandE,
	}

	cmd.Flags().StringVarP(&exportDir, "dir", "d", "", "Output directory (default: output.dir from .flowstats.yaml)")
	cmd.Flags().BoolVar(&exportGzip, "gzip", false, "Gzip every output file")
	cmd.Flags().BoolVar(&exportStamp, "stamp", false, "Append the fetch time to file names")
	cmd.Flags().StringVar(&exportTranscriptsDir, "transcripts-dir", "", "Also archive each transcript as a JSON file in this directory")
	cmd.Flags().StringVar(&exportUploadAccount, "upload-account", "", "Storage account URL (default: $"+envStorageAccountURL+")")
	cmd.Flags().StringVar(&exportUploadContainer, "upload-container", "", "Upload the exported files to this blob container")
	cmd.Flags().StringVar(&exportUploadPrefix, "upload-prefix", "", "Blob name prefix (default: <project>/<cycle>)")
	addCycleFlags(cmd)

	return cmd
}

func exportCommandE(cmd *cobra.Command, _ []string) error {
	run, err := runCycle(cmd)
	if err != nil {
		return err
	}

	dir := firstNonEmpty(exportDir, run.cfg.Output.Dir)
	name := func(base, ext string) string {
		if exportStamp {
			base += "_" + run.summary.FetchedAt.UTC().Format("20060102_150405")
		}
		if exportGzip {
			ext += ".gz"
		}
		return filepath.Join(dir, base+ext)
	}

	s := &run.summary
	outputs := []struct {
		path  string
		write func(io.Writer) error
	}{
		{name("metrics", ".json"), func(w io.Writer) error {
			return export.WriteMetrics(w, s.Metrics)
		}},
		{name("metrics", ".csv"), func(w io.Writer) error {
			return export.WriteMetricsCSV(w, s.OrderedMetrics())
		}},
		{name("course_analysis", ".json"), func(w io.Writer) error {
			return export.WriteJSON(w, export.NewCourseAnalysisDocument(s))
		}},
		{name("course_ranking", ".csv"), func(w io.Writer) error {
			return export.WriteCourseRanking(w, s.Courses.Rankings)
		}},
		{name("project_dump", ".json"), func(w io.Writer) error {
			return export.WriteJSON(w, export.NewProjectDump(run.dataset, s))
		}},
		{name("report", ".html"), func(w io.Writer) error {
			data, err := reporting.RenderHTML(s)
			if err != nil {
				return err
			}
			_, err = w.Write(data)
			return err
		}},
	}

	out := cmd.OutOrStdout()
	written := make([]string, 0, len(outputs))
	for _, o := range outputs {
		if err := export.WriteFile(o.path, o.write); err != nil {
			return err
		}
		written = append(written, o.path)
		fmt.Fprintf(out, "✓ %s\n", o.path) //nolint:errcheck
	}

	if exportTranscriptsDir != "" {
		paths, err := transcript.WriteAll(exportTranscriptsDir, run.dataset)
		if err != nil {
			return fmt.Errorf("archiving transcripts: %w", err)
		}
		printer.Fprintf(out, "✓ %d transcripts archived in %s\n", len(paths), exportTranscriptsDir)
	}

	if exportUploadContainer != "" {
		account := firstNonEmpty(exportUploadAccount, os.Getenv(envStorageAccountURL))
		prefix := exportUploadPrefix
		if prefix == "" {
			prefix = s.ProjectID + "/" + s.CycleID
		}
		up, err := newUploader(account, exportUploadContainer, prefix)
		if err != nil {
			return err
		}
		blobs, err := up.UploadFiles(cmd.Context(), written...)
		if err != nil {
			return err
		}
		for _, b := range blobs {
			fmt.Fprintf(out, "↑ %s/%s\n", exportUploadContainer, b) //nolint:errcheck
		}
	}

	return run.strictError()
}
