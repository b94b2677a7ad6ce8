package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"stylegen/pkg/client"
)

const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

func validFormat(f string) error {
	switch f {
	case formatText, formatJSON, formatYAML:
		return nil
	}
	return fmt.Errorf("unknown output format %q (text, json, yaml)", f)
}

// render writes v as json or yaml. Text output is handled by the caller
// through the text func.
func render(w io.Writer, format string, v any, text func(io.Writer) error) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return text(w)
	}
}

func writeJobs(w io.Writer, jobs []client.Job) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tPROGRESS\tDONE\tFAILED\tNAME")
	for _, j := range jobs {
		fmt.Fprintf(tw, "%s\t%s\t%d%%\t%d/%d\t%d\t%s\n", j.ID, j.Status, j.Progress, j.CompletedCount, j.Total, j.FailedCount, j.Name)
	}
	return tw.Flush()
}

func writeImages(w io.Writer, images []client.Image) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tCONCEPT\tERROR")
	for _, img := range images {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", img.ID, img.Status, truncate(img.VisualConcept, 48), img.ErrorMessage)
	}
	return tw.Flush()
}

func progressLine(j client.Job) string {
	return fmt.Sprintf("%s %-9s %3d%% (%d/%d done, %d failed)", j.ID, j.Status, j.Progress, j.CompletedCount, j.Total, j.FailedCount)
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}
