package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/Ancylx/FontSniffer/internal/search"
)

// renderFunc writes a finished session snapshot to w.
type renderFunc func(w io.Writer, snapshot search.Snapshot) error

// newRenderer maps a --format value to its renderer.
func newRenderer(format string) (renderFunc, error) {
	switch format {
	case "text":
		return renderText, nil
	case "json":
		return renderJSON, nil
	case "csv":
		return renderCSV, nil
	default:
		return nil, fmt.Errorf("unknown format %q (want text, json, or csv)", format)
	}
}

func renderText(w io.Writer, snapshot search.Snapshot) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tDOWNLOAD URL")
	for _, result := range snapshot.Results {
		fmt.Fprintf(tw, "%s\t%s\n", result.Name, result.DownloadURL)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	stats := snapshot.Stats
	fmt.Fprintf(w, "\n%d fonts matching %q (%s)\n", len(snapshot.Results), snapshot.Keyword, snapshot.Status)
	fmt.Fprintf(w, "pages: %d attempted, %d succeeded, %d failed, %d retried, %s elapsed\n",
		stats.Attempted, stats.Succeeded, stats.Failed, stats.Retried, stats.Elapsed.Round(10*time.Millisecond))
	return nil
}

func renderJSON(w io.Writer, snapshot search.Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snapshot)
}

func renderCSV(w io.Writer, snapshot search.Snapshot) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"name", "download_url", "source_page"}); err != nil {
		return err
	}
	for _, result := range snapshot.Results {
		if err := cw.Write([]string{result.Name, result.DownloadURL, result.SourcePage}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
