package commands

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/vulntor/webprint/pkg/evidence"
	"github.com/vulntor/webprint/pkg/fingerprint"
)

// evidenceInput binds the flags that describe the page to analyse.
type evidenceInput struct {
	evidenceFile string
	htmlFile     string
	pageURL      string
	headers      []string
}

func (in *evidenceInput) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&in.evidenceFile, "evidence", "", "JSON evidence bundle ('-' for stdin)")
	cmd.Flags().StringVar(&in.htmlFile, "html", "", "Saved HTML page to analyse")
	cmd.Flags().StringVar(&in.pageURL, "url", "", "URL the page was fetched from")
	cmd.Flags().StringArrayVar(&in.headers, "header", nil, "Response header 'Name: value' (repeatable)")
}

// load builds the evidence from either an evidence bundle or a saved page.
func (in *evidenceInput) load(cmd *cobra.Command) (fingerprint.Evidence, error) {
	switch {
	case in.evidenceFile != "" && in.htmlFile != "":
		return fingerprint.Evidence{}, fingerprint.NewEvidenceError(errors.New("use either --evidence or --html, not both"))

	case in.evidenceFile != "":
		var (
			data []byte
			err  error
		)
		if in.evidenceFile == "-" {
			data, err = io.ReadAll(cmd.InOrStdin())
		} else {
			data, err = os.ReadFile(in.evidenceFile)
		}
		if err != nil {
			return fingerprint.Evidence{}, fmt.Errorf("read evidence: %w", err)
		}
		ev, err := fingerprint.ParseEvidence(data)
		if err != nil {
			return fingerprint.Evidence{}, err
		}
		if in.pageURL != "" {
			ev.URL = in.pageURL
		}
		return ev, nil

	case in.htmlFile != "":
		body, err := os.ReadFile(in.htmlFile)
		if err != nil {
			return fingerprint.Evidence{}, fmt.Errorf("read html: %w", err)
		}
		return evidence.FromHTML(in.pageURL, evidence.ParseHeaderLines(in.headers), body)

	case in.pageURL != "" || len(in.headers) > 0:
		ev := fingerprint.Evidence{URL: in.pageURL, Headers: evidence.ParseHeaderLines(in.headers)}
		if err := ev.Validate(); err != nil {
			return fingerprint.Evidence{}, err
		}
		return ev, nil

	default:
		return fingerprint.Evidence{}, fingerprint.NewEvidenceError(errors.New("provide --evidence, --html or --url"))
	}
}
