package reporting

import (
	"fmt"
	"os"
	"path/filepath"

	"strategy-validation-lab/internal/domain"
)

// Output file names written by WriteFiles.
const (
	ReportFile  = "VALIDATION_REPORT.md"
	TrialsFile  = "TRIALS.csv"
	WindowsFile = "WALKFORWARD_WINDOWS.csv"
)

// WriteFiles writes the markdown report to dir, plus the trial ledger and the
// window table when present. It returns the written paths.
func WriteFiles(dir string, r *Report, trials []domain.TrialRecord) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	var written []string
	write := func(name, content string) error {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		written = append(written, path)
		return nil
	}

	if err := write(ReportFile, RenderMarkdown(r)); err != nil {
		return written, err
	}

	if len(trials) > 0 {
		trialsCSV, err := RenderTrialsCSV(trials)
		if err != nil {
			return written, err
		}
		if err := write(TrialsFile, trialsCSV); err != nil {
			return written, err
		}
	}

	if r.WalkForward != nil {
		windowsCSV, err := RenderWindowsCSV(r.WalkForward)
		if err != nil {
			return written, err
		}
		if err := write(WindowsFile, windowsCSV); err != nil {
			return written, err
		}
	}
	return written, nil
}
