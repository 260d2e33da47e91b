//go:generate mockgen -source=ui.go -destination=mocks/mock_ui.go -package=mocks

package cli

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"github.com/milndr/lodestone-server-manager/internal/format"
	"github.com/milndr/lodestone-server-manager/internal/ui"
)

const (
	// ProgressRefreshRate defines the refresh frequency of the download bar.
	ProgressRefreshRate = 200 * time.Millisecond
	// ProgressBarWidth defines the width in characters of the progress bar.
	ProgressBarWidth = 30
)

// Spinner abstracts a terminal spinner so the download display can be tested
// without a terminal.
type Spinner interface {
	// Start begins the spinner animation.
	Start()
	// Stop halts the spinner animation.
	Stop()
	// UpdateSuffix sets the text that is displayed after the spinner.
	UpdateSuffix(suffix string)
}

// realSpinner adapts *spinner.Spinner to Spinner.
type realSpinner struct {
	s *spinner.Spinner
}

func (rs *realSpinner) Start() { rs.s.Start() }

func (rs *realSpinner) Stop() { rs.s.Stop() }

func (rs *realSpinner) UpdateSuffix(suffix string) {
	rs.s.Lock()
	rs.s.Suffix = suffix
	rs.s.Unlock()
}

// SpinnerFactory builds the spinner writing to out.
type SpinnerFactory func(out io.Writer) Spinner

func newSpinner(out io.Writer) Spinner {
	s := spinner.New(spinner.CharSets[11], ProgressRefreshRate, spinner.WithWriter(out))
	return &realSpinner{s}
}

// downloadDisplay renders provider progress callbacks as a spinner suffix.
// Updates are throttled to ProgressRefreshRate.
type downloadDisplay struct {
	spinner  Spinner
	progress *format.TransferProgress
	label    string

	mu      sync.Mutex
	last    time.Time
	started bool
}

func newDownloadDisplay(s Spinner, label string) *downloadDisplay {
	return &downloadDisplay{spinner: s, progress: format.NewTransferProgress(), label: label}
}

// Update implements provider.ProgressFunc.
func (d *downloadDisplay) Update(done, total int64) {
	fraction, eta := d.progress.Update(done, total)

	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.started {
		d.spinner.Start()
		d.started = true
	}
	now := time.Now()
	if now.Sub(d.last) < ProgressRefreshRate && (total < 0 || done < total) {
		return
	}
	d.last = now
	d.spinner.UpdateSuffix(" " + d.suffix(fraction, eta, total))
}

func (d *downloadDisplay) suffix(fraction float64, eta time.Duration, total int64) string {
	if total < 0 {
		return fmt.Sprintf("%s %s", d.label, d.progress.Summary())
	}
	return fmt.Sprintf("%s %s %s", d.label,
		format.FormatProgressBarWithETA(fraction, eta, ProgressBarWidth), d.progress.Summary())
}

// Finish stops the spinner and prints the outcome line.
func (d *downloadDisplay) Finish(out io.Writer, err error) {
	d.mu.Lock()
	if d.started {
		d.spinner.Stop()
		d.started = false
	}
	d.mu.Unlock()

	if err != nil {
		fmt.Fprintf(out, "%s✗ %s failed%s\n", ui.ColorRed(), d.label, ui.ColorReset())
		return
	}
	fmt.Fprintf(out, "%s✓ %s%s (%s)\n", ui.ColorGreen(), d.label, ui.ColorReset(), d.progress.Summary())
}
