package format

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// maxETA caps estimates so a stalled transfer does not print absurd values.
const maxETA = 24 * time.Hour

// ProgressBar generates a textual progress bar of the given width.
//
// Parameters:
//   - progress: The normalized progress value (0.0 to 1.0), clamped.
//   - length: The total character width of the progress bar.
//
// Returns:
//   - string: A string representation of the progress bar.
func ProgressBar(progress float64, length int) string {
	progress = clamp(progress)
	count := int(progress * float64(length))
	var builder strings.Builder
	builder.Grow(length * 3)
	for i := 0; i < length; i++ {
		if i < count {
			builder.WriteRune('█')
		} else {
			builder.WriteRune('░')
		}
	}
	return builder.String()
}

// FormatProgressBarWithETA renders "[bar] 42.0% ETA: 12s".
func FormatProgressBarWithETA(progress float64, eta time.Duration, width int) string {
	return fmt.Sprintf("[%s] %5.1f%% ETA: %s", ProgressBar(progress, width), clamp(progress)*100, FormatETA(eta))
}

// TransferProgress tracks a byte transfer and estimates its remaining time
// from the observed average rate. It is safe for concurrent use.
type TransferProgress struct {
	mu      sync.Mutex
	start   time.Time
	now     func() time.Time
	done    int64
	total   int64
	updated bool
}

// NewTransferProgress starts tracking a transfer at the current time.
func NewTransferProgress() *TransferProgress {
	return newTransferProgress(time.Now)
}

func newTransferProgress(now func() time.Time) *TransferProgress {
	return &TransferProgress{start: now(), now: now, total: -1}
}

// Update records the bytes transferred so far and the expected total
// (-1 when unknown).
//
// Returns:
//   - float64: The completed fraction, or 0 when the total is unknown.
//   - time.Duration: The estimated remaining time, or 0 when not estimable.
func (p *TransferProgress) Update(done, total int64) (float64, time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done, p.total, p.updated = done, total, true
	return p.fractionLocked(), p.etaLocked()
}

// ETA returns the current remaining-time estimate.
func (p *TransferProgress) ETA() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.etaLocked()
}

// Summary renders "12.0 MiB / 40.0 MiB" or "12.0 MiB" when the total is unknown.
func (p *TransferProgress) Summary() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.total < 0 {
		return FormatBytes(p.done)
	}
	return FormatBytes(p.done) + " / " + FormatBytes(p.total)
}

func (p *TransferProgress) fractionLocked() float64 {
	if p.total <= 0 {
		return 0
	}
	return clamp(float64(p.done) / float64(p.total))
}

func (p *TransferProgress) etaLocked() time.Duration {
	if !p.updated || p.total <= 0 || p.done <= 0 {
		return 0
	}
	elapsed := p.now().Sub(p.start)
	if elapsed <= 0 {
		return 0
	}
	remaining := p.total - p.done
	if remaining <= 0 {
		return 0
	}
	rate := float64(p.done) / elapsed.Seconds()
	secs := float64(remaining) / rate
	if secs > maxETA.Seconds() {
		return maxETA
	}
	return time.Duration(secs * float64(time.Second))
}

func clamp(v float64) float64 {
	if v > 1.0 {
		return 1.0
	}
	if v < 0.0 {
		return 0.0
	}
	return v
}
