// pkg/archive/progress.go
package archive

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// ProgressBarCallback creates a progress callback that renders an mpb bar
// for the extraction phase. name labels the bar, usually the archive
// filename. The returned finish function must be called once extraction is
// over, successful or not, so the renderer can shut down.
func ProgressBarCallback(name string) (ProgressCallback, func()) {
	progress := mpb.New(
		mpb.WithWidth(60),
		mpb.WithRefreshRate(100*time.Millisecond),
	)

	shortName := TruncateLeft(name, 30)
	var bar *mpb.Bar
	var once sync.Once

	callback := func(phase ProgressPhase, current, total uint64) bool {
		if phase != ProgressExtraction {
			return true
		}
		// nothing selected completes instantly, skip the bar
		if total == 0 {
			return true
		}
		once.Do(func() {
			bar = progress.AddBar(int64(total),
				mpb.PrependDecorators(
					decor.Name(shortName, decor.WC{C: decor.DindentRight | decor.DextraSpace, W: 32}),
				),
				mpb.AppendDecorators(
					decor.CountersKibiByte("% .1f / % .1f", decor.WC{W: 18}),
					decor.Percentage(decor.WC{W: 5}),
				),
				mpb.BarRemoveOnComplete(),
			)
		})
		bar.SetCurrent(int64(current))
		return true
	}

	finish := func() {
		if bar != nil && !bar.Completed() {
			bar.Abort(true)
		}
		progress.Wait()
	}
	return callback, finish
}

// FormatSize formats bytes into a human-readable string
func FormatSize(bytes uint64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
		TB = 1024 * GB
	)

	switch {
	case bytes >= TB:
		return fmt.Sprintf("%.2f TB", float64(bytes)/float64(TB))
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// TruncateLeft truncates a path from the left to fit maxLen, preserving
// the filename
func TruncateLeft(path string, maxLen int) string {
	if len(path) <= maxLen {
		return path
	}

	// Try to preserve at least the filename
	filename := filepath.Base(path)
	if len(filename) >= maxLen-3 {
		return "..." + filename[len(filename)-(maxLen-3):]
	}

	// Truncate from left with ellipsis
	return "..." + path[len(path)-(maxLen-3):]
}
