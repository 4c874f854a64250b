// pkg/archive/callbacks.go
package archive

// LogLevel classifies log callback lines.
type LogLevel int

const (
	LogDebug LogLevel = iota
	LogInfo
	LogWarning
	LogError
)

func (l LogLevel) String() string {
	switch l {
	case LogDebug:
		return "debug"
	case LogInfo:
		return "info"
	case LogWarning:
		return "warning"
	case LogError:
		return "error"
	default:
		return "unknown"
	}
}

// ProgressPhase says which long-running pass a progress report belongs to.
type ProgressPhase int

const (
	// ProgressArchive reports archive-level work such as scanning.
	ProgressArchive ProgressPhase = iota

	// ProgressExtraction reports decoded bytes against the total size of
	// the selected entries.
	ProgressExtraction
)

// FileChange classifies file change notifications.
type FileChange int

const (
	// FileChangeExtractionStart marks the moment an entry begins
	// decoding.
	FileChangeExtractionStart FileChange = iota
)

// LogCallback receives diagnostic lines from the session.
type LogCallback func(level LogLevel, message string)

// ProgressCallback receives cumulative progress. Returning false asks the
// session to stop the running extraction.
type ProgressCallback func(phase ProgressPhase, current, total uint64) bool

// FileChangeCallback fires as entries begin decoding.
type FileChangeCallback func(change FileChange, path string)

// PasswordCallback supplies credentials when the archive turns out to be
// encrypted. The first non-empty result is cached for the whole session,
// so the user is asked at most once.
type PasswordCallback func() string

// ErrorCallback receives a terminal description of an extraction failure.
type ErrorCallback func(message string)

// ExtractCallbacks bundles the per-extraction hooks. Nil fields are
// skipped.
type ExtractCallbacks struct {
	Progress   ProgressCallback
	FileChange FileChangeCallback
	Error      ErrorCallback
}
