package explode

// ProgressEvent represents a progress update during an explosion.
type ProgressEvent struct {
	// Stage identifies the current phase of the run.
	Stage ProgressStage

	// Path is the file being read or removed, if applicable.
	Path string

	// ObjectsDone is the number of objects written so far.
	ObjectsDone int64

	// ObjectsTotal is the number of objects in the pack.
	ObjectsTotal int64
}

// ProgressStage identifies the current phase of a run.
type ProgressStage uint8

// Progress stages of an explosion.
const (
	// StageOpening indicates the pack bundle is being opened.
	StageOpening ProgressStage = iota

	// StageTraversing indicates objects are being decoded and written.
	StageTraversing

	// StageDeleting indicates the pack files are being removed.
	StageDeleting
)

// String returns the string representation of the stage.
func (s ProgressStage) String() string {
	switch s {
	case StageOpening:
		return "opening"
	case StageTraversing:
		return "traversing"
	case StageDeleting:
		return "deleting"
	default:
		return "unknown"
	}
}

// ProgressFunc receives progress updates.
// Implementations must be safe for concurrent calls.
type ProgressFunc func(ProgressEvent)

// reportProgress sends a progress event if a callback is configured.
func reportProgress(fn ProgressFunc, stage ProgressStage, path string, done, total int64) {
	if fn == nil {
		return
	}
	fn(ProgressEvent{
		Stage:        stage,
		Path:         path,
		ObjectsDone:  done,
		ObjectsTotal: total,
	})
}
