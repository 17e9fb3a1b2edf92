package gitodb

import "github.com/meigma/gitodb/explode"

// Re-export progress types from the explode package.
type (
	// ProgressEvent represents a progress update during an explosion.
	ProgressEvent = explode.ProgressEvent

	// ProgressStage identifies the current phase of a run.
	ProgressStage = explode.ProgressStage

	// ProgressFunc receives progress updates.
	// Implementations must be safe for concurrent calls.
	ProgressFunc = explode.ProgressFunc
)

// Re-export progress stage constants.
const (
	// StageOpening indicates the pack bundle is being opened.
	StageOpening = explode.StageOpening

	// StageTraversing indicates objects are being decoded and written.
	StageTraversing = explode.StageTraversing

	// StageDeleting indicates the pack files are being removed.
	StageDeleting = explode.StageDeleting
)
