package explode

import (
	"log/slog"
	"sync/atomic"

	"github.com/meigma/gitodb/object"
	"github.com/meigma/gitodb/pack"
)

// visitor writes each decoded object and checks it kept its id.
type visitor struct {
	out      OutputWriter
	hash     object.HashKind
	packPath string
	total    int64
	progress ProgressFunc
	logger   *slog.Logger

	processed atomic.Int64
	tolerated atomic.Int64
}

// visit is called concurrently by traversal workers.
//
// The object is written before its id is compared, so a mismatching object
// stays stored under the id it actually hashes to.
func (v *visitor) visit(kind object.Kind, data []byte, entry pack.IndexEntry, _ pack.EntryStats) error {
	actual, err := v.out.WriteBuf(kind, data, v.hash)
	if err != nil {
		return &Error{Kind: KindObjectWrite, ObjectKind: kind, Expected: entry.ID, Err: err}
	}

	if actual != entry.ID {
		if kind != object.KindTree {
			return &Error{Kind: KindObjectEncodeMismatch, ObjectKind: kind, Expected: entry.ID, Actual: actual}
		}
		// Legacy modes 100664 and 100640 are rewritten to 100644.
		v.tolerated.Add(1)
		v.logger.Info("tree id changed by file mode canonicalization",
			"expected", entry.ID.String(),
			"actual", actual.String(),
			"pack", v.packPath)
	}

	done := v.processed.Add(1)
	reportProgress(v.progress, StageTraversing, v.packPath, done, v.total)
	return nil
}
