package explode

import (
	"errors"
	"fmt"
	"os"

	"github.com/meigma/gitodb/odb/loose"
	"github.com/meigma/gitodb/pack"
)

// Outcome summarizes an explosion.
type Outcome struct {
	// Processed counts objects written whose id was accepted, tolerated
	// tree mismatches included.
	Processed int64

	// Tolerated counts trees whose id changed through mode canonicalization.
	// It is a subset of Processed.
	Tolerated int64

	// Failures lists per-object failures recorded instead of aborting. Only
	// the most lenient safety check records failures.
	Failures []*Error

	// Traversal holds decoding statistics.
	Traversal pack.Outcome

	// IndexPath and DataPath are the files of the exploded pack.
	IndexPath string
	DataPath  string

	// Deleted reports whether both pack files were removed.
	Deleted bool
}

// Explode decodes every object of the pack at packPath, which may name the
// .idx file, the .pack file or their shared stem, and writes it through the
// configured output.
//
// Options are validated first, then the bundle is opened and the object
// directory checked, all before any object is decoded. A fatal failure during
// traversal returns the partial outcome together with the error; objects
// written until then are kept. With WithDeletePack, the index and then the
// data file are removed after a run without fatal errors; a removal failure
// returns the complete outcome with a KindDeletion error.
func Explode(packPath string, opts ...Option) (*Outcome, error) {
	cfg := newConfig(opts)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	logger := cfg.log()

	reportProgress(cfg.progress, StageOpening, packPath, 0, 0)
	bundle, err := pack.OpenBundle(packPath,
		pack.WithHashKind(cfg.hash),
		pack.WithMaxObjectSize(cfg.maxSize),
		pack.WithLogger(logger))
	if err != nil {
		return nil, &Error{Kind: KindBundleOpen, Path: packPath, Err: err}
	}

	storeOpts := append([]loose.Option{loose.WithLogger(logger)}, cfg.storeOpts...)
	out, err := NewOutputWriter(cfg.objectDir, storeOpts...)
	if err != nil {
		_ = bundle.Close() //nolint:errcheck // best-effort cleanup
		return nil, &Error{Kind: KindInaccessibleDestination, Path: cfg.objectDir, Err: err}
	}

	outcome := &Outcome{IndexPath: bundle.IndexPath(), DataPath: bundle.DataPath()}
	v := &visitor{
		out:      out,
		hash:     cfg.hash,
		packPath: outcome.DataPath,
		total:    int64(bundle.Len()),
		progress: cfg.progress,
		logger:   logger,
	}
	tctx := pack.Context{
		Algorithm:   pack.Lookup,
		ThreadLimit: cfg.threads,
		Check:       cfg.check,
	}
	logger.Debug("exploding pack",
		"pack", outcome.DataPath,
		"objects", bundle.Len(),
		"check", cfg.check.String(),
		"persist", out.IsPersist())

	traversal, traverseErr := bundle.Traverse(tctx, cfg.newCache, v.visit)
	if err := bundle.Close(); err != nil {
		logger.Debug("closing pack bundle", "pack", outcome.DataPath, "error", err)
	}

	outcome.Processed = v.processed.Load()
	outcome.Tolerated = v.tolerated.Load()
	outcome.Traversal = traversal
	for _, failure := range traversal.Failures {
		classified := classifyEntry(failure, outcome.DataPath)
		logger.Warn("object skipped", "offset", failure.Offset, "error", classified)
		outcome.Failures = append(outcome.Failures, classified)
	}

	if traverseErr != nil {
		return outcome, fmt.Errorf("explode: %s: some loose objects may have been created nonetheless: %w",
			outcome.DataPath, classifyFatal(traverseErr, outcome.DataPath))
	}

	if cfg.deletePack {
		if len(outcome.Failures) > 0 {
			logger.Warn("deleting pack with unrecoverable objects", "pack", outcome.DataPath, "failures", len(outcome.Failures))
		}
		if err := deletePack(outcome, cfg); err != nil {
			return outcome, err
		}
	}
	return outcome, nil
}

// deletePack removes the index and then the data file.
func deletePack(outcome *Outcome, cfg *config) error {
	for _, path := range []string{outcome.IndexPath, outcome.DataPath} {
		reportProgress(cfg.progress, StageDeleting, path, outcome.Processed, int64(outcome.Traversal.Entries))
		if err := os.Remove(path); err != nil {
			return &Error{Kind: KindDeletion, Path: path, Err: err}
		}
	}
	outcome.Deleted = true
	cfg.log().Info("removed pack files", "index", outcome.IndexPath, "pack", outcome.DataPath)
	return nil
}

// classifyEntry turns a per-entry traversal failure into an Error. Failures
// raised by the visitor already carry their context.
func classifyEntry(failure *pack.EntryError, dataPath string) *Error {
	var explodeErr *Error
	if errors.As(failure.Err, &explodeErr) {
		return explodeErr
	}
	return &Error{
		Kind:       KindDecode,
		Path:       dataPath,
		ObjectKind: failure.Kind,
		Expected:   failure.ID,
		Err:        failure,
	}
}

// classifyFatal turns the error that ended a traversal into an Error.
func classifyFatal(err error, dataPath string) *Error {
	var entryErr *pack.EntryError
	if errors.As(err, &entryErr) {
		return classifyEntry(entryErr, dataPath)
	}
	return &Error{Kind: KindDecode, Path: dataPath, Err: err}
}
