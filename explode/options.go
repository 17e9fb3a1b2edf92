package explode

import (
	"log/slog"
	"strconv"

	"github.com/meigma/gitodb/object"
	"github.com/meigma/gitodb/odb/loose"
	"github.com/meigma/gitodb/pack"
)

// config holds the settings of one run. It is not modified once Explode starts.
type config struct {
	objectDir  string
	check      pack.SafetyCheck
	checkKey   *string
	threads    int
	maxSize    uint64
	deletePack bool
	hash       object.HashKind
	logger     *slog.Logger
	progress   ProgressFunc
	newCache   pack.CacheFactory
	storeOpts  []loose.Option
}

// Option configures Explode.
type Option func(*config)

// WithObjectDir writes objects into the loose object directory dir, which
// must already exist. Without it objects are only verified.
func WithObjectDir(dir string) Option {
	return func(c *config) {
		c.objectDir = dir
	}
}

// WithSafetyCheck sets the verification level (default pack.SafetyCheckAll).
func WithSafetyCheck(check pack.SafetyCheck) Option {
	return func(c *config) {
		c.check = check
		c.checkKey = nil
	}
}

// WithSafetyCheckKey sets the verification level by its configuration key,
// one of SafetyCheckKeys. An unknown key fails the run with KindConfig.
func WithSafetyCheckKey(key string) Option {
	return func(c *config) {
		c.checkKey = &key
	}
}

// WithThreadLimit caps the number of decoding workers. Zero uses all CPUs.
func WithThreadLimit(n int) Option {
	return func(c *config) {
		c.threads = n
	}
}

// WithMaxObjectSize fails the decoding of any object or delta larger than n
// bytes (default pack.DefaultMaxObjectSize). Zero removes the limit.
func WithMaxObjectSize(n uint64) Option {
	return func(c *config) {
		c.maxSize = n
	}
}

// WithDeletePack removes the index and data file after a run without fatal errors.
func WithDeletePack(enabled bool) Option {
	return func(c *config) {
		c.deletePack = enabled
	}
}

// WithHashKind sets the object hash function of the pack (default SHA1).
func WithHashKind(hash object.HashKind) Option {
	return func(c *config) {
		c.hash = hash
	}
}

// WithLogger sets the logger. Tolerated tree mismatches and removed pack
// files are reported at Info level. If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithProgress sets a callback to receive progress updates.
func WithProgress(fn ProgressFunc) Option {
	return func(c *config) {
		c.progress = fn
	}
}

// WithDecodeCacheFactory replaces the per-worker decode cache factory.
// The factory is invoked once per worker.
func WithDecodeCacheFactory(factory pack.CacheFactory) Option {
	return func(c *config) {
		c.newCache = factory
	}
}

// WithStoreOptions passes options to the loose object store.
func WithStoreOptions(opts ...loose.Option) Option {
	return func(c *config) {
		c.storeOpts = append(c.storeOpts, opts...)
	}
}

func newConfig(opts []Option) *config {
	c := &config{hash: object.SHA1, maxSize: pack.DefaultMaxObjectSize}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// validate resolves the safety key and rejects out-of-range values.
func (c *config) validate() error {
	if c.checkKey != nil {
		check, err := ParseSafetyCheck(*c.checkKey)
		if err != nil {
			return err
		}
		c.check = check
	}
	if !c.check.Valid() {
		return &Error{Kind: KindConfig, Key: c.check.String(), Err: pack.ErrInvalidSafetyCheck}
	}
	if c.threads < 0 {
		return &Error{Kind: KindConfig, Key: strconv.Itoa(c.threads)}
	}
	if c.hash.Size() == 0 {
		return &Error{Kind: KindConfig, Key: c.hash.String(), Err: object.ErrUnknownHash}
	}
	if c.newCache == nil {
		c.newCache = pack.DefaultCacheFactory()
	}
	return nil
}

// log returns the logger, falling back to a discard logger if nil.
func (c *config) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.logger
}
