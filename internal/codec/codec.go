package codec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"atfxcore/internal/blob"
	"atfxcore/internal/logging"
	"atfxcore/internal/metrics"
	"atfxcore/pkg/odserr"
)

// Segment families. Each family has its own naming sequence.
const (
	FamilyGeneral = "general"
	FamilyString  = "string"
	FamilyByteStr = "bytestr"
	FamilyFlags   = "flags"
)

// SegmentExt is the file extension of segment files.
const SegmentExt = ".btf"

// Codec reads and writes external components through a blob.Store. Reads
// are safe for concurrent use; writes to the same naming sequence are not.
type Codec struct {
	store   blob.Store
	base    string
	maxSize int64
	big     bool
	latin1  bool
	logger  logging.Logger
	metrics *metrics.Collector

	mu   sync.Mutex
	next map[string]int
}

// Option configures a Codec.
type Option func(*Codec)

// WithBaseName sets the prefix of segment names, usually the exchange file
// name without extension.
func WithBaseName(name string) Option { return func(c *Codec) { c.base = name } }

// WithMaxSegmentSize limits the size of each segment; 0 disables rollover.
func WithMaxSegmentSize(n int64) Option { return func(c *Codec) { c.maxSize = n } }

// WithBigEndian selects big endian type specs for written numbers and flags.
func WithBigEndian(big bool) Option { return func(c *Codec) { c.big = big } }

// WithLatin1Strings writes strings as dt_string (ISO 8859-1) instead of
// dt_string_utf8.
func WithLatin1Strings(on bool) Option { return func(c *Codec) { c.latin1 = on } }

// WithLogger sets the logger used for segment bookkeeping messages.
func WithLogger(l logging.Logger) Option { return func(c *Codec) { c.logger = l } }

// WithMetrics records I/O metrics on m.
func WithMetrics(m *metrics.Collector) Option { return func(c *Codec) { c.metrics = m } }

// New returns a codec over store.
func New(store blob.Store, opts ...Option) *Codec {
	c := &Codec{store: store, base: "data", next: make(map[string]int)}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.OrNoop(c.logger)
	return c
}

// Store returns the backing segment store.
func (c *Codec) Store() blob.Store { return c.store }

// SegmentName returns the n-th (1-based) segment name of a family.
func (c *Codec) SegmentName(family string, n int) string {
	if family == FamilyGeneral {
		return fmt.Sprintf("%s_%d%s", c.base, n, SegmentExt)
	}
	return fmt.Sprintf("%s_%s_%d%s", c.base, family, n, SegmentExt)
}

// pick scans the family from index from and returns the first segment that
// can take need more bytes. An empty segment always qualifies.
func (c *Codec) pick(ctx context.Context, family string, from int, need int64) (int, string, int64, error) {
	for n := from; ; n++ {
		name := c.SegmentName(family, n)
		info, err := c.store.Stat(ctx, name)
		if errors.Is(err, blob.ErrNotExist) {
			return n, name, 0, nil
		}
		if err != nil {
			return 0, "", 0, ioError("stat", name, err)
		}
		if c.maxSize <= 0 || info.Size == 0 || info.Size+need <= c.maxSize {
			return n, name, info.Size, nil
		}
		c.metrics.Rolled(family)
		c.logger.Debug("segment full, rolling over", "segment", name, "size", info.Size, "need", need, "max", c.maxSize)
	}
}

func (c *Codec) hint(family string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n, ok := c.next[family]; ok {
		return n
	}
	return 1
}

func (c *Codec) remember(family string, n int) {
	c.mu.Lock()
	c.next[family] = n
	c.mu.Unlock()
}

func (c *Codec) appendTo(ctx context.Context, family, name string, data []byte) (int64, error) {
	off, err := c.store.Append(ctx, name, data)
	if err != nil {
		return 0, ioError("append to", name, err)
	}
	c.metrics.Written(family, len(data))
	return off, nil
}

// readSpan reads exactly n bytes at off.
func (c *Codec) readSpan(ctx context.Context, name string, off int64, n int) ([]byte, error) {
	buf := make([]byte, n)
	if n == 0 {
		return buf, nil
	}
	got, err := c.store.ReadAt(ctx, name, buf, off)
	if got == n && (err == nil || errors.Is(err, io.EOF)) {
		return buf, nil
	}
	if err == nil {
		err = io.ErrUnexpectedEOF
	}
	return nil, ioError("read", name, err)
}

func ioError(op, name string, err error) error {
	switch {
	case errors.Is(err, blob.ErrNotExist):
		return odserr.Wrap(odserr.NotFound, err, "%s segment %s", op, name)
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return odserr.Wrap(odserr.UnknownError, err, "short read from segment %s", name)
	}
	return odserr.Wrap(odserr.UnknownError, err, "%s segment %s", op, name)
}
