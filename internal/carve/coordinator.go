package carve

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

// Config carries the collaborators and knobs for a carving session. Filter
// and Progress may be nil; Sink must be set unless the session is created
// for scanning only.
type Config struct {
	Filter    Filter
	Sink      Sink
	Progress  ProgressObserver
	Catalogue []Signature
	ChunkSize int
	// StopAtMdat ends MP4/MOV carves at the first mdat box, matching older
	// carvers. Files whose moov atom trails the media data lose it.
	StopAtMdat bool
	Logger     *logrus.Logger
}

// Carver drives the scan -> extract -> filter -> sink loop over a single
// source. It owns the RandomReader for the session's lifetime; there is one
// scan cursor and extractors run to completion before the next hit is
// fetched.
type Carver struct {
	r   RandomReader
	cfg Config
	now func() time.Time
}

// New builds a carving session over r. The zero Config selects the default
// catalogue and chunk size.
func New(r RandomReader, cfg Config) *Carver {
	if cfg.Catalogue == nil {
		cfg.Catalogue = Catalogue
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	return &Carver{r: r, cfg: cfg, now: time.Now}
}

// synthName builds the output name for a carve: a UTC timestamp, the source
// offset as twelve hex digits and a six-digit sequence number, plus the
// format's extension.
func synthName(ts time.Time, offset int64, seq uint64, format Format) string {
	return fmt.Sprintf("carved_%s_%012x_%06d%s",
		ts.UTC().Format("20060102_150405"), offset, seq, format.Extension())
}

// Run executes the session until the source is exhausted or ctx is
// cancelled, returning the number of files the sink stored without error
// (with no sink, the number of carves the filter accepted). Carves come
// out in strictly ascending source offset and never overlap: after a
// successful carve the cursor skips past its end, after a failed one it
// moves a single byte past the magic so false positives are cheap.
func (c *Carver) Run(ctx context.Context) (uint64, error) {
	log := c.cfg.Logger

	sc := NewScanner(c.r, c.cfg.Catalogue, c.cfg.ChunkSize)
	sc.SetLogger(log)
	if c.cfg.Progress != nil {
		sc.SetProgress(c.cfg.Progress)
	}

	var (
		skipTo    int64
		seq       uint64
		recovered uint64
	)
	for {
		m, err := sc.Next(ctx)
		if err == io.EOF {
			return recovered, nil
		}
		if err != nil {
			// Cooperative cancellation; in-flight work is already done.
			return recovered, err
		}

		if m.Start < skipTo {
			sc.Resume(m.Hit + 1)
			continue
		}

		ext, err := extract(c.r, m.Sig, m.Start, c.cfg.StopAtMdat)
		if err != nil {
			log.Debugf("no %s container at offset %d: %v", m.Sig.Format, m.Start, err)
			sc.Resume(m.Hit + 1)
			continue
		}

		data := make([]byte, ext.Len())
		n, err := c.r.ReadAt(data, ext.Start)
		if err != nil && err != io.EOF {
			log.Warnf("carve payload read failed: %v", &ReadError{Offset: ext.Start, Err: err})
			sc.Resume(m.Hit + 1)
			continue
		}
		data = data[:n]

		name := synthName(c.now(), ext.Start, seq, ext.Format)
		if c.cfg.Filter == nil || c.cfg.Filter.Accept(name, int64(len(data))) {
			seq++
			if c.cfg.Sink == nil {
				// Scan-only session: count the find, persist nothing.
				recovered++
			} else if err := c.cfg.Sink.Emit(name, data); err != nil {
				log.Errorf("failed to persist %s: %v", name, err)
			} else {
				log.Infof("carved %s (%d bytes at offset %d)", name, len(data), ext.Start)
				recovered++
			}
		}

		skipTo = ext.End
		sc.Resume(ext.End)
		if err := ctx.Err(); err != nil {
			return recovered, err
		}
	}
}
