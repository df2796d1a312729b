package export

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"time"

	"github.com/disintegration/imaging"

	"github.com/weiawesome/live-canvas/pkg/log"
	"github.com/weiawesome/live-canvas/pkg/storage"
)

// Source is a surface that can be exported.
type Source interface {
	EncodePNG(w io.Writer) error
	Image() (*image.RGBA, error)
}

// Snapshotter writes board snapshots to storage.
type Snapshotter struct {
	store   storage.Storage
	source  Source
	board   string
	withPDF bool
	expiry  time.Duration
	thumb   Thumbnail
}

// Thumbnail is a downscaled JPEG variant stored next to each snapshot.
// A zero Width or Height disables it.
type Thumbnail struct {
	Width   int
	Height  int
	Quality int
}

func (t Thumbnail) enabled() bool { return t.Width > 0 && t.Height > 0 }

func NewSnapshotter(store storage.Storage, source Source, board string, withPDF bool, expiry time.Duration) *Snapshotter {
	return &Snapshotter{
		store:   store,
		source:  source,
		board:   board,
		withPDF: withPDF,
		expiry:  expiry,
	}
}

// WithThumbnail enables a thumbnail variant fitted into t.Width x t.Height.
func (s *Snapshotter) WithThumbnail(t Thumbnail) *Snapshotter {
	if t.Quality <= 0 {
		t.Quality = 80
	}
	s.thumb = t
	return s
}

// Save writes a PNG snapshot, plus the PDF and thumbnail variants when
// enabled, and returns the stored keys.
func (s *Snapshotter) Save(ctx context.Context, at time.Time) ([]string, error) {
	var buf bytes.Buffer
	if err := s.source.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}

	pngKey := storage.SnapshotKey(s.board, at, "png")
	if err := s.store.Write(ctx, pngKey, bytes.NewReader(buf.Bytes()), int64(buf.Len()), "image/png"); err != nil {
		return nil, fmt.Errorf("store png snapshot: %w", err)
	}
	keys := []string{pngKey}

	if s.withPDF || s.thumb.enabled() {
		img, err := s.source.Image()
		if err != nil {
			return keys, fmt.Errorf("read surface: %w", err)
		}
		keys, err = s.saveVariants(ctx, at, img, keys)
		if err != nil {
			return keys, err
		}
	}

	l := log.Ctx(ctx)
	for _, key := range keys {
		url, err := s.store.GetURL(ctx, key, s.expiry)
		if err != nil {
			l.Warn().Err(err).Str("key", key).Msg("snapshot stored, url unavailable")
			continue
		}
		l.Info().Str(log.FieldBoard, s.board).Str("key", key).Str("url", url).Msg("snapshot stored")
	}
	return keys, nil
}

func (s *Snapshotter) saveVariants(ctx context.Context, at time.Time, img image.Image, keys []string) ([]string, error) {
	var buf bytes.Buffer

	if s.withPDF {
		if err := WritePDF(&buf, img, s.board); err != nil {
			return keys, err
		}
		pdfKey := storage.SnapshotKey(s.board, at, "pdf")
		if err := s.store.Write(ctx, pdfKey, bytes.NewReader(buf.Bytes()), int64(buf.Len()), "application/pdf"); err != nil {
			return keys, fmt.Errorf("store pdf snapshot: %w", err)
		}
		keys = append(keys, pdfKey)
	}

	if s.thumb.enabled() {
		buf.Reset()
		small := imaging.Fit(img, s.thumb.Width, s.thumb.Height, imaging.Lanczos)
		if err := imaging.Encode(&buf, small, imaging.JPEG, imaging.JPEGQuality(s.thumb.Quality)); err != nil {
			return keys, fmt.Errorf("encode thumbnail: %w", err)
		}
		thumbKey := storage.SnapshotKey(s.board, at, "thumb.jpg")
		if err := s.store.Write(ctx, thumbKey, bytes.NewReader(buf.Bytes()), int64(buf.Len()), "image/jpeg"); err != nil {
			return keys, fmt.Errorf("store thumbnail: %w", err)
		}
		keys = append(keys, thumbKey)
	}

	return keys, nil
}

// Run saves a snapshot every interval until ctx is done.
func (s *Snapshotter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if _, err := s.Save(ctx, now); err != nil {
				l := log.Ctx(ctx)
				l.Warn().Err(err).Msg("periodic snapshot failed")
			}
		}
	}
}
