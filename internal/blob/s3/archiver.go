package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alanyoungcy/batchauction/internal/domain"
)

// SnapshotSource renders a settled auction (header, clearing record and
// every order) as a JSON-encodable value.
type SnapshotSource interface {
	AuctionSnapshot(ctx context.Context, auctionID uint64) (any, error)
}

// archiveDoc is the document written for each archived auction.
type archiveDoc struct {
	AuctionID  uint64         `json:"auctionId"`
	ArchivedAt time.Time      `json:"archivedAt"`
	Snapshot   any            `json:"snapshot"`
	Events     []archiveEvent `json:"events,omitempty"`
}

type archiveEvent struct {
	ID        string         `json:"id"`
	Kind      string         `json:"kind"`
	OrderID   uint64         `json:"orderId,omitempty"`
	UserID    uint64         `json:"userId,omitempty"`
	Detail    map[string]any `json:"detail,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Archiver implements domain.Archiver. Archives are written once: an
// existing object is left alone.
type Archiver struct {
	writer  domain.BlobWriter
	reader  domain.BlobReader
	source  SnapshotSource
	journal domain.EventStore // optional
	now     func() time.Time
}

// NewArchiver creates an Archiver. journal may be nil.
func NewArchiver(writer domain.BlobWriter, reader domain.BlobReader, source SnapshotSource, journal domain.EventStore) *Archiver {
	return &Archiver{
		writer:  writer,
		reader:  reader,
		source:  source,
		journal: journal,
		now:     time.Now,
	}
}

// ArchivePath is the object path of an auction archive.
func ArchivePath(auctionID uint64) string {
	return fmt.Sprintf("archive/auctions/%d.json", auctionID)
}

// ArchiveAuction uploads the auction snapshot and its journal. It returns the
// object path whether or not an upload took place.
func (a *Archiver) ArchiveAuction(ctx context.Context, auctionID uint64) (string, error) {
	path := ArchivePath(auctionID)

	exists, err := a.reader.Exists(ctx, path)
	if err != nil {
		return "", fmt.Errorf("s3blob: archive auction %d: %w", auctionID, err)
	}
	if exists {
		return path, nil
	}

	snap, err := a.source.AuctionSnapshot(ctx, auctionID)
	if err != nil {
		return "", fmt.Errorf("s3blob: archive auction %d snapshot: %w", auctionID, err)
	}
	doc := archiveDoc{
		AuctionID:  auctionID,
		ArchivedAt: a.now().UTC(),
		Snapshot:   snap,
	}
	if a.journal != nil {
		events, err := a.journal.List(ctx, domain.EventQuery{AuctionID: auctionID})
		if err != nil {
			return "", fmt.Errorf("s3blob: archive auction %d journal: %w", auctionID, err)
		}
		for _, e := range events {
			doc.Events = append(doc.Events, archiveEvent{
				ID:        e.ID,
				Kind:      string(e.Kind),
				OrderID:   e.OrderID,
				UserID:    e.UserID,
				Detail:    e.Detail,
				CreatedAt: e.CreatedAt.UTC(),
			})
		}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return "", fmt.Errorf("s3blob: archive auction %d marshal: %w", auctionID, err)
	}

	if int64(buf.Len()) >= minPartSize {
		err = a.writer.PutMultipart(ctx, path, &buf, minPartSize)
	} else {
		err = a.writer.Put(ctx, path, &buf, "application/json")
	}
	if err != nil {
		return "", fmt.Errorf("s3blob: archive auction %d upload: %w", auctionID, err)
	}
	return path, nil
}
