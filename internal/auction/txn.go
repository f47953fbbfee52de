package auction

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/alanyoungcy/batchauction/internal/domain"
	"github.com/alanyoungcy/batchauction/internal/kv"
	"github.com/ethereum/go-ethereum/common"
)

type pending struct {
	value   []byte
	deleted bool
}

// txn buffers the writes of one engine call. Reads see the call's own
// writes; nothing reaches the database until commit, which applies every
// write as a single batch.
type txn struct {
	ctx    context.Context
	db     kv.DB
	writes map[string]pending
	ops    []kv.BatchOperation
	notes  []domain.Notification
}

func newTxn(ctx context.Context, db kv.DB) *txn {
	return &txn{ctx: ctx, db: db, writes: make(map[string]pending)}
}

func (t *txn) get(k []byte) ([]byte, bool, error) {
	if p, ok := t.writes[string(k)]; ok {
		if p.deleted {
			return nil, false, nil
		}
		return p.value, true, nil
	}
	v, err := t.db.Read(t.ctx, k)
	if errors.Is(err, kv.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (t *txn) put(k, v []byte) {
	t.writes[string(k)] = pending{value: v}
	t.ops = append(t.ops, kv.BatchOperation{Type: kv.BatchPut, Key: k, Value: v})
}

func (t *txn) del(k []byte) {
	t.writes[string(k)] = pending{deleted: true}
	t.ops = append(t.ops, kv.BatchOperation{Type: kv.BatchDelete, Key: k})
}

func (t *txn) emit(n domain.Notification) { t.notes = append(t.notes, n) }

func (t *txn) commit() error {
	if len(t.ops) == 0 {
		return nil
	}
	if err := t.db.Batch(t.ctx, t.ops); err != nil {
		return fmt.Errorf("auction: commit: %w", err)
	}
	return nil
}

func (t *txn) nextSeq(k []byte) (uint64, error) {
	v, ok, err := t.get(k)
	if err != nil {
		return 0, err
	}
	var n uint64
	if ok {
		n = binary.BigEndian.Uint64(v)
	}
	n++
	t.put(k, be64(n))
	return n, nil
}

func (t *txn) auction(id uint64) (domain.Auction, error) {
	v, ok, err := t.get(auctionKey(id))
	if err != nil {
		return domain.Auction{}, err
	}
	if !ok {
		return domain.Auction{}, fmt.Errorf("auction %d: %w", id, domain.ErrNotFound)
	}
	return decodeAuction(v)
}

func (t *txn) putAuction(a *domain.Auction) error {
	v, err := encodeAuction(a)
	if err != nil {
		return err
	}
	t.put(auctionKey(a.ID), v)
	return nil
}

func (t *txn) order(auctionID, orderID uint64) (domain.Order, error) {
	v, ok, err := t.get(orderKey(auctionID, orderID))
	if err != nil {
		return domain.Order{}, err
	}
	if !ok {
		return domain.Order{}, fmt.Errorf("order %d/%d: %w", auctionID, orderID, domain.ErrNotFound)
	}
	return decodeOrder(auctionID, orderID, v)
}

func (t *txn) putOrder(o *domain.Order) error {
	v, err := encodeOrder(o)
	if err != nil {
		return err
	}
	t.put(orderKey(o.AuctionID, o.ID), v)
	return nil
}

// cursor returns the zero cursor for auctions that were never scanned.
func (t *txn) cursor(auctionID uint64) (domain.Cursor, error) {
	v, ok, err := t.get(cursorKey(auctionID))
	if err != nil || !ok {
		return domain.Cursor{}, err
	}
	return decodeCursor(v)
}

func (t *txn) putCursor(auctionID uint64, c *domain.Cursor) error {
	v, err := encodeCursor(c)
	if err != nil {
		return err
	}
	t.put(cursorKey(auctionID), v)
	return nil
}

func (t *txn) fees() (domain.FeeParameters, error) {
	v, ok, err := t.get(keyFees)
	if err != nil || !ok {
		return domain.FeeParameters{}, err
	}
	return decodeFees(v)
}

func (t *txn) putFees(f domain.FeeParameters) error {
	v, err := encodeFees(f)
	if err != nil {
		return err
	}
	t.put(keyFees, v)
	return nil
}

func (t *txn) assetInfo(addr common.Address) (domain.AssetInfo, error) {
	v, ok, err := t.get(assetKey(addr))
	if err != nil {
		return domain.AssetInfo{}, err
	}
	if !ok {
		return domain.AssetInfo{}, fmt.Errorf("asset %s: %w", addr.Hex(), domain.ErrUnknownAsset)
	}
	return decodeAsset(addr, v)
}
