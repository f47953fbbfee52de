package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/batchauction/internal/domain"
)

type recordingArchiver struct {
	ids []uint64
	err error
}

func (a *recordingArchiver) ArchiveAuction(_ context.Context, id uint64) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	a.ids = append(a.ids, id)
	return "archive/auctions/x.json", nil
}

func TestKeeperSettlesEndedAuctions(t *testing.T) {
	f := newFixture(t)
	first := f.example()
	second := f.example()
	arch := &recordingArchiver{}
	k := NewKeeper(f.svc, arch, KeeperConfig{StepsPerCall: 1}, discardLogger())

	n, err := k.Tick(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "nothing has ended yet")

	f.clock.now = t0.Add(2 * time.Hour)
	n, err = k.Tick(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []uint64{first, second}, arch.ids)

	for _, id := range []uint64{first, second} {
		av, err := f.svc.Auction(f.ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.PhaseSettled, av.Phase)
		assert.Equal(t, "0.2", av.Clearing.Price)
	}

	n, err = k.Tick(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "settled auctions are not revisited")
}

func TestKeeperArchiveFailure(t *testing.T) {
	f := newFixture(t)
	id := f.example()
	boom := errors.New("bucket gone")
	arch := &recordingArchiver{err: boom}
	k := NewKeeper(f.svc, arch, KeeperConfig{}, discardLogger())

	f.clock.now = t0.Add(3 * time.Hour)
	n, err := k.Tick(f.ctx)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, n)

	av, err := f.svc.Auction(f.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseSettled, av.Phase, "settlement commits before archiving")

	arch.err = nil
	n, err = k.Tick(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, []uint64{id}, arch.ids, "archive is retried on the next tick")
}

func TestKeeperArchivesAuctionsSettledThroughService(t *testing.T) {
	f := newFixture(t)
	id := f.example()
	arch := &recordingArchiver{}
	k := NewKeeper(f.svc, arch, KeeperConfig{}, discardLogger())

	f.clock.now = t0.Add(3 * time.Hour)
	cur, err := f.svc.Precalculate(f.ctx, id, 100)
	require.NoError(t, err)
	require.True(t, cur.Found)
	_, err = f.svc.Settle(f.ctx, id)
	require.NoError(t, err)

	n, err := k.Tick(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, []uint64{id}, arch.ids)

	_, err = k.Tick(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint64{id}, arch.ids, "archived auctions are not archived again")
}

func TestKeeperRunStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	k := NewKeeper(f.svc, nil, KeeperConfig{Interval: time.Millisecond}, discardLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := k.Run(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
