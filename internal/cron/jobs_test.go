package cron

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lostfound-api/internal/dto"
)

type flaggerStub struct{ flagged int }

func (f flaggerStub) FlagEligible(ctx context.Context) (int, error) { return f.flagged, nil }

type archiverStub struct {
	cutoff  time.Time
	expired int
}

func (a *archiverStub) ArchiveOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	a.cutoff = cutoff
	return 7, nil
}

func (a *archiverStub) ArchiveExpired(ctx context.Context) (*dto.ArchiveResult, error) {
	a.expired++
	return &dto.ArchiveResult{Archived: 5}, nil
}

type relayerStub struct{}

func (relayerStub) Relay(ctx context.Context) (int, error) { return 2, nil }

func TestJobsDelegate(t *testing.T) {
	ctx := context.Background()

	flag := NewDonationAutoFlagJob(flaggerStub{flagged: 4})
	assert.Equal(t, DonationAutoFlagJobName, flag.Name())
	n, err := flag.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	relay := NewNotificationRelayJob(relayerStub{})
	assert.Equal(t, NotificationRelayJobName, relay.Name())
	n, err = relay.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestActivityArchiveJobDefersRetentionToArchiver(t *testing.T) {
	archiver := &archiverStub{}
	job := NewActivityArchiveJob(archiver)
	assert.Equal(t, ActivityArchiveJobName, job.Name())

	n, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, 1, archiver.expired)
	assert.True(t, archiver.cutoff.IsZero())
}

func TestActivityArchiveJobBefore(t *testing.T) {
	archiver := &archiverStub{}
	base := NewActivityArchiveJob(archiver)
	cutoff := time.Date(2024, 6, 1, 7, 0, 0, 0, time.FixedZone("WIB", 7*3600))

	n, err := base.Before(cutoff).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.True(t, cutoff.Equal(archiver.cutoff))
	assert.Equal(t, time.UTC, archiver.cutoff.Location())
	assert.Equal(t, 0, archiver.expired)
	assert.Nil(t, base.before)
}
