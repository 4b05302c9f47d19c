package cron

import (
	"context"
	"time"

	"github.com/noah-isme/lostfound-api/internal/dto"
)

// Job names.
const (
	DonationAutoFlagJobName  = "donation-auto-flag"
	ActivityArchiveJobName   = "activity-archive"
	NotificationRelayJobName = "notification-relay"
)

type donationFlagger interface {
	FlagEligible(ctx context.Context) (int, error)
}

type activityArchiver interface {
	ArchiveOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	ArchiveExpired(ctx context.Context) (*dto.ArchiveResult, error)
}

type notificationRelayer interface {
	Relay(ctx context.Context) (int, error)
}

// DonationAutoFlagJob moves aged found items onto the donation track.
type DonationAutoFlagJob struct {
	donations donationFlagger
}

// NewDonationAutoFlagJob constructs the job.
func NewDonationAutoFlagJob(donations donationFlagger) *DonationAutoFlagJob {
	return &DonationAutoFlagJob{donations: donations}
}

func (j *DonationAutoFlagJob) Name() string { return DonationAutoFlagJobName }

func (j *DonationAutoFlagJob) Run(ctx context.Context) (int, error) {
	return j.donations.FlagEligible(ctx)
}

// ActivityArchiveJob moves audit entries past retention into the archive table.
type ActivityArchiveJob struct {
	activity activityArchiver
	before   *time.Time
}

// NewActivityArchiveJob constructs the job. The retention window belongs to the archiver.
func NewActivityArchiveJob(activity activityArchiver) *ActivityArchiveJob {
	return &ActivityArchiveJob{activity: activity}
}

// Before returns a one-off run archiving everything older than cutoff.
func (j *ActivityArchiveJob) Before(cutoff time.Time) *ActivityArchiveJob {
	at := cutoff.UTC()
	return &ActivityArchiveJob{activity: j.activity, before: &at}
}

func (j *ActivityArchiveJob) Name() string { return ActivityArchiveJobName }

func (j *ActivityArchiveJob) Run(ctx context.Context) (int, error) {
	if j.before != nil {
		archived, err := j.activity.ArchiveOlderThan(ctx, *j.before)
		return int(archived), err
	}
	result, err := j.activity.ArchiveExpired(ctx)
	if err != nil {
		return 0, err
	}
	return int(result.Archived), nil
}

// NotificationRelayJob hands pending notifications to the delivery transport.
type NotificationRelayJob struct {
	relay notificationRelayer
}

// NewNotificationRelayJob constructs the job.
func NewNotificationRelayJob(relay notificationRelayer) *NotificationRelayJob {
	return &NotificationRelayJob{relay: relay}
}

func (j *NotificationRelayJob) Name() string { return NotificationRelayJobName }

func (j *NotificationRelayJob) Run(ctx context.Context) (int, error) {
	return j.relay.Relay(ctx)
}
