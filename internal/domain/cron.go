package domain

import "time"

// CronJobStatus tracks whether a leased job is runnable, currently leased,
// or permanently disabled by an operator.
type CronJobStatus string

const (
	CronJobIdle     CronJobStatus = "idle"
	CronJobLeased   CronJobStatus = "leased"
	CronJobDisabled CronJobStatus = "disabled"
)

// CronJob is a leasable periodic task row. LeaseOwner/LeaseExpiresAt
// implement the fetch/heartbeat/complete/free lease protocol the cron
// leaser drives: a worker may only act on a job it currently owns, and an
// expired lease is free for any worker to re-acquire.
type CronJob struct {
	ID             string        `bson:"_id"`
	Name           string        `bson:"name"`
	Status         CronJobStatus `bson:"status"`
	Interval       time.Duration `bson:"interval"`
	LastRunAt      *time.Time    `bson:"last_run_at,omitempty"`
	NextRunAt      time.Time     `bson:"next_run_at"`
	LeaseOwner     string        `bson:"lease_owner,omitempty"`
	LeaseExpiresAt *time.Time    `bson:"lease_expires_at,omitempty"`
}

func (j CronJob) LeaseHeldBy(owner string, at time.Time) bool {
	return j.LeaseOwner == owner && j.LeaseExpiresAt != nil && j.LeaseExpiresAt.After(at)
}

func (j CronJob) LeaseFree(at time.Time) bool {
	return j.LeaseOwner == "" || j.LeaseExpiresAt == nil || !j.LeaseExpiresAt.After(at)
}

func (j CronJob) Due(at time.Time) bool {
	return j.Status == CronJobIdle && !j.NextRunAt.After(at)
}
