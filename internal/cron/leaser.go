// Package cron is the cron leaser (C10): a single-writer job leasing
// protocol over the document store so exactly one worker in a fleet runs a
// given named job at a time, with a heartbeat that lets a slower worker
// detect it has lost its lease mid-run.
package cron

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vellumapp/platform/internal/config"
	"github.com/vellumapp/platform/internal/docstore"
	"github.com/vellumapp/platform/internal/domain"
	"github.com/vellumapp/platform/internal/errs"
)

// defaults used when a Duration in config.CronConfig is left unset (zero).
const (
	defaultPollInterval      = 60 * time.Second
	defaultLeaseDuration     = 60 * time.Second
	defaultHeartbeatInterval = 30 * time.Second
)

// Job is one named periodic task a Leaser can run. Run should honor ctx
// cancellation promptly: a canceled ctx means the lease was lost mid-run.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Leaser polls the cron_jobs collection for due, unleased jobs and runs
// whichever of its registered Jobs it successfully acquires a lease for.
type Leaser struct {
	gateway *docstore.Gateway
	ownerID string
	log     zerolog.Logger

	pollInterval      time.Duration
	leaseDuration     time.Duration
	heartbeatInterval time.Duration
}

func New(gateway *docstore.Gateway, ownerID string, cfg config.CronConfig, log zerolog.Logger) *Leaser {
	return &Leaser{
		gateway:           gateway,
		ownerID:           ownerID,
		log:               log.With().Str("component", "cron").Str("owner", ownerID).Logger(),
		pollInterval:      durationOr(cfg.PollInterval.Duration, defaultPollInterval),
		leaseDuration:     durationOr(cfg.LeaseDuration.Duration, defaultLeaseDuration),
		heartbeatInterval: durationOr(cfg.HeartbeatInterval.Duration, defaultHeartbeatInterval),
	}
}

func durationOr(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}

// Run polls every pollInterval until ctx is canceled, attempting to acquire
// and run each of jobs on every tick. Acquisition is race-safe across any
// number of Leaser instances sharing the same document store.
func (l *Leaser) Run(ctx context.Context, jobs []Job) error {
	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	l.tick(ctx, jobs)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			l.tick(ctx, jobs)
		}
	}
}

func (l *Leaser) tick(ctx context.Context, jobs []Job) {
	for _, job := range jobs {
		row, acquired, err := l.acquire(ctx, job.Name())
		if err != nil {
			l.log.Error().Err(err).Str("job", job.Name()).Msg("cron lease acquisition failed")
			continue
		}
		if !acquired {
			continue
		}
		go l.runJob(ctx, job, row)
	}
}

// acquire atomically claims job if it is enabled, due, and not currently
// held, returning the leased row with its lease fields already set.
func (l *Leaser) acquire(ctx context.Context, name string) (domain.CronJob, bool, error) {
	now := time.Now().UTC()

	filter := bson.M{
		"name":        name,
		"status":      bson.M{"$ne": domain.CronJobDisabled},
		"next_run_at": bson.M{"$lt": now},
		"$or": []bson.M{
			{"lease_expires_at": bson.M{"$exists": false}},
			{"lease_expires_at": bson.M{"$lt": now}},
		},
	}
	update := bson.M{"$set": bson.M{
		"status":           domain.CronJobLeased,
		"lease_owner":      l.ownerID,
		"lease_expires_at": now.Add(l.leaseDuration),
	}}

	var row domain.CronJob
	err := l.gateway.Collection(docstore.CollCronJobs).
		FindOneAndUpdate(ctx, filter, update, options.FindOneAndUpdate().SetReturnDocument(options.After)).
		Decode(&row)
	if err == mongo.ErrNoDocuments {
		return domain.CronJob{}, false, nil
	}
	if err != nil {
		return domain.CronJob{}, false, errs.Wrap(errs.KindTransientStore, "acquire cron lease", err)
	}
	return row, true, nil
}

// runJob drives one leased job to completion, racing a heartbeat against the
// job's own runtime: if the heartbeat ever fails to extend the lease (lost
// the race to another worker, or the document vanished), the job's context
// is canceled and its outcome is discarded rather than recorded.
func (l *Leaser) runJob(ctx context.Context, job Job, row domain.CronJob) {
	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	lost := l.heartbeat(jobCtx, row)
	done := make(chan error, 1)
	go func() { done <- job.Run(jobCtx) }()

	select {
	case <-lost:
		cancel()
		l.log.Warn().Str("job", row.Name).Msg("cron lease lost mid-run, job canceled")
		<-done
	case err := <-done:
		cancel()
		if err != nil {
			l.log.Error().Err(err).Str("job", row.Name).Msg("cron job failed")
			l.release(context.WithoutCancel(ctx), row, false)
			return
		}
		l.release(context.WithoutCancel(ctx), row, true)
	}
}

// heartbeat extends row's lease every heartbeatInterval as long as this
// owner still holds it; the returned channel closes the moment a heartbeat
// write modifies zero documents (§4.10: "the runner wins, the job loses").
func (l *Leaser) heartbeat(ctx context.Context, row domain.CronJob) <-chan struct{} {
	lost := make(chan struct{})
	go func() {
		ticker := time.NewTicker(l.heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				now := time.Now().UTC()
				res, err := l.gateway.Collection(docstore.CollCronJobs).UpdateOne(ctx,
					bson.M{"_id": row.ID, "lease_owner": l.ownerID},
					bson.M{"$set": bson.M{"lease_expires_at": now.Add(l.leaseDuration)}})
				if err != nil || res.ModifiedCount == 0 {
					close(lost)
					return
				}
			}
		}
	}()
	return lost
}

// release records a job's outcome and frees its lease: success schedules
// the next run at row's interval out and clears the lease; failure makes
// the job immediately due again and clears the lease just the same.
func (l *Leaser) release(ctx context.Context, row domain.CronJob, success bool) {
	now := time.Now().UTC()
	nextRun := now
	if success {
		nextRun = now.Add(row.Interval)
	}

	_, err := l.gateway.Collection(docstore.CollCronJobs).UpdateOne(ctx,
		bson.M{"_id": row.ID, "lease_owner": l.ownerID},
		bson.M{
			"$set":   bson.M{"status": domain.CronJobIdle, "next_run_at": nextRun, "last_run_at": now},
			"$unset": bson.M{"lease_owner": "", "lease_expires_at": ""},
		})
	if err != nil {
		l.log.Error().Err(err).Str("job", row.Name).Msg("failed to release cron lease")
	}
}
