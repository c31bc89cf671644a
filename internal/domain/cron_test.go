package domain

import (
	"testing"
	"time"
)

func TestCronJob_Due(t *testing.T) {
	now := time.Now()
	job := CronJob{Status: CronJobIdle, NextRunAt: now.Add(-time.Minute)}
	if !job.Due(now) {
		t.Fatal("expected job with past next_run_at to be due")
	}

	job.NextRunAt = now.Add(time.Minute)
	if job.Due(now) {
		t.Fatal("expected job with future next_run_at to not be due")
	}

	job.NextRunAt = now.Add(-time.Minute)
	job.Status = CronJobLeased
	if job.Due(now) {
		t.Fatal("expected leased job to not be due")
	}
}

func TestCronJob_LeaseFree(t *testing.T) {
	now := time.Now()
	job := CronJob{}
	if !job.LeaseFree(now) {
		t.Fatal("expected job with no lease to be free")
	}

	expired := now.Add(-time.Minute)
	job.LeaseOwner = "worker-a"
	job.LeaseExpiresAt = &expired
	if !job.LeaseFree(now) {
		t.Fatal("expected job with expired lease to be free")
	}

	future := now.Add(time.Minute)
	job.LeaseExpiresAt = &future
	if job.LeaseFree(now) {
		t.Fatal("expected job with unexpired lease to not be free")
	}
}

func TestCronJob_LeaseHeldBy(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Minute)
	job := CronJob{LeaseOwner: "worker-a", LeaseExpiresAt: &future}

	if !job.LeaseHeldBy("worker-a", now) {
		t.Fatal("expected worker-a to hold the lease")
	}
	if job.LeaseHeldBy("worker-b", now) {
		t.Fatal("expected worker-b to not hold the lease")
	}
}
