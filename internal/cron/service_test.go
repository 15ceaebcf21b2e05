package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type stubJob struct {
	name string
	runs int
	err  error
}

func (s *stubJob) Name() string { return s.name }

func (s *stubJob) Run(ctx context.Context) error {
	s.runs++
	return s.err
}

type stubLock struct {
	locked   bool
	acquires int
	releases int
}

func (s *stubLock) Acquire(ctx context.Context) (bool, error) {
	s.acquires++
	return s.locked, nil
}

func (s *stubLock) Release(ctx context.Context) error {
	s.releases++
	return nil
}

type stubRedisStore struct {
	value  string
	setOK  bool
	setTTL time.Duration
	dels   int
}

func (s *stubRedisStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	s.setTTL = ttl
	if !s.setOK {
		return false, nil
	}
	s.value = value.(string)
	return true, nil
}

func (s *stubRedisStore) Get(ctx context.Context, key string) (string, error) {
	if s.value == "" {
		return "", redis.Nil
	}
	return s.value, nil
}

func (s *stubRedisStore) Del(ctx context.Context, keys ...string) error {
	s.dels++
	s.value = ""
	return nil
}

func TestService_RunCycle(t *testing.T) {
	lock := &stubLock{locked: true}
	good := &stubJob{name: "good"}
	bad := &stubJob{name: "bad", err: errors.New("boom")}
	svc, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: NewRegistry(good, bad),
		Lock:     lock,
	})
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}

	if err := svc.runCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}

	// a failing job must not stop the remaining jobs or leak the lock
	if good.runs != 1 || bad.runs != 1 {
		t.Fatalf("expected both jobs to run once, got %d/%d", good.runs, bad.runs)
	}
	if lock.releases != 1 {
		t.Fatalf("lock not released after cycle")
	}
}

func TestService_RunCycleSkipsWithoutLock(t *testing.T) {
	lock := &stubLock{locked: false}
	job := &stubJob{name: "job"}
	svc, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: NewRegistry(job),
		Lock:     lock,
	})
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}

	if err := svc.runCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if job.runs != 0 {
		t.Fatalf("job ran without holding the lock")
	}
	if lock.releases != 0 {
		t.Fatalf("released a lock that was never acquired")
	}
}

func TestRegistry_SkipsNilJobs(t *testing.T) {
	registry := NewRegistry(nil, &stubJob{name: "a"}, nil)
	registry.Register(nil)
	registry.Register(&stubJob{name: "b"})

	jobs := registry.Jobs()
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
}

func TestRedisLock_AcquireRelease(t *testing.T) {
	store := &stubRedisStore{setOK: true}
	lock, err := NewRedisLock(store, "cron:lock:test", time.Minute)
	if err != nil {
		t.Fatalf("setup lock: %v", err)
	}

	ok, err := lock.Acquire(context.Background())
	if err != nil || !ok {
		t.Fatalf("expected lock acquired, got ok=%v err=%v", ok, err)
	}
	if store.setTTL != time.Minute {
		t.Fatalf("ttl not passed through, got %s", store.setTTL)
	}

	if err := lock.Release(context.Background()); err != nil {
		t.Fatalf("release: %v", err)
	}
	if store.dels != 1 {
		t.Fatalf("lock key not deleted")
	}
}

func TestRedisLock_ReleaseSkipsForeignOwner(t *testing.T) {
	store := &stubRedisStore{setOK: true}
	lock, err := NewRedisLock(store, "cron:lock:test", time.Minute)
	if err != nil {
		t.Fatalf("setup lock: %v", err)
	}
	if _, err := lock.Acquire(context.Background()); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	// ttl expired and another replica took the lock
	store.value = "someone-else"

	if err := lock.Release(context.Background()); err != nil {
		t.Fatalf("release: %v", err)
	}
	if store.dels != 0 {
		t.Fatalf("deleted a lock owned by another replica")
	}
}

func TestRedisLock_ReleaseWithoutAcquireIsNoop(t *testing.T) {
	store := &stubRedisStore{}
	lock, err := NewRedisLock(store, "cron:lock:test", 0)
	if err != nil {
		t.Fatalf("setup lock: %v", err)
	}
	if err := lock.Release(context.Background()); err != nil {
		t.Fatalf("release: %v", err)
	}
	if store.dels != 0 {
		t.Fatalf("release without ownership touched redis")
	}
}
