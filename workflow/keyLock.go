package workflow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/mmdatafocus/hr_backend/models"
	"github.com/sirupsen/logrus"
)

// KeyLocker serializes work per key. The in-process lock always applies; the redis lock
// additionally serializes across instances when redis is connected. Redis is an optimization,
// the unique indexes and row locks in the database are the backstop.
type KeyLocker struct {
	Redis  *redislock.Client
	Logger *logrus.Logger

	TTL        time.Duration
	RetryEvery time.Duration
	MaxRetries int

	mu    sync.Mutex
	slots map[string]*keySlot
}

type keySlot struct {
	ch   chan struct{}
	refs int
}

func NewKeyLocker(redisLock *redislock.Client, logger *logrus.Logger) *KeyLocker {
	return &KeyLocker{
		Redis:      redisLock,
		Logger:     logger,
		TTL:        30 * time.Second,
		RetryEvery: 50 * time.Millisecond,
		MaxRetries: 100,
		slots:      make(map[string]*keySlot),
	}
}

func otpKey(employeeId int) string {
	return fmt.Sprintf("otp:%d", employeeId)
}

func attendanceKey(employeeId int, date time.Time) string {
	return fmt.Sprintf("attendance:%d:%s", employeeId, date.Format(time.DateOnly))
}

func leaveKey(employeeId int) string {
	return fmt.Sprintf("leave:%d", employeeId)
}

func payrollKey(employeeId, year int, month time.Month) string {
	return fmt.Sprintf("payroll:%d:%04d-%02d", employeeId, year, int(month))
}

func siteKey(siteId int) string {
	return fmt.Sprintf("site:%d", siteId)
}

// Lock blocks until key is held or ctx is done. The returned func releases the key and
// must be called exactly once.
func (l *KeyLocker) Lock(ctx context.Context, key string) (func(), error) {
	slot := l.acquireSlot(key)
	select {
	case slot.ch <- struct{}{}:
	case <-ctx.Done():
		l.releaseSlot(key, slot)
		return nil, ctx.Err()
	}

	lock, err := l.obtainRedis(ctx, key)
	if err != nil {
		<-slot.ch
		l.releaseSlot(key, slot)
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			if lock != nil {
				// release with a fresh context; the request context may already be cancelled
				releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				if releaseErr := lock.Release(releaseCtx); releaseErr != nil && !errors.Is(releaseErr, redislock.ErrLockNotHeld) {
					l.warn(key, "failed to release redis lock: "+releaseErr.Error())
				}
				cancel()
			}
			<-slot.ch
			l.releaseSlot(key, slot)
		})
	}, nil
}

// LockAll takes every key in a fixed order so that overlapping key sets cannot deadlock.
func (l *KeyLocker) LockAll(ctx context.Context, keys ...string) (func(), error) {
	ordered := dedupeSorted(keys)
	unlocks := make([]func(), 0, len(ordered))
	unlockAll := func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
	for _, key := range ordered {
		unlock, err := l.Lock(ctx, key)
		if err != nil {
			unlockAll()
			return nil, err
		}
		unlocks = append(unlocks, unlock)
	}
	return unlockAll, nil
}

func (l *KeyLocker) obtainRedis(ctx context.Context, key string) (*redislock.Lock, error) {
	if l.Redis == nil {
		return nil, nil
	}
	opts := &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(l.RetryEvery), l.MaxRetries),
	}
	lock, err := l.Redis.Obtain(ctx, "lock:"+key, l.TTL, opts)
	if errors.Is(err, redislock.ErrNotObtained) {
		l.warn(key, "could not obtain redis lock")
		return nil, models.ErrBusy
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		l.warn(key, "error obtaining redis lock; proceeding without redis lock: "+err.Error())
		return nil, nil
	}
	return lock, nil
}

func (l *KeyLocker) acquireSlot(key string) *keySlot {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.slots == nil {
		l.slots = make(map[string]*keySlot)
	}
	slot, ok := l.slots[key]
	if !ok {
		slot = &keySlot{ch: make(chan struct{}, 1)}
		l.slots[key] = slot
	}
	slot.refs++
	return slot
}

func (l *KeyLocker) releaseSlot(key string, slot *keySlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, key)
	}
}

func (l *KeyLocker) warn(key, msg string) {
	if l.Logger == nil {
		return
	}
	l.Logger.WithFields(logrus.Fields{
		"field": "KeyLocker",
		"key":   key,
	}).Warn(msg)
}

func dedupeSorted(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
