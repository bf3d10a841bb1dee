package leaselock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lockRow struct {
	owner   string
	expires time.Time
}

// memoryLocks mimics the app_locks statements on a map.
type memoryLocks struct {
	mu    sync.Mutex
	locks map[string]lockRow
}

func newMemoryLocks() *memoryLocks {
	return &memoryLocks{locks: make(map[string]lockRow)}
}

type keyRow struct {
	key string
	err error
}

func (r keyRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*string) = r.key
	return nil
}

func (m *memoryLocks) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := args[0].(string)
	token := args[1].(string)
	ttl := time.Duration(args[2].(int64)) * time.Millisecond
	now := time.Now()
	cur, held := m.locks[key]

	switch sql {
	case tryAcquireSQL:
		if held && cur.expires.After(now) && cur.owner != token {
			return keyRow{err: pgx.ErrNoRows}
		}
	case renewSQL:
		if !held || cur.owner != token {
			return keyRow{err: pgx.ErrNoRows}
		}
	default:
		return keyRow{err: errors.New("unexpected statement")}
	}
	m.locks[key] = lockRow{owner: token, expires: now.Add(ttl)}
	return keyRow{key: key}
}

func (m *memoryLocks) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := args[0].(string)
	token := args[1].(string)
	if cur, ok := m.locks[key]; ok && cur.owner == token {
		delete(m.locks, key)
		return pgconn.NewCommandTag("DELETE 1"), nil
	}
	return pgconn.NewCommandTag("DELETE 0"), nil
}

func (m *memoryLocks) steal(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locks[key] = lockRow{owner: "someone-else", expires: time.Now().Add(time.Hour)}
}

func TestAcquireIsExclusive(t *testing.T) {
	client := New(newMemoryLocks())
	ctx := context.Background()
	key := RunKey("abc")

	lease, err := client.Acquire(ctx, key, Options{TTL: time.Minute})
	require.NoError(t, err)

	_, err = client.Acquire(ctx, key, Options{TTL: time.Minute})
	assert.ErrorIs(t, err, ErrBusy)

	require.NoError(t, lease.Release(ctx))
	assert.NoError(t, lease.Err())

	again, err := client.Acquire(ctx, key, Options{TTL: time.Minute})
	require.NoError(t, err)
	require.NoError(t, again.Release(ctx))
}

func TestExpiredLeaseCanBeTaken(t *testing.T) {
	db := newMemoryLocks()
	db.locks["k"] = lockRow{owner: "old", expires: time.Now().Add(-time.Second)}

	lease, err := New(db).Acquire(context.Background(), "k", Options{})
	require.NoError(t, err)
	defer lease.Release(context.Background())
	assert.NotEqual(t, "old", db.locks["k"].owner)
}

func TestWaitGivesUpWithContext(t *testing.T) {
	db := newMemoryLocks()
	db.steal("k")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := New(db).Acquire(ctx, "k", Options{Wait: true, WaitInterval: 5 * time.Millisecond})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLostLeaseCancelsContext(t *testing.T) {
	db := newMemoryLocks()
	lease, err := New(db).Acquire(context.Background(), "k", Options{
		TTL:        time.Second,
		RenewEvery: 5 * time.Millisecond,
	})
	require.NoError(t, err)

	db.steal("k")

	select {
	case <-lease.Context.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("lease context was not canceled")
	}
	assert.ErrorIs(t, lease.Err(), ErrLost)
}

func TestWithLease(t *testing.T) {
	db := newMemoryLocks()
	client := New(db)
	boom := errors.New("boom")

	err := client.WithLease(context.Background(), "k", Options{}, func(ctx context.Context) error {
		_, busy := client.Acquire(ctx, "k", Options{})
		assert.ErrorIs(t, busy, ErrBusy)
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, db.locks)
}

func TestAcquireEmptyKey(t *testing.T) {
	_, err := New(newMemoryLocks()).Acquire(context.Background(), "", Options{})
	assert.ErrorIs(t, err, ErrEmptyKey)
}

func TestOptionsWithDefaults(t *testing.T) {
	o := Options{}.withDefaults()
	assert.Equal(t, defaultTTL, o.TTL)
	assert.Equal(t, defaultTTL/2, o.RenewEvery)
	assert.Equal(t, defaultWaitInterval, o.WaitInterval)

	o = Options{TTL: time.Second, RenewEvery: 2 * time.Second, WaitJitter: -1}.withDefaults()
	assert.Equal(t, 500*time.Millisecond, o.RenewEvery)
	assert.Zero(t, o.WaitJitter)
}
