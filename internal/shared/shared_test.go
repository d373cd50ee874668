package shared

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReasonTaxonomy(t *testing.T) {
	err := fmt.Errorf("confirm order: %w", Validationf("customer is required"))
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Equal(t, "customer is required", Reason(err))

	assert.True(t, errors.Is(Conflictf("order changed"), ErrConflict))
	assert.True(t, errors.Is(InvalidStatef("order is delivered"), ErrInvalidState))
	assert.Equal(t, "record not found", Reason(fmt.Errorf("get: %w", ErrNotFound)))
	assert.Equal(t, "unexpected error, please retry", Reason(errors.New("dial tcp: refused")))
	assert.Equal(t, "", Reason(nil))
}

func TestWithPrefixKeepsReason(t *testing.T) {
	err := WithPrefix("line 2", Validationf("lot number is required"))
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Equal(t, "line 2: lot number is required", Reason(err))

	wrapped := WithPrefix("line 3", context.Canceled)
	assert.ErrorIs(t, wrapped, context.Canceled)
	assert.Equal(t, "line 3: context canceled", wrapped.Error())
	assert.NoError(t, WithPrefix("line 1", nil))
}

func TestLockerExcludesConcurrentHolders(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	locker := NewLocker(client, time.Minute)
	key := OrderLockKey("purchase", 1, 42)

	release, err := locker.Acquire(context.Background(), key)
	require.NoError(t, err)

	_, err = locker.Acquire(context.Background(), key)
	require.ErrorIs(t, err, ErrLockHeld)

	release()
	release2, err := locker.Acquire(context.Background(), key)
	require.NoError(t, err)
	release2()
}

func TestLockerExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	locker := NewLocker(client, time.Second)
	key := OrderLockKey("purchase", 1, 7)
	_, err := locker.Acquire(context.Background(), key)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)
	release, err := locker.Acquire(context.Background(), key)
	require.NoError(t, err)
	release()
}

func TestNilLockerIsNoop(t *testing.T) {
	var locker *Locker
	release, err := locker.Acquire(context.Background(), "k")
	require.NoError(t, err)
	release()
}

func TestDateJSON(t *testing.T) {
	var payload struct {
		Due Date `json:"due"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"due":"2025-03-31"}`), &payload))
	assert.Equal(t, "2025-03-31", payload.Due.String())

	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"due":"2025-03-31"}`, string(raw))

	err = json.Unmarshal([]byte(`{"due":"31/03/2025"}`), &payload)
	require.ErrorIs(t, err, ErrValidation)
}

func TestPagination(t *testing.T) {
	p := NewPagination(0, 0, 41)
	assert.Equal(t, Pagination{Page: 1, PerPage: 20, Total: 41, TotalPages: 3}, p)

	limit, offset := LimitOffset(3, 10)
	assert.Equal(t, 10, limit)
	assert.Equal(t, 20, offset)

	limit, _ = LimitOffset(1, 10000)
	assert.Equal(t, 200, limit)
}

func TestIdempotencyKey(t *testing.T) {
	assert.Equal(t, "org:3:receive:15", IdempotencyKey(3, "receive", 15))
}
