package health

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/flodgatt/flodgatt/internal/circuitbreaker"
)

func TestRedisHealthChecker_healthy(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	wrapper := circuitbreaker.NewRedisWrapper(client, zaptest.NewLogger(t))

	checker := NewRedisHealthChecker(client, wrapper, zaptest.NewLogger(t))
	result := checker.Check(context.Background())

	assert.Equal(t, StatusHealthy, result.Status)
	assert.Equal(t, "redis", result.Component)
	assert.True(t, result.Critical)
}

func TestRedisHealthChecker_unreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	wrapper := circuitbreaker.NewRedisWrapper(client, zaptest.NewLogger(t))

	checker := NewRedisHealthChecker(client, wrapper, zaptest.NewLogger(t))
	result := checker.Check(context.Background())

	assert.Equal(t, StatusUnhealthy, result.Status)
	assert.NotEmpty(t, result.Error)
}

func TestDatabaseHealthChecker_healthy(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectPing()

	wrapper := circuitbreaker.NewDatabaseWrapper(db, zaptest.NewLogger(t))
	checker := NewDatabaseHealthChecker(db, wrapper, zaptest.NewLogger(t))
	result := checker.Check(context.Background())

	assert.Equal(t, StatusHealthy, result.Status)
	assert.Equal(t, "database", result.Component)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabaseHealthChecker_pingFails(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectPing().WillReturnError(assert.AnError)

	wrapper := circuitbreaker.NewDatabaseWrapper(db, zaptest.NewLogger(t))
	checker := NewDatabaseHealthChecker(db, wrapper, zaptest.NewLogger(t))
	result := checker.Check(context.Background())

	assert.Equal(t, StatusUnhealthy, result.Status)
}

func TestCustomHealthChecker(t *testing.T) {
	checker := NewCustomHealthChecker("subscription-poller", true, 0, func(ctx context.Context) CheckResult {
		return CheckResult{Status: StatusHealthy, Component: "subscription-poller"}
	})

	assert.Equal(t, "subscription-poller", checker.Name())
	assert.True(t, checker.IsCritical())

	result := checker.Check(context.Background())
	assert.Equal(t, StatusHealthy, result.Status)
}
