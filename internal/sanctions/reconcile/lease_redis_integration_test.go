//go:build integration

package reconcile_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"pldft/internal/sanctions/reconcile"
	dErrors "pldft/pkg/domain-errors"
	"pldft/pkg/testutil/containers"
)

type RedisLeasesSuite struct {
	suite.Suite
	redis  *containers.RedisContainer
	leases *reconcile.RedisLeases
}

func TestRedisLeasesSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisLeasesSuite))
}

func (s *RedisLeasesSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.leases = reconcile.NewRedisLeases(s.redis.Client.Client, reconcile.WithLeaseTTL(600*time.Millisecond))
}

func (s *RedisLeasesSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisLeasesSuite) TestExclusive() {
	ctx := context.Background()
	release, err := s.leases.Acquire(ctx, "sync:A")
	s.Require().NoError(err)

	waitCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	_, err = s.leases.Acquire(waitCtx, "sync:A")
	s.True(dErrors.HasCode(err, dErrors.CodeTimeout))

	release()
	again, err := s.leases.Acquire(ctx, "sync:A")
	s.Require().NoError(err)
	again()
}

func (s *RedisLeasesSuite) TestHeldLeaseIsRenewed() {
	ctx := context.Background()
	release, err := s.leases.Acquire(ctx, "sync:B")
	s.Require().NoError(err)
	defer release()

	// Well past one TTL; the renewer must keep the key alive.
	time.Sleep(1500 * time.Millisecond)

	waitCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	_, err = s.leases.Acquire(waitCtx, "sync:B")
	s.Error(err)
}
