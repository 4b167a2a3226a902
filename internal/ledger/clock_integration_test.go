//go:build integration

package ledger_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"vaultdao/internal/ledger"
	"vaultdao/internal/ledger/mocks"
	"vaultdao/internal/platform/redis"
	"vaultdao/pkg/testutil/containers"
)

type ClockIntegrationSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	cache *redis.Client
}

func TestClockIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(ClockIntegrationSuite))
}

func (s *ClockIntegrationSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.cache = &redis.Client{Client: s.redis.Client}
}

func (s *ClockIntegrationSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *ClockIntegrationSuite) TestHeightSharedAcrossProcesses() {
	ctx := context.Background()
	ctrl := gomock.NewController(s.T())

	rpc := mocks.NewMockRPC(ctrl)
	rpc.EXPECT().GetLatestLedger(gomock.Any()).Return(uint64(1234), nil)

	writer := ledger.NewClock(rpc, s.cache, "Test Network", 5)
	height, err := writer.CurrentHeight(ctx)
	s.Require().NoError(err)
	s.Equal(uint64(1234), height)

	// A fresh process with a broken RPC node resumes from the shared cache.
	brokenRPC := mocks.NewMockRPC(ctrl)
	brokenRPC.EXPECT().GetLatestLedger(gomock.Any()).Return(uint64(0), errors.New("rpc down"))

	reader := ledger.NewClock(brokenRPC, s.cache, "Test Network", 5)
	height, err = reader.CurrentHeight(ctx)
	s.Require().NoError(err)
	s.Equal(uint64(1234), height)
}

func (s *ClockIntegrationSuite) TestNetworksDoNotShareHeights() {
	ctx := context.Background()
	ctrl := gomock.NewController(s.T())

	rpc := mocks.NewMockRPC(ctrl)
	rpc.EXPECT().GetLatestLedger(gomock.Any()).Return(uint64(500), nil)

	writer := ledger.NewClock(rpc, s.cache, "Test Network", 5)
	_, err := writer.CurrentHeight(ctx)
	s.Require().NoError(err)

	brokenRPC := mocks.NewMockRPC(ctrl)
	brokenRPC.EXPECT().GetLatestLedger(gomock.Any()).Return(uint64(0), errors.New("rpc down"))

	other := ledger.NewClock(brokenRPC, s.cache, "Other Network", 5)
	_, err = other.CurrentHeight(ctx)
	s.Error(err, "a different network must not inherit the cached height")
}

func (s *ClockIntegrationSuite) TestRefreshNeverRewinds() {
	ctx := context.Background()
	ctrl := gomock.NewController(s.T())

	rpc := mocks.NewMockRPC(ctrl)
	gomock.InOrder(
		rpc.EXPECT().GetLatestLedger(gomock.Any()).Return(uint64(2000), nil),
		rpc.EXPECT().GetLatestLedger(gomock.Any()).Return(uint64(1990), nil),
	)

	clock := ledger.NewClock(rpc, s.cache, "Test Network", 5)
	height, err := clock.Refresh(ctx)
	s.Require().NoError(err)
	s.Equal(uint64(2000), height)

	// A lagging node reports an older ledger; the synced height holds.
	_, err = clock.Refresh(ctx)
	s.Require().NoError(err)
	synced, _ := clock.Synced()
	s.Equal(uint64(2000), synced)
}
