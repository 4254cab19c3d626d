package redis_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/jhoicas/stock-ledger/internal/infrastructure/redis"
)

const skipIntegrationTests = "LEDGER_SKIP_INTEGRATION_TESTS"

// StoreSuite ejercita el store contra un Redis real.
type StoreSuite struct {
	suite.Suite
	ctx       context.Context
	container testcontainers.Container
	rdb       *goredis.Client
	store     *redis.Store
}

func (s *StoreSuite) SetupSuite() {
	s.ctx = context.Background()

	var err error
	s.container, err = testcontainers.GenericContainer(s.ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	require.NoError(s.T(), err, "levantar contenedor Redis")

	endpoint, err := s.container.PortEndpoint(s.ctx, "6379/tcp", "")
	require.NoError(s.T(), err)

	s.rdb, err = redis.NewClient(s.ctx, fmt.Sprintf("redis://%s/0", endpoint))
	require.NoError(s.T(), err)
	s.store = redis.NewStore(s.rdb)
}

func (s *StoreSuite) TearDownSuite() {
	if s.rdb != nil {
		_ = s.rdb.Close()
	}
	if s.container != nil {
		require.NoError(s.T(), s.container.Terminate(s.ctx))
	}
}

func (s *StoreSuite) SetupTest() {
	s.Require().NoError(s.rdb.FlushDB(s.ctx).Err())
}

func TestStoreSuite(t *testing.T) {
	if os.Getenv(skipIntegrationTests) == "1" || testing.Short() {
		t.Skip("Skipping integration tests")
	}
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) TestGetSetDelete() {
	_, ok, err := s.store.Get(s.ctx, "k1")
	s.Require().NoError(err)
	s.False(ok)

	s.Require().NoError(s.store.Set(s.ctx, "k1", []byte(`{"a":1}`), time.Minute))
	b, ok, err := s.store.Get(s.ctx, "k1")
	s.Require().NoError(err)
	s.True(ok)
	s.JSONEq(`{"a":1}`, string(b))

	ttl, err := s.rdb.TTL(s.ctx, "k1").Result()
	s.Require().NoError(err)
	s.Greater(ttl, time.Duration(0))

	s.Require().NoError(s.store.Delete(s.ctx, "k1", "no-existe"))
	_, ok, err = s.store.Get(s.ctx, "k1")
	s.Require().NoError(err)
	s.False(ok)

	s.NoError(s.store.Delete(s.ctx))
}

func (s *StoreSuite) TestDeleteByPrefix() {
	for _, k := range []string{"ledger:list:a", "ledger:list:b", "ledger:listado", "ledger:product:p1"} {
		s.Require().NoError(s.store.Set(s.ctx, k, []byte("x"), 0))
	}
	for i := range 450 {
		s.Require().NoError(s.store.Set(s.ctx, fmt.Sprintf("ledger:list:page:%d", i), []byte("x"), time.Minute))
	}

	n, err := s.store.DeleteByPrefix(s.ctx, "ledger:list:")
	s.Require().NoError(err)
	s.Equal(452, n)

	keys, err := s.rdb.Keys(s.ctx, "*").Result()
	s.Require().NoError(err)
	s.ElementsMatch([]string{"ledger:listado", "ledger:product:p1"}, keys)
}

func (s *StoreSuite) TestDeleteByPrefix_MetacaracteresLiterales() {
	s.Require().NoError(s.store.Set(s.ctx, "ledger:q:[a]*", []byte("x"), 0))
	s.Require().NoError(s.store.Set(s.ctx, "ledger:q:a", []byte("x"), 0))

	n, err := s.store.DeleteByPrefix(s.ctx, "ledger:q:[a]")
	s.Require().NoError(err)
	s.Equal(1, n)

	_, ok, err := s.store.Get(s.ctx, "ledger:q:a")
	s.Require().NoError(err)
	s.True(ok)
}

func (s *StoreSuite) TestPing() {
	s.NoError(s.store.Ping(s.ctx))
}
