package postgres_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/readalong/chainstore/internal/testenv"
	"github.com/readalong/chainstore/pkg/store"
	"github.com/readalong/chainstore/pkg/store/postgres"
	"github.com/readalong/chainstore/pkg/store/storetest"
)

func TestPostgresStore(t *testing.T) {
	dsn := testenv.PostgresDSN(t)
	suite.Run(t, &storetest.Suite{Open: func(t *testing.T) store.Store {
		s, err := postgres.Open(dsn, nil)
		require.NoError(t, err)
		return s
	}})
}
