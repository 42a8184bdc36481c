package surrealdb_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/readalong/chainstore/internal/testenv"
	"github.com/readalong/chainstore/pkg/store"
	"github.com/readalong/chainstore/pkg/store/storetest"
	"github.com/readalong/chainstore/pkg/store/surrealdb"
)

func TestSurrealStore(t *testing.T) {
	env := testenv.SurrealDB(t)
	suite.Run(t, &storetest.Suite{Open: func(t *testing.T) store.Store {
		s, err := surrealdb.Open(context.Background(), surrealdb.Options{
			URL:       env.URL,
			Namespace: env.Namespace,
			Database:  env.Database,
			Username:  env.Username,
			Password:  env.Password,
		})
		require.NoError(t, err)
		return s
	}})
}

func TestOpenRejectsHTTP(t *testing.T) {
	_, err := surrealdb.Open(context.Background(), surrealdb.Options{URL: "http://localhost:8000"})
	require.ErrorContains(t, err, "unsupported URL scheme")
}
