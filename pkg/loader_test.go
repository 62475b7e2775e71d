package pkg

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory destination. Inserted rows only reach committed
// on Commit, mirroring transactional visibility.
type fakeStore struct {
	committed [][]interface{}

	opens      int
	closes     int
	begins     int
	commits    int
	rollbacks  int
	failOnRow  int // 1-based insert that fails; 0 never fails
	connectErr error
	beginErr   error
	commitErr  error
	tables     []string
	columns    []string
}

func (s *fakeStore) connect(context.Context) (Conn, error) {
	if s.connectErr != nil {
		return nil, s.connectErr
	}
	s.opens++
	return &fakeConn{store: s}, nil
}

type fakeConn struct {
	store *fakeStore
}

func (c *fakeConn) Begin(context.Context) (Tx, error) {
	if c.store.beginErr != nil {
		return nil, c.store.beginErr
	}
	c.store.begins++
	return &fakeTx{store: c.store}, nil
}

func (c *fakeConn) Close(context.Context) error {
	c.store.closes++
	return nil
}

type fakeTx struct {
	store   *fakeStore
	pending [][]interface{}
}

func (tx *fakeTx) Insert(_ context.Context, table string, columns []string, values []interface{}) error {
	if tx.store.failOnRow == len(tx.pending)+1 {
		return fmt.Errorf("insert %d rejected", tx.store.failOnRow)
	}
	tx.store.tables = append(tx.store.tables, table)
	tx.store.columns = columns
	tx.pending = append(tx.pending, values)
	return nil
}

func (tx *fakeTx) Commit(context.Context) error {
	if tx.store.commitErr != nil {
		return tx.store.commitErr
	}
	tx.store.commits++
	tx.store.committed = append(tx.store.committed, tx.pending...)
	tx.pending = nil
	return nil
}

func (tx *fakeTx) Rollback(context.Context) error {
	tx.store.rollbacks++
	tx.pending = nil
	return nil
}

func sampleRows(n int) []CountryStatRow {
	date := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := make([]CountryStatRow, n)
	for i := range rows {
		rows[i] = CountryStatRow{
			Country:    fmt.Sprintf("Country-%d", i),
			Date:       date,
			Cases:      int64(10 * (i + 1)),
			Deaths:     int64(i),
			Recovered:  int64(5 * i),
			Active:     int64(4 * i),
			Population: int64(1000 * (i + 1)),
		}
	}
	return rows
}

func TestLoadCommitsAllRows(t *testing.T) {
	store := &fakeStore{}
	rows := sampleRows(3)

	n, err := NewLoader(store.connect, "covid_data", zerolog.Nop()).Load(context.Background(), rows)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.Len(t, store.committed, 3)
	for i, row := range rows {
		assert.Equal(t, row.Values(), store.committed[i])
	}
	assert.Equal(t, []string{"covid_data", "covid_data", "covid_data"}, store.tables)
	assert.Equal(t, []string{"country", "date", "cases", "deaths", "recovered", "active", "population"}, store.columns)
	assert.Equal(t, 1, store.begins)
	assert.Equal(t, 1, store.commits)
	assert.Zero(t, store.rollbacks)
	assert.Equal(t, 1, store.opens)
	assert.Equal(t, 1, store.closes)
}

func TestLoadEmptyIsNoop(t *testing.T) {
	store := &fakeStore{}

	n, err := NewLoader(store.connect, "covid_data", zerolog.Nop()).Load(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, store.opens)
	assert.Zero(t, store.closes)
}

func TestLoadAtomicOnInsertFailure(t *testing.T) {
	const total = 5
	for k := 1; k <= total; k++ {
		t.Run(fmt.Sprintf("fail on insert %d", k), func(t *testing.T) {
			store := &fakeStore{failOnRow: k}

			n, err := NewLoader(store.connect, "covid_data", zerolog.Nop()).Load(context.Background(), sampleRows(total))
			assert.Zero(t, n)

			var loadErr *LoadError
			require.True(t, errors.As(err, &loadErr), "got %v", err)
			assert.Equal(t, "insert", loadErr.Op)
			assert.Equal(t, k-1, loadErr.Row)

			assert.Empty(t, store.committed)
			assert.Zero(t, store.commits)
			assert.Equal(t, 1, store.rollbacks)
			assert.Equal(t, 1, store.opens)
			assert.Equal(t, 1, store.closes)
		})
	}
}

func TestLoadConnectFailure(t *testing.T) {
	store := &fakeStore{connectErr: errors.New("connection refused")}

	n, err := NewLoader(store.connect, "covid_data", zerolog.Nop()).Load(context.Background(), sampleRows(2))
	assert.Zero(t, n)

	var loadErr *LoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, "connect", loadErr.Op)
	assert.Equal(t, -1, loadErr.Row)
	assert.EqualError(t, errors.Unwrap(err), "connection refused")
	assert.Zero(t, store.opens)
	assert.Zero(t, store.closes)
}

func TestLoadBeginAndCommitFailuresReleaseConnection(t *testing.T) {
	tests := []struct {
		name   string
		store  *fakeStore
		wantOp string
	}{
		{name: "begin", store: &fakeStore{beginErr: errors.New("read-only")}, wantOp: "begin"},
		{name: "commit", store: &fakeStore{commitErr: errors.New("serialization failure")}, wantOp: "commit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := NewLoader(tt.store.connect, "covid_data", zerolog.Nop()).Load(context.Background(), sampleRows(2))
			assert.Zero(t, n)

			var loadErr *LoadError
			require.True(t, errors.As(err, &loadErr))
			assert.Equal(t, tt.wantOp, loadErr.Op)
			assert.Empty(t, tt.store.committed)
			assert.Equal(t, 1, tt.store.opens)
			assert.Equal(t, 1, tt.store.closes)
		})
	}
}
