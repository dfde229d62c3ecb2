package store

import (
	"context"
	"reflect"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/hoopstats/propcast/internal/models"
)

// MockConn implements driver.Conn for the calls the store makes
type MockConn struct {
	driver.Conn
	ExecFunc         func(ctx context.Context, query string, args ...interface{}) error
	QueryFunc        func(ctx context.Context, query string, args ...interface{}) (driver.Rows, error)
	PrepareBatchFunc func(ctx context.Context, query string) (driver.Batch, error)
	PingFunc         func(ctx context.Context) error
}

func (m *MockConn) Exec(ctx context.Context, query string, args ...interface{}) error {
	if m.ExecFunc != nil {
		return m.ExecFunc(ctx, query, args...)
	}
	return nil
}

func (m *MockConn) Query(ctx context.Context, query string, args ...interface{}) (driver.Rows, error) {
	if m.QueryFunc != nil {
		return m.QueryFunc(ctx, query, args...)
	}
	return &MockRows{}, nil
}

func (m *MockConn) PrepareBatch(ctx context.Context, query string, opts ...driver.PrepareBatchOption) (driver.Batch, error) {
	if m.PrepareBatchFunc != nil {
		return m.PrepareBatchFunc(ctx, query)
	}
	return &MockBatch{}, nil
}

func (m *MockConn) Ping(ctx context.Context) error {
	if m.PingFunc != nil {
		return m.PingFunc(ctx)
	}
	return nil
}

// MockRows yields preloaded rows, one []interface{} per row
type MockRows struct {
	driver.Rows
	Data [][]interface{}
	idx  int
}

func (m *MockRows) Next() bool {
	m.idx++
	return m.idx <= len(m.Data)
}

func (m *MockRows) Scan(dest ...interface{}) error {
	row := m.Data[m.idx-1]
	for i := range dest {
		assign(dest[i], row[i])
	}
	return nil
}

func (m *MockRows) Close() error { return nil }
func (m *MockRows) Err() error   { return nil }

// MockBatch records appended rows
type MockBatch struct {
	driver.Batch
	Appended [][]interface{}
	Sent     bool
	SendErr  error
}

func (m *MockBatch) Append(v ...interface{}) error {
	m.Appended = append(m.Appended, v)
	return nil
}

func (m *MockBatch) Send() error {
	m.Sent = true
	return m.SendErr
}

func assign(dest interface{}, val interface{}) {
	v := reflect.ValueOf(dest).Elem()
	v.Set(reflect.ValueOf(val))
}

// stubStore is a FeatureStore with canned answers
type stubStore struct {
	records []models.GameRecord
	err     error
	calls   int
}

func (s *stubStore) GetRecords(ctx context.Context, athlete string) ([]models.GameRecord, error) {
	s.calls++
	return s.records, s.err
}

func (s *stubStore) GetRecordsForTeam(ctx context.Context, team string) ([]models.GameRecord, error) {
	s.calls++
	return s.records, s.err
}

func (s *stubStore) ListAthletes(ctx context.Context) ([]string, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	var out []string
	for _, r := range s.records {
		out = append(out, r.Athlete)
	}
	return out, nil
}

func (s *stubStore) ListTeams(ctx context.Context) ([]string, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return teamsOf(s.records), nil
}
