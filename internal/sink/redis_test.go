package sink_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/faultline/internal/sink"
	"github.com/dwsmith1983/faultline/pkg/types"
)

type mockStream struct {
	args []*goredis.XAddArgs
	err  error
}

func (m *mockStream) XAdd(_ context.Context, a *goredis.XAddArgs) *goredis.StringCmd {
	m.args = append(m.args, a)
	if m.err != nil {
		return goredis.NewStringResult("", m.err)
	}
	return goredis.NewStringResult("1714554000000-0", nil)
}

func TestRedisSink_Send(t *testing.T) {
	mock := &mockStream{}
	rs, err := sink.NewRedisSink(types.SinkConfig{Type: types.SinkRedis}, sink.WithStreamClient(mock))
	require.NoError(t, err)
	assert.Equal(t, "redis", rs.Name())

	rec := sink.NewRecord(testEvent(t, "01J0000000000000000000000A", types.SeverityCritical))
	require.NoError(t, rs.Send(context.Background(), rec))

	require.Len(t, mock.args, 1)
	a := mock.args[0]
	assert.Equal(t, sink.DefaultStream, a.Stream)
	assert.Equal(t, int64(10000), a.MaxLen)
	assert.True(t, a.Approx)

	values, ok := a.Values.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "01J0000000000000000000000A", values["correlation_id"])
	assert.Equal(t, "critical", values["severity"])
	assert.Equal(t, "NameError", values["error_type"])

	var decoded types.LogRecord
	require.NoError(t, json.Unmarshal([]byte(values["data"].(string)), &decoded))
	assert.Equal(t, rec, decoded)
	assert.NoError(t, rs.Close())
}

func TestRedisSink_CustomStream(t *testing.T) {
	mock := &mockStream{}
	rs, err := sink.NewRedisSink(types.SinkConfig{Stream: "chaos", MaxLen: 50}, sink.WithStreamClient(mock))
	require.NoError(t, err)
	require.NoError(t, rs.Send(context.Background(), types.LogRecord{}))
	assert.Equal(t, "chaos", mock.args[0].Stream)
	assert.Equal(t, int64(50), mock.args[0].MaxLen)
}

func TestRedisSink_Error(t *testing.T) {
	mock := &mockStream{err: errors.New("READONLY")}
	rs, err := sink.NewRedisSink(types.SinkConfig{}, sink.WithStreamClient(mock))
	require.NoError(t, err)
	err = rs.Send(context.Background(), types.LogRecord{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "XADD faultline:events")
}
