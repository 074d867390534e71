package mosquitto

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	id   string
	rssi int
}

type recordingSink struct {
	got []sample
}

func (r *recordingSink) Ingest(id string, rssi int) float64 {
	r.got = append(r.got, sample{id, rssi})
	return float64(rssi)
}

func newTestHandler() (*MqttMsgHandler, *recordingSink) {
	sink := &recordingSink{}
	return NewHandler(sink, slog.New(slog.NewTextHandler(io.Discard, nil))), sink
}

func TestHandleMsg(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		msg  string
		want sample
	}{
		{"raw rssi", `{"beacon_name": "beacon_1", "rssi": -67}`, sample{"beacon_1", -67}},
		{"averaged rssi", `{"beacon_name": "beacon_2", "avg_rssi": -70.6, "tx_power": -59}`, sample{"beacon_2", -71}},
		{"raw wins", `{"beacon_name": "b", "rssi": -50, "avg_rssi": -90}`, sample{"b", -50}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h, sink := newTestHandler()
			require.NoError(t, h.HandleMsg([]byte(tt.msg)))
			require.Len(t, sink.got, 1)
			assert.Equal(t, tt.want, sink.got[0])
		})
	}
}

func TestHandleMsgRejects(t *testing.T) {
	t.Parallel()

	for _, msg := range []string{
		`not json`,
		`{"rssi": -60}`,
		`{"beacon_name": "b"}`,
	} {
		h, sink := newTestHandler()
		assert.Error(t, h.HandleMsg([]byte(msg)), msg)
		assert.Empty(t, sink.got, msg)
	}
}
