package mosquitto

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
)

// Ingester receives raw beacon samples.
type Ingester interface {
	Ingest(beaconID string, rssi int) float64
}

// BeaconMsg is one reading published by a scanner node. Older nodes send a
// pre-averaged avg_rssi instead of rssi.
type BeaconMsg struct {
	BeaconName string   `json:"beacon_name"`
	RSSI       *int     `json:"rssi,omitempty"`
	AvgRssi    *float64 `json:"avg_rssi,omitempty"`
	TxPower    int      `json:"tx_power,omitempty"`
}

type MqttMsgHandler struct {
	sink Ingester
	log  *slog.Logger
}

func NewHandler(sink Ingester, log *slog.Logger) *MqttMsgHandler {
	return &MqttMsgHandler{sink: sink, log: log}
}

func (h *MqttMsgHandler) HandleMsg(msg []byte) error {
	var beaconMsg BeaconMsg
	if err := json.Unmarshal(msg, &beaconMsg); err != nil {
		h.log.Error("failed to parse MQTT message", "err", err)
		return err
	}
	if beaconMsg.BeaconName == "" {
		return errors.New("message without beacon_name")
	}

	var rssi int
	switch {
	case beaconMsg.RSSI != nil:
		rssi = *beaconMsg.RSSI
	case beaconMsg.AvgRssi != nil:
		rssi = int(math.Round(*beaconMsg.AvgRssi))
	default:
		return fmt.Errorf("beacon %s: message without rssi", beaconMsg.BeaconName)
	}

	smoothed := h.sink.Ingest(beaconMsg.BeaconName, rssi)
	h.log.Debug("beacon sample",
		"beacon", beaconMsg.BeaconName,
		"rssi", rssi,
		"smoothed", smoothed,
	)
	return nil
}
