package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/robotic-testing/rtb/internal/hub"
	"github.com/robotic-testing/rtb/internal/sensor"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsSink adapts a WebSocket connection to the broadcast hub. Writes are
// serialized and bounded by a write deadline so one stalled client never
// holds up a broadcast.
type wsSink struct {
	id           string
	conn         *websocket.Conn
	writeTimeout time.Duration

	mu        sync.Mutex
	closeOnce sync.Once
}

var _ hub.Sink = (*wsSink)(nil)

func (s *wsSink) ID() string { return s.id }

func (s *wsSink) Deliver(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

// Close is idempotent: the hub closes evicted sinks and the handler's
// deferred cleanup closes again.
func (s *wsSink) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.conn.Close()
	})
	return err
}

// send marshals an envelope and delivers it to this sink only.
func (s *wsSink) send(msgType string, data interface{}) error {
	payload, err := json.Marshal(hub.Message{Type: msgType, Data: data})
	if err != nil {
		return err
	}
	return s.Deliver(payload)
}

// handleSensorDataWS upgrades the connection, registers it as an
// observer, and serves client requests until the peer disconnects or the
// hub evicts it after a failed delivery.
func (s *Server) handleSensorDataWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("WebSocket upgrade failed", "error", err)
		return
	}

	sink := &wsSink{
		id:           "client_" + uuid.New().String(),
		conn:         conn,
		writeTimeout: s.wsWriteTimeout,
	}

	s.pipeline.RegisterObserver(sink)
	defer func() {
		s.pipeline.UnregisterObserver(sink.id)
		_ = sink.Close()
	}()

	s.log.Info("Observer connected", "client", sink.id)

	if err := sink.send("connection_established", map[string]interface{}{
		"client_id": sink.id,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		return
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			s.log.Info("Observer disconnected", "client", sink.id)
			return
		}

		var req struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(raw, &req); err != nil {
			if sink.send("error", map[string]string{"message": "invalid message"}) != nil {
				return
			}
			continue
		}

		if err := s.handleWSRequest(sink, req.Type); err != nil {
			return
		}
	}
}

// handleWSRequest answers a single client request on its own connection.
func (s *Server) handleWSRequest(sink *wsSink, reqType string) error {
	switch reqType {
	case "ping":
		return sink.send("pong", map[string]interface{}{
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	case "get_status":
		return sink.send("system_status", s.systemStatus())
	case "subscribe":
		return sink.send("subscription_confirmed", map[string]interface{}{
			"client_id": sink.id,
		})
	default:
		return sink.send("error", map[string]string{
			"message": fmt.Sprintf("unknown request type: %s", reqType),
		})
	}
}

// systemStatus builds the status payload sent to observers on request.
func (s *Server) systemStatus() map[string]interface{} {
	active := s.pipeline.SensorStatus()
	overview := s.pipeline.Summary()
	return map[string]interface{}{
		"force_sensor":          active[sensor.KindForce],
		"motor_controller":      active[sensor.KindMotor],
		"camera":                active[sensor.KindCamera],
		"recording":             overview.Recording,
		"uptime_seconds":        time.Since(s.startTime).Seconds(),
		"data_points_collected": overview.TotalReadings,
	}
}
