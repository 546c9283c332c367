package ws

import (
	"sync"

	"github.com/gorilla/websocket"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

// Hub keeps the websocket connections of dashboards listening for bid
// events and forwards everything published on the events topic to them.
type Hub struct {
	connMap sync.Map // socketId -> *websocket.Conn
	conn    *nats.Conn

	writeMu sync.Mutex
}

func NewHub(nc *nats.Conn) *Hub {
	return &Hub{conn: nc}
}

// Subscribe starts forwarding the given NATS topic to every connected
// socket.
func (h *Hub) Subscribe(topic string) (*nats.Subscription, error) {
	return h.conn.Subscribe(topic, h.handleEvent)
}

func (h *Hub) handleEvent(msg *nats.Msg) {
	// One writer at a time per hub; gorilla connections do not allow
	// concurrent writes.
	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	h.connMap.Range(func(key, value interface{}) bool {
		socketId := key.(string)
		conn := value.(*websocket.Conn)
		if err := conn.WriteMessage(websocket.TextMessage, msg.Data); err != nil {
			log.Warnf("dropping socket %s: %s", socketId, err)
			conn.Close()
			h.connMap.Delete(socketId)
		}
		return true
	})
}

func (h *Hub) StoreConnection(socketId string, conn *websocket.Conn) {
	h.connMap.Store(socketId, conn)
	log.Infof("event stream connected: %s", socketId)
}

func (h *Hub) HandleDisconnect(socketId string) {
	h.connMap.Delete(socketId)
	log.Infof("event stream disconnected: %s", socketId)
}
