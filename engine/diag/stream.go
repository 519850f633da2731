package diag

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Stream broadcasts frame summaries as JSON text messages to every connected websocket client.
// Its goroutines only touch their own client set, never renderer state.
type Stream struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]*sync.Mutex

	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	done       chan struct{}
	closeOnce  sync.Once
}

// NewStream creates a Stream and starts its hub goroutine.
func NewStream() *Stream {
	s := &Stream{
		clients:    make(map[*websocket.Conn]*sync.Mutex),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Stream) run() {
	for {
		select {
		case <-s.done:
			s.mu.Lock()
			for c := range s.clients {
				c.Close()
			}
			clear(s.clients)
			s.mu.Unlock()
			return
		case c := <-s.register:
			s.mu.Lock()
			s.clients[c] = &sync.Mutex{}
			s.mu.Unlock()
			logger.Infof("stream client connected: %s", c.RemoteAddr())
		case c := <-s.unregister:
			s.drop(c)
		case msg := <-s.broadcast:
			type target struct {
				conn *websocket.Conn
				lock *sync.Mutex
			}
			s.mu.Lock()
			targets := make([]target, 0, len(s.clients))
			for c, l := range s.clients {
				targets = append(targets, target{c, l})
			}
			s.mu.Unlock()

			for _, t := range targets {
				t.lock.Lock()
				err := t.conn.WriteMessage(websocket.TextMessage, msg)
				t.lock.Unlock()
				if err != nil {
					logger.Debugf("stream write to %s: %v", t.conn.RemoteAddr(), err)
					s.drop(t.conn)
				}
			}
		}
	}
}

func (s *Stream) drop(c *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		c.Close()
		logger.Infof("stream client disconnected: %s", c.RemoteAddr())
	}
}

// Publish queues stats for every client. When the queue is full the message is dropped so the
// render thread never blocks on slow clients.
func (s *Stream) Publish(stats FrameStats) {
	msg, err := json.Marshal(stats)
	if err != nil {
		logger.Warningf("stream marshal: %v", err)
		return
	}
	select {
	case <-s.done:
	case s.broadcast <- msg:
	default:
	}
}

// Clients returns the number of connected clients.
func (s *Stream) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// ServeHTTP upgrades the request to a websocket and keeps the client until it disconnects.
func (s *Stream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warningf("stream upgrade: %v", err)
		return
	}
	select {
	case s.register <- conn:
	case <-s.done:
		conn.Close()
		return
	}

	go func() {
		defer func() {
			select {
			case s.unregister <- conn:
			case <-s.done:
			}
		}()
		for {
			// Clients only listen; reading detects the close.
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Close disconnects every client and stops the hub.
func (s *Stream) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}
