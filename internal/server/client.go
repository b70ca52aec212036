package server

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/gridwise/ocppd/internal/dispatch"
	"github.com/gridwise/ocppd/internal/logging"
	"github.com/gridwise/ocppd/internal/metrics"
	"github.com/gridwise/ocppd/internal/ocpp"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	Subprotocols:    []string{"ocpp1.6", "ocpp2.0", "ocpp2.0.1"},
	// Charge points are not browsers; origin checks do not apply.
	CheckOrigin: func(*http.Request) bool { return true },
}

// client is one connected charge point socket.
type client struct {
	identity string
	org      string
	conn     *websocket.Conn
	cp       *dispatch.ChargePoint

	writeMu sync.Mutex
	closed  atomic.Bool
}

// Send implements dispatch.Sender. Concurrent writers (the dispatch
// reply path and server-initiated Calls) are serialized because gorilla
// allows only one writer at a time.
func (c *client) Send(message []byte) error {
	if c.closed.Load() {
		return dispatch.ErrConnectionClosed
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	metrics.MessagesTotal.WithLabelValues("outbound").Inc()
	return c.conn.WriteMessage(websocket.TextMessage, message)
}

func (c *client) close() {
	if c.closed.CompareAndSwap(false, true) {
		c.cp.Close()
		_ = c.conn.Close()
	}
}

// identityFromPath extracts {org, chargePointID} from the request path.
func identityFromPath(path string) (org, id string, ok bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	org, identity, ok := identityFromPath(r.URL.Path)
	if !ok {
		http.Error(w, "expected path /{org}/{chargePointID}", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		logging.Error("WebSocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	logging.LogConnection(identity, r.RemoteAddr, "websocket_upgraded")
	logging.Debug("Subprotocol negotiated",
		zap.String("identity", identity),
		zap.String("subprotocol", conn.Subprotocol()),
	)

	c := &client{identity: identity, org: org, conn: conn}
	c.cp = dispatch.NewChargePoint(identity, c, s.table, s.validator, s.config.OCPPVersion,
		dispatch.WithCallTimeout(s.config.CallTimeout))

	c.cp.BeforeDispatch = func(callCtx context.Context, call *ocpp.Call) {
		metrics.CallsTotal.WithLabelValues(call.Action).Inc()
		s.registry.ObserveCall(callCtx, identity, call)
	}
	c.cp.AfterReply = func(callCtx context.Context, call *ocpp.Call, _ *ocpp.CallResult, callErr *ocpp.CallError) {
		if callErr != nil {
			metrics.CallErrorsTotal.WithLabelValues(string(callErr.Code)).Inc()
			return
		}
		// Every successfully dispatched call folds its payload into the
		// session and refreshes the connected-clients snapshot.
		s.registry.MergeAttributes(callCtx, identity, call.Payload)
		s.registry.PublishClients(callCtx, s.ConnectedClients())
	}

	// The request context dies when this handler returns, but the
	// socket lives on; give the connection its own context.
	ctx := context.Background()

	s.addClient(c)
	s.registry.Connect(ctx, identity)

	s.wg.Add(1)
	defer s.wg.Done()
	s.readLoop(ctx, c)
}

func (s *Server) readLoop(ctx context.Context, c *client) {
	defer func() {
		owned := s.removeClient(c)
		c.close()
		// An evicted connection must not tear down the session its
		// replacement just registered.
		if owned {
			s.registry.Disconnect(ctx, c.identity)
		}
		logging.LogConnection(c.identity, c.conn.RemoteAddr().String(), "websocket_closed")
	}()

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.Warn("Connection dropped",
					zap.String("identity", c.identity),
					zap.Error(err),
				)
			}
			return
		}
		if messageType != websocket.TextMessage {
			logging.Debug("Ignoring non-text frame", zap.String("identity", c.identity))
			continue
		}
		metrics.MessagesTotal.WithLabelValues("inbound").Inc()
		c.cp.HandleMessage(ctx, data)
	}
}

func (s *Server) addClient(c *client) {
	s.mu.Lock()
	old, exists := s.clients[c.identity]
	s.clients[c.identity] = c
	s.mu.Unlock()

	if exists {
		logging.Warn("Evicting previous connection for identity",
			zap.String("identity", c.identity))
		old.close()
	} else {
		metrics.ConnectedClients.Inc()
	}
}

// removeClient drops c from the table unless the identity has already
// been taken over by a newer connection. Reports whether c still owned
// its table slot.
func (s *Server) removeClient(c *client) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.clients[c.identity]; ok && current == c {
		delete(s.clients, c.identity)
		metrics.ConnectedClients.Dec()
		return true
	}
	return false
}
