package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/gridwise/ocppd/internal/logging"
)

// Subjects served and published by the relay.
const (
	SubjectDisconnect = "ocpp.cmd.disconnect"
	SubjectCall       = "ocpp.cmd.call"
	SubjectReply      = "ocpp.cmd.reply"
	SubjectClients    = "ocpp.notify.clients"
)

// ClientController is the server surface the relay drives.
type ClientController interface {
	// Disconnect force-closes the client socket. Reports whether the
	// client was connected here.
	Disconnect(identity string) bool
	// SendCall pushes a server-initiated Call and returns its result
	// payload.
	SendCall(ctx context.Context, identity, action string, payload map[string]any) (map[string]any, error)
	// ConnectedClients lists the identities currently attached.
	ConnectedClients() []string
}

// DisconnectCommand asks the relay to drop one client.
type DisconnectCommand struct {
	ChargePointID string `json:"chargePointId"`
}

// CallCommand asks the relay to push a Call to one client.
type CallCommand struct {
	ChargePointID string         `json:"chargePointId"`
	Action        string         `json:"action"`
	Payload       map[string]any `json:"payload,omitempty"`
	RequestID     string         `json:"requestId,omitempty"`
}

// Reply is the outcome of a relayed command.
type Reply struct {
	ChargePointID string         `json:"chargePointId"`
	RequestID     string         `json:"requestId,omitempty"`
	Action        string         `json:"action,omitempty"`
	Success       bool           `json:"success"`
	Result        map[string]any `json:"result,omitempty"`
	Error         string         `json:"error,omitempty"`
}

// ClientsSnapshot is published on SubjectClients.
type ClientsSnapshot struct {
	Clients   []string  `json:"clients"`
	Timestamp time.Time `json:"timestamp"`
}

// Relay subscribes to command subjects on an existing NATS connection.
type Relay struct {
	nc         *nats.Conn
	controller ClientController
	callBudget time.Duration
	subs       []*nats.Subscription
}

// New builds a relay on a shared NATS connection. callBudget bounds how
// long a relayed Call may take end to end; zero means a minute.
func New(nc *nats.Conn, controller ClientController, callBudget time.Duration) *Relay {
	if callBudget <= 0 {
		callBudget = time.Minute
	}
	return &Relay{nc: nc, controller: controller, callBudget: callBudget}
}

// Start subscribes the command subjects. Call handlers run on their own
// goroutines because a relayed Call can block for the full response
// timeout.
func (r *Relay) Start() error {
	sub, err := r.nc.Subscribe(SubjectDisconnect, func(msg *nats.Msg) {
		var cmd DisconnectCommand
		if err := json.Unmarshal(msg.Data, &cmd); err != nil {
			logging.Warn("Malformed disconnect command", zap.Error(err))
			return
		}
		r.respond(msg, r.handleDisconnect(cmd))
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", SubjectDisconnect, err)
	}
	r.subs = append(r.subs, sub)

	sub, err = r.nc.Subscribe(SubjectCall, func(msg *nats.Msg) {
		var cmd CallCommand
		if err := json.Unmarshal(msg.Data, &cmd); err != nil {
			logging.Warn("Malformed call command", zap.Error(err))
			return
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), r.callBudget)
			defer cancel()
			r.respond(msg, r.handleCall(ctx, cmd))
		}()
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", SubjectCall, err)
	}
	r.subs = append(r.subs, sub)

	logging.Info("Command relay started",
		zap.String("disconnect_subject", SubjectDisconnect),
		zap.String("call_subject", SubjectCall),
	)
	return nil
}

// Stop unsubscribes the command subjects.
func (r *Relay) Stop() {
	for _, sub := range r.subs {
		if err := sub.Unsubscribe(); err != nil {
			logging.Warn("Unsubscribe failed", zap.Error(err))
		}
	}
	r.subs = nil
}

func (r *Relay) handleDisconnect(cmd DisconnectCommand) Reply {
	reply := Reply{ChargePointID: cmd.ChargePointID}
	if cmd.ChargePointID == "" {
		reply.Error = "chargePointId is required"
		return reply
	}
	if !r.controller.Disconnect(cmd.ChargePointID) {
		reply.Error = fmt.Sprintf("client %s is not connected", cmd.ChargePointID)
		return reply
	}
	reply.Success = true
	return reply
}

func (r *Relay) handleCall(ctx context.Context, cmd CallCommand) Reply {
	reply := Reply{
		ChargePointID: cmd.ChargePointID,
		RequestID:     cmd.RequestID,
		Action:        cmd.Action,
	}
	if cmd.ChargePointID == "" || cmd.Action == "" {
		reply.Error = "chargePointId and action are required"
		return reply
	}

	result, err := r.controller.SendCall(ctx, cmd.ChargePointID, cmd.Action, cmd.Payload)
	if err != nil {
		reply.Error = err.Error()
		return reply
	}
	reply.Success = true
	reply.Result = result
	return reply
}

// respond answers on the request's reply subject when the caller set
// one, otherwise on the shared reply subject, then publishes a client
// snapshot.
func (r *Relay) respond(msg *nats.Msg, reply Reply) {
	data, err := json.Marshal(reply)
	if err != nil {
		logging.Error("Failed to encode relay reply", zap.Error(err))
		return
	}

	subject := msg.Reply
	if subject == "" {
		subject = SubjectReply
	}
	if err := r.nc.Publish(subject, data); err != nil {
		logging.Warn("Failed to publish relay reply", zap.String("subject", subject), zap.Error(err))
	}

	r.publishClients()
}

func (r *Relay) publishClients() {
	snapshot := ClientsSnapshot{
		Clients:   r.controller.ConnectedClients(),
		Timestamp: time.Now().UTC(),
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return
	}
	if err := r.nc.Publish(SubjectClients, data); err != nil {
		logging.Debug("Failed to publish client snapshot", zap.Error(err))
	}
}
