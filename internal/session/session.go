package session

import "time"

// ConnectorStatus is the last StatusNotification seen for one connector.
type ConnectorStatus struct {
	ID        int    `json:"id"`
	Status    string `json:"status"`
	ErrorCode string `json:"errorCode"`
	Timestamp string `json:"timestamp,omitempty"`
	CallID    string `json:"callId,omitempty"`
}

// Session is the last-known projection of a charge point.
type Session struct {
	Identity      string            `json:"identity"`
	Model         string            `json:"model,omitempty"`
	Vendor        string            `json:"vendor,omitempty"`
	Connectors    []ConnectorStatus `json:"connectors,omitempty"`
	LastConnected time.Time         `json:"lastConnected"`
}

// Clone returns a deep copy so callers can hand sessions across
// goroutines without sharing the connector slice.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	if s.Connectors != nil {
		out.Connectors = make([]ConnectorStatus, len(s.Connectors))
		copy(out.Connectors, s.Connectors)
	}
	return &out
}

// Connector returns the recorded status of the given connector, when
// one exists.
func (s *Session) Connector(id int) (ConnectorStatus, bool) {
	for _, c := range s.Connectors {
		if c.ID == id {
			return c, true
		}
	}
	return ConnectorStatus{}, false
}
