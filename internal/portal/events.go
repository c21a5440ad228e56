package portal

import (
	"errors"
	"fmt"
	"time"

	"github.com/swartninja/provisioner/internal/brokerconfig"
)

// ErrTimeout is reported when the portal closes without a submission
// because its timeout elapsed.
var ErrTimeout = errors.New("portal timed out without a submission")

// EventType identifies a portal lifecycle notification
type EventType int

const (
	// EventStarted is delivered once the access point and form are up
	EventStarted EventType = iota + 1
	// EventSubmitted is delivered once the operator has submitted valid values
	EventSubmitted
)

// String returns the wire name of the event type
func (t EventType) String() string {
	switch t {
	case EventStarted:
		return "started"
	case EventSubmitted:
		return "submitted"
	default:
		return fmt.Sprintf("EventType(%d)", int(t))
	}
}

// Event is a portal lifecycle notification. Each type is delivered at most
// once per session.
type Event struct {
	Type EventType
	SSID string    // Access point SSID
	URL  string    // Form URL, set on EventStarted
	Time time.Time // When the event occurred

	// Config holds the submitted values, set on EventSubmitted
	Config brokerconfig.ConnectionConfig
}

// Result is the outcome of a finished session.
type Result struct {
	// Connected reports whether a network connection was established
	Connected bool

	// Submitted reports whether the operator submitted the form
	Submitted bool

	// Config holds the submitted values, or the prefill when nothing was
	// submitted
	Config brokerconfig.ConnectionConfig

	// Err is set when the portal could not run, timed out (ErrTimeout) or
	// was canceled
	Err error
}

// Message is the JSON document streamed on /events.
type Message struct {
	Type      string         `json:"type"` // hello, started, submitted, closed
	DeviceID  string         `json:"device_id,omitempty"`
	SSID      string         `json:"ssid,omitempty"`
	URL       string         `json:"url,omitempty"`
	Broker    *BrokerSummary `json:"broker,omitempty"`
	Error     string         `json:"error,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Message types streamed on /events besides the event names
const (
	MessageHello  = "hello"
	MessageClosed = "closed"
)

// BrokerSummary is the broker configuration without its password
type BrokerSummary struct {
	Server   string `json:"server"`
	Port     string `json:"port"`
	Username string `json:"username"`
}

func summarize(cfg brokerconfig.ConnectionConfig) *BrokerSummary {
	return &BrokerSummary{
		Server:   cfg.BrokerAddress,
		Port:     cfg.BrokerPort,
		Username: cfg.Username,
	}
}

func (e Event) message(deviceID string) Message {
	msg := Message{
		Type:      e.Type.String(),
		DeviceID:  deviceID,
		SSID:      e.SSID,
		URL:       e.URL,
		Timestamp: e.Time,
	}
	if e.Type == EventSubmitted {
		msg.Broker = summarize(e.Config)
	}
	return msg
}
