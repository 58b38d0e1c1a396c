package wire

import "fmt"

// RecordType is the discriminator carried in the "type" field of every record
type RecordType string

const (
	// Host → runtime
	TypeMessage RecordType = "message"

	// Runtime → host
	TypeOutlet RecordType = "outlet"
	TypeLog    RecordType = "log"
	TypeError  RecordType = "error"
	TypeReady  RecordType = "ready"
)

// InboundMessage is one decoded host message. Inlet is 0 when the record
// does not name one.
type InboundMessage struct {
	Inlet    int
	Selector string
	Args     []Value
}

// String returns a short human readable form used in diagnostics
func (m InboundMessage) String() string {
	return fmt.Sprintf("%d:%s%v", m.Inlet, m.Selector, m.Args)
}

// OutboundMessage is one record written to the host. Type selects which of
// the remaining fields are meaningful:
//
//	TypeOutlet: Outlet, Selector, Args
//	TypeLog, TypeError: Text
//	TypeReady: none
type OutboundMessage struct {
	Type     RecordType
	Outlet   int
	Selector string
	Args     []Value
	Text     string
}

// NewEmit creates an outlet record
func NewEmit(outlet int, selector string, args []Value) OutboundMessage {
	if args == nil {
		args = []Value{}
	}
	return OutboundMessage{
		Type:     TypeOutlet,
		Outlet:   outlet,
		Selector: selector,
		Args:     args,
	}
}

// NewLog creates a console log record
func NewLog(text string) OutboundMessage {
	return OutboundMessage{Type: TypeLog, Text: text}
}

// NewError creates a console error record
func NewError(text string) OutboundMessage {
	return OutboundMessage{Type: TypeError, Text: text}
}

// NewReady creates the startup ready record
func NewReady() OutboundMessage {
	return OutboundMessage{Type: TypeReady}
}

// outletRecord is the encoded shape of a TypeOutlet message
type outletRecord struct {
	Type     RecordType `json:"type" cbor:"type"`
	Outlet   int        `json:"outlet" cbor:"outlet"`
	Selector string     `json:"selector" cbor:"selector"`
	Args     []Value    `json:"args" cbor:"args"`
}

// textRecord is the encoded shape of TypeLog and TypeError messages
type textRecord struct {
	Type    RecordType `json:"type" cbor:"type"`
	Message string     `json:"message" cbor:"message"`
}

// readyRecord is the encoded shape of TypeReady
type readyRecord struct {
	Type RecordType `json:"type" cbor:"type"`
}

// record returns the struct that encodes msg with stable field order
func (msg OutboundMessage) record() (any, error) {
	switch msg.Type {
	case TypeOutlet:
		args := msg.Args
		if args == nil {
			args = []Value{}
		}
		return outletRecord{Type: TypeOutlet, Outlet: msg.Outlet, Selector: msg.Selector, Args: args}, nil
	case TypeLog, TypeError:
		return textRecord{Type: msg.Type, Message: msg.Text}, nil
	case TypeReady:
		return readyRecord{Type: TypeReady}, nil
	default:
		return nil, fmt.Errorf("cannot encode outbound record of type %q", msg.Type)
	}
}

// inboundRecord is the decoded shape of a TypeMessage record
type inboundRecord struct {
	Type     RecordType `json:"type" cbor:"type"`
	Inlet    int        `json:"inlet" cbor:"inlet"`
	Selector string     `json:"selector" cbor:"selector"`
	Args     []Value    `json:"args" cbor:"args"`
}

// message converts a decoded record into an InboundMessage. A record with an
// empty selector is delivered to the fallback selector.
func (r inboundRecord) message() InboundMessage {
	selector := r.Selector
	if selector == "" {
		selector = "anything"
	}
	args := r.Args
	if args == nil {
		args = []Value{}
	}
	return InboundMessage{Inlet: r.Inlet, Selector: selector, Args: args}
}
