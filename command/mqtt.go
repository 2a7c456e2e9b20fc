package command

import (
	"fmt"
	"strings"
	"time"

	"i4.energy/across/bg95/at"
)

const (
	hostMaxLen     = 100
	topicMaxLen    = 128
	clientIDMaxLen = 256
	credMaxLen     = 512
	maxTopics      = 5

	// PublishMaxLen is the largest fixed length message AT+QMTPUB accepts.
	PublishMaxLen = 4096
)

// QoS is an MQTT quality of service level.
type QoS int

const (
	AtMostOnce QoS = iota
	AtLeastOnce
	ExactlyOnce
)

func (q QoS) String() string {
	switch q {
	case AtMostOnce:
		return "at-most-once"
	case AtLeastOnce:
		return "at-least-once"
	case ExactlyOnce:
		return "exactly-once"
	default:
		return fmt.Sprintf("QoS(%d)", int(q))
	}
}

// PacketResult is the <result> of the asynchronous MQTT packet replies.
type PacketResult int

const (
	PacketSent           PacketResult = 0
	PacketRetransmission PacketResult = 1
	PacketFailed         PacketResult = 2
)

func (r PacketResult) String() string {
	switch r {
	case PacketSent:
		return "sent"
	case PacketRetransmission:
		return "retransmission"
	case PacketFailed:
		return "failed"
	default:
		return fmt.Sprintf("PacketResult(%d)", int(r))
	}
}

// OpenResult is the <result> of +QMTOPEN.
type OpenResult int

const (
	OpenFailed          OpenResult = -1
	OpenSuccess         OpenResult = 0
	OpenWrongParameter  OpenResult = 1
	OpenIDOccupied      OpenResult = 2
	OpenPDPFailed       OpenResult = 3
	OpenDomainFailed    OpenResult = 4
	OpenConnectionError OpenResult = 5
)

func (r OpenResult) String() string {
	switch r {
	case OpenFailed:
		return "failed"
	case OpenSuccess:
		return "success"
	case OpenWrongParameter:
		return "wrong-parameter"
	case OpenIDOccupied:
		return "identifier-occupied"
	case OpenPDPFailed:
		return "pdp-activation-failed"
	case OpenDomainFailed:
		return "domain-resolution-failed"
	case OpenConnectionError:
		return "connection-error"
	default:
		return fmt.Sprintf("OpenResult(%d)", int(r))
	}
}

// Present flags shared by the MQTT replies.
const (
	HasClient at.Fields = 1 << iota
	HasResult
	HasMsgID
	HasValue
	HasState
	HasReturnCode
	HasHost
	HasPort
)

func validClient(v int) bool { return v >= ClientMin && v <= ClientMax }

type QMTOPENParams struct {
	Client int
	Host   string
	Port   int
}

// QMTOPENResult is the asynchronous +QMTOPEN reply of the write variant.
type QMTOPENResult struct {
	Client  int
	Result  OpenResult
	Present at.Fields
}

// OpenNetwork is the read reply: the server a client is currently open to.
// A modem with no open client answers with OK alone and Present stays empty.
type OpenNetwork struct {
	Client  int
	Host    string
	Port    int
	Present at.Fields
}

// QMTOPEN opens the network connection of an MQTT client. The final OK
// comes first; the +QMTOPEN result follows once the connection attempt is
// over.
var QMTOPEN = &at.Descriptor{
	Name:        "QMTOPEN",
	Description: "Open a Network Connection for MQTT Client",
	Timeout:     120 * time.Second,
	Variants: map[at.Variant]at.Handler{
		at.Read: {
			Shape: at.DataOptional,
			Parse: at.ParseAs(func(r at.Response, out *OpenNetwork) error {
				p, ok := r.Payload("+QMTOPEN:")
				if !ok {
					return nil
				}
				f := at.SplitFields(p)
				var err error
				if out.Client, err = leadingInt(f, "client index", validClient); err != nil {
					return err
				}
				out.Present.Set(HasClient)
				if s, ok := quotedField(f, 1, "host"); ok {
					out.Host = s
					out.Present.Set(HasHost)
				}
				if v, ok := intField(f, 2, "port", between(0, 65535)); ok {
					out.Port = v
					out.Present.Set(HasPort)
				}
				return nil
			}),
		},
		at.Write: {
			Shape: at.DataRequired,
			Format: at.FormatAs(func(w *at.ParamWriter, p QMTOPENParams) {
				w.Int("client index", p.Client, ClientMin, ClientMax)
				w.Quoted("host", p.Host, hostMaxLen)
				w.Int("port", p.Port, 0, 65535)
			}),
			Parse: at.ParseAs(func(r at.Response, out *QMTOPENResult) error {
				f, err := fields(r, "+QMTOPEN:")
				if err != nil {
					return err
				}
				if out.Client, err = leadingInt(f, "client index", validClient); err != nil {
					return err
				}
				out.Present.Set(HasClient)
				if v, ok := intField(f, 1, "result", between(-1, 5)); ok {
					out.Result = OpenResult(v)
					out.Present.Set(HasResult)
				}
				return nil
			}),
		},
	},
}

type QMTCLOSEParams struct {
	Client int
}

// QMTCLOSEResult is the asynchronous +QMTCLOSE reply; Result is 0 on
// success and -1 on failure.
type QMTCLOSEResult struct {
	Client  int
	Result  int
	Present at.Fields
}

// Closed reports a successful close.
func (r QMTCLOSEResult) Closed() bool {
	return r.Present.Has(HasResult) && r.Result == 0
}

// QMTCLOSE closes the network connection of an MQTT client.
var QMTCLOSE = &at.Descriptor{
	Name:        "QMTCLOSE",
	Description: "Close a Network Connection for MQTT Client",
	Timeout:     300 * time.Millisecond,
	Variants: map[at.Variant]at.Handler{
		at.Test: {Shape: at.DataRequired, Parse: parseClientRange("+QMTCLOSE:")},
		at.Write: {
			Shape: at.DataRequired,
			Format: at.FormatAs(func(w *at.ParamWriter, p QMTCLOSEParams) {
				w.Int("client index", p.Client, ClientMin, ClientMax)
			}),
			Parse: at.ParseAs(func(r at.Response, out *QMTCLOSEResult) error {
				f, err := fields(r, "+QMTCLOSE:")
				if err != nil {
					return err
				}
				if out.Client, err = leadingInt(f, "client index", validClient); err != nil {
					return err
				}
				out.Present.Set(HasClient)
				if v, ok := intField(f, 1, "result", between(-1, 0)); ok {
					out.Result = v
					out.Present.Set(HasResult)
				}
				return nil
			}),
		},
	},
}

// ConnState is the MQTT connection state reported by AT+QMTCONN?.
type ConnState int

const (
	ConnInitializing  ConnState = 1
	ConnConnecting    ConnState = 2
	ConnConnected     ConnState = 3
	ConnDisconnecting ConnState = 4
)

func (s ConnState) String() string {
	switch s {
	case ConnInitializing:
		return "initializing"
	case ConnConnecting:
		return "connecting"
	case ConnConnected:
		return "connected"
	case ConnDisconnecting:
		return "disconnecting"
	default:
		return fmt.Sprintf("ConnState(%d)", int(s))
	}
}

// ReturnCode is the CONNACK return code of the MQTT server.
type ReturnCode int

const (
	ConnAccepted ReturnCode = iota
	ConnBadProtocol
	ConnIdentifierRejected
	ConnServerUnavailable
	ConnBadCredentials
	ConnNotAuthorized
)

func (c ReturnCode) String() string {
	switch c {
	case ConnAccepted:
		return "accepted"
	case ConnBadProtocol:
		return "unacceptable-protocol"
	case ConnIdentifierRejected:
		return "identifier-rejected"
	case ConnServerUnavailable:
		return "server-unavailable"
	case ConnBadCredentials:
		return "bad-credentials"
	case ConnNotAuthorized:
		return "not-authorized"
	default:
		return fmt.Sprintf("ReturnCode(%d)", int(c))
	}
}

// QMTCONNParams connects client Client as ClientID. Password is only sent
// together with Username.
type QMTCONNParams struct {
	Client   int
	ClientID string
	Username string
	Password string
}

type QMTCONNResult struct {
	Client     int
	Result     PacketResult
	ReturnCode ReturnCode
	Present    at.Fields
}

// Accepted reports that the server accepted the connection.
func (r QMTCONNResult) Accepted() bool {
	return r.Present.Has(HasResult|HasReturnCode) && r.Result == PacketSent && r.ReturnCode == ConnAccepted
}

// Connection is the read reply for one client; Present is empty when no
// client is connected.
type Connection struct {
	Client  int
	State   ConnState
	Present at.Fields
}

// QMTCONN connects an MQTT client to the server opened with QMTOPEN.
var QMTCONN = &at.Descriptor{
	Name:        "QMTCONN",
	Description: "Connect a Client to MQTT Server",
	Timeout:     5 * time.Second,
	Variants: map[at.Variant]at.Handler{
		at.Test: {Shape: at.DataRequired, Parse: parseClientRange("+QMTCONN:")},
		at.Read: {
			Shape: at.DataOptional,
			Parse: at.ParseAs(func(r at.Response, out *Connection) error {
				p, ok := r.Payload("+QMTCONN:")
				if !ok {
					return nil
				}
				f := at.SplitFields(p)
				var err error
				if out.Client, err = leadingInt(f, "client index", validClient); err != nil {
					return err
				}
				out.Present.Set(HasClient)
				if v, ok := intField(f, 1, "state", between(1, 4)); ok {
					out.State = ConnState(v)
					out.Present.Set(HasState)
				}
				return nil
			}),
		},
		at.Write: {
			Shape: at.DataRequired,
			Format: at.FormatAs(func(w *at.ParamWriter, p QMTCONNParams) {
				w.Int("client index", p.Client, ClientMin, ClientMax)
				w.Quoted("client id", p.ClientID, clientIDMaxLen)
				if p.Username == "" {
					w.Check(p.Password == "", "password requires a username")
					return
				}
				w.Quoted("username", p.Username, credMaxLen)
				if p.Password != "" {
					w.Quoted("password", p.Password, credMaxLen)
				}
			}),
			Parse: at.ParseAs(func(r at.Response, out *QMTCONNResult) error {
				f, err := fields(r, "+QMTCONN:")
				if err != nil {
					return err
				}
				if out.Client, err = leadingInt(f, "client index", validClient); err != nil {
					return err
				}
				out.Present.Set(HasClient)
				if v, ok := intField(f, 1, "result", between(0, 2)); ok {
					out.Result = PacketResult(v)
					out.Present.Set(HasResult)
				}
				if v, ok := intField(f, 2, "ret code", between(0, 5)); ok {
					out.ReturnCode = ReturnCode(v)
					out.Present.Set(HasReturnCode)
				}
				return nil
			}),
		},
	},
}

type QMTDISCParams struct {
	Client int
}

type QMTDISCResult struct {
	Client  int
	Result  PacketResult
	Present at.Fields
}

// QMTDISC disconnects an MQTT client from the server.
var QMTDISC = &at.Descriptor{
	Name:        "QMTDISC",
	Description: "Disconnect a Client from MQTT Server",
	Timeout:     5 * time.Second,
	Variants: map[at.Variant]at.Handler{
		at.Test: {Shape: at.DataRequired, Parse: parseClientRange("+QMTDISC:")},
		at.Write: {
			Shape: at.DataRequired,
			Format: at.FormatAs(func(w *at.ParamWriter, p QMTDISCParams) {
				w.Int("client index", p.Client, ClientMin, ClientMax)
			}),
			Parse: at.ParseAs(func(r at.Response, out *QMTDISCResult) error {
				f, err := fields(r, "+QMTDISC:")
				if err != nil {
					return err
				}
				if out.Client, err = leadingInt(f, "client index", validClient); err != nil {
					return err
				}
				out.Present.Set(HasClient)
				if v, ok := intField(f, 1, "result", oneOf(0, 2)); ok {
					out.Result = PacketResult(v)
					out.Present.Set(HasResult)
				}
				return nil
			}),
		},
	},
}

// TopicFilter is one topic of a subscription.
type TopicFilter struct {
	Topic string
	QoS   QoS
}

type QMTSUBParams struct {
	Client int
	MsgID  int
	Topics []TopicFilter
}

// QMTSUBResult is the asynchronous +QMTSUB reply. Value is the granted QoS
// on success, or the retransmission count.
type QMTSUBResult struct {
	Client  int
	MsgID   int
	Result  PacketResult
	Value   int
	Present at.Fields
}

// SubscribeRanges is the AT+QMTSUB test reply.
type SubscribeRanges struct {
	Client at.Range
	MsgID  at.Range
	QoS    at.Range
}

// QMTSUB subscribes to up to five topics in one packet.
var QMTSUB = &at.Descriptor{
	Name:        "QMTSUB",
	Description: "Subscribe to Topics",
	Timeout:     15 * time.Second,
	Variants: map[at.Variant]at.Handler{
		at.Test: {
			Shape: at.DataRequired,
			Parse: at.ParseAs(func(r at.Response, out *SubscribeRanges) error {
				f, err := fields(r, "+QMTSUB:")
				if err != nil {
					return err
				}
				if out.Client, err = rangeField(f, 0, "client index"); err != nil {
					return err
				}
				if out.MsgID, err = rangeField(f, 1, "msgid"); err != nil {
					return err
				}
				// The rest reads "list of [<topic>,(0-2)]".
				for i := 2; i < len(f); i++ {
					if q, err := at.Field(strings.TrimSuffix(string(f[i]), "]")).Range(); err == nil {
						out.QoS = q
						return nil
					}
				}
				return fmt.Errorf("qos range missing: %w", at.ErrInvalidResponse)
			}),
		},
		at.Write: {
			Shape: at.DataRequired,
			Format: at.FormatAs(func(w *at.ParamWriter, p QMTSUBParams) {
				w.Int("client index", p.Client, ClientMin, ClientMax)
				w.Int("msgid", p.MsgID, 1, 65535)
				w.Check(len(p.Topics) >= 1 && len(p.Topics) <= maxTopics, "%d topics, want 1..%d", len(p.Topics), maxTopics)
				for _, t := range p.Topics {
					w.Quoted("topic", t.Topic, topicMaxLen)
					w.Int("qos", int(t.QoS), 0, 2)
				}
			}),
			Parse: at.ParseAs(func(r at.Response, out *QMTSUBResult) error {
				f, err := fields(r, "+QMTSUB:")
				if err != nil {
					return err
				}
				return parsePacketReply(f, &out.Client, &out.MsgID, &out.Result, &out.Value, &out.Present)
			}),
		},
	},
}

type QMTUNSParams struct {
	Client int
	MsgID  int
	Topics []string
}

type QMTUNSResult struct {
	Client  int
	MsgID   int
	Result  PacketResult
	Present at.Fields
}

// UnsubscribeRanges is the AT+QMTUNS test reply.
type UnsubscribeRanges struct {
	Client at.Range
	MsgID  at.Range
}

// QMTUNS unsubscribes from up to five topics in one packet.
var QMTUNS = &at.Descriptor{
	Name:        "QMTUNS",
	Description: "Unsubscribe from Topics",
	Timeout:     15 * time.Second,
	Variants: map[at.Variant]at.Handler{
		at.Test: {
			Shape: at.DataRequired,
			Parse: at.ParseAs(func(r at.Response, out *UnsubscribeRanges) error {
				f, err := fields(r, "+QMTUNS:")
				if err != nil {
					return err
				}
				if out.Client, err = rangeField(f, 0, "client index"); err != nil {
					return err
				}
				out.MsgID, err = rangeField(f, 1, "msgid")
				return err
			}),
		},
		at.Write: {
			Shape: at.DataRequired,
			Format: at.FormatAs(func(w *at.ParamWriter, p QMTUNSParams) {
				w.Int("client index", p.Client, ClientMin, ClientMax)
				w.Int("msgid", p.MsgID, 1, 65535)
				w.Check(len(p.Topics) >= 1 && len(p.Topics) <= maxTopics, "%d topics, want 1..%d", len(p.Topics), maxTopics)
				for _, t := range p.Topics {
					w.Quoted("topic", t, topicMaxLen)
				}
			}),
			Parse: at.ParseAs(func(r at.Response, out *QMTUNSResult) error {
				f, err := fields(r, "+QMTUNS:")
				if err != nil {
					return err
				}
				var value int
				return parsePacketReply(f, &out.Client, &out.MsgID, &out.Result, &value, &out.Present)
			}),
		},
	},
}

// QMTPUBParams publishes Length bytes to Topic. The message itself is sent
// after the data input prompt. QoS 0 requires MsgID 0; higher levels need
// a MsgID in 1..65535.
type QMTPUBParams struct {
	Client int
	MsgID  int
	QoS    QoS
	Retain bool
	Topic  string
	Length int
}

type QMTPUBResult struct {
	Client  int
	MsgID   int
	Result  PacketResult
	Value   int
	Present at.Fields
}

// QMTPUB publishes a fixed length message.
var QMTPUB = &at.Descriptor{
	Name:        "QMTPUB",
	Description: "Publish Messages to MQTT Server",
	Timeout:     15 * time.Second,
	Variants: map[at.Variant]at.Handler{
		at.Write: {
			Shape: at.DataRequired,
			Format: at.FormatAs(func(w *at.ParamWriter, p QMTPUBParams) {
				w.Int("client index", p.Client, ClientMin, ClientMax)
				if p.QoS == AtMostOnce {
					w.Int("msgid", p.MsgID, 0, 0)
				} else {
					w.Int("msgid", p.MsgID, 1, 65535)
				}
				w.Int("qos", int(p.QoS), 0, 2)
				w.Bool(p.Retain)
				w.Quoted("topic", p.Topic, topicMaxLen)
				w.Int("length", p.Length, 1, PublishMaxLen)
			}),
			Parse: at.ParseAs(func(r at.Response, out *QMTPUBResult) error {
				f, err := fields(r, "+QMTPUB:")
				if err != nil {
					return err
				}
				return parsePacketReply(f, &out.Client, &out.MsgID, &out.Result, &out.Value, &out.Present)
			}),
		},
	},
}

// parsePacketReply reads the common "<client>,<msgID>,<result>[,<value>]"
// layout of the asynchronous packet replies.
func parsePacketReply(f []at.Field, client, msgID *int, result *PacketResult, value *int, present *at.Fields) error {
	v, err := leadingInt(f, "client index", validClient)
	if err != nil {
		return err
	}
	*client = v
	present.Set(HasClient)
	if v, ok := intField(f, 1, "msgid", between(0, 65535)); ok {
		*msgID = v
		present.Set(HasMsgID)
	}
	if v, ok := intField(f, 2, "result", between(0, 2)); ok {
		*result = PacketResult(v)
		present.Set(HasResult)
	}
	if v, ok := intField(f, 3, "value", nil); ok {
		*value = v
		present.Set(HasValue)
	}
	return nil
}
