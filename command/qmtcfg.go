package command

import (
	"fmt"
	"log/slog"
	"time"

	"i4.energy/across/bg95/at"
)

// Present flags of the MQTT*Config types. ConfigValues marks the leading
// value of every sub-type; written without it, a configuration is a query
// and the modem reports the current values. The other flags mark the
// secondary values of the sub-type they are named after. A write refuses to
// send a value whose flag is missing.
const (
	ConfigValues at.Fields = 1 << iota
	ConfigSSLContext
	ConfigTimeoutRetries
	ConfigTimeoutNotice
	ConfigWillQoS
	ConfigWillRetain
	ConfigWillTopic
	ConfigWillMessage
	ConfigRecvLength
)

// Combined flags for writing a sub-type with all of its values.
const (
	SSLConfigValues     = ConfigValues | ConfigSSLContext
	TimeoutConfigValues = ConfigValues | ConfigTimeoutRetries | ConfigTimeoutNotice
	WillConfigValues    = ConfigValues | ConfigWillQoS | ConfigWillRetain | ConfigWillTopic | ConfigWillMessage
	RecvConfigValues    = ConfigValues | ConfigRecvLength
)

const willMaxLen = 255

// MQTTConfig is one sub-type of AT+QMTCFG. It is implemented by the
// MQTT*Config types of this package only.
type MQTTConfig interface {
	// ConfigType is the quoted sub-type name, e.g. "keepalive".
	ConfigType() string
	// ClientIndex is the MQTT client the setting applies to.
	ClientIndex() int
	writeValues(w *at.ParamWriter)
	present() at.Fields
}

// MQTTVersionConfig selects MQTT 3.1 (3) or 3.1.1 (4).
type MQTTVersionConfig struct {
	Client  int
	Version int
	Present at.Fields
}

// MQTTPDPConfig selects the PDP context used by the client.
type MQTTPDPConfig struct {
	Client  int
	CID     int
	Present at.Fields
}

// MQTTSSLConfig enables SSL with SSL context Context.
type MQTTSSLConfig struct {
	Client  int
	Enable  bool
	Context int
	Present at.Fields
}

// MQTTKeepAliveConfig sets the keep-alive interval in seconds; 0 disables it.
type MQTTKeepAliveConfig struct {
	Client  int
	Seconds int
	Present at.Fields
}

// MQTTSessionConfig selects a clean session.
type MQTTSessionConfig struct {
	Client  int
	Clean   bool
	Present at.Fields
}

// MQTTTimeoutConfig sets the packet delivery timeout in seconds, the number
// of retries and whether timeouts are reported.
type MQTTTimeoutConfig struct {
	Client  int
	Seconds int
	Retries int
	Notice  bool
	Present at.Fields
}

// MQTTWillConfig configures the last will. QoS, Retain, Topic and Message
// are sent only when Enable is set, and are then all required.
type MQTTWillConfig struct {
	Client  int
	Enable  bool
	QoS     QoS
	Retain  bool
	Topic   string
	Message string
	Present at.Fields
}

// MQTTRecvModeConfig chooses whether received messages are carried in the
// +QMTRECV URC, and whether their length is.
type MQTTRecvModeConfig struct {
	Client     int
	NotInURC   bool
	WithLength bool
	Present    at.Fields
}

func (MQTTVersionConfig) ConfigType() string   { return "version" }
func (MQTTPDPConfig) ConfigType() string       { return "pdpcid" }
func (MQTTSSLConfig) ConfigType() string       { return "ssl" }
func (MQTTKeepAliveConfig) ConfigType() string { return "keepalive" }
func (MQTTSessionConfig) ConfigType() string   { return "session" }
func (MQTTTimeoutConfig) ConfigType() string   { return "timeout" }
func (MQTTWillConfig) ConfigType() string      { return "will" }
func (MQTTRecvModeConfig) ConfigType() string  { return "recv/mode" }

func (c MQTTVersionConfig) ClientIndex() int   { return c.Client }
func (c MQTTPDPConfig) ClientIndex() int       { return c.Client }
func (c MQTTSSLConfig) ClientIndex() int       { return c.Client }
func (c MQTTKeepAliveConfig) ClientIndex() int { return c.Client }
func (c MQTTSessionConfig) ClientIndex() int   { return c.Client }
func (c MQTTTimeoutConfig) ClientIndex() int   { return c.Client }
func (c MQTTWillConfig) ClientIndex() int      { return c.Client }
func (c MQTTRecvModeConfig) ClientIndex() int  { return c.Client }


// requireSet refuses to write the value flagged by f unless p carries it.
func requireSet(w *at.ParamWriter, p, f at.Fields, name string) {
	w.Check(p.Has(f), "%s not set", name)
}

func (c MQTTVersionConfig) writeValues(w *at.ParamWriter) {
	w.OneOf("version", c.Version, 3, 4)
}

func (c MQTTPDPConfig) writeValues(w *at.ParamWriter) {
	w.Int("cid", c.CID, 1, 16)
}

func (c MQTTSSLConfig) writeValues(w *at.ParamWriter) {
	requireSet(w, c.Present, ConfigSSLContext, "ssl context")
	w.Bool(c.Enable)
	w.Int("ssl context", c.Context, 0, 5)
}

func (c MQTTKeepAliveConfig) writeValues(w *at.ParamWriter) {
	w.Int("keep-alive", c.Seconds, 0, 3600)
}

func (c MQTTSessionConfig) writeValues(w *at.ParamWriter) {
	w.Bool(c.Clean)
}

func (c MQTTTimeoutConfig) writeValues(w *at.ParamWriter) {
	requireSet(w, c.Present, ConfigTimeoutRetries, "retries")
	requireSet(w, c.Present, ConfigTimeoutNotice, "timeout notice")
	w.Int("packet timeout", c.Seconds, 1, 60)
	w.Int("retries", c.Retries, 0, 10)
	w.Bool(c.Notice)
}

func (c MQTTWillConfig) writeValues(w *at.ParamWriter) {
	w.Bool(c.Enable)
	if !c.Enable {
		return
	}
	requireSet(w, c.Present, ConfigWillQoS, "will qos")
	requireSet(w, c.Present, ConfigWillRetain, "will retain")
	requireSet(w, c.Present, ConfigWillTopic, "will topic")
	requireSet(w, c.Present, ConfigWillMessage, "will message")
	w.Int("will qos", int(c.QoS), 0, 2)
	w.Bool(c.Retain)
	w.Quoted("will topic", c.Topic, willMaxLen)
	w.Quoted("will message", c.Message, willMaxLen)
}

func (c MQTTRecvModeConfig) writeValues(w *at.ParamWriter) {
	requireSet(w, c.Present, ConfigRecvLength, "length in urc")
	w.Bool(c.NotInURC)
	w.Bool(c.WithLength)
}

func (c MQTTVersionConfig) present() at.Fields   { return c.Present }
func (c MQTTPDPConfig) present() at.Fields       { return c.Present }
func (c MQTTSSLConfig) present() at.Fields       { return c.Present }
func (c MQTTKeepAliveConfig) present() at.Fields { return c.Present }
func (c MQTTSessionConfig) present() at.Fields   { return c.Present }
func (c MQTTTimeoutConfig) present() at.Fields   { return c.Present }
func (c MQTTWillConfig) present() at.Fields      { return c.Present }
func (c MQTTRecvModeConfig) present() at.Fields  { return c.Present }

// QMTCFGResult is the reply to a configuration query. Config is nil when
// the modem answered with OK alone, which it does for a setting write. The
// modem does not echo the client index, so Config.ClientIndex is 0.
type QMTCFGResult struct {
	Config MQTTConfig
}

// Present flags of MQTTConfigRanges, one per sub-type line.
const (
	RangeVersion at.Fields = 1 << iota
	RangePDP
	RangeSSL
	RangeKeepAlive
	RangeSession
	RangeTimeout
	RangeWill
	RangeRecvMode
)

// MQTTConfigRanges is the test variant reply of AT+QMTCFG: the value
// domains the modem advertises for every sub-type. Client is taken from the
// first line that lists it.
type MQTTConfigRanges struct {
	Client        at.Range
	Version       at.Range
	CID           at.Range
	SSL           at.Range
	SSLContext    at.Range
	KeepAlive     at.Range
	Session       at.Range
	PacketTimeout at.Range
	Retries       at.Range
	Notice        at.Range
	Will          at.Range
	WillQoS       at.Range
	WillRetain    at.Range
	RecvMode      at.Range
	RecvLength    at.Range
	Present       at.Fields
}

// QMTCFG configures optional MQTT parameters per client. The write variant
// takes an MQTTConfig.
var QMTCFG = &at.Descriptor{
	Name:        "QMTCFG",
	Description: "Configure Optional Parameters of MQTT",
	Timeout:     3 * time.Second,
	Variants: map[at.Variant]at.Handler{
		at.Test: {
			Shape: at.DataRequired,
			Parse: at.ParseAs(parseMQTTConfigRanges),
		},
		at.Write: {
			Shape: at.DataOptional,
			Format: at.FormatAs(func(w *at.ParamWriter, c MQTTConfig) {
				if c == nil {
					w.Check(false, "nil configuration")
					return
				}
				w.Quoted("type", c.ConfigType(), 16)
				w.Int("client index", c.ClientIndex(), ClientMin, ClientMax)
				if c.present().Has(ConfigValues) {
					c.writeValues(w)
				}
			}),
			Parse: at.ParseAs(func(r at.Response, out *QMTCFGResult) error {
				p, ok := r.Payload("+QMTCFG:")
				if !ok {
					return nil
				}
				f := at.SplitFields(p)
				if len(f) == 0 {
					return fmt.Errorf("type missing: %w", at.ErrInvalidResponse)
				}
				name, ok := f[0].Quoted()
				if !ok {
					return fmt.Errorf("type %q: %w", string(f[0]), at.ErrInvalidResponse)
				}
				c, err := parseMQTTConfig(name, f[1:])
				if err != nil {
					return err
				}
				out.Config = c
				return nil
			}),
		},
	},
}

// parseMQTTConfigRanges reads one range line per sub-type. Lines of unknown
// sub-types are skipped.
func parseMQTTConfigRanges(r at.Response, out *MQTTConfigRanges) error {
	lines := r.Payloads("+QMTCFG:")
	if len(lines) == 0 {
		return fmt.Errorf("+QMTCFG: missing: %w", at.ErrInvalidResponse)
	}
	for _, p := range lines {
		f := at.SplitFields(p)
		if len(f) < 2 {
			return fmt.Errorf("range line %q: %w", p, at.ErrInvalidResponse)
		}
		name, ok := f[0].Quoted()
		if !ok {
			return fmt.Errorf("type %q: %w", string(f[0]), at.ErrInvalidResponse)
		}
		var (
			flag at.Fields
			dst  []*at.Range
		)
		switch name {
		case "version":
			flag, dst = RangeVersion, []*at.Range{&out.Version}
		case "pdpcid":
			flag, dst = RangePDP, []*at.Range{&out.CID}
		case "ssl":
			flag, dst = RangeSSL, []*at.Range{&out.SSL, &out.SSLContext}
		case "keepalive":
			flag, dst = RangeKeepAlive, []*at.Range{&out.KeepAlive}
		case "session":
			flag, dst = RangeSession, []*at.Range{&out.Session}
		case "timeout":
			flag, dst = RangeTimeout, []*at.Range{&out.PacketTimeout, &out.Retries, &out.Notice}
		case "will":
			flag, dst = RangeWill, []*at.Range{&out.Will, &out.WillQoS, &out.WillRetain}
		case "recv/mode":
			flag, dst = RangeRecvMode, []*at.Range{&out.RecvMode, &out.RecvLength}
		default:
			slog.Debug("Skipping unknown MQTT configuration range", "type", name)
			continue
		}
		client, err := rangeField(f, 1, name+" client index")
		if err != nil {
			return err
		}
		if out.Present == 0 {
			out.Client = client
		}
		for i, d := range dst {
			if *d, err = rangeField(f, i+2, name); err != nil {
				return err
			}
		}
		out.Present.Set(flag)
	}
	return nil
}

func boolField(f []at.Field, i int, name string) (bool, bool) {
	v, ok := intField(f, i, name, between(0, 1))
	return v == 1, ok
}

// parseMQTTConfig reads the values following the sub-type name. Each value
// that is missing or out of range leaves its flag unset.
func parseMQTTConfig(name string, f []at.Field) (MQTTConfig, error) {
	switch name {
	case "version":
		var c MQTTVersionConfig
		if v, ok := intField(f, 0, "version", oneOf(3, 4)); ok {
			c.Version = v
			c.Present.Set(ConfigValues)
		}
		return c, nil
	case "pdpcid":
		var c MQTTPDPConfig
		if v, ok := intField(f, 0, "cid", between(1, 16)); ok {
			c.CID = v
			c.Present.Set(ConfigValues)
		}
		return c, nil
	case "ssl":
		var c MQTTSSLConfig
		if v, ok := boolField(f, 0, "ssl enable"); ok {
			c.Enable = v
			c.Present.Set(ConfigValues)
		}
		if v, ok := intField(f, 1, "ssl context", between(0, 5)); ok {
			c.Context = v
			c.Present.Set(ConfigSSLContext)
		}
		return c, nil
	case "keepalive":
		var c MQTTKeepAliveConfig
		if v, ok := intField(f, 0, "keep-alive", between(0, 3600)); ok {
			c.Seconds = v
			c.Present.Set(ConfigValues)
		}
		return c, nil
	case "session":
		var c MQTTSessionConfig
		if v, ok := boolField(f, 0, "clean session"); ok {
			c.Clean = v
			c.Present.Set(ConfigValues)
		}
		return c, nil
	case "timeout":
		var c MQTTTimeoutConfig
		if v, ok := intField(f, 0, "packet timeout", between(1, 60)); ok {
			c.Seconds = v
			c.Present.Set(ConfigValues)
		}
		if v, ok := intField(f, 1, "retries", between(0, 10)); ok {
			c.Retries = v
			c.Present.Set(ConfigTimeoutRetries)
		}
		if v, ok := boolField(f, 2, "timeout notice"); ok {
			c.Notice = v
			c.Present.Set(ConfigTimeoutNotice)
		}
		return c, nil
	case "will":
		var c MQTTWillConfig
		if v, ok := boolField(f, 0, "will flag"); ok {
			c.Enable = v
			c.Present.Set(ConfigValues)
		}
		if !c.Enable {
			return c, nil
		}
		if v, ok := intField(f, 1, "will qos", between(0, 2)); ok {
			c.QoS = QoS(v)
			c.Present.Set(ConfigWillQoS)
		}
		if v, ok := boolField(f, 2, "will retain"); ok {
			c.Retain = v
			c.Present.Set(ConfigWillRetain)
		}
		if s, ok := quotedField(f, 3, "will topic"); ok {
			c.Topic = s
			c.Present.Set(ConfigWillTopic)
		}
		if s, ok := quotedField(f, 4, "will message"); ok {
			c.Message = s
			c.Present.Set(ConfigWillMessage)
		}
		return c, nil
	case "recv/mode":
		var c MQTTRecvModeConfig
		if v, ok := boolField(f, 0, "receive mode"); ok {
			c.NotInURC = v
			c.Present.Set(ConfigValues)
		}
		if v, ok := boolField(f, 1, "length in urc"); ok {
			c.WithLength = v
			c.Present.Set(ConfigRecvLength)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("configuration type %q: %w", name, at.ErrInvalidResponse)
	}
}
