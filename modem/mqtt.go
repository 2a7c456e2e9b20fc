package modem

import (
	"context"
	"fmt"

	"i4.energy/across/bg95/at"
	"i4.energy/across/bg95/command"
)

// Message is an MQTT publication sent through the modem's MQTT stack.
type Message struct {
	Client  int
	MsgID   int
	QoS     command.QoS
	Retain  bool
	Topic   string
	Payload []byte
}

// ConfigureMQTT writes one optional client setting.
func (m *Modem) ConfigureMQTT(ctx context.Context, c command.MQTTConfig) error {
	if err := m.SendCommand(ctx, command.QMTCFG, at.Write, c, nil); err != nil {
		return fmt.Errorf("configure MQTT %s: %w", c.ConfigType(), err)
	}
	return nil
}

// OpenMQTT opens the network connection of client to host:port and returns
// the modem's verdict.
func (m *Modem) OpenMQTT(ctx context.Context, client int, host string, port int) (command.OpenResult, error) {
	params := command.QMTOPENParams{Client: client, Host: host, Port: port}
	r, err := Query[command.QMTOPENResult](ctx, m, command.QMTOPEN, at.Write, params)
	if err != nil {
		return 0, fmt.Errorf("open MQTT network: %w", err)
	}
	if r.Result != command.OpenSuccess {
		return r.Result, fmt.Errorf("open MQTT network: %s", r.Result)
	}
	return r.Result, nil
}

// ConnectMQTT connects client to the opened server.
func (m *Modem) ConnectMQTT(ctx context.Context, params command.QMTCONNParams) error {
	r, err := Query[command.QMTCONNResult](ctx, m, command.QMTCONN, at.Write, params)
	if err != nil {
		return fmt.Errorf("connect MQTT client %d: %w", params.Client, err)
	}
	if !r.Accepted() {
		return fmt.Errorf("connect MQTT client %d: %s, %s", params.Client, r.Result, r.ReturnCode)
	}
	return nil
}

// Publish sends msg as a fixed length publication. The payload follows the
// data input prompt verbatim.
func (m *Modem) Publish(ctx context.Context, msg Message) (command.QMTPUBResult, error) {
	params := command.QMTPUBParams{
		Client: msg.Client,
		MsgID:  msg.MsgID,
		QoS:    msg.QoS,
		Retain: msg.Retain,
		Topic:  msg.Topic,
		Length: len(msg.Payload),
	}
	var res command.QMTPUBResult
	if err := m.SendWithPrompt(ctx, command.QMTPUB, params, msg.Payload, &res); err != nil {
		return res, fmt.Errorf("publish to %q: %w", msg.Topic, err)
	}
	if res.Present.Has(command.HasResult) && res.Result != command.PacketSent {
		return res, fmt.Errorf("publish to %q: %s", msg.Topic, res.Result)
	}
	return res, nil
}

// MQTTConfigRanges returns the configuration domains the modem advertises.
func (m *Modem) MQTTConfigRanges(ctx context.Context) (*command.MQTTConfigRanges, error) {
	r, err := Query[command.MQTTConfigRanges](ctx, m, command.QMTCFG, at.Test, nil)
	if err != nil {
		return nil, fmt.Errorf("query MQTT configuration ranges: %w", err)
	}
	return r, nil
}

// CloseMQTT closes the network connection of client.
func (m *Modem) CloseMQTT(ctx context.Context, client int) error {
	r, err := Query[command.QMTCLOSEResult](ctx, m, command.QMTCLOSE, at.Write, command.QMTCLOSEParams{Client: client})
	if err != nil {
		return fmt.Errorf("close MQTT network %d: %w", client, err)
	}
	if !r.Closed() {
		return fmt.Errorf("close MQTT network %d: failed", client)
	}
	return nil
}

// DisconnectMQTT disconnects client from its server.
func (m *Modem) DisconnectMQTT(ctx context.Context, client int) error {
	r, err := Query[command.QMTDISCResult](ctx, m, command.QMTDISC, at.Write, command.QMTDISCParams{Client: client})
	if err != nil {
		return fmt.Errorf("disconnect MQTT client %d: %w", client, err)
	}
	if !r.Present.Has(command.HasResult) || r.Result != command.PacketSent {
		return fmt.Errorf("disconnect MQTT client %d: %s", client, r.Result)
	}
	return nil
}

// Subscribe subscribes client to topics in one packet. On success the
// result carries the granted QoS in Value.
func (m *Modem) Subscribe(ctx context.Context, client, msgID int, topics ...command.TopicFilter) (command.QMTSUBResult, error) {
	params := command.QMTSUBParams{Client: client, MsgID: msgID, Topics: topics}
	var res command.QMTSUBResult
	if err := m.SendCommand(ctx, command.QMTSUB, at.Write, params, &res); err != nil {
		return res, fmt.Errorf("subscribe client %d: %w", client, err)
	}
	if res.Present.Has(command.HasResult) && res.Result != command.PacketSent {
		return res, fmt.Errorf("subscribe client %d: %s", client, res.Result)
	}
	return res, nil
}

// Unsubscribe removes topics from the subscriptions of client.
func (m *Modem) Unsubscribe(ctx context.Context, client, msgID int, topics ...string) error {
	params := command.QMTUNSParams{Client: client, MsgID: msgID, Topics: topics}
	r, err := Query[command.QMTUNSResult](ctx, m, command.QMTUNS, at.Write, params)
	if err != nil {
		return fmt.Errorf("unsubscribe client %d: %w", client, err)
	}
	if r.Present.Has(command.HasResult) && r.Result != command.PacketSent {
		return fmt.Errorf("unsubscribe client %d: %s", client, r.Result)
	}
	return nil
}

// MQTTConnectionState reports the connection state of the client the modem
// lists. ok is false when no client is connected.
func (m *Modem) MQTTConnectionState(ctx context.Context) (conn command.Connection, ok bool, err error) {
	r, err := Query[command.Connection](ctx, m, command.QMTCONN, at.Read, nil)
	if err != nil {
		return command.Connection{}, false, fmt.Errorf("query MQTT connection state: %w", err)
	}
	return *r, r.Present.Has(command.HasState), nil
}
