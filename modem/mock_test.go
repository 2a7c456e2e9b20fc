package modem_test

import (
	gomock "go.uber.org/mock/gomock"
	"i4.energy/across/bg95/modem"
)

// MockSequenceBuilder scripts command/response exchanges on a MockTransport.
// Every step expects one Write of the command line followed by one Read
// that delivers the whole response.
type MockSequenceBuilder struct {
	transport *modem.MockTransport
	calls     []any
}

// NewMockSequence also allows any number of SetReadTimeout calls, since
// every transport read is preceded by one.
func NewMockSequence(transport *modem.MockTransport) *MockSequenceBuilder {
	transport.EXPECT().SetReadTimeout(gomock.Any()).Return(nil).AnyTimes()
	return &MockSequenceBuilder{
		transport: transport,
		calls:     []any{},
	}
}

// Exchange expects cmd to be written and answers it with resp.
func (b *MockSequenceBuilder) Exchange(cmd, resp string) *MockSequenceBuilder {
	b.calls = append(b.calls,
		b.transport.EXPECT().Write([]byte(cmd)).Return(len(cmd), nil),
		b.transport.EXPECT().Read(gomock.Any()).DoAndReturn(func(p []byte) (int, error) {
			return copy(p, resp), nil
		}),
	)
	return b
}

func (b *MockSequenceBuilder) AT() *MockSequenceBuilder {
	return b.Exchange("AT\r\n", "AT\r\nOK\r\n")
}

func (b *MockSequenceBuilder) EchoOff() *MockSequenceBuilder {
	return b.Exchange("ATE0\r\n", "ATE0\r\nOK\r\n")
}

func (b *MockSequenceBuilder) NumericErrors() *MockSequenceBuilder {
	return b.Exchange("AT+CMEE=1\r\n", "\r\nOK\r\n")
}

func (b *MockSequenceBuilder) SimPinRequired() *MockSequenceBuilder {
	return b.Exchange("AT+CPIN?\r\n", "\r\n+CPIN: SIM PIN\r\n\r\nOK\r\n")
}

func (b *MockSequenceBuilder) EnterPIN(pin string) *MockSequenceBuilder {
	return b.Exchange(`AT+CPIN="`+pin+`"`+"\r\n", "\r\nOK\r\n")
}

func (b *MockSequenceBuilder) SimReady() *MockSequenceBuilder {
	return b.Exchange("AT+CPIN?\r\n", "\r\n+CPIN: READY\r\n\r\nOK\r\n")
}

func (b *MockSequenceBuilder) SMSTextMode() *MockSequenceBuilder {
	return b.Exchange("AT+CMGF=1\r\n", "\r\nOK\r\n")
}

func (b *MockSequenceBuilder) Build() []any {
	return b.calls
}

// initMockCalls scripts a successful initialization with a ready SIM.
func initMockCalls(transport *modem.MockTransport) []any {
	return NewMockSequence(transport).
		AT().
		EchoOff().
		NumericErrors().
		SimReady().
		SMSTextMode().
		Build()
}
