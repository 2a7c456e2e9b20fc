package modem_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"i4.energy/across/bg95/modem"
)

func TestConfig(t *testing.T) {
	t.Run("ErrNoDialer when no dialer provided", func(t *testing.T) {
		_, err := modem.NewConfigBuilder().Build()

		if err != modem.ErrNoDialer {
			t.Errorf("expected ErrNoDialer, got: %v", err)
		}
	})

	t.Run("Builds with a dialer and options", func(t *testing.T) {
		_, err := modem.NewConfigBuilder().
			WithDialer(modem.TestDialer{Transport: modem.NewTestTransport()}).
			WithSimPIN("0000").
			WithATTimeout(time.Second).
			WithInitTimeout(10 * time.Second).
			WithChunkInterval(50 * time.Millisecond).
			WithMaxResponseSize(1024).
			WithSIMPoll(modem.PollConfig{Interval: time.Second, MaxRetries: 3}).
			Build()

		if err != nil {
			t.Errorf("unexpected error from Build(): %v", err)
		}
	})

	t.Run("Dial honours a cancelled context", func(t *testing.T) {
		config, err := modem.NewConfigBuilder().
			WithDialer(modem.TestDialer{Transport: modem.NewTestTransport()}).
			Build()
		if err != nil {
			t.Fatalf("unexpected error from Build(): %v", err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := modem.New(ctx, config); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got: %v", err)
		}
	})
}
