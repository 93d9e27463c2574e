// Package channel delivers notifications to the user and routes
// their control commands and feedback back to the agent.
package channel

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/wingmanhq/wingman/internal/bus"
	"github.com/wingmanhq/wingman/internal/config"
	"github.com/wingmanhq/wingman/internal/prefs"
)

// Channel is one delivery surface (telegram for now).
type Channel interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
	Send(n bus.Notification) error
}

// Commands is what inbound user messages can do to the agent. The
// manager implements it.
type Commands interface {
	Pause() error
	Resume() error
	Stop() error
	StatusText() string
	SubmitFeedback(fb prefs.Feedback) error
}

// Manager owns the enabled channels and wires them to the bus.
type Manager struct {
	channels map[string]Channel
	bus      *bus.Bus
}

func NewManager(cfg config.ChannelsConfig, b *bus.Bus, cmds Commands) (*Manager, error) {
	m := &Manager{
		channels: make(map[string]Channel),
		bus:      b,
	}

	if cfg.Telegram.Enabled {
		ch, err := NewTelegramChannel(cfg.Telegram, cmds)
		if err != nil {
			return nil, fmt.Errorf("init telegram channel: %w", err)
		}
		m.add(ch, b)
	}

	return m, nil
}

func (m *Manager) add(ch Channel, b *bus.Bus) {
	m.channels[ch.Name()] = ch
	b.SubscribeOutbound(ch.Name(), func(n bus.Notification) {
		if err := ch.Send(n); err != nil {
			log.Printf("[channel-mgr] send to %s failed: %v", ch.Name(), err)
		}
	})
}

func (m *Manager) StartAll(ctx context.Context) error {
	var wg sync.WaitGroup
	errCh := make(chan error, len(m.channels))

	for name, ch := range m.channels {
		wg.Add(1)
		go func(name string, ch Channel) {
			defer wg.Done()
			log.Printf("[channel-mgr] starting %s", name)
			if err := ch.Start(ctx); err != nil {
				errCh <- fmt.Errorf("%s: %w", name, err)
			}
		}(name, ch)
	}

	wg.Wait()
	close(errCh)

	for err := range errCh {
		return err
	}
	return nil
}

func (m *Manager) StopAll() error {
	for name, ch := range m.channels {
		log.Printf("[channel-mgr] stopping %s", name)
		if err := ch.Stop(); err != nil {
			log.Printf("[channel-mgr] error stopping %s: %v", name, err)
		}
	}
	return nil
}

func (m *Manager) EnabledChannels() []string {
	names := make([]string, 0, len(m.channels))
	for name := range m.channels {
		names = append(names, name)
	}
	return names
}
