package midi

import (
	"context"
	"strings"
	"sync"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver

	"go-looper/debug"
)

// DeviceEvent is emitted when controllers connect/disconnect
type DeviceEvent struct {
	Type       DeviceEventType
	Controller Controller
	ID         string
}

type DeviceEventType int

const (
	DeviceConnected DeviceEventType = iota
	DeviceDisconnected
)

func (t DeviceEventType) String() string {
	if t == DeviceConnected {
		return "connected"
	}
	return "disconnected"
}

// DeviceManager handles hot-plug detection of MIDI keyboards
type DeviceManager struct {
	controllers map[string]Controller
	mu          sync.RWMutex
	events      chan DeviceEvent
	pollRate    time.Duration

	preferred []string
	excluded  []string

	listPorts func() []drivers.In
	connect   func(id string, in drivers.In) (Controller, error)
}

// NewDeviceManager connects every input whose name contains one of the
// preferred patterns (any input if none) and none of the excluded ones.
// Patterns match case-insensitively.
func NewDeviceManager(preferred, excluded []string) *DeviceManager {
	return &DeviceManager{
		controllers: make(map[string]Controller),
		events:      make(chan DeviceEvent, 16),
		pollRate:    time.Second,
		preferred:   lowerAll(preferred),
		excluded:    lowerAll(excluded),
		listPorts:   listInPorts,
		connect: func(id string, in drivers.In) (Controller, error) {
			return NewKeyboardController(id, in)
		},
	}
}

// Events returns a channel of device connect/disconnect events
func (dm *DeviceManager) Events() <-chan DeviceEvent {
	return dm.events
}

// Controllers returns a snapshot of connected controllers
func (dm *DeviceManager) Controllers() map[string]Controller {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	out := make(map[string]Controller, len(dm.controllers))
	for k, v := range dm.controllers {
		out[k] = v
	}
	return out
}

// Run starts the polling loop (blocking - run in goroutine)
func (dm *DeviceManager) Run(ctx context.Context) {
	ticker := time.NewTicker(dm.pollRate)
	defer ticker.Stop()

	dm.scan(ctx)

	for {
		select {
		case <-ctx.Done():
			dm.closeAll()
			close(dm.events)
			return
		case <-ticker.C:
			dm.scan(ctx)
		}
	}
}

func listInPorts() []drivers.In {
	return gomidi.GetInPorts()
}

// ports lists inputs with a timeout (CoreMIDI can hang)
func (dm *DeviceManager) ports() ([]drivers.In, bool) {
	ch := make(chan []drivers.In, 1)
	go func() {
		ch <- dm.listPorts()
	}()

	select {
	case in := <-ch:
		return in, true
	case <-time.After(3 * time.Second):
		debug.Log("devices", "port scan timed out")
		return nil, false
	}
}

func (dm *DeviceManager) scan(ctx context.Context) {
	inPorts, ok := dm.ports()
	if !ok {
		return
	}

	seenIDs := make(map[string]bool)
	for _, inPort := range inPorts {
		id := inPort.String()
		if !dm.wants(id) {
			continue
		}
		seenIDs[id] = true

		dm.mu.RLock()
		_, exists := dm.controllers[id]
		dm.mu.RUnlock()
		if exists {
			continue
		}

		c, err := dm.connect(id, inPort)
		if err != nil {
			debug.Log("devices", "connect %s: %v", id, err)
			delete(seenIDs, id)
			continue
		}

		dm.mu.Lock()
		dm.controllers[id] = c
		dm.mu.Unlock()
		debug.Logger().WithField("device", id).Info("devices: connected")
		dm.emit(ctx, DeviceEvent{Type: DeviceConnected, Controller: c, ID: id})
	}

	dm.mu.Lock()
	var removed []string
	for id, c := range dm.controllers {
		if !seenIDs[id] {
			c.Close()
			delete(dm.controllers, id)
			removed = append(removed, id)
		}
	}
	dm.mu.Unlock()

	for _, id := range removed {
		debug.Logger().WithField("device", id).Info("devices: disconnected")
		dm.emit(ctx, DeviceEvent{Type: DeviceDisconnected, ID: id})
	}
}

func (dm *DeviceManager) emit(ctx context.Context, ev DeviceEvent) {
	select {
	case dm.events <- ev:
	case <-ctx.Done():
	}
}

func (dm *DeviceManager) wants(name string) bool {
	name = strings.ToLower(name)
	for _, ex := range dm.excluded {
		if strings.Contains(name, ex) {
			return false
		}
	}
	if len(dm.preferred) == 0 {
		return true
	}
	for _, p := range dm.preferred {
		if strings.Contains(name, p) {
			return true
		}
	}
	return false
}

func (dm *DeviceManager) closeAll() {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	for _, c := range dm.controllers {
		c.Close()
	}
	dm.controllers = make(map[string]Controller)
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s != "" {
			out = append(out, strings.ToLower(s))
		}
	}
	return out
}
