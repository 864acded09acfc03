package memory

import (
	"context"
	"encoding/json"
	"sync"

	"caretoplay/internal/flow"
)

// DeviceCaches keeps one JSON key/value space per device.
type DeviceCaches struct {
	mu      sync.Mutex
	devices map[string]map[string][]byte
}

func NewDeviceCaches() *DeviceCaches {
	return &DeviceCaches{devices: make(map[string]map[string][]byte)}
}

// ForDevice returns the cache of one device.
func (c *DeviceCaches) ForDevice(deviceID string) flow.DeviceCache {
	return &deviceCache{parent: c, deviceID: deviceID}
}

type deviceCache struct {
	parent   *DeviceCaches
	deviceID string
}

func (d *deviceCache) Get(_ context.Context, key string, dst any) (bool, error) {
	d.parent.mu.Lock()
	raw, ok := d.parent.devices[d.deviceID][key]
	d.parent.mu.Unlock()
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dst)
}

func (d *deviceCache) Set(_ context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	d.parent.mu.Lock()
	defer d.parent.mu.Unlock()
	slots, ok := d.parent.devices[d.deviceID]
	if !ok {
		slots = make(map[string][]byte)
		d.parent.devices[d.deviceID] = slots
	}
	slots[key] = raw
	return nil
}

func (d *deviceCache) Del(_ context.Context, key string) error {
	d.parent.mu.Lock()
	defer d.parent.mu.Unlock()
	delete(d.parent.devices[d.deviceID], key)
	return nil
}
