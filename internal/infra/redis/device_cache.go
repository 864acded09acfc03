package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"caretoplay/internal/flow"
	"github.com/redis/go-redis/v9"
)

// DeviceCaches stores each device's cache slots as JSON strings under
// device:{deviceID}:{slot}, refreshed to ttl on every write.
type DeviceCaches struct {
	client *redis.Client
	ttl    time.Duration
}

func NewDeviceCaches(client *redis.Client, ttl time.Duration) *DeviceCaches {
	return &DeviceCaches{client: client, ttl: ttl}
}

// ForDevice returns the cache of one device.
func (c *DeviceCaches) ForDevice(deviceID string) flow.DeviceCache {
	return &deviceCache{client: c.client, ttl: c.ttl, prefix: "device:" + deviceID + ":"}
}

type deviceCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func (d *deviceCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	raw, err := d.client.Get(ctx, d.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(raw, dst)
}

func (d *deviceCache) Set(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return d.client.Set(ctx, d.prefix+key, raw, d.ttl).Err()
}

func (d *deviceCache) Del(ctx context.Context, key string) error {
	return d.client.Del(ctx, d.prefix+key).Err()
}
