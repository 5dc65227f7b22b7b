// Package collector polls devices and persists their readings.
package collector

import (
	"context"
	"fmt"
	"sync"

	"codeberg.org/mutker/plugmon/internal/errors"
	"codeberg.org/mutker/plugmon/internal/logger"
	"codeberg.org/mutker/plugmon/internal/pid"
	"codeberg.org/mutker/plugmon/internal/sink"
	"codeberg.org/mutker/plugmon/internal/storage"
	"golang.org/x/sync/errgroup"
)

// Fetcher returns a device's current reading, or (nil, nil) when the
// device reports no data.
type Fetcher interface {
	FetchPower(ctx context.Context, deviceID string) (*storage.Reading, error)
}

// Store is the persistence the collector needs.
type Store interface {
	KnownDeviceIDs(ctx context.Context) ([]string, error)
	Append(ctx context.Context, reading *storage.Reading) bool
}

type Config struct {
	// FallbackDeviceID is polled when storage knows no devices yet.
	FallbackDeviceID string

	// Concurrency bounds how many devices are polled at once.
	Concurrency int

	// LockPath names a file lock held for the duration of every collection,
	// so collections from separate processes never overlap. Empty disables
	// it.
	LockPath string
}

type DeviceResult struct {
	Success bool             `json:"success"`
	Reading *storage.Reading `json:"reading,omitempty"`
	Error   string           `json:"error,omitempty"`
}

type BatchResult struct {
	SuccessCount int                     `json:"success_count"`
	Total        int                     `json:"total"`
	Results      map[string]DeviceResult `json:"results"`
}

type Collector struct {
	fetcher  Fetcher
	store    Store
	sinks    []sink.Sink
	fallback string
	limit    int
	lockPath string
	batchMu  sync.Mutex
	logger   logger.Logger
}

// New creates a collector. A nil fetcher is allowed; every collection then
// fails with a configuration error.
func New(fetcher Fetcher, store Store, cfg Config, sinks ...sink.Sink) *Collector {
	limit := cfg.Concurrency
	if limit < 1 {
		limit = 1
	}

	return &Collector{
		fetcher:  fetcher,
		store:    store,
		sinks:    sinks,
		fallback: cfg.FallbackDeviceID,
		limit:    limit,
		lockPath: cfg.LockPath,
		logger:   logger.With("collector"),
	}
}

// CollectAll polls every known device. Per-device failures are reported in
// the result and never fail the batch.
func (c *Collector) CollectAll(ctx context.Context) (*BatchResult, error) {
	if c.fetcher == nil {
		return nil, errors.New().WithMessage(ErrNotConfigured, "switchbot credentials not configured")
	}

	c.batchMu.Lock()
	defer c.batchMu.Unlock()

	release, err := c.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	devices, err := c.devices(ctx)
	if err != nil {
		return nil, err
	}

	result := &BatchResult{
		Total:   len(devices),
		Results: make(map[string]DeviceResult, len(devices)),
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.limit)

	for _, deviceID := range devices {
		g.Go(func() error {
			res := c.collectDevice(gctx, deviceID)

			mu.Lock()
			result.Results[deviceID] = res
			if res.Success {
				result.SuccessCount++
			}
			mu.Unlock()

			return nil
		})
	}
	_ = g.Wait()

	c.logger.Info().
		Int("success", result.SuccessCount).
		Int("total", result.Total).
		Msg("Collection finished")

	return result, nil
}

// devices resolves which devices to poll: those already in storage, or the
// configured fallback when storage is empty.
func (c *Collector) devices(ctx context.Context) ([]string, error) {
	known, err := c.store.KnownDeviceIDs(ctx)
	if err != nil {
		return nil, err
	}
	if len(known) > 0 {
		return known, nil
	}

	if c.fallback != "" {
		c.logger.Debug().Str("device_id", c.fallback).Msg("No known devices, using configured device")
		return []string{c.fallback}, nil
	}

	return nil, errors.New().WithMessage(ErrNoDevices, "no known devices and no device id configured")
}

func (c *Collector) collectDevice(ctx context.Context, deviceID string) DeviceResult {
	reading, err := c.fetcher.FetchPower(ctx, deviceID)
	if err != nil {
		c.logger.ErrorWithCode(err).
			Str("device_id", deviceID).
			Str("operation", "fetch").
			Msg("Failed to fetch reading")
		return DeviceResult{Error: err.Error()}
	}

	if reading == nil {
		c.logger.Warn().Str("device_id", deviceID).Msg("No data available")
		return DeviceResult{Error: msgNoData}
	}

	if !c.store.Append(ctx, reading) {
		return DeviceResult{Error: msgSaveFailed}
	}

	c.publish(ctx, reading)

	return DeviceResult{Success: true, Reading: reading}
}

// CollectOne polls a single device and persists its reading.
func (c *Collector) CollectOne(ctx context.Context, deviceID string) (*storage.Reading, error) {
	errFactory := errors.New()

	if err := validateDeviceID(deviceID); err != nil {
		return nil, err
	}
	if c.fetcher == nil {
		return nil, errFactory.WithMessage(ErrNotConfigured, "switchbot credentials not configured")
	}

	release, err := c.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	reading, err := c.Current(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	if !c.store.Append(ctx, reading) {
		return nil, errFactory.WithMessage(ErrSaveFailed, "failed to save reading")
	}

	c.publish(ctx, reading)

	c.logger.Debug().
		Str("device_id", deviceID).
		Int64("timestamp", reading.Timestamp).
		Msg("Reading collected")

	return reading, nil
}

// Current fetches a device's reading without persisting it.
func (c *Collector) Current(ctx context.Context, deviceID string) (*storage.Reading, error) {
	errFactory := errors.New()

	if err := validateDeviceID(deviceID); err != nil {
		return nil, err
	}
	if c.fetcher == nil {
		return nil, errFactory.WithMessage(ErrNotConfigured, "switchbot credentials not configured")
	}

	reading, err := c.fetcher.FetchPower(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if reading == nil {
		return nil, errFactory.WithMessage(ErrNoReading, "no data available from device")
	}

	return reading, nil
}

// publish mirrors a saved reading to every sink. Failures are logged only.
func (c *Collector) publish(ctx context.Context, reading *storage.Reading) {
	for _, s := range c.sinks {
		if err := s.Publish(ctx, reading); err != nil {
			c.logger.Warn().
				Err(err).
				Str("sink", s.Name()).
				Str("device_id", reading.DeviceID).
				Msg("Failed to publish reading")
		}
	}
}

// lock takes the cross-process collection lock. The returned function
// releases it and logs a failure to do so.
func (c *Collector) lock(ctx context.Context) (func(), error) {
	if c.lockPath == "" {
		return func() {}, nil
	}

	unlock, err := pid.Acquire(ctx, c.lockPath)
	if err != nil {
		c.logger.ErrorWithCode(err).Str("lock", c.lockPath).Msg("Failed to acquire collection lock")
		return nil, err
	}

	return func() {
		if err := unlock(); err != nil {
			c.logger.Warn().Err(err).Str("lock", c.lockPath).Msg("Failed to release collection lock")
		}
	}, nil
}

func validateDeviceID(deviceID string) error {
	if deviceID == "" || deviceID == storage.AllDevices {
		return errors.New().WithMessage(ErrInvalidDevice, fmt.Sprintf("device id %q does not name a single device", deviceID))
	}
	return nil
}
