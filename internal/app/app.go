// Package app builds the long-lived components once at startup.
package app

import (
	"codeberg.org/mutker/plugmon/internal/collector"
	"codeberg.org/mutker/plugmon/internal/config"
	"codeberg.org/mutker/plugmon/internal/errors"
	"codeberg.org/mutker/plugmon/internal/logger"
	"codeberg.org/mutker/plugmon/internal/pid"
	"codeberg.org/mutker/plugmon/internal/retention"
	"codeberg.org/mutker/plugmon/internal/sink"
	"codeberg.org/mutker/plugmon/internal/storage"
	"codeberg.org/mutker/plugmon/internal/switchbot"
)

// App holds every component of a running plugmon process. Nothing in it is
// replaced after New returns.
type App struct {
	Config    *config.Config
	Store     *storage.Store
	Client    *switchbot.Client // nil without credentials
	Collector *collector.Collector
	Retention *retention.Manager
	Sinks     []sink.Sink

	logger logger.Logger
}

type Option func(*options)

type options struct {
	sinks bool
}

// WithoutSinks skips connecting the configured sinks.
func WithoutSinks() Option {
	return func(o *options) {
		o.sinks = false
	}
}

// New opens storage and builds the client, collector, retention manager and
// sinks from cfg. Missing credentials leave Client nil; sinks that cannot
// connect are skipped.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	o := options{sinks: true}
	for _, opt := range opts {
		opt(&o)
	}

	log := logger.With("app")

	store, err := storage.Open(storage.Config{Path: cfg.Database})
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:    cfg,
		Store:     store,
		Retention: retention.New(store),
		logger:    log,
	}

	if cfg.HasCredentials() {
		client, err := switchbot.New(switchbot.Config{
			Token:   cfg.SwitchBot.Token,
			Secret:  cfg.SwitchBot.Secret,
			BaseURL: cfg.SwitchBot.BaseURL,
			Timeout: cfg.SwitchBot.Timeout,
		})
		if err != nil {
			store.Close()
			return nil, err
		}
		a.Client = client
	} else {
		log.Warn().Msg("SwitchBot credentials not configured, collection disabled")
	}

	if o.sinks {
		a.Sinks = connectSinks(cfg, log)
	}

	// A nil *switchbot.Client must reach the collector as a nil interface.
	var fetcher collector.Fetcher
	if a.Client != nil {
		fetcher = a.Client
	}
	a.Collector = collector.New(fetcher, store, collector.Config{
		FallbackDeviceID: cfg.SwitchBot.DeviceID,
		Concurrency:      cfg.Collector.Concurrency,
		LockPath:         pid.LockPathFor(cfg.Database),
	}, a.Sinks...)

	return a, nil
}

func connectSinks(cfg *config.Config, log logger.Logger) []sink.Sink {
	var sinks []sink.Sink

	if cfg.InfluxDB.Enabled {
		influx, err := sink.NewInflux(sink.InfluxConfig{
			URL:    cfg.InfluxDB.URL,
			Token:  cfg.InfluxDB.Token,
			Org:    cfg.InfluxDB.Org,
			Bucket: cfg.InfluxDB.Bucket,
		})
		if err != nil {
			log.ErrorWithCode(err).Str("sink", "influxdb").Msg("Sink disabled")
		} else {
			sinks = append(sinks, influx)
		}
	}

	if cfg.MQTT.Enabled {
		mqtt, err := sink.NewMQTT(sink.MQTTConfig{
			Broker:      cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			QoS:         cfg.MQTT.QoS,
		})
		if err != nil {
			log.ErrorWithCode(err).Str("sink", "mqtt").Msg("Sink disabled")
		} else {
			sinks = append(sinks, mqtt)
		}
	}

	for _, s := range sinks {
		log.Info().Str("sink", s.Name()).Msg("Sink enabled")
	}

	return sinks
}

// Close releases sinks and storage.
func (a *App) Close() error {
	for _, s := range a.Sinks {
		if err := s.Close(); err != nil {
			a.logger.Warn().Err(err).Str("sink", s.Name()).Msg("Failed to close sink")
		}
	}

	if err := a.Store.Close(); err != nil {
		return errors.New().Wrap(errors.ErrShutdownFailed, err)
	}

	return nil
}
