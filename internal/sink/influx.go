package sink

import (
	"context"
	"time"

	"codeberg.org/mutker/plugmon/internal/errors"
	"codeberg.org/mutker/plugmon/internal/storage"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

const (
	influxMeasurement = "power_readings"
	influxPingTimeout = 5 * time.Second
)

type InfluxConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// Influx writes every reading as a point of the power_readings measurement,
// tagged by device id.
type Influx struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
}

// NewInflux connects to the server and verifies it answers a ping.
func NewInflux(cfg InfluxConfig) (*Influx, error) {
	errFactory := errors.New()

	if cfg.URL == "" || cfg.Bucket == "" {
		return nil, errFactory.WithMessage(ErrSinkConfig, "influxdb url and bucket are required")
	}

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token,
		influxdb2.DefaultOptions().SetPrecision(time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), influxPingTimeout)
	defer cancel()

	ok, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, errFactory.Wrap(ErrSinkConnect, err)
	}
	if !ok {
		client.Close()
		return nil, errFactory.WithMessage(ErrSinkConnect, "influxdb server not healthy")
	}

	return &Influx{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
	}, nil
}

func (*Influx) Name() string {
	return "influxdb"
}

func (i *Influx) Publish(ctx context.Context, reading *storage.Reading) error {
	point := write.NewPoint(
		influxMeasurement,
		map[string]string{"device_id": reading.DeviceID},
		fields(reading),
		reading.Time(),
	)

	if err := i.writeAPI.WritePoint(ctx, point); err != nil {
		return errors.New().Wrap(ErrPublishFailed, err)
	}
	return nil
}

func (i *Influx) Close() error {
	i.client.Close()
	return nil
}
