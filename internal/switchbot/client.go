package switchbot

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"codeberg.org/mutker/plugmon/internal/errors"
	"codeberg.org/mutker/plugmon/internal/logger"
	"codeberg.org/mutker/plugmon/internal/storage"
)

const (
	DefaultBaseURL = "https://api.switch-bot.com/v1.1"
	DefaultTimeout = 30 * time.Second

	// maxBodySize caps how much of a response is read.
	maxBodySize = 1 << 20
)

type Config struct {
	Token   string
	Secret  string
	BaseURL string
	Timeout time.Duration

	// Clock overrides time.Now for reading timestamps and signatures.
	Clock func() time.Time

	// HTTPClient overrides the default client built from Timeout.
	HTTPClient *http.Client
}

// Client talks to the device API and normalizes plug status into readings.
type Client struct {
	baseURL string
	signer  *Signer
	http    *http.Client
	now     func() time.Time
	logger  logger.Logger
}

// New builds a client. Empty credentials are a configuration error.
func New(cfg Config) (*Client, error) {
	errFactory := errors.New()

	if cfg.Token == "" || cfg.Secret == "" {
		return nil, errFactory.WithMessage(ErrMissingCredentials, "switchbot token and secret are required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, errFactory.Wrap(ErrMissingCredentials, err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	now := cfg.Clock
	if now == nil {
		now = time.Now
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		signer:  NewSigner(cfg.Token, cfg.Secret).WithClock(now),
		http:    httpClient,
		now:     now,
		logger:  logger.With("switchbot"),
	}, nil
}

// FetchStatus returns the raw status of a device.
func (c *Client) FetchStatus(ctx context.Context, deviceID string) (*DeviceStatus, error) {
	body, err := c.get(ctx, "/devices/"+url.PathEscape(deviceID)+"/status", deviceID)
	if err != nil {
		return nil, err
	}

	var status DeviceStatus
	if err := json.Unmarshal(body, &status); err != nil {
		c.logger.Warn().
			Str("device_id", deviceID).
			Err(err).
			Msg("Undecodable device status")
		return nil, errors.New().Wrap(ErrNoData, err)
	}

	return &status, nil
}

// FetchPower returns the device's current power reading. A device that
// reports no data yields (nil, nil); transport and upstream failures are
// returned as errors.
func (c *Client) FetchPower(ctx context.Context, deviceID string) (*storage.Reading, error) {
	status, err := c.FetchStatus(ctx, deviceID)
	if errors.HasCode(err, ErrNoData) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return c.normalize(deviceID, status), nil
}

func (c *Client) normalize(deviceID string, status *DeviceStatus) *storage.Reading {
	// Only the exact value "on" counts; absent or anything else is off.
	on := status.Power != nil && *status.Power == "on"

	return &storage.Reading{
		DeviceID:         deviceID,
		Timestamp:        c.now().Unix(),
		Voltage:          status.Voltage,
		ElectricCurrent:  status.ElectricCurrent,
		Power:            status.Weight,
		ElectricityOfDay: status.ElectricityOfDay,
		PowerOn:          &on,
	}
}

// ListDevices returns the physical devices registered to the account.
func (c *Client) ListDevices(ctx context.Context) ([]Device, error) {
	body, err := c.get(ctx, "/devices", "")
	if err != nil {
		return nil, err
	}

	var list deviceList
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, errors.New().Wrap(ErrNoData, err)
	}
	if list.DeviceList == nil {
		list.DeviceList = []Device{}
	}

	return list.DeviceList, nil
}

// get performs a signed GET and returns the envelope body.
func (c *Client) get(ctx context.Context, path, deviceID string) (json.RawMessage, error) {
	errFactory := errors.New()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return nil, errFactory.Wrap(ErrBuildRequest, err)
	}
	req.Header = c.signer.Headers()

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.ErrorWithCode(err).
			Str("device_id", deviceID).
			Str("path", path).
			Msg("Request failed")
		return nil, errFactory.Wrap(ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, errFactory.Wrap(ErrRequestFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Error().
			Str("device_id", deviceID).
			Str("path", path).
			Int("status", resp.StatusCode).
			Msg("Upstream returned an error")
		return nil, errFactory.WithData(ErrBadStatus, UpstreamStatus{
			Status: resp.StatusCode,
			Body:   string(bytes.TrimSpace(raw)),
		})
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.logger.Warn().Str("device_id", deviceID).Err(err).Msg("Undecodable response")
		return nil, errFactory.Wrap(ErrNoData, err)
	}

	if env.StatusCode != nil && *env.StatusCode != statusSuccess {
		c.logger.Warn().
			Str("device_id", deviceID).
			Int("api_status", *env.StatusCode).
			Str("api_message", env.Message).
			Msg("No data in response")
		return nil, errFactory.WithData(ErrNoData, env.Message)
	}

	body := bytes.TrimSpace(env.Body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		c.logger.Warn().Str("device_id", deviceID).Msg("Response has no body")
		return nil, errFactory.New(ErrNoData)
	}

	return env.Body, nil
}

// StatusCode extracts the upstream HTTP status from an error returned by the
// client, or 0 when there is none.
func StatusCode(err error) int {
	var appErr errors.Error
	if !errors.As(err, &appErr) {
		return 0
	}
	if data, ok := appErr.GetData().(UpstreamStatus); ok {
		return data.Status
	}
	return 0
}
