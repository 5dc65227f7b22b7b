package switchbot_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"codeberg.org/mutker/plugmon/internal/errors"
	"codeberg.org/mutker/plugmon/internal/switchbot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func newClient(t *testing.T, handler http.HandlerFunc) *switchbot.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := switchbot.New(switchbot.Config{
		Token:   "token",
		Secret:  "secret",
		BaseURL: server.URL,
		Timeout: time.Second,
		Clock:   func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	return client
}

func respond(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := switchbot.New(switchbot.Config{Token: "token"})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrConfiguration))

	_, err = switchbot.New(switchbot.Config{Secret: "secret"})
	assert.True(t, errors.HasCode(err, errors.ErrConfiguration))
}

func TestFetchPower(t *testing.T) {
	var got *http.Request
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r
		respond(`{"statusCode":100,"message":"success","body":{
			"deviceId":"A","deviceType":"Plug Mini (US)",
			"voltage":120.5,"electricCurrent":0.3,"weight":36.2,
			"electricityOfDay":540,"power":"on"}}`)(w, r)
	})

	reading, err := client.FetchPower(context.Background(), "A")
	require.NoError(t, err)
	require.NotNil(t, reading)

	require.NotNil(t, got)
	assert.Equal(t, "/devices/A/status", got.URL.Path)
	assert.Equal(t, "token", got.Header.Get("Authorization"))
	assert.NotEmpty(t, got.Header.Get("sign"))
	assert.NotEmpty(t, got.Header.Get("nonce"))
	assert.Equal(t, "1773489600000", got.Header.Get("t"))

	assert.Equal(t, "A", reading.DeviceID)
	assert.Equal(t, fixedNow.Unix(), reading.Timestamp)
	assert.InDelta(t, 120.5, *reading.Voltage, 1e-9)
	assert.InDelta(t, 0.3, *reading.ElectricCurrent, 1e-9)
	assert.InDelta(t, 36.2, *reading.Power, 1e-9)
	assert.InDelta(t, 540, *reading.ElectricityOfDay, 1e-9)
	require.NotNil(t, reading.PowerOn)
	assert.True(t, *reading.PowerOn)
}

func TestFetchPowerWithoutStatusCode(t *testing.T) {
	client := newClient(t, respond(`{"body":{
		"voltage":100.1,"electricCurrent":0.2,"weight":15.5,
		"electricityOfDay":42,"power":"on"}}`))

	reading, err := client.FetchPower(context.Background(), "A")
	require.NoError(t, err)
	require.NotNil(t, reading)
	require.NotNil(t, reading.Voltage)
	assert.InDelta(t, 100.1, *reading.Voltage, 1e-9)
	require.NotNil(t, reading.Power)
	assert.InDelta(t, 15.5, *reading.Power, 1e-9)
	require.NotNil(t, reading.PowerOn)
	assert.True(t, *reading.PowerOn)
}

func TestFetchPowerFieldMapping(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		powerOn bool
	}{
		{name: "on", body: `{"statusCode":100,"body":{"power":"on"}}`, powerOn: true},
		{name: "off", body: `{"statusCode":100,"body":{"power":"off","weight":0}}`, powerOn: false},
		{name: "case sensitive", body: `{"statusCode":100,"body":{"power":"ON"}}`, powerOn: false},
		{name: "absent", body: `{"statusCode":100,"body":{"weight":5}}`, powerOn: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newClient(t, respond(tt.body))

			reading, err := client.FetchPower(context.Background(), "A")
			require.NoError(t, err)
			require.NotNil(t, reading)
			require.NotNil(t, reading.PowerOn)
			assert.Equal(t, tt.powerOn, *reading.PowerOn)
			assert.Nil(t, reading.Voltage)
		})
	}
}

func TestFetchPowerNoData(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "null body", body: `{"statusCode":100,"message":"success","body":null}`},
		{name: "missing body", body: `{"statusCode":100,"message":"success"}`},
		{name: "api failure", body: `{"statusCode":190,"message":"device not found","body":{}}`},
		{name: "invalid json", body: `not json`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newClient(t, respond(tt.body))

			reading, err := client.FetchPower(context.Background(), "A")
			require.NoError(t, err)
			assert.Nil(t, reading)

			_, err = client.FetchStatus(context.Background(), "A")
			assert.True(t, errors.HasCode(err, errors.ErrNoData))
		})
	}
}

func TestFetchPowerUpstreamError(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	})

	reading, err := client.FetchPower(context.Background(), "A")
	require.Error(t, err)
	assert.Nil(t, reading)
	assert.True(t, errors.HasCode(err, errors.ErrUpstream))
	assert.Equal(t, http.StatusServiceUnavailable, switchbot.StatusCode(err))
}

func TestFetchPowerNetworkError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()

	client, err := switchbot.New(switchbot.Config{
		Token:   "token",
		Secret:  "secret",
		BaseURL: server.URL,
		Timeout: time.Second,
	})
	require.NoError(t, err)

	_, err = client.FetchPower(context.Background(), "A")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrNetwork))
	assert.Zero(t, switchbot.StatusCode(err))
}

func TestFetchPowerTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(server.Close)
	t.Cleanup(func() { close(release) })

	client, err := switchbot.New(switchbot.Config{
		Token:   "token",
		Secret:  "secret",
		BaseURL: server.URL,
		Timeout: 50 * time.Millisecond,
	})
	require.NoError(t, err)

	_, err = client.FetchPower(context.Background(), "A")
	assert.True(t, errors.HasCode(err, errors.ErrNetwork))
}

func TestListDevices(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/devices", r.URL.Path)
		respond(`{"statusCode":100,"body":{"deviceList":[
			{"deviceId":"A","deviceName":"Desk","deviceType":"Plug Mini (US)","enableCloudService":true,"hubDeviceId":""}
		],"infraredRemoteList":[]}}`)(w, r)
	})

	devices, err := client.ListDevices(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "A", devices[0].DeviceID)
	assert.Equal(t, "Desk", devices[0].DeviceName)
	assert.True(t, devices[0].EnableCloudService)
}
