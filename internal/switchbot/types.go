package switchbot

import "encoding/json"

// envelope is the common response wrapper of the API. StatusCode is nil when
// the response omits it.
type envelope struct {
	StatusCode *int            `json:"statusCode"`
	Message    string          `json:"message"`
	Body       json.RawMessage `json:"body"`
}

// DeviceStatus is the status body of a plug. Absent fields stay nil.
type DeviceStatus struct {
	DeviceID         string   `json:"deviceId"`
	DeviceType       string   `json:"deviceType"`
	Voltage          *float64 `json:"voltage"`
	ElectricCurrent  *float64 `json:"electricCurrent"`
	Weight           *float64 `json:"weight"`
	ElectricityOfDay *float64 `json:"electricityOfDay"`
	Power            *string  `json:"power"`
}

// Device is one physical device registered to the account.
type Device struct {
	DeviceID           string `json:"deviceId"`
	DeviceName         string `json:"deviceName"`
	DeviceType         string `json:"deviceType"`
	HubDeviceID        string `json:"hubDeviceId"`
	EnableCloudService bool   `json:"enableCloudService"`
}

type deviceList struct {
	DeviceList []Device `json:"deviceList"`
}

// UpstreamStatus is attached to upstream_error failures.
type UpstreamStatus struct {
	Status int
	Body   string
}
