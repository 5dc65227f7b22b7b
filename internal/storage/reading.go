package storage

import "time"

// AllDevices is the reserved device id meaning "every device". It is never
// stored as a device and is excluded from discovery and statistics.
const AllDevices = "all"

// Reading is one normalized power sample for a device.
type Reading struct {
	ID               int64     `json:"id"`
	DeviceID         string    `json:"device_id"`
	Timestamp        int64     `json:"timestamp"`
	Voltage          *float64  `json:"voltage"`
	ElectricCurrent  *float64  `json:"electric_current"`
	Power            *float64  `json:"power"`
	ElectricityOfDay *float64  `json:"electricity_of_day"`
	PowerOn          *bool     `json:"power_on"`
	CreatedAt        time.Time `json:"created_at,omitempty"`
}

// Time returns the sample time.
func (r *Reading) Time() time.Time {
	return time.Unix(r.Timestamp, 0)
}

// DeviceStats summarizes the stored history of one device.
type DeviceStats struct {
	Count          int64 `json:"count"`
	FirstTimestamp int64 `json:"first_timestamp"`
	LastTimestamp  int64 `json:"last_timestamp"`
	RecentCount    int64 `json:"recent_count_24h"`
}

// Stats summarizes the whole store.
type Stats struct {
	TotalRecords     int64                  `json:"total_records"`
	RecentRecords    int64                  `json:"recent_records_24h"`
	Devices          map[string]DeviceStats `json:"devices"`
	StorageSizeBytes int64                  `json:"storage_size_bytes"`
}
