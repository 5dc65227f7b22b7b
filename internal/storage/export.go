package storage

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"codeberg.org/mutker/plugmon/internal/errors"
)

// CSVHeader is the fixed column order of exports.
var CSVHeader = []string{
	"timestamp", "datetime", "device_id",
	"voltage", "electric_current", "power", "electricity_of_day",
	"power_on",
}

// exportTimeLayout renders local time as ISO-8601 without an offset.
const exportTimeLayout = "2006-01-02T15:04:05"

// ExportCSV writes readings as CSV, oldest first, and returns the number of
// data rows written. deviceID AllDevices exports every device; hoursBack
// <= 0 exports the full history.
func (s *Store) ExportCSV(ctx context.Context, w io.Writer, deviceID string, hoursBack int) (int, error) {
	errFactory := errors.New()

	var (
		where []string
		args  []any
	)
	if deviceID != AllDevices {
		where = append(where, "device_id = ?")
		args = append(args, deviceID)
	}
	if hoursBack > 0 {
		where = append(where, "timestamp >= ?")
		args = append(args, s.hoursAgo(hoursBack))
	}

	query := "SELECT " + readingColumns + " FROM power_readings"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY timestamp ASC, id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, errFactory.Wrap(ErrStorageAccess, err)
	}
	defer rows.Close()

	writer := csv.NewWriter(w)
	if err := writer.Write(CSVHeader); err != nil {
		return 0, errFactory.Wrap(ErrStorageAccess, err)
	}

	count := 0
	for rows.Next() {
		r, err := scanReading(rows)
		if err != nil {
			return count, errFactory.Wrap(ErrStorageAccess, err)
		}
		if err := writer.Write(csvRecord(&r)); err != nil {
			return count, errFactory.Wrap(ErrStorageAccess, err)
		}
		count++
	}

	if err := rows.Err(); err != nil {
		return count, errFactory.Wrap(ErrStorageAccess, err)
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return count, errFactory.Wrap(ErrStorageAccess, err)
	}

	return count, nil
}

func csvRecord(r *Reading) []string {
	powerOn := ""
	if r.PowerOn != nil {
		powerOn = strconv.FormatBool(*r.PowerOn)
	}

	return []string{
		strconv.FormatInt(r.Timestamp, 10),
		r.Time().Local().Format(exportTimeLayout),
		r.DeviceID,
		formatFloat(r.Voltage),
		formatFloat(r.ElectricCurrent),
		formatFloat(r.Power),
		formatFloat(r.ElectricityOfDay),
		powerOn,
	}
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
