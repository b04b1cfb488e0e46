package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"

	"github.com/banshee-data/places/internal/geo"
)

// record is one replayed location fix with the dwell time spent there.
type record struct {
	Fix   geo.Fix
	Dwell time.Duration
}

// readFixes parses lat,lon,alt,unix_ms,dwell_s rows. A header row and
// lines starting with '#' are skipped.
func readFixes(r io.Reader) ([]record, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = 5
	cr.TrimLeadingSpace = true

	var out []record
	for line := 1; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read fixes: %w", err)
		}
		if line == 1 && isHeader(row) {
			continue
		}
		rec, err := parseRecord(row)
		if err != nil {
			return nil, fmt.Errorf("fix row %d: %w", line, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func isHeader(row []string) bool {
	_, err := strconv.ParseFloat(strings.TrimSpace(row[0]), 64)
	return err != nil
}

func parseRecord(row []string) (record, error) {
	var vals [5]float64
	names := [5]string{"lat", "lon", "alt", "unix_ms", "dwell_s"}
	for i := range vals {
		v, err := strconv.ParseFloat(strings.TrimSpace(row[i]), 64)
		if err != nil {
			return record{}, fmt.Errorf("failed to parse %s: %w", names[i], err)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return record{}, fmt.Errorf("%s is not finite", names[i])
		}
		vals[i] = v
	}

	lat, lon := vals[0], vals[1]
	if lat < -90 || lat > 90 {
		return record{}, fmt.Errorf("latitude %v out of range", lat)
	}
	if lon < -180 || lon > 180 {
		return record{}, fmt.Errorf("longitude %v out of range", lon)
	}
	// float64(math.MaxInt64) rounds up to 2^63, so >= rejects every value
	// that would wrap when converted to int64.
	const int64Limit = float64(math.MaxInt64)
	if ms := vals[3]; ms >= int64Limit || ms < -int64Limit {
		return record{}, fmt.Errorf("unix_ms %v out of range", ms)
	}
	if vals[4] < 0 {
		return record{}, fmt.Errorf("negative dwell %v", vals[4])
	}
	dwellNs := vals[4] * float64(time.Second)
	if dwellNs >= int64Limit {
		return record{}, fmt.Errorf("dwell %vs exceeds %v", vals[4], time.Duration(math.MaxInt64))
	}

	return record{
		Fix: geo.Fix{
			Point:    orb.Point{lon, lat},
			Altitude: vals[2],
			Time:     time.UnixMilli(int64(vals[3])).UTC(),
		},
		Dwell: time.Duration(dwellNs),
	}, nil
}
