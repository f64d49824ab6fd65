package types

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
)

// Data is the result of one channel retrieval. It is owned exclusively by
// the caller after return; nothing in this package retains a reference.
type Data struct {
	// Samples holds the decoded sample block. For the default int16 layout
	// these are raw ADC counts; use Voltage to apply the calibration from
	// the parameter file.
	Samples []float64
	// Time is the time axis, aligned 1:1 with Samples, or nil when no time
	// axis was requested or could be derived.
	Time []float64
	// Metadata holds the parameter-file key/value pairs plus the request
	// parameters that produced this data.
	Metadata map[string]string

	Units       string
	Description string
}

// Len returns the number of samples.
func (d *Data) Len() int { return len(d.Samples) }

// metaFloat looks up the first present key and parses it as a float.
func (d *Data) metaFloat(keys ...string) (float64, string, error) {
	for _, k := range keys {
		raw, ok := d.Metadata[k]
		if !ok {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0, k, fmt.Errorf("metadata %s value %q is not numeric", k, raw)
		}
		return v, k, nil
	}
	return 0, "", nil
}

// Voltage converts raw samples to voltage values using the calibration
// coefficients from the parameter block: VResolution (or VCoefficient1)
// as the scale and VOffset (or VCoefficient0) as the offset. The offset
// defaults to zero when absent; a missing scale is an error because the
// result would be meaningless.
func (d *Data) Voltage() ([]float64, error) {
	scale, key, err := d.metaFloat("VResolution", "VCoefficient1")
	if err != nil {
		return nil, err
	}
	if key == "" {
		return nil, fmt.Errorf("VResolution or VCoefficient1 not found in metadata, cannot convert to voltage")
	}

	offset, _, err := d.metaFloat("VOffset", "VCoefficient0")
	if err != nil {
		return nil, err
	}

	out := make([]float64, len(d.Samples))
	for i, s := range d.Samples {
		out[i] = s*scale + offset
	}
	return out, nil
}

// Records returns the data as tabular rows with a header, suitable for
// delimited-text export. The time column is omitted when no time axis
// is present.
func (d *Data) Records() [][]string {
	hasTime := len(d.Time) == len(d.Samples) && len(d.Time) > 0

	rows := make([][]string, 0, len(d.Samples)+1)
	if hasTime {
		rows = append(rows, []string{"time", "data"})
	} else {
		rows = append(rows, []string{"data"})
	}

	for i, s := range d.Samples {
		val := strconv.FormatFloat(s, 'g', -1, 64)
		if hasTime {
			t := strconv.FormatFloat(d.Time[i], 'g', -1, 64)
			rows = append(rows, []string{t, val})
		} else {
			rows = append(rows, []string{val})
		}
	}
	return rows
}

// WriteCSV writes the tabular form of the data to w.
func (d *Data) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(d.Records()); err != nil {
		return fmt.Errorf("failed to write CSV: %w", err)
	}
	cw.Flush()
	return cw.Error()
}

// SaveCSV writes the tabular form of the data to the named file.
func (d *Data) SaveCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := d.WriteCSV(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
