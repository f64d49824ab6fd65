package types

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestData_Voltage(t *testing.T) {
	d := &Data{
		Samples: []float64{0, 1, 2, -4},
		Metadata: map[string]string{
			"VResolution": "0.5",
			"VOffset":     "1.0",
		},
	}

	v, err := d.Voltage()
	require.NoError(t, err)
	assert.Equal(t, []float64{1.0, 1.5, 2.0, -1.0}, v)
}

func TestData_Voltage_CoefficientFallback(t *testing.T) {
	// Older parameter blocks carry VCoefficient1/VCoefficient0 instead.
	d := &Data{
		Samples: []float64{10, 20},
		Metadata: map[string]string{
			"VCoefficient1": "0.1",
			"VCoefficient0": "-1",
		},
	}

	v, err := d.Voltage()
	require.NoError(t, err)
	assert.InDelta(t, 0.0, v[0], 1e-12)
	assert.InDelta(t, 1.0, v[1], 1e-12)
}

func TestData_Voltage_MissingScale(t *testing.T) {
	d := &Data{Samples: []float64{1}, Metadata: map[string]string{"VOffset": "1"}}

	_, err := d.Voltage()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "VResolution")
}

func TestData_Voltage_NonNumericScale(t *testing.T) {
	d := &Data{Samples: []float64{1}, Metadata: map[string]string{"VResolution": "fast"}}

	_, err := d.Voltage()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not numeric")
}

func TestData_Voltage_MissingOffsetDefaultsToZero(t *testing.T) {
	d := &Data{Samples: []float64{4}, Metadata: map[string]string{"VResolution": "0.25"}}

	v, err := d.Voltage()
	require.NoError(t, err)
	assert.Equal(t, []float64{1.0}, v)
}

func TestData_Records(t *testing.T) {
	d := &Data{
		Samples: []float64{1, 2},
		Time:    []float64{0.0, 0.5},
	}

	rows := d.Records()
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"time", "data"}, rows[0])
	assert.Equal(t, []string{"0", "1"}, rows[1])
	assert.Equal(t, []string{"0.5", "2"}, rows[2])
}

func TestData_Records_NoTimeAxis(t *testing.T) {
	d := &Data{Samples: []float64{3}}

	rows := d.Records()
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"data"}, rows[0])
	assert.Equal(t, []string{"3"}, rows[1])
}

func TestData_WriteCSV(t *testing.T) {
	d := &Data{
		Samples: []float64{1, 2, 3},
		Time:    []float64{0, 1, 2},
	}

	var buf bytes.Buffer
	require.NoError(t, d.WriteCSV(&buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "time,data", lines[0])
	assert.Equal(t, "2,3", lines[3])
}

func TestData_SaveCSV(t *testing.T) {
	d := &Data{Samples: []float64{7}}
	path := filepath.Join(t.TempDir(), "out.csv")

	require.NoError(t, d.SaveCSV(path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "data\n7\n", string(content))
}
