// Package parse decodes the flat files one retrieval produces into
// numeric arrays and metadata. Parsing is pure: inputs are only read,
// and re-parsing an unchanged artifact set yields identical results.
package parse

import (
	"encoding/binary"
	"encoding/csv"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/lhdtools/lhdretrieve/internal/artifact"
	"github.com/lhdtools/lhdretrieve/internal/types"
)

// ParseError reports a missing or malformed output file.
type ParseError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("cannot parse %s: %s", e.Path, e.Reason)
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Err }

// Samples decodes the binary sample block. The layout is a bare
// little-endian array of the given element type; the tool's raw output
// is int16 ADC counts, which is the default.
func Samples(path string, dtype types.DType) ([]float64, error) {
	if dtype == "" {
		dtype = types.DTypeInt16
	}
	width := dtype.Width()
	if width == 0 {
		return nil, &ParseError{Path: path, Reason: fmt.Sprintf("unsupported dtype %q", dtype)}
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &ParseError{Path: path, Reason: "data file missing or unreadable", Err: err}
	}
	if len(raw)%width != 0 {
		return nil, &ParseError{
			Path:   path,
			Reason: fmt.Sprintf("size %d is not a multiple of %s element width %d", len(raw), dtype, width),
		}
	}

	n := len(raw) / width
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		chunk := raw[i*width:]
		switch dtype {
		case types.DTypeInt8:
			out[i] = float64(int8(chunk[0]))
		case types.DTypeInt16:
			out[i] = float64(int16(binary.LittleEndian.Uint16(chunk)))
		case types.DTypeInt32:
			out[i] = float64(int32(binary.LittleEndian.Uint32(chunk)))
		case types.DTypeFloat32:
			out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(chunk)))
		case types.DTypeFloat64:
			out[i] = math.Float64frombits(binary.LittleEndian.Uint64(chunk))
		}
	}
	return out, nil
}

// Params reads a parameter block (.prm/.tprm). Rows are CSV with the
// parameter name in the second column and its value in the third; rows
// too short to carry both are skipped.
func Params(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ParseError{Path: path, Reason: "parameter file missing or unreadable", Err: err}
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, &ParseError{Path: path, Reason: "malformed parameter CSV", Err: err}
	}

	params := make(map[string]string, len(records))
	for _, rec := range records {
		if len(rec) < 3 {
			continue
		}
		key := strings.TrimSpace(rec[1])
		if key == "" {
			continue
		}
		params[key] = strings.TrimSpace(rec[2])
	}
	return params, nil
}

// TimeAxis decodes the time-axis block, a little-endian float32 array.
func TimeAxis(path string) ([]float64, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &ParseError{Path: path, Reason: "time file missing or unreadable", Err: err}
	}
	if len(raw)%4 != 0 {
		return nil, &ParseError{
			Path:   path,
			Reason: fmt.Sprintf("size %d is not a multiple of float32 width 4", len(raw)),
		}
	}

	n := len(raw) / 4
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:])))
	}
	return out, nil
}

// ArtifactSet reads every file of one artifact set and assembles the
// retrieval result parts. The sample block is required; the parameter
// blocks are tolerated when absent (warned, empty metadata); the time
// axis is synthesized from the SamplingRate parameter when the request
// asked for one but the tool did not produce a usable axis.
func ArtifactSet(set artifact.Set, req types.RetrievalRequest, logger *slog.Logger) (samples, timeAxis []float64, metadata map[string]string, err error) {
	if logger == nil {
		logger = slog.Default()
	}

	metadata = make(map[string]string)
	if path, ok := set.Resolve(set.Prm()); ok {
		params, perr := Params(path)
		if perr != nil {
			logger.Warn("parameter file unreadable, continuing without metadata", "path", path, "err", perr)
		} else {
			for k, v := range params {
				metadata[k] = v
			}
		}
	} else {
		logger.Warn("parameter file not produced", "path", set.Prm())
	}

	if path, ok := set.Resolve(set.Tprm()); ok {
		params, perr := Params(path)
		if perr != nil {
			logger.Warn("time-parameter file unreadable", "path", path, "err", perr)
		} else {
			for k, v := range params {
				if _, exists := metadata[k]; exists {
					metadata["Time."+k] = v
				} else {
					metadata[k] = v
				}
			}
		}
	}

	datPath, ok := set.Resolve(set.Dat())
	if !ok {
		return nil, nil, nil, &ParseError{Path: set.Dat(), Reason: "data file not produced"}
	}
	samples, err = Samples(datPath, req.DType)
	if err != nil {
		return nil, nil, nil, err
	}

	if path, ok := set.Resolve(set.Time()); ok {
		timeAxis, err = TimeAxis(path)
		if err != nil {
			return nil, nil, nil, err
		}
	}

	if len(timeAxis) != len(samples) {
		if timeAxis != nil {
			logger.Warn("time axis length mismatch, synthesizing from sampling rate",
				"samples", len(samples), "time", len(timeAxis))
		}
		if req.TimeAxis {
			timeAxis = synthesizeTimeAxis(len(samples), metadata)
		} else {
			timeAxis = nil
		}
	}

	return samples, timeAxis, metadata, nil
}

// synthesizeTimeAxis builds t[i] = i / SamplingRate, defaulting to a unit
// rate when the parameter block does not carry one.
func synthesizeTimeAxis(n int, metadata map[string]string) []float64 {
	rate := 1.0
	for _, key := range []string{"SamplingRate", "sampling_rate"} {
		if raw, ok := metadata[key]; ok {
			if v, err := strconv.ParseFloat(raw, 64); err == nil && v > 0 {
				rate = v
				break
			}
		}
	}

	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i) / rate
	}
	return out
}
