package parse

import (
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lhdtools/lhdretrieve/internal/artifact"
	"github.com/lhdtools/lhdretrieve/internal/types"
)

func writeInt16File(t *testing.T, path string, values []int16) {
	t.Helper()
	buf := make([]byte, 2*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(v))
	}
	require.NoError(t, os.WriteFile(path, buf, 0o644))
}

func writeFloat32File(t *testing.T, path string, values []float32) {
	t.Helper()
	buf := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	require.NoError(t, os.WriteFile(path, buf, 0o644))
}

func TestSamples_Int16Default(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.dat")
	writeInt16File(t, path, []int16{0, 1, -2, 32767, -32768})

	got, err := Samples(path, "")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, -2, 32767, -32768}, got)
}

func TestSamples_Float64(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.dat")
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint64(buf, math.Float64bits(1.5))
	binary.LittleEndian.PutUint64(buf[8:], math.Float64bits(-0.25))
	require.NoError(t, os.WriteFile(path, buf, 0o644))

	got, err := Samples(path, types.DTypeFloat64)
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5, -0.25}, got)
}

func TestSamples_Int8(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.dat")
	require.NoError(t, os.WriteFile(path, []byte{0x00, 0xFF, 0x7F}, 0o644))

	got, err := Samples(path, types.DTypeInt8)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, -1, 127}, got)
}

func TestSamples_SizeMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.dat")
	require.NoError(t, os.WriteFile(path, []byte{1, 2, 3}, 0o644))

	_, err := Samples(path, types.DTypeInt16)
	var pe *ParseError
	require.True(t, errors.As(err, &pe), "want *ParseError, got %T", err)
	assert.Contains(t, pe.Reason, "not a multiple")
}

func TestSamples_MissingFile(t *testing.T) {
	_, err := Samples(filepath.Join(t.TempDir(), "absent.dat"), "")
	var pe *ParseError
	require.True(t, errors.As(err, &pe), "want *ParseError, got %T", err)
}

func TestParams(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.prm")
	content := "Magnetics,VResolution,0.0005,4\n" +
		"Magnetics,VOffset,-1.25,4\n" +
		"Magnetics,SamplingRate,1000000,4\n" +
		"comment only\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	params, err := Params(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0005", params["VResolution"])
	assert.Equal(t, "-1.25", params["VOffset"])
	assert.Equal(t, "1000000", params["SamplingRate"])
	assert.Len(t, params, 3)
}

func TestParams_Missing(t *testing.T) {
	_, err := Params(filepath.Join(t.TempDir(), "absent.prm"))
	var pe *ParseError
	require.True(t, errors.As(err, &pe), "want *ParseError, got %T", err)
}

func TestTimeAxis(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.time")
	writeFloat32File(t, path, []float32{0, 0.5, 1.0})

	got, err := TimeAxis(path)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.InDelta(t, 0.5, got[1], 1e-7)
}

func TestTimeAxis_SizeMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.time")
	require.NoError(t, os.WriteFile(path, []byte{1, 2, 3}, 0o644))

	_, err := TimeAxis(path)
	var pe *ParseError
	require.True(t, errors.As(err, &pe), "want *ParseError, got %T", err)
}

// writeWellFormedSet writes a complete artifact set with n matched
// sample/time points.
func writeWellFormedSet(t *testing.T, set artifact.Set, n int) {
	t.Helper()

	samples := make([]int16, n)
	times := make([]float32, n)
	for i := 0; i < n; i++ {
		samples[i] = int16(i % 1000)
		times[i] = float32(i) * 1e-6
	}
	writeInt16File(t, set.Dat(), samples)
	writeFloat32File(t, set.Time(), times)

	prm := "Magnetics,VResolution,0.0005,4\nMagnetics,SamplingRate,1000000,4\n"
	require.NoError(t, os.WriteFile(set.Prm(), []byte(prm), 0o644))

	tprm := "Magnetics,StartTime,0.0,4\nMagnetics,ClockCycle,1e-06,4\n"
	require.NoError(t, os.WriteFile(set.Tprm(), []byte(tprm), 0o644))
}

func fullRequest() types.RetrievalRequest {
	return types.RetrievalRequest{
		DiagName: "Magnetics", Shot: 48000, Subshot: 1, Channel: 1, TimeAxis: true,
	}
}

func TestArtifactSet_WellFormed(t *testing.T) {
	req := fullRequest()
	set := artifact.NewSet(t.TempDir(), req)
	writeWellFormedSet(t, set, 1024)

	samples, timeAxis, meta, err := ArtifactSet(set, req, nil)
	require.NoError(t, err)
	assert.Len(t, samples, 1024)
	assert.Len(t, timeAxis, 1024)
	assert.Equal(t, "0.0005", meta["VResolution"])
	assert.Equal(t, "0.0", meta["StartTime"])
}

func TestArtifactSet_MissingDat(t *testing.T) {
	req := fullRequest()
	set := artifact.NewSet(t.TempDir(), req)
	// Only the parameter file exists; a successful exit code with no data
	// file must be a parse error, not an empty result.
	require.NoError(t, os.WriteFile(set.Prm(), []byte("a,b,c\n"), 0o644))

	_, _, _, err := ArtifactSet(set, req, nil)
	var pe *ParseError
	require.True(t, errors.As(err, &pe), "want *ParseError, got %T", err)
}

func TestArtifactSet_MissingPrmIsTolerated(t *testing.T) {
	req := fullRequest()
	req.TimeAxis = false
	set := artifact.NewSet(t.TempDir(), req)
	writeInt16File(t, set.Dat(), []int16{1, 2, 3})

	samples, timeAxis, meta, err := ArtifactSet(set, req, nil)
	require.NoError(t, err)
	assert.Len(t, samples, 3)
	assert.Nil(t, timeAxis)
	assert.Empty(t, meta)
}

func TestArtifactSet_SynthesizedTimeAxis(t *testing.T) {
	req := fullRequest()
	set := artifact.NewSet(t.TempDir(), req)
	writeInt16File(t, set.Dat(), []int16{1, 2, 3, 4})
	prm := "Magnetics,SamplingRate,2,4\n"
	require.NoError(t, os.WriteFile(set.Prm(), []byte(prm), 0o644))

	samples, timeAxis, _, err := ArtifactSet(set, req, nil)
	require.NoError(t, err)
	require.Len(t, samples, 4)
	require.Len(t, timeAxis, 4)
	assert.InDelta(t, 0.5, timeAxis[1], 1e-12)
	assert.InDelta(t, 1.5, timeAxis[3], 1e-12)
}

func TestArtifactSet_Idempotent(t *testing.T) {
	req := fullRequest()
	set := artifact.NewSet(t.TempDir(), req)
	writeWellFormedSet(t, set, 256)

	s1, t1, m1, err := ArtifactSet(set, req, nil)
	require.NoError(t, err)
	s2, t2, m2, err := ArtifactSet(set, req, nil)
	require.NoError(t, err)

	assert.Equal(t, s1, s2)
	assert.Equal(t, t1, t2)
	assert.Equal(t, m1, m2)
}

func TestSynthesizeTimeAxis_DefaultRate(t *testing.T) {
	axis := synthesizeTimeAxis(3, map[string]string{})
	assert.Equal(t, []float64{0, 1, 2}, axis)
}
