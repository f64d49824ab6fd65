package types

import (
	"fmt"
	"strings"
)

// DType identifies the binary element type of a .dat sample block.
type DType string

const (
	DTypeInt8    DType = "int8"
	DTypeInt16   DType = "int16"
	DTypeInt32   DType = "int32"
	DTypeFloat32 DType = "float32"
	DTypeFloat64 DType = "float64"
)

// Width returns the element size in bytes, or 0 for an unknown dtype.
func (d DType) Width() int {
	switch d {
	case DTypeInt8:
		return 1
	case DTypeInt16:
		return 2
	case DTypeInt32, DTypeFloat32:
		return 4
	case DTypeFloat64:
		return 8
	default:
		return 0
	}
}

// IsValid reports whether the dtype is one of the supported element types.
// The empty string is valid and means "use the default" (int16, matching
// the raw ADC count layout the retrieval tool emits).
func (d DType) IsValid() bool {
	return d == "" || d.Width() > 0
}

// RetrievalRequest identifies one channel of one shot to pull from the
// LHD data server. Treat a request as immutable once issued: the derived
// temporary file names depend on its fields.
type RetrievalRequest struct {
	DiagName    string // diagnostic name, e.g. "Magnetics"
	Shot        int
	Subshot     int
	Channel     int
	TimeAxis    bool  // ask the tool to emit a time axis (-T)
	FrameNumber *int  // specific frame (-f N), nil for all
	DType       DType // sample element type, "" for int16
}

// Validate checks if the request has valid field values
func (r *RetrievalRequest) Validate() error {
	if strings.TrimSpace(r.DiagName) == "" {
		return fmt.Errorf("diagnostic name is required")
	}
	if r.Shot <= 0 {
		return fmt.Errorf("shot must be positive (got %d)", r.Shot)
	}
	if r.Subshot <= 0 {
		return fmt.Errorf("subshot must be positive (got %d)", r.Subshot)
	}
	if r.Channel <= 0 {
		return fmt.Errorf("channel must be positive (got %d)", r.Channel)
	}
	if !r.DType.IsValid() {
		return fmt.Errorf("invalid dtype: %s", r.DType)
	}
	if r.FrameNumber != nil && *r.FrameNumber < 0 {
		return fmt.Errorf("frame number must be non-negative (got %d)", *r.FrameNumber)
	}
	return nil
}

// FilePrefix returns the temporary file prefix the retrieval tool is told
// to use. It is derived deterministically from the request parameters, so
// two concurrent calls with identical parameters would collide; callers
// that parallelize must serialize on this key.
func (r *RetrievalRequest) FilePrefix() string {
	return fmt.Sprintf("retrieve_%s_%d_%d_%d", r.DiagName, r.Shot, r.Subshot, r.Channel)
}

// CommandLine returns a human-readable preview of the tool invocation this
// request produces, without the resolved executable path.
func (r *RetrievalRequest) CommandLine() string {
	parts := []string{
		"Retrieve",
		r.DiagName,
		fmt.Sprintf("%d", r.Shot),
		fmt.Sprintf("%d", r.Subshot),
		fmt.Sprintf("%d", r.Channel),
	}
	if r.TimeAxis {
		parts = append(parts, "-T")
	}
	if r.FrameNumber != nil {
		parts = append(parts, "-f", fmt.Sprintf("%d", *r.FrameNumber))
	}
	return strings.Join(parts, " ")
}

// Description returns the human-readable label used in Data.Description.
func (r *RetrievalRequest) Description() string {
	return fmt.Sprintf("%s Shot %d.%d, Channel %d", r.DiagName, r.Shot, r.Subshot, r.Channel)
}
