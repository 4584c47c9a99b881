// Package sdss holds the spectroscopic record shape the preprocessing
// pipeline checkpoints, plus helpers for CasJobs table exports.
package sdss

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/KyleAMoore/Redshift-ResNet/pkg/preprocess/checkpoint"
)

// Record is one spectroscopic object prepared for training. Pixels holds
// the flattened image cube in band-major order; Width, Height and Bands
// carry its dimensions. Meta keeps any table columns that have no
// first-class field.
type Record struct {
	SpecObjID   string
	Redshift    float64
	Pixels      []float64
	Width       int
	Height      int
	Bands       int
	ImagePath   string
	Meta        map[string]any
	RetrievedAt time.Time
}

// Key returns the record's checkpoint key.
func (r *Record) Key() string { return r.SpecObjID }

var (
	_ checkpoint.Object          = (*Record)(nil)
	_ checkpoint.Schema[*Record] = RecordSchema{}
)

// RecordSchema builds and validates Records for the checkpoint store.
//
// New requires "specObjID" and "z"; both tolerate the string forms a CSV
// export produces. "pixels", "width", "height", "bands" and "image_path"
// fill their first-class fields; every other field lands in Meta.
type RecordSchema struct{}

// New constructs a Record from a raw field mapping.
func (RecordSchema) New(fields map[string]any) (*Record, error) {
	id, err := stringField(fields, "specObjID")
	if err != nil {
		return nil, err
	}
	z, err := floatField(fields, "z")
	if err != nil {
		return nil, err
	}

	rec := &Record{SpecObjID: id, Redshift: z}
	for key, value := range fields {
		switch key {
		case "specObjID", "z":
		case "pixels":
			pixels, err := floatSlice(value)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", key, err)
			}
			rec.Pixels = pixels
		case "width":
			rec.Width, err = intValue(value)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", key, err)
			}
		case "height":
			rec.Height, err = intValue(value)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", key, err)
			}
		case "bands":
			rec.Bands, err = intValue(value)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", key, err)
			}
		case "image_path":
			s, ok := value.(string)
			if !ok {
				return nil, fmt.Errorf("field %q: not a string", key)
			}
			rec.ImagePath = s
		case "retrieved_at":
			ts, ok := value.(time.Time)
			if !ok {
				return nil, fmt.Errorf("field %q: not a time.Time", key)
			}
			rec.RetrievedAt = ts
		default:
			if rec.Meta == nil {
				rec.Meta = make(map[string]any)
			}
			rec.Meta[key] = value
		}
	}
	return rec, nil
}

// Valid reports whether a record satisfies the shape contract: a key, a
// finite redshift, and pixel data consistent with its declared dimensions.
func (RecordSchema) Valid(r *Record) bool {
	if r == nil || r.SpecObjID == "" {
		return false
	}
	if math.IsNaN(r.Redshift) || math.IsInf(r.Redshift, 0) {
		return false
	}
	if len(r.Pixels) > 0 && len(r.Pixels) != r.Width*r.Height*r.Bands {
		return false
	}
	return true
}

func stringField(fields map[string]any, key string) (string, error) {
	v, ok := fields[key]
	if !ok {
		return "", fmt.Errorf("field %q missing", key)
	}
	switch val := v.(type) {
	case string:
		if val == "" {
			return "", fmt.Errorf("field %q empty", key)
		}
		return val, nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case uint64:
		return strconv.FormatUint(val, 10), nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	}
	return "", fmt.Errorf("field %q: cannot convert %T to string", key, v)
}

func floatField(fields map[string]any, key string) (float64, error) {
	v, ok := fields[key]
	if !ok {
		return 0, fmt.Errorf("field %q missing", key)
	}
	f, err := floatValue(v)
	if err != nil {
		return 0, fmt.Errorf("field %q: %w", key, err)
	}
	return f, nil
}

func floatValue(v any) (float64, error) {
	switch val := v.(type) {
	case float64:
		return val, nil
	case float32:
		return float64(val), nil
	case int:
		return float64(val), nil
	case int64:
		return float64(val), nil
	case string:
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot parse %q as float", val)
		}
		return f, nil
	}
	return 0, fmt.Errorf("cannot convert %T to float", v)
}

func intValue(v any) (int, error) {
	switch val := v.(type) {
	case int:
		return val, nil
	case int64:
		return int(val), nil
	case float64:
		if val != float64(int(val)) {
			return 0, fmt.Errorf("%v has a fractional part", val)
		}
		return int(val), nil
	case string:
		n, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("cannot parse %q as int", val)
		}
		return n, nil
	}
	return 0, fmt.Errorf("cannot convert %T to int", v)
}

func floatSlice(v any) ([]float64, error) {
	switch val := v.(type) {
	case []float64:
		return val, nil
	case []any:
		out := make([]float64, 0, len(val))
		for _, item := range val {
			f, err := floatValue(item)
			if err != nil {
				return nil, err
			}
			out = append(out, f)
		}
		return out, nil
	}
	return nil, fmt.Errorf("cannot convert %T to []float64", v)
}
