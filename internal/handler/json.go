package handler

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// maxBodySize bounds request bodies.
const maxBodySize = 1 << 20

// BadRequestError marks input that could not be decoded at all, as opposed
// to well-formed input that fails domain validation.
type BadRequestError struct {
	Err error
}

func (e *BadRequestError) Error() string { return "malformed request: " + e.Err.Error() }

func (e *BadRequestError) Unwrap() error { return e.Err }

func badRequest(format string, args ...any) error {
	return &BadRequestError{Err: errors.Errorf(format, args...)}
}

// decodeBody reads the request body and passes each top-level field of the
// JSON object to fn. Unknown fields are skipped.
func decodeBody(w http.ResponseWriter, r *http.Request, fn func(d *jx.Decoder, key string) error) error {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		return &BadRequestError{Err: err}
	}
	if err := jx.DecodeBytes(data).Obj(fn); err != nil {
		return &BadRequestError{Err: err}
	}
	return nil
}

// writeJSON writes the value produced by enc with the given status.
func writeJSON(w http.ResponseWriter, status int, enc func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	enc(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func encodeMoney(e *jx.Encoder, d decimal.Decimal) {
	e.Num(jx.Num(d.StringFixed(2)))
}

func encodeTime(e *jx.Encoder, t time.Time) {
	e.Str(t.Format(time.RFC3339))
}

// decodeDecimal accepts a JSON number or a numeric string.
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(n.String())
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(strings.TrimSpace(s))
	default:
		return decimal.Decimal{}, errors.New("expected a number")
	}
}

// decodeOptStr reads a string, treating null as empty.
func decodeOptStr(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Null {
		return "", d.Null()
	}
	return d.Str()
}

// parseDate accepts RFC 3339 timestamps and plain dates. Plain dates denote
// midnight in loc.
func parseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, s, loc)
	if err != nil {
		return time.Time{}, errors.Errorf("invalid date %q", s)
	}
	return t, nil
}

// parseEndDate is parseDate for inclusive upper bounds. A plain date covers
// the whole day, so it resolves to the last instant before the next midnight
// in loc.
func parseEndDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, s, loc)
	if err != nil {
		return time.Time{}, errors.Errorf("invalid date %q", s)
	}
	return t.AddDate(0, 0, 1).Add(-time.Nanosecond), nil
}
