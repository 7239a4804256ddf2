package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

// EventCodeRequest is the data of code 1, both request and response.
type EventCodeRequest struct {
	Description  string `json:"description"`
	InstrumentID int64  `json:"instrument_id"`
}

// InstrumentRequest is the data of code 3. On the wire it is either a
// bare short name or an object with the owning site.
type InstrumentRequest struct {
	NameShort string `json:"name_short"`
	SiteID    int64  `json:"site_id,omitempty"`
}

// UnmarshalJSON accepts "NAME" or {"name_short": "NAME", "site_id": 1}.
func (r *InstrumentRequest) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		return json.Unmarshal(b, &r.NameShort)
	}
	type plain InstrumentRequest
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*r = InstrumentRequest(p)
	return nil
}

// Site is the record returned for code 2.
type Site struct {
	SiteID       int64   `json:"site_id"`
	NameShort    string  `json:"name_short"`
	NameLong     string  `json:"name_long"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	Facility     string  `json:"facility"`
	Mobile       bool    `json:"mobile"`
	LocationName string  `json:"location_name"`
}

// Instrument is the record returned for code 3.
type Instrument struct {
	InstrumentID    int64   `json:"instrument_id"`
	SiteID          int64   `json:"site_id"`
	NameShort       string  `json:"name_short"`
	NameLong        string  `json:"name_long"`
	Type            string  `json:"type"`
	Vendor          string  `json:"vendor"`
	Description     string  `json:"description"`
	FrequencyBand   string  `json:"frequency_band"`
	Latitude        float64 `json:"latitude"`
	Longitude       float64 `json:"longitude"`
	EffectiveRadius float64 `json:"effective_radius"`
}

// PulseCapture is the data of code 4.
type PulseCapture struct {
	Time         Time      `json:"time"`
	SiteID       int64     `json:"site_id"`
	InstrumentID int64     `json:"instrument_id"`
	Values       []float64 `json:"values"`
}

// InstrumentLog is the data of code 5.
type InstrumentLog struct {
	Time             Time   `json:"time"`
	InstrumentID     int64  `json:"instrument_id"`
	AuthorID         int64  `json:"author_id"`
	Status           int    `json:"status"`
	Contents         string `json:"contents"`
	SupportingImages string `json:"supporting_images"`
}

// WideRow is the data of a special attribute set: one sample of many
// columns of a dedicated table.
type WideRow struct {
	Time         Time           `json:"time"`
	SiteID       int64          `json:"site_id"`
	InstrumentID int64          `json:"instrument_id"`
	Values       map[string]any `json:"values"`
}

// GenericEvent is the data of a dynamically allocated code.
type GenericEvent struct {
	InstrumentID int64           `json:"instrument_id"`
	SiteID       int64           `json:"site_id,omitempty"`
	Time         Time            `json:"time"`
	Value        json.RawMessage `json:"value"`
}

// Text returns the value as text: JSON strings are unquoted, other JSON
// values keep their literal form.
func (g GenericEvent) Text() string {
	var s string
	if err := json.Unmarshal(g.Value, &s); err == nil {
		return s
	}
	return string(bytes.TrimSpace(g.Value))
}

// Float parses the value as a number. The second result is false when the
// value is not numeric and has to be stored as text.
func (g GenericEvent) Float() (float64, bool) {
	return ParseFloat(g.Text())
}

// ParseFloat parses s the way a number value is accepted from plugins,
// including "inf", "-inf" and "nan".
func ParseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		var ne *strconv.NumError
		if errors.As(err, &ne) && errors.Is(ne.Err, strconv.ErrRange) {
			return f, true
		}
		return 0, false
	}
	return f, true
}

// Status values of instrument logs.
const (
	StatusOperational = 1
	StatusNotWorking  = 2
	StatusTesting     = 3
	StatusInUpgrade   = 4
	StatusTransit     = 5
)

var statusText = map[int]string{
	StatusOperational: "OPERATIONAL",
	StatusNotWorking:  "NOT WORKING",
	StatusTesting:     "TESTING",
	StatusInUpgrade:   "IN-UPGRADE",
	StatusTransit:     "TRANSIT",
}

// StatusText returns the label of an instrument status and false for
// unknown values.
func StatusText(status int) (string, bool) {
	res, ok := statusText[status]
	return res, ok
}
