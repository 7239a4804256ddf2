package protocol

import (
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Shape names the expected layout of envelope data.
type Shape string

// Known data shapes.
const (
	ShapeEventCodeRequest    Shape = "event_code_request"
	ShapeSiteIDRequest       Shape = "site_id_request"
	ShapeInstrumentIDRequest Shape = "instrument_id_request"
	ShapePulseCapture        Shape = "pulse_capture"
	ShapeInstrumentLog       Shape = "instrument_log"
	ShapeWideRow             Shape = "wide_row"
	ShapeGeneric             Shape = "generic"
)

const envelopeSchema = `{
  "type": "object",
  "required": ["event_code", "data"],
  "properties": {
    "event_code": {"type": "integer", "minimum": 1},
    "data": {"type": ["object", "string"]}
  }
}`

const pluginEventSchema = `{
  "type": "object",
  "required": ["event", "data"],
  "properties": {
    "event": {"type": "string", "minLength": 1},
    "data": {"type": "object"}
  }
}`

const timeProp = `"time": {"type": ["string", "number"]}`
const idProp = `{"type": "integer", "minimum": 1}`

var dataSchemas = map[Shape]string{
	ShapeEventCodeRequest: `{
  "type": "object",
  "required": ["description", "instrument_id"],
  "properties": {
    "description": {"type": "string", "minLength": 1},
    "instrument_id": ` + idProp + `
  }
}`,
	ShapeSiteIDRequest: `{"type": "string", "minLength": 1}`,
	ShapeInstrumentIDRequest: `{
  "oneOf": [
    {"type": "string", "minLength": 1},
    {
      "type": "object",
      "required": ["name_short"],
      "properties": {
        "name_short": {"type": "string", "minLength": 1},
        "site_id": {"type": "integer"}
      }
    }
  ]
}`,
	ShapePulseCapture: `{
  "type": "object",
  "required": ["time", "instrument_id", "values"],
  "properties": {
    ` + timeProp + `,
    "instrument_id": ` + idProp + `,
    "values": {"type": "array", "items": {"type": "number"}}
  }
}`,
	ShapeInstrumentLog: `{
  "type": "object",
  "required": ["time", "instrument_id", "author_id", "status"],
  "properties": {
    ` + timeProp + `,
    "instrument_id": ` + idProp + `,
    "author_id": {"type": "integer"},
    "status": {"type": "integer"},
    "contents": {"type": "string"},
    "supporting_images": {"type": "string"}
  }
}`,
	ShapeWideRow: `{
  "type": "object",
  "required": ["time", "instrument_id", "values"],
  "properties": {
    ` + timeProp + `,
    "instrument_id": ` + idProp + `,
    "site_id": {"type": "integer"},
    "values": {"type": "object", "minProperties": 1}
  }
}`,
	ShapeGeneric: `{
  "type": "object",
  "required": ["time", "instrument_id", "value"],
  "properties": {
    ` + timeProp + `,
    "instrument_id": ` + idProp + `
  }
}`,
}

var (
	envelopeSch    *gojsonschema.Schema
	pluginEventSch *gojsonschema.Schema
	dataSch        = make(map[Shape]*gojsonschema.Schema)
)

func init() {
	envelopeSch = mustSchema(envelopeSchema)
	pluginEventSch = mustSchema(pluginEventSchema)
	for k, v := range dataSchemas {
		dataSch[k] = mustSchema(v)
	}
}

func mustSchema(s string) *gojsonschema.Schema {
	res, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(s))
	if err != nil {
		panic(err)
	}
	return res
}

// Validate checks that the data of the envelope has the given shape.
func (e *Envelope) Validate(shape Shape) error {
	sch, ok := dataSch[shape]
	if !ok {
		return InvalidError(string(shape), "unknown data shape")
	}
	return validate(sch, string(shape), e.Data)
}

func validateEnvelope(b []byte) error {
	return validate(envelopeSch, "envelope", b)
}

func validatePluginEvent(b []byte) error {
	return validate(pluginEventSch, "plugin event", b)
}

func validate(sch *gojsonschema.Schema, kind string, b []byte) error {
	res, err := sch.Validate(gojsonschema.NewBytesLoader(b))
	if err != nil {
		return DecodeError(err)
	}
	if res.Valid() {
		return nil
	}
	var msgs []string
	for _, e := range res.Errors() {
		msgs = append(msgs, e.String())
	}
	return InvalidError(kind, strings.Join(msgs, "; "))
}
