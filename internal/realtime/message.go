package realtime

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Inbound message type discriminators.
const (
	TypeNewApplication = "NEW_APPLICATION"
	TypeStatusUpdate   = "STATUS_UPDATE"
)

// ErrMalformed is returned by Decode for frames that are not a valid
// {type, data} envelope or whose payload does not match its type.
var ErrMalformed = errors.New("malformed message")

// Message is an inbound event decoded at the channel boundary. The
// concrete type is one of NewApplication, StatusUpdate or Unrecognized.
type Message interface {
	// Type returns the wire discriminator.
	Type() string

	sealed()
}

// NewApplication reports that a teacher applied for a vacancy.
type NewApplication struct {
	TeacherName  string `json:"teacherName"`
	VacancyTitle string `json:"vacancyTitle"`
}

func (NewApplication) Type() string { return TypeNewApplication }
func (NewApplication) sealed()      {}

// StatusUpdate is a recognized status-change event. Its payload is opaque
// to this package.
type StatusUpdate struct {
	Data json.RawMessage
}

func (StatusUpdate) Type() string { return TypeStatusUpdate }
func (StatusUpdate) sealed()      {}

// Unrecognized carries any well-formed envelope whose type is not known.
type Unrecognized struct {
	Kind string
	Data json.RawMessage
}

func (u Unrecognized) Type() string { return u.Kind }
func (Unrecognized) sealed()        {}

const envelopeSchemaURL = "https://admin3.local/schemas/inbound-message.json"

const envelopeSchema = `{
	"type": "object",
	"required": ["type"],
	"properties": {
		"type": {"type": "string", "minLength": 1},
		"data": {"type": ["object", "null"]}
	}
}`

var envelopeValidator = mustCompileEnvelope()

func mustCompileEnvelope() *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(envelopeSchema))
	if err != nil {
		panic(fmt.Sprintf("realtime: parsing envelope schema: %v", err))
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(envelopeSchemaURL, doc); err != nil {
		panic(fmt.Sprintf("realtime: adding envelope schema: %v", err))
	}
	return c.MustCompile(envelopeSchemaURL)
}

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Decode parses one inbound frame into a Message.
func Decode(frame []byte) (Message, error) {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(frame))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := envelopeValidator.Validate(inst); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch env.Type {
	case TypeNewApplication:
		var m NewApplication
		if len(env.Data) > 0 && !bytes.Equal(env.Data, []byte("null")) {
			if err := json.Unmarshal(env.Data, &m); err != nil {
				return nil, fmt.Errorf("%w: %s payload: %v", ErrMalformed, env.Type, err)
			}
		}
		return m, nil
	case TypeStatusUpdate:
		return StatusUpdate{Data: env.Data}, nil
	default:
		return Unrecognized{Kind: env.Type, Data: env.Data}, nil
	}
}
