package models

import "encoding/json"

type PartKind string

type SchemaType string

const (
	PartKindEmpty            PartKind = "empty"
	PartKindText             PartKind = "text"
	PartKindFunctionCall     PartKind = "function_call"
	PartKindFunctionResponse PartKind = "function_response"
	PartKindMixed            PartKind = "mixed"
)

const (
	SchemaTypeUnspecified SchemaType = "TYPE_UNSPECIFIED"
	SchemaTypeString      SchemaType = "STRING"
	SchemaTypeNumber      SchemaType = "NUMBER"
	SchemaTypeInteger     SchemaType = "INTEGER"
	SchemaTypeBoolean     SchemaType = "BOOLEAN"
	SchemaTypeArray       SchemaType = "ARRAY"
	SchemaTypeObject      SchemaType = "OBJECT"
	SchemaTypeNull        SchemaType = "NULL"
)

const (
	// JSONLMediaType is the media type attached to exported files.
	JSONLMediaType = "application/x-jsonlines"
	// ExportFilename is the name offered to the user for a download.
	ExportFilename = "dataset.jsonl"
)

// Dataset is one training example under construction.
type Dataset struct {
	ID       string    `json:"id"`
	Contents []Content `json:"contents"`
}

// Content is one conversation turn. A nil Parts slice means the turn had no
// parts field at all and is omitted on the wire; an empty slice is kept.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts,omitzero"`
}

// Part is one payload unit of a turn. The fields are not mutually exclusive
// on the wire, so each one has to be checked on its own.
type Part struct {
	Text             *string           `json:"text,omitempty"`
	FunctionCall     *FunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *FunctionResponse `json:"functionResponse,omitempty"`
}

// FunctionCall keeps the args object exactly as it was decoded; it is written
// back verbatim for as long as Args still holds the decoded value.
type FunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitzero"`

	raw json.RawMessage
}

type FunctionResponse struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response,omitzero"`

	raw json.RawMessage
}

// Tool is a set of function declarations exposed to the model. Tool,
// FunctionDeclaration and Schema keep members they have no field for and
// write every member back in its decoded position.
type Tool struct {
	FunctionDeclarations []FunctionDeclaration `json:"functionDeclarations,omitempty" validate:"dive"`

	layout objectLayout
}

type FunctionDeclaration struct {
	Name        string  `json:"name" validate:"required"`
	Description string  `json:"description,omitempty"`
	Parameters  *Schema `json:"parameters,omitempty"`

	layout objectLayout
}

type Schema struct {
	Type        SchemaType `json:"type,omitempty" validate:"schematype"`
	Description string     `json:"description,omitempty"`
	Properties  Properties `json:"properties,omitzero" validate:"dive"`
	Items       *Schema    `json:"items,omitempty"`
	Required    []string   `json:"required,omitzero"`
	Enum        []string   `json:"enum,omitzero"`

	layout objectLayout
}

// DatasetExport is the shape of one line of an exported file.
type DatasetExport struct {
	SystemInstruction *Content  `json:"system_instruction,omitempty"`
	Contents          []Content `json:"contents,omitzero"`
	Tools             []Tool    `json:"tools,omitzero"`
}

// TextPart returns a Part carrying only text.
func TextPart(s string) Part {
	return Part{Text: &s}
}

// Kind reports which payload fields are populated.
func (p Part) Kind() PartKind {
	var kinds []PartKind
	if p.Text != nil {
		kinds = append(kinds, PartKindText)
	}
	if p.FunctionCall != nil {
		kinds = append(kinds, PartKindFunctionCall)
	}
	if p.FunctionResponse != nil {
		kinds = append(kinds, PartKindFunctionResponse)
	}
	switch len(kinds) {
	case 0:
		return PartKindEmpty
	case 1:
		return kinds[0]
	default:
		return PartKindMixed
	}
}

// TextValue returns the text payload and whether it was present.
func (p Part) TextValue() (string, bool) {
	if p.Text == nil {
		return "", false
	}
	return *p.Text, true
}
