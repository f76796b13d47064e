package models

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToolJSON = `{"functionDeclarations":[{"name":"test","description":"1","parameters":{"type":"OBJECT","properties":{"property1":{"type":"STRING","description":"1"},"property2":{"type":"NUMBER","description":"2"}}}}]}`

func testTools() []Tool {
	return []Tool{{
		FunctionDeclarations: []FunctionDeclaration{{
			Name:        "test",
			Description: "1",
			Parameters: &Schema{
				Type: SchemaTypeObject,
				Properties: Properties{
					{Name: "property1", Schema: Schema{Type: SchemaTypeString, Description: "1"}},
					{Name: "property2", Schema: Schema{Type: SchemaTypeNumber, Description: "2"}},
				},
			},
		}},
	}}
}

func TestExportToJSONL_SingleDataset(t *testing.T) {
	datasets := []Dataset{{
		ID:       "1",
		Contents: []Content{{Role: "user", Parts: []Part{TextPart("hello")}}},
	}}

	out, err := ExportToJSONL(datasets, "", nil)
	require.NoError(t, err)
	assert.Equal(t, `{"contents":[{"role":"user","parts":[{"text":"hello"}]}]}`, out)
}

func TestExportToJSONL_SharedSettings(t *testing.T) {
	datasets := []Dataset{
		{ID: "1", Contents: []Content{{Role: "user", Parts: []Part{TextPart("hi")}}}},
		{ID: "2", Contents: []Content{{Role: "model", Parts: []Part{TextPart("yo")}}}},
	}

	out, err := ExportToJSONL(datasets, "Be brief", testTools())
	require.NoError(t, err)

	want := `{"system_instruction":{"parts":[{"text":"Be brief"}]},"contents":[{"role":"user","parts":[{"text":"hi"}]}],"tools":[` + testToolJSON + `]}` + "\n" +
		`{"system_instruction":{"parts":[{"text":"Be brief"}]},"contents":[{"role":"model","parts":[{"text":"yo"}]}],"tools":[` + testToolJSON + `]}`
	assert.Equal(t, want, out)
}

func TestExportToJSONL_OmitsBlankSystemInstructionAndEmptyTools(t *testing.T) {
	datasets := []Dataset{{ID: "1", Contents: []Content{{Role: "user", Parts: []Part{TextPart("x")}}}}}

	for _, si := range []string{"", "   ", "\n\t"} {
		out, err := ExportToJSONL(datasets, si, []Tool{})
		require.NoError(t, err)
		assert.Equal(t, `{"contents":[{"role":"user","parts":[{"text":"x"}]}]}`, out, "system instruction %q", si)
	}
}

func TestExportToJSONL_KeepsUntrimmedSystemInstruction(t *testing.T) {
	out, err := ExportToJSONL([]Dataset{{ID: "1", Contents: []Content{}}}, "  keep me  ", nil)
	require.NoError(t, err)
	assert.Equal(t, `{"system_instruction":{"parts":[{"text":"  keep me  "}]},"contents":[]}`, out)
}

func TestExportToJSONL_NilContents(t *testing.T) {
	out, err := ExportToJSONL([]Dataset{{ID: "1"}}, "", nil)
	require.NoError(t, err)
	assert.Equal(t, `{"contents":[]}`, out)
}

func TestExportToJSONL_Empty(t *testing.T) {
	out, err := ExportToJSONL(nil, "ignored", testTools())
	require.NoError(t, err)
	assert.Equal(t, "", out)
}

func TestExportToJSONL_NoHTMLEscaping(t *testing.T) {
	datasets := []Dataset{{ID: "1", Contents: []Content{{Role: "user", Parts: []Part{TextPart("a<b>&c")}}}}}

	out, err := ExportToJSONL(datasets, "", nil)
	require.NoError(t, err)
	assert.Equal(t, `{"contents":[{"role":"user","parts":[{"text":"a<b>&c"}]}]}`, out)
}

func TestExportToJSONL_FunctionParts(t *testing.T) {
	datasets := []Dataset{{
		ID: "1",
		Contents: []Content{
			{Role: "model", Parts: []Part{{FunctionCall: &FunctionCall{Name: "test", Args: map[string]any{"property2": "b", "property1": "a"}}}}},
			{Parts: []Part{{FunctionResponse: &FunctionResponse{Name: "test", Response: map[string]any{}}}}},
			{Parts: []Part{{FunctionCall: &FunctionCall{Name: "bare"}}}},
		},
	}}

	out, err := ExportToJSONL(datasets, "", nil)
	require.NoError(t, err)
	assert.Equal(t, `{"contents":[`+
		`{"role":"model","parts":[{"functionCall":{"name":"test","args":{"property1":"a","property2":"b"}}}]},`+
		`{"parts":[{"functionResponse":{"name":"test","response":{}}}]},`+
		`{"parts":[{"functionCall":{"name":"bare"}}]}`+
		`]}`, out)
}

func TestExportToJSONL_DoesNotMutateInput(t *testing.T) {
	datasets := []Dataset{{ID: "1", Contents: []Content{{Role: "user", Parts: []Part{TextPart("x")}}}}}
	before := CloneDatasets(datasets)

	_, err := ExportToJSONL(datasets, "si", testTools())
	require.NoError(t, err)
	assert.Equal(t, before, datasets)
}

func TestExportImportRoundTrip(t *testing.T) {
	datasets := []Dataset{
		{ID: "0", Contents: []Content{
			{Role: "user", Parts: []Part{TextPart("What is the weather?")}},
			{Role: "model", Parts: []Part{{FunctionCall: &FunctionCall{Name: "weather", Args: map[string]any{
				"city":  "Oslo",
				"units": map[string]any{"temp": "C"},
				"days":  []any{1.0, 2.0},
			}}}}},
			{Parts: []Part{{FunctionResponse: &FunctionResponse{Name: "weather", Response: map[string]any{"output": "rain"}}}}},
			{Role: "model", Parts: []Part{TextPart("Rain.")}},
		}},
		{ID: "1", Contents: []Content{{Role: "user"}}},
	}

	out, err := ExportToJSONL(datasets, "Answer briefly", testTools())
	require.NoError(t, err)

	records, err := (&Importer{}).ImportExports(context.Background(), BytesSource([]byte(out)))
	require.NoError(t, err)
	require.Len(t, records, 2)

	got := ConvertRawDatasets(records)
	require.Len(t, got, 2)
	assert.Equal(t, datasets[1], got[1])
	require.Len(t, got[0].Contents, 4)
	assert.Equal(t, datasets[0].Contents[1].Parts[0].FunctionCall.Args, got[0].Contents[1].Parts[0].FunctionCall.Args)
	assert.Equal(t, datasets[0].Contents[2].Parts[0].FunctionResponse.Response, got[0].Contents[2].Parts[0].FunctionResponse.Response)
	for _, r := range records {
		require.NotNil(t, r.SystemInstruction)
		si, _ := r.SystemInstruction.Parts[0].TextValue()
		assert.Equal(t, "Answer briefly", si)
		require.Len(t, r.Tools, 1)
		tool, err := encodeJSON(r.Tools[0])
		require.NoError(t, err)
		assert.Equal(t, testToolJSON, string(tool))
	}

	again, err := ExportToJSONL(ConvertRawDatasets(records), "Answer briefly", records[0].Tools)
	require.NoError(t, err)
	assert.Equal(t, out, again)
}

type recordingTarget struct {
	name      string
	mediaType string
	buf       bytes.Buffer
	closed    int
	openErr   error
	writeErr  error
}

func (t *recordingTarget) Open(name, mediaType string) (io.WriteCloser, error) {
	if t.openErr != nil {
		return nil, t.openErr
	}
	t.name, t.mediaType = name, mediaType
	return t, nil
}

func (t *recordingTarget) Write(p []byte) (int, error) {
	if t.writeErr != nil {
		return 0, t.writeErr
	}
	return t.buf.Write(p)
}

func (t *recordingTarget) Close() error {
	t.closed++
	return nil
}

func TestDownloadJSONL(t *testing.T) {
	target := &recordingTarget{}
	datasets := []Dataset{
		{ID: "a", Contents: []Content{{Role: "user", Parts: []Part{TextPart("1")}}}},
		{ID: "b", Contents: []Content{{Role: "user", Parts: []Part{TextPart("2")}}}},
	}

	require.NoError(t, DownloadJSONL(context.Background(), target, datasets, "", nil))

	assert.Equal(t, "dataset.jsonl", target.name)
	assert.Equal(t, "application/x-jsonlines", target.mediaType)
	assert.Equal(t, 1, target.closed)
	assert.Equal(t, `{"contents":[{"role":"user","parts":[{"text":"1"}]}]}`+"\n"+
		`{"contents":[{"role":"user","parts":[{"text":"2"}]}]}`, target.buf.String())
}

func TestDownloadJSONL_ClosesOnWriteError(t *testing.T) {
	boom := errors.New("disk full")
	target := &recordingTarget{writeErr: boom}

	err := DownloadJSONL(context.Background(), target, []Dataset{{ID: "a"}}, "", nil)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, target.closed)
}

func TestDownloadJSONL_OpenError(t *testing.T) {
	boom := errors.New("denied")
	target := &recordingTarget{openErr: boom}

	err := DownloadJSONL(context.Background(), target, []Dataset{{ID: "a"}}, "", nil)
	require.ErrorIs(t, err, boom)
	assert.Zero(t, target.closed)
}

func TestDownloadJSONL_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	target := &recordingTarget{}

	err := DownloadJSONL(ctx, target, []Dataset{{ID: "a"}}, "", nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, target.name)
}

func TestDirTarget(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")

	err := DownloadJSONL(context.Background(), DirTarget{Dir: dir}, []Dataset{{ID: "a", Contents: []Content{}}}, "si", nil)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, ExportFilename))
	require.NoError(t, err)
	assert.Equal(t, `{"system_instruction":{"parts":[{"text":"si"}]},"contents":[]}`, string(data))
}

func roundTrip(t *testing.T, line string) string {
	t.Helper()
	var logs bytes.Buffer
	records, err := (&Importer{Logger: log.New(&logs)}).ImportExports(context.Background(), BytesSource([]byte(line)))
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Empty(t, logs.String())

	out, err := ExportToJSONL(ConvertRawDatasets(records), "", records[0].Tools)
	require.NoError(t, err)
	return out
}

func TestExportToJSONL_ToolsRoundTripByteForByte(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{
			name: "empty properties object",
			line: `{"contents":[],"tools":[{"functionDeclarations":[{"name":"ping","parameters":{"type":"OBJECT","properties":{}}}]}]}`,
		},
		{
			name: "schema keys without a field",
			line: `{"contents":[],"tools":[{"functionDeclarations":[{"name":"f","parameters":{"type":"OBJECT","properties":{"a":{"type":"STRING","nullable":true,"format":"date-time"},"n":{"type":"NUMBER","minimum":0,"maximum":10.5}},"required":["a"],"propertyOrdering":["n","a"]}}]}]}`,
		},
		{
			name: "anyOf without a type",
			line: `{"contents":[],"tools":[{"functionDeclarations":[{"name":"g","parameters":{"type":"OBJECT","properties":{"v":{"anyOf":[{"type":"STRING"},{"type":"INTEGER"}],"description":"either"}}}}]}]}`,
		},
		{
			name: "unknown members in original position",
			line: `{"contents":[],"tools":[{"googleSearch":{}},{"functionDeclarations":[{"behavior":"BLOCKING","name":"h","description":"","parameters":{"description":"args","type":"OBJECT","items":null}}]}]}`,
		},
		{
			name: "empty required and enum",
			line: `{"contents":[],"tools":[{"functionDeclarations":[{"name":"e","parameters":{"type":"STRING","enum":[],"required":[]}}]}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.line, roundTrip(t, tt.line))
		})
	}
}

func TestExportToJSONL_EditedToolKeepsUnknownMembers(t *testing.T) {
	line := `{"contents":[],"tools":[{"functionDeclarations":[{"name":"f","parameters":{"type":"OBJECT","nullable":true,"properties":{"a":{"type":"STRING"}}}}]}]}`
	var logs bytes.Buffer
	records, err := (&Importer{Logger: log.New(&logs)}).ImportExports(context.Background(), BytesSource([]byte(line)))
	require.NoError(t, err)

	tools := CloneTools(records[0].Tools)
	tools[0].FunctionDeclarations[0].Description = "added"
	params := tools[0].FunctionDeclarations[0].Parameters
	params.Properties = params.Properties.Set("b", Schema{Type: SchemaTypeBoolean})

	out, err := ExportToJSONL(ConvertRawDatasets(records), "", tools)
	require.NoError(t, err)
	assert.Equal(t, `{"contents":[],"tools":[{"functionDeclarations":[{"name":"f","parameters":{"type":"OBJECT","nullable":true,"properties":{"a":{"type":"STRING"},"b":{"type":"BOOLEAN"}}},"description":"added"}]}]}`, out)
}

func TestExportToJSONL_ArgsKeepDecodedKeyOrder(t *testing.T) {
	line := `{"contents":[{"role":"model","parts":[{"functionCall":{"name":"f","args":{"z":1,"a":{"y":true,"b":[3,1]}}}},{"functionResponse":{"name":"f","response":{"out":"x","err":null}}}]}]}`
	assert.Equal(t, line, roundTrip(t, line))
}

func TestExportToJSONL_EditedArgsAreReencoded(t *testing.T) {
	line := `{"contents":[{"role":"model","parts":[{"functionCall":{"name":"f","args":{"z":1,"a":2}}}]}]}`
	var logs bytes.Buffer
	records, err := (&Importer{Logger: log.New(&logs)}).ImportExports(context.Background(), BytesSource([]byte(line)))
	require.NoError(t, err)

	datasets := ConvertRawDatasets(records)
	datasets[0].Contents[0].Parts[0].FunctionCall.Args["a"] = 3.0

	out, err := ExportToJSONL(datasets, "", nil)
	require.NoError(t, err)
	assert.Equal(t, `{"contents":[{"role":"model","parts":[{"functionCall":{"name":"f","args":{"a":3,"z":1}}}]}]}`, out)
}

func TestExportToJSONL_LineSeparatorsStayLiteral(t *testing.T) {
	datasets := []Dataset{{ID: "1", Contents: []Content{{Role: "user", Parts: []Part{TextPart("a\u2028b\u2029c"), TextPart(`d\u2028e`)}}}}}

	out, err := ExportToJSONL(datasets, "", nil)
	require.NoError(t, err)
	assert.Equal(t, "{\"contents\":[{\"role\":\"user\",\"parts\":[{\"text\":\"a\u2028b\u2029c\"},{\"text\":\"d\\\\u2028e\"}]}]}", out)
}

func TestEncodeJSON_ParsedRecordKeepsEmptyTools(t *testing.T) {
	var logs bytes.Buffer
	records, err := (&Importer{Logger: log.New(&logs)}).ImportExports(context.Background(), BytesSource([]byte(`{}`)))
	require.NoError(t, err)
	require.Len(t, records, 1)

	out, err := encodeJSON(records[0])
	require.NoError(t, err)
	assert.Equal(t, `{"contents":[],"tools":[]}`, string(out))
}
