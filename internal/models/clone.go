package models

// CloneDataset returns a copy of d that shares no mutable storage with it.
// A functionCall without args (or functionResponse without response) comes
// back with an empty map, not nil.
func CloneDataset(d Dataset) Dataset {
	out := Dataset{ID: d.ID}
	if d.Contents != nil {
		out.Contents = make([]Content, len(d.Contents))
		for i, c := range d.Contents {
			out.Contents[i] = CloneContent(c)
		}
	}
	return out
}

// CloneDatasets clones every dataset in ds.
func CloneDatasets(ds []Dataset) []Dataset {
	if ds == nil {
		return nil
	}
	out := make([]Dataset, len(ds))
	for i, d := range ds {
		out[i] = CloneDataset(d)
	}
	return out
}

func CloneContent(c Content) Content {
	out := Content{Role: c.Role}
	if c.Parts != nil {
		out.Parts = make([]Part, len(c.Parts))
		for i, p := range c.Parts {
			out.Parts[i] = ClonePart(p)
		}
	}
	return out
}

func ClonePart(p Part) Part {
	var out Part
	if p.Text != nil {
		text := *p.Text
		out.Text = &text
	}
	if p.FunctionCall != nil {
		out.FunctionCall = &FunctionCall{
			Name: p.FunctionCall.Name,
			Args: cloneObject(p.FunctionCall.Args),
			raw:  cloneRaw(p.FunctionCall.raw),
		}
	}
	if p.FunctionResponse != nil {
		out.FunctionResponse = &FunctionResponse{
			Name:     p.FunctionResponse.Name,
			Response: cloneObject(p.FunctionResponse.Response),
			raw:      cloneRaw(p.FunctionResponse.raw),
		}
	}
	return out
}

// CloneTools copies a tool list, including every nested schema.
func CloneTools(tools []Tool) []Tool {
	if tools == nil {
		return nil
	}
	out := make([]Tool, len(tools))
	for i, t := range tools {
		out[i].layout = t.layout.clone()
		if t.FunctionDeclarations != nil {
			out[i].FunctionDeclarations = make([]FunctionDeclaration, len(t.FunctionDeclarations))
			for j, fd := range t.FunctionDeclarations {
				out[i].FunctionDeclarations[j] = FunctionDeclaration{
					Name:        fd.Name,
					Description: fd.Description,
					Parameters:  cloneSchemaPtr(fd.Parameters),
					layout:      fd.layout.clone(),
				}
			}
		}
	}
	return out
}

func cloneSchemaPtr(s *Schema) *Schema {
	if s == nil {
		return nil
	}
	c := cloneSchema(*s)
	return &c
}

func cloneSchema(s Schema) Schema {
	out := Schema{
		Type:        s.Type,
		Description: s.Description,
		Items:       cloneSchemaPtr(s.Items),
		Required:    cloneStrings(s.Required),
		Enum:        cloneStrings(s.Enum),
		layout:      s.layout.clone(),
	}
	if s.Properties != nil {
		out.Properties = make(Properties, len(s.Properties))
		for i, p := range s.Properties {
			out.Properties[i] = Property{Name: p.Name, Schema: cloneSchema(p.Schema)}
		}
	}
	return out
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}

func cloneRaw(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

// cloneObject copies a JSON object; nil becomes an empty map.
func cloneObject(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		if t == nil {
			return t
		}
		return cloneObject(t)
	case []any:
		if t == nil {
			return t
		}
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		// Scalars decoded from JSON (string, float64, bool, nil, json.Number)
		// are immutable.
		return v
	}
}
