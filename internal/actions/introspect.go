package actions

// ParameterDescriptor is the flat, typed view of one schema field used for
// indexing and human-facing search results.
type ParameterDescriptor struct {
	Name        string    `json:"name"`
	Type        ParamType `json:"type"`
	Required    bool      `json:"required"`
	Description string    `json:"description,omitempty"`
}

// Parameters flattens an action schema into descriptors, one per object
// field in declaration order. It never fails: nil schemas and schemas whose
// underlying type is not an object yield an empty list.
func Parameters(s *Schema) []ParameterDescriptor {
	inner := s.innermost()
	if inner == nil || inner.Kind() != KindObject {
		return []ParameterDescriptor{}
	}

	out := make([]ParameterDescriptor, 0, len(inner.fields))
	for _, f := range inner.fields {
		out = append(out, ParameterDescriptor{
			Name:        f.Name,
			Type:        f.Schema.ParamType(),
			Required:    !f.Schema.optional(),
			Description: f.Schema.Description(),
		})
	}
	return out
}
