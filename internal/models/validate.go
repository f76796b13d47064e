package models

import (
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func toolValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// An absent type is allowed: schemas built from anyOf carry none.
		_ = validate.RegisterValidation("schematype", func(fl validator.FieldLevel) bool {
			raw := fl.Field().String()
			if raw == "" {
				return true
			}
			t, ok := NormalizeSchemaType(raw)
			return ok && string(t) == raw
		})
	})
	return validate
}

func NormalizeSchemaType(s string) (SchemaType, bool) {
	s = strings.TrimSpace(strings.ToUpper(s))
	t := SchemaType(s)
	switch t {
	case SchemaTypeUnspecified, SchemaTypeString, SchemaTypeNumber, SchemaTypeInteger,
		SchemaTypeBoolean, SchemaTypeArray, SchemaTypeObject, SchemaTypeNull:
		return t, true
	default:
		return "", false
	}
}

// ValidateTools checks the shape of tool declarations: every declaration is
// named, every schema type is a known one and every required name is a
// declared property. Call arguments are not checked against the schemas.
func ValidateTools(tools []Tool) error {
	v := toolValidator()
	for i, t := range tools {
		if err := v.Struct(t); err != nil {
			return fmt.Errorf("%w: tool %d: %v", ErrInvalidInput, i, err)
		}
		for _, fd := range t.FunctionDeclarations {
			if err := checkRequired(fd.Parameters); err != nil {
				return fmt.Errorf("%w: tool %d: %s: %v", ErrInvalidInput, i, fd.Name, err)
			}
		}
	}
	return nil
}

func checkRequired(s *Schema) error {
	if s == nil {
		return nil
	}
	for _, name := range s.Required {
		if _, ok := s.Properties.Get(name); !ok {
			return fmt.Errorf("required property %q is not declared", name)
		}
	}
	for i := range s.Properties {
		if err := checkRequired(&s.Properties[i].Schema); err != nil {
			return fmt.Errorf("%s: %w", s.Properties[i].Name, err)
		}
	}
	return checkRequired(s.Items)
}
