package record

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report meta key names (uuid, bundle, ...) rather than Go field names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("meta"); name != "" {
			return name
		}
		return f.Name
	})
	return v
}

// Validate checks the fields required to import a record and the record
// invariants. Returns an *Error with code VALIDATION.
func (r *SerializedRecord) Validate() error {
	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return &Error{Code: ErrCodeValidation, Message: "validate record", Identity: r.Identity, Path: r.SourcePath, Err: err}
		}
		missing := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			missing = append(missing, fe.Field())
		}
		return &Error{
			Code:     ErrCodeValidation,
			Message:  fmt.Sprintf("missing required meta fields: %s", strings.Join(missing, ", ")),
			Identity: r.Identity,
			Path:     r.SourcePath,
		}
	}
	if _, ok := r.Dependencies[r.Identity]; ok {
		return &Error{Code: ErrCodeValidation, Message: "record depends on itself", Identity: r.Identity, Path: r.SourcePath}
	}
	if _, ok := r.Translations[r.DefaultLocale]; ok {
		return &Error{
			Code:     ErrCodeValidation,
			Message:  fmt.Sprintf("translation keyed by default locale %q", r.DefaultLocale),
			Identity: r.Identity,
			Path:     r.SourcePath,
		}
	}
	return nil
}
