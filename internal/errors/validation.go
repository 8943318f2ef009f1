package errors

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// FieldError describes one rejected request field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var registerOnce sync.Once

// UseJSONFieldNames makes gin's validator report json tag names instead of Go field names.
func UseJSONFieldNames() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
	})
}

// BindingError sends a 400 response for a failed ShouldBind call, with per-field
// details when the failure came from the validator.
func BindingError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		BadRequest(c, "Invalid request body")
		return
	}

	details := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, FieldError{
			Field:   fe.Field(),
			Message: formatFieldError(fe),
		})
	}
	BadRequestWithDetails(c, "Validation failed", details)
}

func formatFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "is invalid"
	}
}
