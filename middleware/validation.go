package middleware

import (
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/indexpilot/indexpilot/common"
)

var validate = newValidator()

// newValidator reports violations under the json field names clients
// actually sent, not the Go struct field names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// Bind decodes the JSON body into dest and runs struct validation. On
// failure it records an APIError on the context and returns false; the
// handler should stop.
func Bind[T any](c *gin.Context, dest *T) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		c.Error(common.Errf(http.StatusBadRequest, "invalid json: %v", err.Error()))
		return false
	}

	if err := validate.Struct(dest); err != nil {
		c.Error(common.NewAPIError(
			http.StatusBadRequest,
			"validation failed",
			FormatValidationErrors(err),
		))
		return false
	}

	return true
}

// FormatValidationErrors flattens validator output into a field -> reason
// map suitable for the APIError fields payload.
func FormatValidationErrors(err error) map[string]any {
	fields := map[string]any{}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		fields["body"] = err.Error()
		return fields
	}

	for _, e := range verrs {
		reason := "failed " + e.Tag()
		if e.Param() != "" {
			reason += "=" + e.Param()
		}
		fields[e.Field()] = reason
	}
	return fields
}
