package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

var validate = newValidate()

func newValidate() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// requestError distinguishes a body that could not be decoded (400) from one
// whose fields failed validation (422).
type requestError struct {
	status int
	err    error
	fields map[string]string
}

func (e *requestError) Error() string {
	return e.err.Error()
}

// decodeRequest reads a JSON body into dst and validates its tags.
func decodeRequest(r *http.Request, dst any) *requestError {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return &requestError{status: http.StatusBadRequest, err: errBadRequestBody}
	}
	return validateRequest(dst)
}

func validateRequest(dst any) *requestError {
	err := validate.Struct(dst)
	if err == nil {
		return nil
	}
	var vErrs validator.ValidationErrors
	if !errors.As(err, &vErrs) {
		return &requestError{status: http.StatusBadRequest, err: err}
	}
	fields := make(map[string]string, len(vErrs))
	for _, fe := range vErrs {
		fields[fieldPath(fe)] = fieldMessage(fe)
	}
	return &requestError{
		status: http.StatusUnprocessableEntity,
		err:    errors.New("request fields are invalid"),
		fields: fields,
	}
}

// fieldPath keeps the last namespace segment: "sessionRequest.attendee_ids[0]"
// becomes "attendee_ids[0]". Request bodies are flat apart from embedding.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.LastIndex(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func fieldMessage(fe validator.FieldError) string {
	name := fe.Field()
	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", name, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "min":
		return fmt.Sprintf("%s must have at least %s entries", name, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", name, fe.Param())
	case "datetime":
		return fmt.Sprintf("%s must be a date in YYYY-MM-DD form", name)
	default:
		return fmt.Sprintf("%s is invalid", name)
	}
}

func (r responder) writeRequestError(w http.ResponseWriter, req *http.Request, rErr *requestError) {
	ctx := req.Context()
	if rErr.status != http.StatusUnprocessableEntity {
		r.writeError(ctx, w, rErr.status, rErr.err)
		return
	}
	r.loggerFor(ctx).InfoContext(ctx, "request rejected", "error_kind", "invalid_field", "fields", len(rErr.fields))
	r.writeJSON(ctx, w, rErr.status, errorResponse{
		ErrorCode: errorCodeFor(rErr.status),
		Message:   rErr.err.Error(),
		Errors:    rErr.fields,
	})
}
