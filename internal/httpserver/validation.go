package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"reflect"
	"strings"
	"sync"

	"catalog-pricing/internal/domain"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerOnce sync.Once

// registerValidators adds the `objectid` tag to gin's binding validator and
// reports fields by their JSON names.
func registerValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("objectid", func(fl validator.FieldLevel) bool {
			return domain.IsValidID(fl.Field().String())
		})
	})
}

// bindError turns a JSON binding failure into an ErrInvalidInput. required
// is the message reported when any required field is missing.
func bindError(err error, required string) error {
	if errors.Is(err, io.EOF) {
		return domain.Invalidf("%s", required)
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			if fe.Tag() == "required" {
				return domain.Invalidf("%s", required)
			}
		}
		fe := verrs[0]
		switch fe.Tag() {
		case "objectid":
			return domain.Invalidf("%s, Invalid ID format", fe.Field())
		case "gt":
			return domain.Invalidf("Special price must be a positive number")
		case "email":
			return domain.Invalidf("email must be a valid email address")
		default:
			return domain.Invalidf("%s is invalid", fe.Field())
		}
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return domain.Invalidf("%s has the wrong type", typeErr.Field)
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return domain.Invalidf("malformed JSON body")
	}
	return &domain.Error{Kind: domain.ErrInvalidInput, Message: "invalid request body", Err: err}
}

func validID(id, field string) error {
	if !domain.IsValidID(id) {
		return domain.Invalidf("%s, Invalid ID format", field)
	}
	return nil
}
