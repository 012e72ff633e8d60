package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// Bind errors, mapped to 4xx responses by the handlers
var (
	errEmptyBody     = errors.New("empty body")
	errInvalidJSON   = errors.New("invalid JSON")
	errBodyTooLarge  = errors.New("request body too large")
	errTrailingData  = errors.New("unexpected trailing data")
	errInvalidFields = errors.New("validation failed")
)

// validatorSvc holds the singleton validator and its english translator
type validatorSvc struct {
	validate   *validator.Validate
	translator ut.Translator
}

var (
	vOnce sync.Once
	vSvc  *validatorSvc
)

func getValidator() *validatorSvc {
	vOnce.Do(func() {
		enLoc := en.New()
		uni := ut.New(enLoc, enLoc)
		trans, _ := uni.GetTranslator("en")

		v := validator.New(validator.WithRequiredStructEnabled())

		// report json names in messages
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			tag := fld.Tag.Get("json")
			if tag == "-" || tag == "" {
				return fld.Name
			}
			if idx := strings.Index(tag, ","); idx >= 0 {
				tag = tag[:idx]
			}
			return tag
		})

		_ = en_translations.RegisterDefaultTranslations(v, trans)

		vSvc = &validatorSvc{validate: v, translator: trans}
	})
	return vSvc
}

// validationMessages returns one translated message per failing field
func validationMessages(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fe.Translate(getValidator().translator))
	}
	return msgs
}

// decodeJSON reads at most maxBytes of r's body into T and validates it.
// Unknown fields are ignored.
func decodeJSON[T any](w http.ResponseWriter, r *http.Request, maxBytes int64) (T, error) {
	var dst T

	body := http.MaxBytesReader(w, r.Body, maxBytes)
	defer func() { _ = body.Close() }()

	dec := json.NewDecoder(body)
	if err := dec.Decode(&dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return dst, errBodyTooLarge
		case errors.Is(err, io.EOF):
			return dst, errEmptyBody
		default:
			return dst, fmt.Errorf("%w: %v", errInvalidJSON, err)
		}
	}
	if dec.More() {
		return dst, errTrailingData
	}

	if err := getValidator().validate.Struct(dst); err != nil {
		return dst, fmt.Errorf("%w: %w", errInvalidFields, err)
	}
	return dst, nil
}
