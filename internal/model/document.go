package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrMalformed is returned when a stored document does not match the schema.
var ErrMalformed = errors.New("malformed document")

// RawDocument is a document as the store returns it: one JSON value per top-level field.
type RawDocument map[string]json.RawMessage

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks v against its validate tags and returns a readable error.
func Validate(v any) error {
	if err := validate.Struct(v); err != nil {
		return errors.New(describeValidation(err))
	}
	return nil
}

// DecodeDocument turns raw fields into a typed Document and validates it.
// Unknown fields are ignored; missing arrays decode as empty.
func DecodeDocument(raw RawDocument) (Document, error) {
	var doc Document
	buf, err := json.Marshal(raw)
	if err != nil {
		return doc, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := json.Unmarshal(buf, &doc); err != nil {
		return doc, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := validate.Struct(doc); err != nil {
		return doc, fmt.Errorf("%w: %s", ErrMalformed, describeValidation(err))
	}
	if doc.Categories == nil {
		doc.Categories = []Category{}
	}
	for i := range doc.Categories {
		if doc.Categories[i].Tasks == nil {
			doc.Categories[i].Tasks = []Task{}
		}
	}
	if doc.RecentTasks == nil {
		doc.RecentTasks = []Task{}
	}
	return doc, nil
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s is %s", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}
