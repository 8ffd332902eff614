// Package insert turns dialog input into document fragments. Every request
// is validated and built completely before the document is touched.
package insert

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/debemdeboas/newsroom/internal/document"
)

type Kind string

const (
	KindImage  Kind = "image"
	KindLink   Kind = "link"
	KindTable  Kind = "table"
	KindVideo  Kind = "video"
	KindPrompt Kind = "prompt"
	KindSocial Kind = "social"
)

// Kinds lists every insertable kind.
var Kinds = []Kind{KindImage, KindLink, KindTable, KindVideo, KindPrompt, KindSocial}

func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == strings.ToLower(s) {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown insertion kind %q", s)
}

type Request interface {
	Kind() Kind
	Validate() error
	Build() (*document.Fragment, error)
}

var ErrValidation = errors.New("invalid insertion request")

// ValidationError carries the message shown next to the offending field.
type ValidationError struct {
	Kind    Kind
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s.%s: %s", e.Kind, e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(kind Kind, field, msg string) error {
	return &ValidationError{Kind: kind, Field: field, Message: msg}
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

var safeSchemes = map[string]bool{"": true, "http": true, "https": true, "mailto": true, "tel": true}

func safeURL(fl validator.FieldLevel) bool {
	u, err := url.Parse(strings.TrimSpace(fl.Field().String()))
	if err != nil {
		return false
	}
	return safeSchemes[strings.ToLower(u.Scheme)]
}

func notBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("safeurl", safeURL)
		_ = validate.RegisterValidation("notblank", notBlank)
	})
	return validate
}

// check runs the struct tags of req and maps the first failure to the
// message registered for its field.
func check(kind Kind, req any, messages map[string]string) error {
	err := getValidator().Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("validating %s request: %w", kind, err)
	}
	fe := fieldErrs[0]
	msg, ok := messages[fe.Field()+"."+fe.Tag()]
	if !ok {
		msg = messages[fe.Field()]
	}
	if msg == "" {
		msg = fe.Error()
	}
	return invalid(kind, fe.Field(), msg)
}

// Apply validates req and applies it at pos, returning the caret right after
// the change. A rejected request leaves doc untouched.
func Apply(doc *document.Document, pos document.Position, req Request) (document.Position, error) {
	if err := req.Validate(); err != nil {
		return pos, err
	}
	if l, ok := req.(Link); ok && l.Existing != document.NoNode {
		if err := doc.UpdateLink(l.Existing, strings.TrimSpace(l.URL), l.Text, l.OpenInNewTab); err != nil {
			return pos, fmt.Errorf("updating link: %w", err)
		}
		return pos, nil
	}
	frag, err := req.Build()
	if err != nil {
		return pos, err
	}
	return doc.InsertFragment(pos, frag)
}

// Decode reads the JSON body of a request of the given kind.
func Decode(kind Kind, data []byte) (Request, error) {
	var (
		req Request
		err error
	)
	switch kind {
	case KindImage:
		var r Image
		err = json.Unmarshal(data, &r)
		req = r
	case KindLink:
		var r Link
		err = json.Unmarshal(data, &r)
		req = r
	case KindTable:
		var r Table
		err = json.Unmarshal(data, &r)
		req = r
	case KindVideo:
		var r VideoEmbed
		err = json.Unmarshal(data, &r)
		req = r
	case KindPrompt:
		var r PromptBox
		err = json.Unmarshal(data, &r)
		req = r
	case KindSocial:
		var r SocialEmbed
		err = json.Unmarshal(data, &r)
		req = r
	default:
		return nil, fmt.Errorf("unknown insertion kind %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %s request: %w", kind, err)
	}
	return req, nil
}
