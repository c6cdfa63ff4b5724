package http

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/chatflow-ai/chatflow/pkg/domain"
	"github.com/go-playground/validator/v10"
)

// phonePattern accepts E.164 numbers with an optional leading plus.
var phonePattern = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)

type webhookMessage struct {
	From string `json:"from" validate:"required,phone"`
	Body string `json:"body"`
}

type webhookRequest struct {
	Messages []webhookMessage `json:"messages" validate:"required,min=1,dive"`
}

func (r webhookRequest) toDomain() domain.WebhookPayload {
	msgs := make([]domain.InboundMessage, len(r.Messages))
	for i, m := range r.Messages {
		msgs[i] = domain.InboundMessage{From: m.From, Body: m.Body}
	}
	return domain.WebhookPayload{Messages: msgs}
}

// Validator checks decoded request bodies.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a Validator with the "phone" rule registered.
func NewValidator() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	return &Validator{validate: v}
}

// Struct validates s and returns one readable message per failed field.
func (v *Validator) Struct(s any) []string {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, describe(fe))
	}
	return out
}

func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "webhookRequest.")
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must contain at least %s item(s)", field, fe.Param())
	case "phone":
		return fmt.Sprintf("%s must be an E.164 phone number", field)
	default:
		return fmt.Sprintf("%s failed %q", field, fe.Tag())
	}
}
