package validator

import (
	"errors"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"stagebook/internal/domain"
)

var (
	validate *validator.Validate
	ginOnce  sync.Once
)

func init() {
	validate = validator.New()
	// same tags gin reads, so DTOs validate identically in handlers and services
	validate.SetTagName("binding")
	validate.RegisterTagNameFunc(jsonName)
	register(validate)
}

// RegisterGin installs the custom tags into gin's binding validator.
func RegisterGin() {
	ginOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			v.RegisterTagNameFunc(jsonName)
			register(v)
		}
	})
}

// Fields converts a binding error into field -> failed rule. ok is false for
// errors that are not validation failures, such as malformed JSON.
func Fields(err error) (map[string]string, bool) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil, false
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = fe.Tag()
	}
	return out, true
}

func register(v *validator.Validate) {
	_ = v.RegisterValidation("eventdate", func(fl validator.FieldLevel) bool {
		_, err := time.Parse(domain.DateLayout, fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		_, err := time.Parse(domain.ClockLayout, fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("eventtype", func(fl validator.FieldLevel) bool {
		return domain.EventType(fl.Field().String()).Valid()
	})
}

func jsonName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return f.Name
	}
	return name
}

// Validate struct fields
func Validate(v interface{}) map[string]string {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return map[string]string{"_": err.Error()}
	}
	out := make(map[string]string)
	for _, fe := range verrs {
		out[fe.Field()] = fe.Tag()
	}
	return out
}
