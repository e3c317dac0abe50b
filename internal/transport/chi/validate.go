package chi

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			return f.Tag.Get("query")
		})
	})
	return validate
}

type searchParams struct {
	Query string `query:"query" validate:"required,max=256"`
	Page  int    `query:"page" validate:"gte=0,lte=1000"`
	Limit int    `query:"limit" validate:"gte=1,lte=100"`
}

type recommendParams struct {
	SongID string `query:"song_id" validate:"required,max=128"`
	Limit  int    `query:"limit" validate:"gte=1"`
}

type addSongParams struct {
	SongName string `query:"song_name" validate:"required,max=256"`
	Artist   string `query:"artist" validate:"max=256"`
}

type songIDParams struct {
	SongID string `query:"song_id" validate:"required,max=128"`
}

// validateParams runs struct validation and flattens failures into one client-facing message.
func validateParams(p any) error {
	err := getValidator().Struct(p)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "gte", "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid (%s)", fe.Field(), fe.Tag())
	}
}

// intParam parses an optional integer query parameter.
func intParam(raw, name string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return n, nil
}
