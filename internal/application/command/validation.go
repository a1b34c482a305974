// Package command contains write operations (CQRS - Commands).
package command

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/edutrack/progress-engine/internal/domain/shared"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// validateStruct runs the struct tags of a command and folds any failure
// into a single InvalidInput error listing field=tag pairs.
func validateStruct(domain, op string, v any) error {
	err := structValidator().Struct(v)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return shared.WrapError(domain, op, shared.ErrInvalidInput, "invalid command", err)
	}

	fields := make([]string, 0, len(ve))
	for _, fe := range ve {
		fields = append(fields, fmt.Sprintf("%s=%s", fe.Field(), fe.Tag()))
	}
	sort.Strings(fields)
	return shared.InvalidInput(domain, op, "validation failed: "+strings.Join(fields, ", "))
}
