package config

import (
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	scenarioerrors "scenariokit/pkg/errors"
)

var (
	validatorOnce sync.Once
	validateInst  *validator.Validate

	scenarioIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)
)

func validatorInstance() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New()

		_ = v.RegisterValidation("scenario_id", func(fl validator.FieldLevel) bool {
			return scenarioIDPattern.MatchString(fl.Field().String())
		})

		validateInst = v
	})

	return validateInst
}

func convertValidationError(err error) error {
	if err == nil {
		return nil
	}

	if fieldErrs, ok := err.(validator.ValidationErrors); ok && len(fieldErrs) > 0 {
		first := fieldErrs[0]
		field := strings.ToLower(first.Namespace())
		return scenarioerrors.NewConfigError(field, "failed rule '"+first.Tag()+"'", err)
	}

	return scenarioerrors.NewConfigError("", err.Error(), err)
}
