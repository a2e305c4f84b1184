package datasource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-insights/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-insights/pkg/logging"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func configValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// report json field names, which are what users put in the config map
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

// DecodeConfig decodes a stored config map into out (a pointer to a struct
// with json and validate tags) and validates it. Every failure is a
// ConfigurationError naming source.
func DecodeConfig(source string, raw map[string]any, out any) error {
	if raw == nil {
		raw = map[string]any{}
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return apperrors.NewConfigurationError(source, "config is not serializable", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return apperrors.NewConfigurationError(source, "config has a field of the wrong type", err)
	}

	if err := configValidator().Struct(out); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fieldMessage(fe))
			}
			return apperrors.NewConfigurationError(source, strings.Join(msgs, "; "), nil)
		}
		return apperrors.NewConfigurationError(source, "invalid config", err)
	}
	return nil
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	case "required_if":
		if parts := strings.Fields(fe.Param()); len(parts) == 2 {
			return fmt.Sprintf("%s is required when %s is %s", fe.Field(), parts[0], parts[1])
		}
		return fe.Field() + " is required"
	case "required_without":
		return fmt.Sprintf("%s is required when %s is not set", fe.Field(), fe.Param())
	case "url", "http_url":
		return fe.Field() + " must be a valid URL"
	}
	return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
}

// SafeValidate runs check and folds every failure, including a panic, into
// false. Failures are logged at debug level.
func SafeValidate(ctx context.Context, logger *zap.Logger, source string, check func(ctx context.Context) error) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Debug("connection validation panicked",
				zap.String("source", source),
				zap.Any("panic", r),
			)
			ok = false
		}
	}()

	if err := check(ctx); err != nil {
		logger.Debug("connection validation failed",
			zap.String("source", source),
			zap.String("error", logging.SanitizeError(err)),
		)
		return false
	}
	return true
}
