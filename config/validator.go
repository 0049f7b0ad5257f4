package config

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sallie/companion/pkg/personality"
)

// validate is the global validator instance.
var validate *validator.Validate

func init() {
	validate = validator.New()

	// Register custom validators
	_ = validate.RegisterValidation("env", validateEnvironment)
	_ = validate.RegisterValidation("host", validateHost)
	_ = validate.RegisterValidation("archetype", validateArchetype)
	validate.RegisterStructValidation(validateMemoryWeights, MemoryConfig{})
	validate.RegisterStructValidation(validateGRPCKeepalive, GRPCKeepaliveConfig{})
}

// ConfigError represents a validation error for a specific field.
type ConfigError struct {
	Field   string
	Message string
	Value   interface{}
}

func (e ConfigError) Error() string {
	return fmt.Sprintf("%s: %s (got %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of config errors.
type ValidationErrors []ConfigError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}

	var sb strings.Builder
	sb.WriteString("configuration validation failed:\n")
	for _, err := range e {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// ValidateWithDetails performs validation and returns detailed errors.
func ValidateWithDetails(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			var details ValidationErrors
			for _, fe := range validationErrors {
				details = append(details, ConfigError{
					Field:   fe.Namespace(),
					Message: formatValidationError(fe),
					Value:   fe.Value(),
				})
			}
			return details
		}
		return err
	}
	return nil
}

// formatValidationError converts validator.FieldError to a human-readable message.
func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "required_if":
		return fmt.Sprintf("this field is required when %s", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "lt":
		return fmt.Sprintf("must be less than %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	case "gtefield":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "env":
		return "must be one of [development staging production]"
	case "host":
		return "must be an IP address or hostname"
	case "archetype":
		return "must be one of [companion mentor muse guardian]"
	case "weights":
		return "tag, content and kind weights must not all be zero"
	case "keepalive_timeout":
		return "must be shorter than the keepalive ping interval"
	default:
		return fmt.Sprintf("failed validation: %s", fe.Tag())
	}
}

// validateEnvironment is a custom validator for environment values.
func validateEnvironment(fl validator.FieldLevel) bool {
	env := fl.Field().String()
	validEnvs := []string{"development", "staging", "production"}
	for _, valid := range validEnvs {
		if env == valid {
			return true
		}
	}
	return false
}

// validateHost accepts empty values, IP addresses and RFC 1123 hostnames.
func validateHost(fl validator.FieldLevel) bool {
	host := fl.Field().String()
	if host == "" {
		return true
	}
	if net.ParseIP(host) != nil {
		return true
	}
	if len(host) > 253 {
		return false
	}
	for _, label := range strings.Split(host, ".") {
		if label == "" || len(label) > 63 {
			return false
		}
		if label[0] == '-' || label[len(label)-1] == '-' {
			return false
		}
		for i := 0; i < len(label); i++ {
			if !isValidHostChar(label[i]) {
				return false
			}
		}
	}
	return true
}

func isValidHostChar(c byte) bool {
	return (c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9') ||
		c == '-'
}

func validateArchetype(fl validator.FieldLevel) bool {
	_, err := personality.ParseArchetype(fl.Field().String())
	return err == nil
}

func validateMemoryWeights(sl validator.StructLevel) {
	m := sl.Current().Interface().(MemoryConfig)
	if m.TagWeight+m.ContentWeight+m.KindWeight <= 0 {
		sl.ReportError(m.TagWeight, "TagWeight", "tag_weight", "weights", "")
	}
}

func validateGRPCKeepalive(sl validator.StructLevel) {
	k := sl.Current().Interface().(GRPCKeepaliveConfig)
	if k.Time > 0 && k.Timeout >= k.Time {
		sl.ReportError(k.Timeout, "Timeout", "timeout", "keepalive_timeout", "")
	}
}
