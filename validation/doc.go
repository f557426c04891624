// Package validation checks relay configuration structs against their
// `validate` tags using go-playground/validator. Fields are reported by
// their mapstructure key so messages match config.yml:
//
//	type Config struct {
//	    TargetService string `mapstructure:"target_service" validate:"required,service_name"`
//	}
//	err := validation.Validate(cfg) // "target_service: is required"
//
// The returned error is an *errors.AppError with code INVALID_INPUT and the
// failing fields under details["fields"].
package validation
