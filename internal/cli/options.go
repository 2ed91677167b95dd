// Package cli builds the cobra command tree for the CLI surface from
// spec §6, generalizing zrepl's config.Validator()/RegisterTagNameFunc
// pattern (config/config.go) from YAML-tag validation to flag-tag
// validation, since this tool has no config file: every option comes
// from the command line (spec §6 "Persisted state: none").
package cli

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"

	"github.com/mwilck/btrfs-clone/internal/strategy"
)

// Options holds every flag from spec §6, tagged for both
// creasty/defaults and go-playground/validator the way zrepl tags its
// config structs for yaml/validate, just against pflag-populated
// fields instead of a parsed document.
type Options struct {
	SourceMount string `validate:"required,dir"`
	TargetMount string `validate:"required,dir"`

	Strategy         string        `default:"generation" validate:"oneof=parent bruteforce snapshot chronological generation"`
	Toplevel         bool
	Force            bool
	DryRun           bool
	IgnoreErrors     bool
	SnapBase         string `validate:"omitempty,alphanum_dash"`
	Verbose          int
	NoUnshare        bool
	LogCompressLevel int `default:"0" validate:"gte=0,lte=19"`
	LogDir           string
	AbortWindow      time.Duration `default:"10s" validate:"gt=0s"`
}

// StrategyKind parses the validated Strategy field.
func (o *Options) StrategyKind() strategy.Kind {
	kind, _ := strategy.ParseKind(o.Strategy)
	return kind
}

// ApplyDefaults fills zero-valued fields from their `default` tags,
// mirroring creasty/defaults usage across the example pack.
func (o *Options) ApplyDefaults() error {
	return defaults.Set(o)
}

// Validate runs struct validation with field names taken from each
// field's own Go name (there is no separate wire tag to prefer, since
// options are flag-populated, not unmarshaled).
func (o *Options) Validate() error {
	if err := Validator().Struct(o); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}
	return nil
}

var validate *validator.Validate

// Validator returns the shared validator instance, registering the
// alphanum_dash rule --snap-base needs (bare alphanumeric plus
// separators, matching internal/subvolume.ValidateBaseName) exactly
// once.
func Validator() *validator.Validate {
	if validate == nil {
		validate = newValidator()
	}
	return validate
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return strings.ToLower(fld.Name)
	})
	if err := v.RegisterValidation("alphanum_dash", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		for _, r := range s {
			if !(r == '-' || r == '_' || r == '.' ||
				(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
				return false
			}
		}
		return true
	}); err != nil {
		panic(err)
	}
	return v
}
