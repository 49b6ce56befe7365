package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/artpar/immitate/core/convention"
	"github.com/go-playground/validator/v10"
)

// reservedSegments are first path segments served outside the model routes.
var reservedSegments = map[string]bool{
	"health":  true,
	"version": true,
	"swagger": true,
}

var structValidator = newStructValidator()

func newStructValidator() *validator.Validate {
	v := validator.New()
	// Report yaml key names, e.g. "server.port".
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func validate(cfg *Config) error {
	if err := structValidator.Struct(cfg); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			return fieldError(fieldErrs[0])
		}
		return err
	}

	if cfg.Server.Timezone != "" && cfg.Server.Timezone != "Local" {
		if _, err := time.LoadLocation(cfg.Server.Timezone); err != nil {
			return fmt.Errorf("server.timezone: %w", err)
		}
	}
	paths := make(map[string]string, len(cfg.Models))
	metricsSeg := firstSegment(cfg.Metrics.Path)
	for _, m := range cfg.Models {
		if err := m.Validate(); err != nil {
			return err
		}

		d := convention.Derive(m)
		if !convention.ValidResource(d.Resource) {
			return fmt.Errorf("model %s: invalid resource name %q", m.Name, d.Resource)
		}
		if strings.HasPrefix(d.Resource, "_") || reservedSegments[d.Resource] ||
			(cfg.Metrics.On() && d.Resource == metricsSeg) {
			return fmt.Errorf("model %s: resource name %q is reserved", m.Name, d.Resource)
		}
		if owner, ok := paths[d.BasePath]; ok {
			return fmt.Errorf("model %s: path %s already served by model %s", m.Name, d.BasePath, owner)
		}
		paths[d.BasePath] = m.Name
	}
	return nil
}

func fieldError(fe validator.FieldError) error {
	// Namespace starts with the root struct name.
	field := fe.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}

	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s is required", field)
	case "oneof":
		return fmt.Errorf("%s must be one of [%s], got %q", field, fe.Param(), fmt.Sprint(fe.Value()))
	case "min":
		if field == "models" {
			return fmt.Errorf("at least one model is required")
		}
		return fmt.Errorf("%s must be at least %s, got %v", field, fe.Param(), fe.Value())
	case "max":
		return fmt.Errorf("%s must be at most %s, got %v", field, fe.Param(), fe.Value())
	case "startswith":
		return fmt.Errorf("%s must start with %q, got %q", field, fe.Param(), fmt.Sprint(fe.Value()))
	}
	return fmt.Errorf("%s failed %s validation", field, fe.Tag())
}

func firstSegment(path string) string {
	seg, _, _ := strings.Cut(strings.TrimPrefix(path, "/"), "/")
	return seg
}
