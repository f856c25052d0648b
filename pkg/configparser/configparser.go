/*
This file is part of Fleet Rollout.

Copyright (C) 2025-2026 The Fleet Rollout Authors.
*/

/*
Package configparser contains a simple parser for configuration structures.
Every exported field tagged with `env:"NAME"` is filled, in order of
precedence, from the environment variable NAME, from the NAME key of the
passed data map, and from the same field of the defaults structure.

Supported field types are string, bool, int, float64, time.Duration and
[]string. Lists are comma separated and every element is trimmed.
*/
package configparser

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/fleetrollout/fleet-rollout/pkg/management/log"
)

var durationType = reflect.TypeOf(time.Duration(0))

// ReadConfigMap reads the configuration from the environment and the passed
// data map, falling back to the values of defaults
func ReadConfigMap(target interface{}, defaults interface{}, data map[string]string) {
	ReadConfigMapFrom(target, defaults, data, OsEnvironment{})
}

// ReadConfigMapFrom is like ReadConfigMap but with a custom environment
func ReadConfigMapFrom(target interface{}, defaults interface{}, data map[string]string, env EnvironmentSource) {
	targetValue := reflect.Indirect(reflect.ValueOf(target))
	defaultsValue := reflect.Indirect(reflect.ValueOf(defaults))
	targetType := targetValue.Type()

	for i := 0; i < targetType.NumField(); i++ {
		field := targetType.Field(i)
		envName, ok := field.Tag.Lookup("env")
		if !ok || !field.IsExported() {
			continue
		}

		value, found := data[envName]
		if envValue := env.Getenv(envName); envValue != "" {
			value, found = envValue, true
		}

		targetField := targetValue.Field(i)
		targetField.Set(defaultsValue.Field(i))
		if !found || value == "" {
			continue
		}

		if err := setField(targetField, value); err != nil {
			log.Warning("Skipping invalid configuration value, using default",
				"key", envName, "value", value, "error", err.Error())
			targetField.Set(defaultsValue.Field(i))
		}
	}
}

func setField(field reflect.Value, value string) error {
	if field.Type() == durationType {
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		field.SetInt(int64(parsed))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(parsed)
	case reflect.Int, reflect.Int32, reflect.Int64:
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(parsed)
	case reflect.Float64, reflect.Float32:
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(parsed)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type %v", field.Type())
		}
		field.Set(reflect.ValueOf(splitAndTrim(value)))
	default:
		return fmt.Errorf("unsupported field type %v", field.Type())
	}
	return nil
}

// splitAndTrim slices a string into all substrings after each comma and
// returns a slice of those substrings with any leading and trailing
// white space removed
func splitAndTrim(commaSeparatedList string) []string {
	list := strings.Split(commaSeparatedList, ",")
	for i := range list {
		list[i] = strings.TrimSpace(list[i])
	}
	return list
}
