package config

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Values arrive as strings from env vars and flags, and as typed values from
// toml files.

func parseBool(option *Option, i interface{}) error {
	target, ok := option.ConfigKey.(*bool)
	if !ok {
		return fmt.Errorf("invalid type for %s: expected *bool", option.Name)
	}
	switch v := i.(type) {
	case nil:
	case bool:
		*target = v
	case string:
		b, err := strconv.ParseBool(strings.ToLower(v))
		if err != nil {
			return fmt.Errorf("invalid boolean value %s: %s", option.Name, v)
		}
		*target = b
	default:
		return fmt.Errorf("could not parse boolean %s: %v", option.Name, i)
	}
	return nil
}

func parseInt(option *Option, i interface{}) error {
	switch v := i.(type) {
	case nil:
	case string:
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return err
		}
		target := reflect.ValueOf(option.ConfigKey).Elem()
		if target.OverflowInt(parsed) {
			return fmt.Errorf("%s overflows %s", option.Name, target.Type())
		}
		target.SetInt(parsed)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return parseInt(option, fmt.Sprint(v))
	default:
		return fmt.Errorf("could not parse int %s: %v", option.Name, i)
	}
	return nil
}

func parseUnsigned(option *Option, i interface{}, limit uint64, typeName string) error {
	switch v := i.(type) {
	case nil:
	case string:
		parsed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return err
		}
		if parsed > limit {
			return fmt.Errorf("%s overflows %s", option.Name, typeName)
		}
		reflect.ValueOf(option.ConfigKey).Elem().SetUint(parsed)
	case int, int8, int16, int32, int64:
		if reflect.ValueOf(v).Int() < 0 {
			return fmt.Errorf("%s cannot be negative", option.Name)
		}
		return parseUnsigned(option, fmt.Sprint(v), limit, typeName)
	case uint, uint8, uint16, uint32, uint64:
		return parseUnsigned(option, fmt.Sprint(v), limit, typeName)
	default:
		return fmt.Errorf("could not parse %s %s: %v", typeName, option.Name, i)
	}
	return nil
}

func parseUint(option *Option, i interface{}) error {
	return parseUnsigned(option, i, math.MaxUint64, "uint")
}

func parseUint32(option *Option, i interface{}) error {
	return parseUnsigned(option, i, math.MaxUint32, "uint32")
}

func parseFloat(option *Option, i interface{}) error {
	switch v := i.(type) {
	case nil:
	case string:
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		reflect.ValueOf(option.ConfigKey).Elem().SetFloat(parsed)
	case uint, uint8, uint16, uint32, uint64, int, int8, int16, int32, int64, float32, float64:
		return parseFloat(option, fmt.Sprint(v))
	default:
		return fmt.Errorf("could not parse float %s: %v", option.Name, i)
	}
	return nil
}

func parseString(option *Option, i interface{}) error {
	target, ok := option.ConfigKey.(*string)
	if !ok {
		return fmt.Errorf("invalid type for %s: expected *string", option.Name)
	}
	switch v := i.(type) {
	case nil:
	case string:
		*target = v
	default:
		return fmt.Errorf("could not parse string %s: %v", option.Name, i)
	}
	return nil
}

func parseDuration(option *Option, i interface{}) error {
	target, ok := option.ConfigKey.(*time.Duration)
	if !ok {
		return fmt.Errorf("invalid type for %s: expected *time.Duration", option.Name)
	}
	switch v := i.(type) {
	case nil:
	case string:
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("could not parse duration: %q: %w", v, err)
		}
		*target = d
	case time.Duration:
		*target = v
	case *time.Duration:
		*target = *v
	default:
		return fmt.Errorf("%s is not a duration", option.Name)
	}
	return nil
}

func parseStringSlice(option *Option, i interface{}) error {
	target, ok := option.ConfigKey.(*[]string)
	if !ok {
		return fmt.Errorf("invalid type for %s: expected *[]string", option.Name)
	}
	switch v := i.(type) {
	case nil:
	case string:
		*target = nil
		if v != "" {
			*target = strings.Split(v, ",")
		}
	case []string:
		*target = v
	case []interface{}:
		result := make([]string, len(v))
		for idx, s := range v {
			str, ok := s.(string)
			if !ok {
				return fmt.Errorf("could not parse %s: element %d is not a string", option.Name, idx)
			}
			result[idx] = str
		}
		*target = result
	default:
		return fmt.Errorf("could not parse %s: %v", option.Name, v)
	}
	return nil
}
