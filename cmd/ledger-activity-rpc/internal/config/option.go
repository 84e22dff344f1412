package config

import (
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/spf13/pflag"

	"github.com/stellar/go/support/strutils"
)

// Options is a group of Options that can be for-each'ed over.
type Options []*Option

// Validate all the config options.
func (options Options) Validate() error {
	var missingOptions []errMissingRequiredOption
	for _, option := range options {
		if option.Validate == nil {
			continue
		}
		err := option.Validate(option)
		if err == nil {
			continue
		}
		var missingOption errMissingRequiredOption
		if errors.As(err, &missingOption) {
			missingOptions = append(missingOptions, missingOption)
			continue
		}
		return fmt.Errorf("invalid config value for %s: %w", option.Name, err)
	}
	if len(missingOptions) > 0 {
		// we had one or more missing options, combine these all into a single error.
		errString := "The following required configuration parameters are missing:"
		for _, missingOpt := range missingOptions {
			errString += "\n*\t" + missingOpt.strErr
			errString += "\n \t" + missingOpt.usage
		}
		return &errMissingRequiredOption{strErr: errString}
	}
	return nil
}

// Option is a complete description of the configuration of a command line option
type Option struct {
	// e.g. "ledger-server-url"
	Name string
	// e.g. "LEDGER_SERVER_URL". Defaults to uppercase/underscore representation of name
	EnvVar string
	// e.g. "LEDGER_SERVER_URL". Defaults to the env var. - to omit from toml
	TomlKey string
	// Help text
	Usage string
	// A default if no option is provided. Omit or set to `nil` if no default
	DefaultValue interface{}
	// Pointer to the final key in the linked Config struct
	ConfigKey interface{}
	// Optional function for custom validation/transformation
	CustomSetValue func(*Option, interface{}) error
	// Function called after loading all options, to validate the configuration
	Validate func(*Option) error
	// Function to marshal the value
	MarshalTOML func(*Option) (interface{}, error)

	flag *pflag.Flag // The persistent flag that the config option is attached to
}

// Returns false if this option is omitted in the toml
func (o Option) getTomlKey() (string, bool) {
	if o.TomlKey == "-" || o.TomlKey == "_" {
		return "", false
	}
	if o.TomlKey != "" {
		return o.TomlKey, true
	}
	if envVar, ok := o.getEnvKey(); ok {
		return envVar, true
	}
	return strutils.KebabToConstantCase(o.Name), true
}

// Returns false if this option is omitted in the env
func (o Option) getEnvKey() (string, bool) {
	if o.EnvVar == "-" || o.EnvVar == "_" {
		return "", false
	}
	if o.EnvVar != "" {
		return o.EnvVar, true
	}
	return strutils.KebabToConstantCase(o.Name), true
}

func (o *Option) setValue(i interface{}) (err error) {
	if o.CustomSetValue != nil {
		return o.CustomSetValue(o, i)
	}
	// it's unfortunate that Go doesn't have templates as it would render cleaner code here
	defer func() {
		if recoverRes := recover(); recoverRes != nil {
			var ok bool
			if err, ok = recoverRes.(error); ok {
				return
			}
			err = fmt.Errorf("config option setting error ('%s') %v", o.Name, recoverRes)
		}
	}()
	parser := func(option *Option, i interface{}) error {
		return fmt.Errorf("no parser for flag %s", o.Name)
	}
	switch o.ConfigKey.(type) {
	case *bool:
		parser = parseBool
	case *int, *int8, *int16, *int32, *int64:
		parser = parseInt
	case *uint, *uint8, *uint16, *uint32:
		parser = parseUint32
	case *uint64:
		parser = parseUint
	case *float32, *float64:
		parser = parseFloat
	case *string:
		parser = parseString
	case *[]string:
		parser = parseStringSlice
	case *time.Duration:
		parser = parseDuration
	}

	return parser(o, i)
}

// marshalTOML returns the option value in a form the toml encoder accepts.
func (o *Option) marshalTOML() (interface{}, error) {
	if o.MarshalTOML != nil {
		return o.MarshalTOML(o)
	}
	value := reflect.ValueOf(o.ConfigKey).Elem()
	switch v := value.Interface().(type) {
	case time.Duration:
		return v.String(), nil
	case []string:
		values := make([]interface{}, len(v))
		for i, s := range v {
			values[i] = s
		}
		return values, nil
	}
	switch value.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return value.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return value.Uint(), nil
	case reflect.Float32, reflect.Float64:
		return value.Float(), nil
	case reflect.String:
		return value.String(), nil
	case reflect.Bool:
		return value.Bool(), nil
	default:
		return nil, fmt.Errorf("cannot marshal %s of type %s", o.Name, value.Type())
	}
}

type errMissingRequiredOption struct {
	strErr string
	usage  string
}

func (e errMissingRequiredOption) Error() string {
	return e.strErr
}

func required(option *Option) error {
	switch reflect.ValueOf(option.ConfigKey).Elem().Kind() {
	case reflect.Slice:
		if reflect.ValueOf(option.ConfigKey).Elem().Len() > 0 {
			return nil
		}
	default:
		if !reflect.ValueOf(option.ConfigKey).Elem().IsZero() {
			return nil
		}
	}

	waysToSet := []string{}
	if option.Name != "" && option.Name != "-" {
		waysToSet = append(waysToSet, fmt.Sprintf("specify --%s on the command line", option.Name))
	}
	if option.EnvVar != "" && option.EnvVar != "-" {
		waysToSet = append(waysToSet, fmt.Sprintf("set the %s environment variable", option.EnvVar))
	}

	if tomlKey, hasTomlKey := option.getTomlKey(); hasTomlKey {
		waysToSet = append(waysToSet, fmt.Sprintf("set %s in the config file", tomlKey))
	}

	advice := ""
	switch len(waysToSet) {
	case 1:
		advice = fmt.Sprintf(" Please %s.", waysToSet[0])
	case 2:
		advice = fmt.Sprintf(" Please %s or %s.", waysToSet[0], waysToSet[1])
	case 3:
		advice = fmt.Sprintf(" Please %s, %s, or %s.", waysToSet[0], waysToSet[1], waysToSet[2])
	}

	return errMissingRequiredOption{strErr: fmt.Sprintf("%s is required.%s", option.Name, advice), usage: option.Usage}
}

func positive(option *Option) error {
	switch v := option.ConfigKey.(type) {
	case *int, *int8, *int16, *int32, *int64:
		if reflect.ValueOf(v).Elem().Int() <= 0 {
			return fmt.Errorf("%s must be positive", option.Name)
		}
	case *uint, *uint8, *uint16, *uint32, *uint64:
		if reflect.ValueOf(v).Elem().Uint() <= 0 {
			return fmt.Errorf("%s must be positive", option.Name)
		}
	case *time.Duration:
		if *v <= 0 {
			return fmt.Errorf("%s must be positive", option.Name)
		}
	default:
		return fmt.Errorf("%s is not a positive integer", option.Name)
	}
	return nil
}
