// Package configbinder binds loosely typed configuration maps onto structs.
package configbinder

import (
	"fmt"
	"reflect"

	"github.com/mitchellh/mapstructure"
)

// BindProperties binds properties to target using the "yaml" tags of target's fields.
// Weakly typed input is accepted, so values overridden from environment variables as
// strings still bind to numeric and boolean fields.
//
// Parameters:
//
//	properties: The raw key/value map, typically a section of the YAML configuration.
//	target: A pointer to the struct to populate.
//
// Returns:
//
//	An error if the decoder cannot be created or a value cannot be converted.
func BindProperties(properties map[string]interface{}, target interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "yaml",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}

	if err := decoder.Decode(properties); err != nil {
		targetType := reflect.TypeOf(target)
		if targetType.Kind() == reflect.Ptr {
			targetType = targetType.Elem()
		}
		return fmt.Errorf("failed to bind properties to struct %s: %w", targetType.Name(), err)
	}
	return nil
}
