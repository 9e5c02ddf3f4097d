// Package cmdutil holds helpers shared by the import commands.
package cmdutil

import (
	"reflect"
	"strings"
	"unicode"
)

// StructToMapOptions configures StructToMap behavior.
type StructToMapOptions struct {
	// OmitFields lists Go field names that are left out.
	OmitFields map[string]bool
	// KeyOverrides maps Go field names to column keys, taking precedence over tags.
	KeyOverrides map[string]string
}

// StructToMap converts a struct into a column map. The key of each exported
// field is its KeyOverrides entry, else its `db` tag, else its snake_case name.
// Fields tagged `db:"-"` are skipped and nil pointers become nil values.
func StructToMap[T any](value T, opts StructToMapOptions) map[string]any {
	result := make(map[string]any)
	walkFields(reflect.ValueOf(value), opts, func(key string, v any) {
		result[key] = v
	})
	return result
}

// StructColumns returns the keys StructToMap would produce, in field order.
func StructColumns[T any](value T, opts StructToMapOptions) []string {
	var columns []string
	walkFields(reflect.ValueOf(value), opts, func(key string, _ any) {
		columns = append(columns, key)
	})
	return columns
}

func walkFields(v reflect.Value, opts StructToMapOptions, visit func(key string, value any)) {
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return
	}

	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() || opts.OmitFields[field.Name] {
			continue
		}

		value := v.Field(i)
		if field.Anonymous && value.Kind() == reflect.Struct {
			walkFields(value, opts, visit)
			continue
		}

		key, ok := fieldKey(field, opts)
		if !ok {
			continue
		}
		visit(key, fieldValue(value))
	}
}

func fieldKey(field reflect.StructField, opts StructToMapOptions) (string, bool) {
	if override, ok := opts.KeyOverrides[field.Name]; ok {
		return override, true
	}
	if tag, ok := field.Tag.Lookup("db"); ok {
		name, _, _ := strings.Cut(tag, ",")
		if name == "-" {
			return "", false
		}
		if name != "" {
			return name, true
		}
	}
	return toSnakeCase(field.Name), true
}

func fieldValue(value reflect.Value) any {
	if value.Kind() == reflect.Pointer {
		if value.IsNil() {
			return nil
		}
		return value.Elem().Interface()
	}
	return value.Interface()
}

// toSnakeCase turns ISBN13 into isbn13 and AverageRating into average_rating.
func toSnakeCase(input string) string {
	runes := []rune(input)
	var builder strings.Builder
	builder.Grow(len(runes) + 4)

	for i, r := range runes {
		if unicode.IsUpper(r) && i > 0 {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				builder.WriteRune('_')
			}
		}
		builder.WriteRune(unicode.ToLower(r))
	}

	return builder.String()
}
