// Package config merges provider configuration structs.
package config

import "reflect"

// Merge copies every non-zero field of source into target. Both must be
// pointers to the same struct type; anything else is ignored. Empty slices
// and maps count as zero.
func Merge[T any](target, source *T) {
	if target == nil || source == nil {
		return
	}

	dst := reflect.ValueOf(target).Elem()
	src := reflect.ValueOf(source).Elem()
	if dst.Kind() != reflect.Struct {
		return
	}

	for i := range src.NumField() {
		field := src.Field(i)
		out := dst.Field(i)
		if !out.CanSet() {
			continue
		}
		switch field.Kind() {
		case reflect.Slice, reflect.Map:
			if field.Len() > 0 {
				out.Set(field)
			}
		default:
			if !field.IsZero() {
				out.Set(field)
			}
		}
	}
}
