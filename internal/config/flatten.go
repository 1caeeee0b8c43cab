package config

import (
	"reflect"
	"strings"
)

// Setting is one leaf of the configuration tree.
type Setting struct {
	Key   string
	Value any
}

// Flatten lists every leaf of cfg in declaration order, keyed by the same
// dotted koanf paths the loader accepts.
func Flatten(cfg *Config) []Setting {
	var out []Setting
	flatten(reflect.ValueOf(cfg).Elem(), "", &out)
	return out
}

func flatten(v reflect.Value, prefix string, out *[]Setting) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name, _, _ := strings.Cut(f.Tag.Get("koanf"), ",")
		if name == "" || name == "-" {
			continue
		}
		key := name
		if prefix != "" {
			key = prefix + "." + name
		}
		if f.Type.Kind() == reflect.Struct {
			flatten(v.Field(i), key, out)
			continue
		}
		*out = append(*out, Setting{Key: key, Value: v.Field(i).Interface()})
	}
}
