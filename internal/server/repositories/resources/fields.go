package resources

import (
	"reflect"
	"strings"
)

// readOnly are JSON keys a client may send but never write.
var readOnly = map[string]bool{"id": true, "createdAt": true, "updatedAt": true}

// UpdatableFields maps the JSON keys present in a request body to the struct
// field names of T, for use with Repository.Update. Unknown and read-only
// keys are dropped, as are associations (fields with a gorm foreignKey).
func UpdatableFields[T any](keys []string) []string {
	byTag := map[string]string{}
	collectFields(reflect.TypeOf((*T)(nil)).Elem(), byTag)

	fields := make([]string, 0, len(keys))
	for _, k := range keys {
		if readOnly[k] {
			continue
		}
		if f, ok := byTag[k]; ok {
			fields = append(fields, f)
		}
	}
	return fields
}

func collectFields(t reflect.Type, out map[string]string) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Anonymous && f.Type.Kind() == reflect.Struct {
			collectFields(f.Type, out)
			continue
		}
		if !f.IsExported() || strings.Contains(f.Tag.Get("gorm"), "foreignKey") {
			continue
		}
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			continue
		}
		out[name] = f.Name
	}
}
