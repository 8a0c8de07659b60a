package render

import (
	"fmt"
	"io"
	"reflect"
	"sort"
	"strings"
	"text/tabwriter"
	"time"
)

// column is one exported, non-skipped struct field.
type column struct {
	name      string
	index     int
	omitEmpty bool
}

// renderTable writes data as key/value rows or, for slices, as a grid.
// Struct fields holding slices of structs are rendered as a titled grid
// below the key/value rows, so frame listings stay readable.
func (r *Renderer) renderTable(data any) error {
	v := indirect(reflect.ValueOf(data))
	if v.Kind() == reflect.Slice || v.Kind() == reflect.Array {
		return writeGrid(r.out, v)
	}
	return r.writeRecord(v)
}

func (r *Renderer) writeRecord(v reflect.Value) error {
	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)

	var nested []reflect.Value
	var nestedNames []string

	switch v.Kind() {
	case reflect.Struct:
		for _, col := range columns(v.Type()) {
			fv := v.Field(col.index)
			if col.omitEmpty && fv.IsZero() {
				continue
			}
			if isGrid(fv) {
				nested = append(nested, fv)
				nestedNames = append(nestedNames, col.name)
				continue
			}
			fmt.Fprintf(w, "%s:\t%s\n", col.name, cell(fv))
		}
	case reflect.Map:
		for _, e := range sortedEntries(v) {
			fmt.Fprintf(w, "%s:\t%s\n", e.key, cell(e.val))
		}
	case reflect.Invalid:
		fmt.Fprintln(w, "(empty)")
	default:
		fmt.Fprintf(w, "%v\n", v.Interface())
	}
	if err := w.Flush(); err != nil {
		return err
	}

	for i, nv := range nested {
		fmt.Fprintf(r.out, "\n%s:\n", nestedNames[i])
		if err := writeGrid(r.out, nv); err != nil {
			return err
		}
	}
	return nil
}

func writeGrid(out io.Writer, v reflect.Value) error {
	if v.Len() == 0 {
		fmt.Fprintln(out, "(no results)")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	elem := indirectType(v.Type().Elem())

	if elem.Kind() != reflect.Struct {
		for i := 0; i < v.Len(); i++ {
			fmt.Fprintln(w, cell(v.Index(i)))
		}
		return w.Flush()
	}

	cols := columns(elem)
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.name
	}
	fmt.Fprintln(w, strings.Join(names, "\t"))

	row := make([]string, len(cols))
	for i := 0; i < v.Len(); i++ {
		ev := indirect(v.Index(i))
		for j, c := range cols {
			if !ev.IsValid() {
				row[j] = ""
				continue
			}
			row[j] = cell(ev.Field(c.index))
		}
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	return w.Flush()
}

// columns lists the exported fields of t, named by their json tag.
func columns(t reflect.Type) []column {
	var cols []column
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := strings.ToLower(f.Name)
		omit := false
		if tag, ok := f.Tag.Lookup("json"); ok {
			parts := strings.Split(tag, ",")
			if parts[0] == "-" && len(parts) == 1 {
				continue
			}
			if parts[0] != "" {
				name = parts[0]
			}
			for _, opt := range parts[1:] {
				if opt == "omitempty" {
					omit = true
				}
			}
		}
		cols = append(cols, column{name: name, index: i, omitEmpty: omit})
	}
	return cols
}

// isGrid reports whether v is a non-empty slice of structs.
func isGrid(v reflect.Value) bool {
	if v.Kind() != reflect.Slice || v.Len() == 0 {
		return false
	}
	return indirectType(v.Type().Elem()).Kind() == reflect.Struct
}

func cell(v reflect.Value) string {
	v = indirect(v)
	if !v.IsValid() {
		return ""
	}

	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return fmt.Sprintf("%d bytes", v.Len())
		}
		if v.Len() == 0 {
			return "[]"
		}
		if v.Len() <= 4 && indirectType(v.Type().Elem()).Kind() != reflect.Struct {
			parts := make([]string, v.Len())
			for i := range parts {
				parts[i] = cell(v.Index(i))
			}
			return strings.Join(parts, ", ")
		}
		return fmt.Sprintf("[%d items]", v.Len())
	case reflect.Map:
		if v.Len() == 0 {
			return "{}"
		}
		return fmt.Sprintf("{%d keys}", v.Len())
	case reflect.Struct:
		if t, ok := v.Interface().(time.Time); ok {
			return t.Format(time.RFC3339)
		}
		return "{...}"
	}

	if d, ok := v.Interface().(time.Duration); ok {
		return d.String()
	}
	return fmt.Sprintf("%v", v.Interface())
}

type entry struct {
	key string
	val reflect.Value
}

func sortedEntries(v reflect.Value) []entry {
	entries := make([]entry, 0, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		entries = append(entries, entry{key: fmt.Sprintf("%v", iter.Key().Interface()), val: iter.Value()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].key < entries[j].key })
	return entries
}

func indirect(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

func indirectType(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}
