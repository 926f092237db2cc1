// Package model - Zustands-Traversierung
//
// Gegenstueck zu populateFields: sammelt alle benannten Tensoren eines
// Modells in eine flache Map ein. Wird zum Speichern, fuer die
// Info-Ausgabe und zum Kopieren von Gewichten zwischen Instanzen benutzt.

package model

import (
	"reflect"
	"strconv"

	"github.com/priorml/priorformer/ml"
)

// Tensors sammelt alle benannten, gesetzten Tensoren eines Modells.
// Die Schluessel sind die gepunkteten Pfade der st-Tags (Primaernamen).
func Tensors(m Model) map[string]ml.Tensor {
	out := make(map[string]ml.Tensor)
	collectTensors(reflect.ValueOf(m).Elem(), "", out)
	return out
}

func collectTensors(v reflect.Value, prefix string, out map[string]ml.Tensor) {
	t := v.Type()
	if t.Kind() != reflect.Struct {
		return
	}

	for i := range t.NumField() {
		tt := t.Field(i).Type
		vv := v.Field(i)
		if !t.Field(i).IsExported() {
			continue
		}

		name := prefix
		if s := t.Field(i).Tag.Get("st"); s != "" {
			if seg := parseTag(s).name; seg != "" {
				name = join(prefix, seg)
			}
		}

		switch {
		case tt == reflect.TypeOf((*ml.Tensor)(nil)).Elem():
			if !vv.IsNil() {
				out[name] = vv.Interface().(ml.Tensor)
			}
		case tt.Kind() == reflect.Pointer || tt.Kind() == reflect.Interface:
			if vv.IsNil() {
				continue
			}
			collectTensors(reflect.Indirect(unwrap(vv)), name, out)
		case tt.Kind() == reflect.Slice || tt.Kind() == reflect.Array:
			for j := range vv.Len() {
				vvv := vv.Index(j)
				jname := join(name, strconv.Itoa(j))
				if vvv.Kind() == reflect.Pointer || vvv.Kind() == reflect.Interface {
					if vvv.IsNil() {
						continue
					}
					collectTensors(reflect.Indirect(unwrap(vvv)), jname, out)
				} else if vvv.Kind() == reflect.Struct {
					collectTensors(vvv, jname, out)
				}
			}
		case tt.Kind() == reflect.Struct:
			collectTensors(vv, name, out)
		}
	}
}

func unwrap(v reflect.Value) reflect.Value {
	if v.Kind() == reflect.Interface {
		return v.Elem()
	}
	return v
}

func join(prefix, seg string) string {
	if prefix == "" {
		return seg
	}
	return prefix + "." + seg
}
