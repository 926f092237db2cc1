// Package model - Reflection-basierte Tensor-Population
//
// Dieses Modul enthaelt die Reflection-Logik zum automatischen Befuellen
// von Model-Strukturen mit Tensoren aus dem Backend.
//
// Hauptkomponenten:
// - populateFields: Befuellt Strukturfelder rekursiv mit Tensoren
// - setPointer: Steigt in Pointer- und Interface-Felder ab
// - tag: geparster st-Struct-Tag fuer Tensor-Namen

package model

import (
	"log/slog"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/priorml/priorformer/logutil"
	"github.com/priorml/priorformer/ml"
)

// tag haelt ein Segment des Tensor-Namenspfads
type tag struct {
	name         string
	alternatives []string
}

// parseTag parst einen st-Tag-String, z.B. "qkv,alt:attn.qkv"
func parseTag(s string) (t tag) {
	parts := strings.Split(s, ",")
	t.name = parts[0]

	for _, part := range parts[1:] {
		if value, ok := strings.CutPrefix(part, "alt:"); ok {
			t.alternatives = append(t.alternatives, value)
		}
	}

	return
}

// tensorNames expandiert den Tag-Pfad zu allen Kandidaten-Namen.
// Alternativen eines Segments multiplizieren sich mit den folgenden.
func tensorNames(tags []tag) []string {
	paths := []string{""}
	for _, tg := range tags {
		if tg.name == "" {
			continue
		}

		var next []string
		for _, p := range paths {
			for _, n := range append([]string{tg.name}, tg.alternatives...) {
				if p == "" {
					next = append(next, n)
				} else {
					next = append(next, p+"."+n)
				}
			}
		}
		paths = next
	}

	if len(paths) == 1 && paths[0] == "" {
		return nil
	}

	return paths
}

// populateFields befuellt Strukturfelder rekursiv mit Tensoren aus dem
// Backend. Felder ohne passenden Tensor bleiben unveraendert, das
// Konstruktor-Init bleibt damit als Fallback erhalten.
func populateFields(base Base, v reflect.Value, tags ...tag) {
	t := v.Type()
	if t.Kind() != reflect.Struct {
		return
	}

	for i := range t.NumField() {
		tt := t.Field(i).Type
		vv := v.Field(i)
		if !vv.CanSet() {
			continue
		}

		tagsCopy := tags
		if s := t.Field(i).Tag.Get("st"); s != "" {
			tagsCopy = append(tagsCopy, parseTag(s))
		}

		switch {
		case tt == reflect.TypeOf((*Base)(nil)).Elem():
			vv.Set(reflect.ValueOf(base))
		case tt == reflect.TypeOf((*ml.Tensor)(nil)).Elem():
			for _, name := range tensorNames(tagsCopy) {
				tensor := base.Backend().Get(name)
				if tensor == nil {
					continue
				}

				// Gespeicherte Tensoren mit abweichender Shape werden
				// uebersprungen, das Konstruktor-Init bleibt erhalten
				if current, ok := vv.Interface().(ml.Tensor); ok && current != nil &&
					!slices.Equal(current.Shape(), tensor.Shape()) {
					slog.Warn("tensor-shape passt nicht, uebersprungen",
						"name", name, "got", tensor.Shape(), "want", current.Shape())
					continue
				}

				logutil.Trace("tensor geladen", "name", name, "shape", tensor.Shape())
				vv.Set(reflect.ValueOf(tensor))
				break
			}
		case tt.Kind() == reflect.Pointer || tt.Kind() == reflect.Interface:
			setPointer(base, vv, tagsCopy)
		case tt.Kind() == reflect.Slice || tt.Kind() == reflect.Array:
			for j := range vv.Len() {
				vvv := vv.Index(j)
				jtags := append(tagsCopy, tag{name: strconv.Itoa(j)})
				if vvv.Kind() == reflect.Pointer || vvv.Kind() == reflect.Interface {
					setPointer(base, vvv, jtags)
				} else {
					populateFields(base, vvv, jtags...)
				}
			}
		case tt.Kind() == reflect.Struct:
			populateFields(base, vv, tagsCopy...)
		}
	}
}

// setPointer steigt in ein Pointer- oder Interface-Feld ab. Nil-Felder
// bleiben nil: der Konstruktor entscheidet, welche Module existieren.
func setPointer(base Base, v reflect.Value, tags []tag) {
	vv := v
	if v.Kind() == reflect.Interface {
		if v.IsNil() {
			return
		}
		vv = vv.Elem()
	}

	if vv.Kind() == reflect.Pointer && vv.IsNil() {
		return
	}

	populateFields(base, reflect.Indirect(vv), tags...)
}
