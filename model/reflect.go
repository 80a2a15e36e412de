// Package model - Reflection-basierte Gewichts-Allokation
//
// Dieses Modul enthält die Reflection-Logik zum Befüllen von
// Modell-Strukturen mit Gewichten aus dem Register.
//
// Hauptkomponenten:
// - Populate: Befüllt Strukturfelder rekursiv mit Layern und Tensoren
// - Tag: GGUF-Tag-Struktur für Gewichtsnamen
// - parseTag: Parst GGUF-Tags aus Struct-Tags
// - Dims: Benannte Dimensionen für den dims-Tag

package model

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/ollama/albert/logutil"
	"github.com/ollama/albert/ml"
	"github.com/ollama/albert/ml/nn"
)

// Dims löst die Namen im dims-Tag auf, z.B. dims:"hidden_size,embedding_size"
type Dims map[string]int

func (d Dims) resolve(s string) ([]int, error) {
	if s == "" {
		return nil, errors.New("missing dims tag")
	}

	var dims []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if n, err := strconv.Atoi(part); err == nil {
			dims = append(dims, n)
		} else if n, ok := d[part]; ok {
			dims = append(dims, n)
		} else {
			return nil, fmt.Errorf("unknown dimension %q", part)
		}
	}

	for _, n := range dims {
		if n <= 0 {
			return nil, fmt.Errorf("dimension %q resolves to %d", s, n)
		}
	}
	return dims, nil
}

// Tag repräsentiert einen geparseten GGUF-Tag
type Tag struct {
	name,
	// prefix und suffix werden auf Kind-Tags angewendet
	prefix,
	suffix string
	init nn.Init
}

// parseTag parst einen GGUF-Tag-String in eine Tag-Struktur
func parseTag(s string) (tag Tag) {
	parts := strings.Split(s, ",")
	tag.name = parts[0]
	for _, part := range parts[1:] {
		if value, ok := strings.CutPrefix(part, "pre:"); ok {
			tag.prefix = value
		}
		if value, ok := strings.CutPrefix(part, "suf:"); ok {
			tag.suffix = value
		}
		if value, ok := strings.CutPrefix(part, "init:"); ok {
			switch value {
			case "zeros":
				tag.init = nn.InitZeros
			case "ones":
				tag.init = nn.InitOnes
			}
		}
	}

	return
}

// role setzt die Rolle aus den Tag-Namen zusammen
func role(tags []Tag) string {
	var names []string
	for i, tag := range tags {
		if tag.name == "" {
			continue
		}

		name := tag.name
		if i > 0 {
			name = tags[i-1].prefix + name + tags[i-1].suffix
		}
		names = append(names, name)
	}
	return strings.Join(names, ".")
}

var (
	tensorType = reflect.TypeOf((*ml.Tensor)(nil)).Elem()
	layerType  = reflect.TypeOf((*nn.Layer)(nil)).Elem()
)

// Populate allokiert alle mit gguf getaggten Felder von v (Pointer auf
// Struct) über das Register. Scope, Gruppe und Inner-Index kommen aus at,
// die Rolle aus den verschachtelten Tags. Gleiche Adressen liefern
// dieselben Tensoren. Ein Tag ohne Namen (gguf:",") fuegt der Rolle
// nichts hinzu.
func Populate(r *Registry, at Address, v any, dims Dims) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("populate: expected pointer to struct, got %T", v)
	}

	return populateFields(r, at, rv.Elem(), dims)
}

// populateFields befüllt Strukturfelder rekursiv
func populateFields(r *Registry, at Address, v reflect.Value, dims Dims, tags ...Tag) error {
	t := v.Type()
	for i := range t.NumField() {
		field := t.Field(i)
		vv := v.Field(i)
		tag := field.Tag.Get("gguf")
		if tag == "" || !vv.CanSet() {
			continue
		}

		// Kopie erstellen
		tagsCopy := append(append([]Tag(nil), tags...), parseTag(tag))

		switch {
		case field.Type == tensorType:
			shape, err := dims.resolve(field.Tag.Get("dims"))
			if err != nil {
				return fmt.Errorf("%s: %w", field.Name, err)
			}

			addr := at
			addr.Role = role(tagsCopy[:len(tagsCopy)-1])
			addr.Param = tagsCopy[len(tagsCopy)-1].name
			vv.Set(reflect.ValueOf(r.GetOrCreate(addr, tagsCopy[len(tagsCopy)-1].init, shape...)))
		case field.Type.Implements(layerType) && field.Type.Kind() == reflect.Pointer:
			shape, err := dims.resolve(field.Tag.Get("dims"))
			if err != nil {
				return fmt.Errorf("%s: %w", field.Name, err)
			}

			addr := at
			addr.Role = role(tagsCopy)
			layer := reflect.New(field.Type.Elem())
			layer.Interface().(nn.Layer).Allocate(allocator{r: r, addr: addr}, shape...)
			logutil.Trace("populate layer", "field", field.Name, "address", addr)
			vv.Set(layer)
		case field.Type.Kind() == reflect.Pointer && field.Type.Elem().Kind() == reflect.Struct:
			child := reflect.New(field.Type.Elem())
			if err := populateFields(r, at, child.Elem(), dims, tagsCopy...); err != nil {
				return err
			}
			vv.Set(child)
		default:
			return fmt.Errorf("%s: unsupported field type %s", field.Name, field.Type)
		}
	}

	return nil
}
