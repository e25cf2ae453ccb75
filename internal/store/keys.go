package store

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/solatis/commissar/internal/entity"
)

// valueKey is the canonical, type-tagged form of a field value used to
// match criteria. Numbers of any width share one key so an int field
// matches a float64 criterion of the same value.
func valueKey(v any) string {
	switch x := v.(type) {
	case nil:
		return "z:"
	case string:
		return "s:" + x
	case []byte:
		return "s:" + string(x)
	case bool:
		return "b:" + strconv.FormatBool(x)
	case time.Time:
		return "t:" + x.UTC().Format(time.RFC3339Nano)
	case *time.Time:
		if x == nil {
			return "z:"
		}
		return valueKey(*x)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return numberKey(float64(rv.Int()))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return numberKey(float64(rv.Uint()))
	case reflect.Float32, reflect.Float64:
		return numberKey(rv.Float())
	}

	data, err := json.Marshal(entity.EncodeValue(v))
	if err != nil {
		return "j:" + fmt.Sprint(v)
	}
	return "j:" + string(data)
}

func numberKey(f float64) string {
	return "n:" + strconv.FormatFloat(f, 'g', -1, 64)
}
