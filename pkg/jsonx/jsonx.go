// Package jsonx wraps sonic with the few helpers the services need.
package jsonx

import "github.com/bytedance/sonic"

func JSON(v any) []byte {
	data, _ := sonic.Marshal(v)
	return data
}

func JSONS(v any) string {
	return string(JSON(v))
}

func JSONE(v any) ([]byte, error) {
	return sonic.Marshal(v)
}

func Pretty(v any) string {
	data, _ := sonic.MarshalIndent(v, "", " ")
	return string(data)
}

// Unmarshal decodes data into v.
func Unmarshal(data []byte, v any) error {
	return sonic.Unmarshal(data, v)
}

// UnmarshalString decodes s into v.
func UnmarshalString(s string, v any) error {
	return sonic.UnmarshalString(s, v)
}

// Lazy defers encoding until the value is formatted, so log calls below the
// active level never pay for it.
type Lazy struct {
	v      any
	pretty bool
}

func (lz Lazy) String() string {
	if lz.pretty {
		return Pretty(lz.v)
	}
	return JSONS(lz.v)
}

func LzJSON(v any) Lazy {
	return Lazy{v: v}
}

func LzPretty(v any) Lazy {
	return Lazy{v: v, pretty: true}
}
