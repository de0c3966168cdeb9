package modem

import (
	"strconv"

	"github.com/godbus/dbus/v5"
)

// Typed accessors over ofono property maps. ofono models everything as
// name→variant dictionaries; higher layers only ever see these defaults,
// never raw variants.

func propString(props map[string]dbus.Variant, key string) string {
	v, ok := props[key]
	if !ok {
		return ""
	}
	s, _ := v.Value().(string)
	return s
}

func propStringDefault(props map[string]dbus.Variant, key, def string) string {
	if s := propString(props, key); s != "" {
		return s
	}
	return def
}

func propBool(props map[string]dbus.Variant, key string) bool {
	v, ok := props[key]
	if !ok {
		return false
	}
	b, _ := v.Value().(bool)
	return b
}

func propStrings(props map[string]dbus.Variant, key string) []string {
	v, ok := props[key]
	if !ok {
		return nil
	}
	s, _ := v.Value().([]string)
	return s
}

func propUint8(props map[string]dbus.Variant, key string) uint8 {
	v, ok := props[key]
	if !ok {
		return 0
	}
	switch n := v.Value().(type) {
	case uint8:
		return n
	case int32:
		return uint8(n)
	case uint32:
		return uint8(n)
	}
	return 0
}

// propUint32Any tries several key names and value encodings. Different
// udx710 firmware revisions report cell identifiers under different keys
// and sometimes as decimal or hex strings.
func propUint32Any(props map[string]dbus.Variant, keys ...string) uint32 {
	for _, key := range keys {
		v, ok := props[key]
		if !ok {
			continue
		}
		switch n := v.Value().(type) {
		case uint32:
			return n
		case int32:
			if n >= 0 {
				return uint32(n)
			}
		case uint16:
			return uint32(n)
		case uint64:
			return uint32(n)
		case string:
			if num, err := strconv.ParseUint(n, 10, 32); err == nil {
				return uint32(num)
			}
			if num, err := strconv.ParseUint(n, 16, 32); err == nil {
				return uint32(num)
			}
		}
	}
	return 0
}
