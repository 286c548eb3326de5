package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/marmos91/godbus/internal/dbustype"
)

// parseArg parses one "type:value" positional argument into a
// dbustype.Value, dbus-send's convention for passing method call
// bodies on the command line. Only basic types are supported; a
// container argument asks for a signature this CLI has no use for.
func parseArg(raw string) (dbustype.Value, error) {
	typ, value, ok := strings.Cut(raw, ":")
	if !ok {
		return nil, fmt.Errorf("argument %q must be TYPE:VALUE, e.g. string:hello", raw)
	}

	switch typ {
	case "byte":
		n, err := strconv.ParseUint(value, 10, 8)
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", raw, err)
		}
		return dbustype.Byte(n), nil
	case "boolean":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", raw, err)
		}
		return dbustype.Boolean(b), nil
	case "int16":
		n, err := strconv.ParseInt(value, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", raw, err)
		}
		return dbustype.Int16(n), nil
	case "uint16":
		n, err := strconv.ParseUint(value, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", raw, err)
		}
		return dbustype.Uint16(n), nil
	case "int32":
		n, err := strconv.ParseInt(value, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", raw, err)
		}
		return dbustype.Int32(n), nil
	case "uint32":
		n, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", raw, err)
		}
		return dbustype.Uint32(n), nil
	case "int64":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", raw, err)
		}
		return dbustype.Int64(n), nil
	case "uint64":
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", raw, err)
		}
		return dbustype.Uint64(n), nil
	case "double":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", raw, err)
		}
		return dbustype.Double(f), nil
	case "string":
		s, err := dbustype.NewString(value)
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", raw, err)
		}
		return s, nil
	case "objpath":
		p, err := dbustype.NewObjectPath(value)
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", raw, err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("argument %q: unsupported type %q (byte/boolean/int16/uint16/int32/uint32/int64/uint64/double/string/objpath)", raw, typ)
	}
}

func parseArgs(raw []string) ([]dbustype.Value, error) {
	values := make([]dbustype.Value, 0, len(raw))
	for _, r := range raw {
		v, err := parseArg(r)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}
