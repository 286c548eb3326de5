package dbustype

import (
	"fmt"
	"strings"

	"github.com/marmos91/godbus/internal/dbuserr"
)

const maxNameLength = 255

func isNameChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func isNameStartChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// ValidateObjectPath checks the absolute path grammar: "/" or one or more
// "/segment" components, segment matching [A-Za-z0-9_]+.
func ValidateObjectPath(p string) error {
	if len(p) == 0 || p[0] != '/' {
		return dbuserr.New(dbuserr.KindInvalidPath, fmt.Sprintf("object path %q must be absolute", p))
	}
	if p == "/" {
		return nil
	}
	if strings.HasSuffix(p, "/") {
		return dbuserr.New(dbuserr.KindInvalidPath, fmt.Sprintf("object path %q must not end in '/'", p))
	}
	for _, seg := range strings.Split(p[1:], "/") {
		if seg == "" {
			return dbuserr.New(dbuserr.KindInvalidPath, fmt.Sprintf("object path %q has an empty segment", p))
		}
		for i := 0; i < len(seg); i++ {
			if !isNameChar(seg[i]) {
				return dbuserr.New(dbuserr.KindInvalidPath, fmt.Sprintf("object path %q has invalid character in segment %q", p, seg))
			}
		}
	}
	return nil
}

// ValidateInterfaceName checks: two or more '.'-separated components, each
// matching [A-Za-z_][A-Za-z0-9_]*, total length <= 255.
func ValidateInterfaceName(n string) error {
	if len(n) == 0 || len(n) > maxNameLength {
		return dbuserr.New(dbuserr.KindInvalidInterface, fmt.Sprintf("interface name %q has invalid length", n))
	}
	parts := strings.Split(n, ".")
	if len(parts) < 2 {
		return dbuserr.New(dbuserr.KindInvalidInterface, fmt.Sprintf("interface name %q needs >= 2 components", n))
	}
	for _, part := range parts {
		if err := validateNameComponent(part); err != nil {
			return dbuserr.New(dbuserr.KindInvalidInterface, fmt.Sprintf("interface name %q: %v", n, err))
		}
	}
	return nil
}

// ValidateMemberName checks a single-component member name:
// [A-Za-z_][A-Za-z0-9_]*.
func ValidateMemberName(n string) error {
	if err := validateNameComponent(n); err != nil {
		return dbuserr.New(dbuserr.KindInvalidMember, fmt.Sprintf("member name %q: %v", n, err))
	}
	return nil
}

// ValidateBusName checks either a well-known bus name (interface-name
// shaped, but components may start with a digit) or a unique name
// (starts with ':').
func ValidateBusName(n string) error {
	if len(n) == 0 || len(n) > maxNameLength {
		return dbuserr.New(dbuserr.KindInvalidInterface, fmt.Sprintf("bus name %q has invalid length", n))
	}
	if n[0] == ':' {
		// Unique name: ":" then '.'-separated components, digits allowed
		// to start a component.
		parts := strings.Split(n[1:], ".")
		if len(parts) < 2 {
			return dbuserr.New(dbuserr.KindInvalidInterface, fmt.Sprintf("unique name %q needs >= 2 components", n))
		}
		for _, part := range parts {
			if part == "" {
				return dbuserr.New(dbuserr.KindInvalidInterface, fmt.Sprintf("bus name %q has an empty component", n))
			}
			for i := 0; i < len(part); i++ {
				if !isNameChar(part[i]) {
					return dbuserr.New(dbuserr.KindInvalidInterface, fmt.Sprintf("bus name %q has invalid character", n))
				}
			}
		}
		return nil
	}
	parts := strings.Split(n, ".")
	if len(parts) < 2 {
		return dbuserr.New(dbuserr.KindInvalidInterface, fmt.Sprintf("bus name %q needs >= 2 components", n))
	}
	for _, part := range parts {
		if part == "" {
			return dbuserr.New(dbuserr.KindInvalidInterface, fmt.Sprintf("bus name %q has an empty component", n))
		}
		for i := 0; i < len(part); i++ {
			if !isNameChar(part[i]) {
				return dbuserr.New(dbuserr.KindInvalidInterface, fmt.Sprintf("bus name %q has invalid character", n))
			}
		}
	}
	return nil
}

func validateNameComponent(s string) error {
	if s == "" {
		return fmt.Errorf("empty component")
	}
	if !isNameStartChar(s[0]) {
		return fmt.Errorf("component %q must start with a letter or underscore", s)
	}
	for i := 1; i < len(s); i++ {
		if !isNameChar(s[i]) {
			return fmt.Errorf("component %q has invalid character %q", s, s[i])
		}
	}
	return nil
}
