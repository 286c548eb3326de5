package dbussasl

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/marmos91/godbus/internal/dbuserr"
)

// lookupCookie reads the keyring file for context and returns the cookie
// data for cookieID. Keyring files are one line per cookie:
// "<id> <timestamp> <cookie-data>".
func lookupCookie(dirOverride, context, cookieID string) (string, error) {
	dir := dirOverride
	if dir == "" {
		dir = keyringDir()
	}
	path := filepath.Join(dir, context)

	f, err := os.Open(path)
	if err != nil {
		return "", dbuserr.Wrap(dbuserr.KindAuthenticationFailed, "open DBUS_COOKIE_SHA1 keyring "+path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, " ", 3)
		if len(fields) != 3 {
			continue
		}
		if fields[0] == cookieID {
			return fields[2], nil
		}
	}
	if err := sc.Err(); err != nil {
		return "", dbuserr.Wrap(dbuserr.KindAuthenticationFailed, "read DBUS_COOKIE_SHA1 keyring", err)
	}
	return "", dbuserr.New(dbuserr.KindAuthenticationFailed, "cookie id "+cookieID+" not found in "+path)
}

// keyringDir resolves the keyring directory per the spec: prefer
// $XDG_RUNTIME_DIR/dbus-1/keyrings, falling back to ~/.dbus-keyrings.
func keyringDir() string {
	if xdg := os.Getenv("XDG_RUNTIME_DIR"); xdg != "" {
		return filepath.Join(xdg, "dbus-1", "keyrings")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".dbus-keyrings"
	}
	return filepath.Join(home, ".dbus-keyrings")
}
