// Package peer answers the org.freedesktop.DBus.Peer interface's Ping
// and GetMachineId on behalf of the local connection, as required of
// every D-Bus client (spec §6.3: "it must also answer inbound Ping and
// GetMachineId").
//
// Grounded on the teacher's read-only filesystem probe pattern used for
// capability detection (internal/adapter/nfs identity/attribute lookups
// that fall back across candidate paths), generalized to the two
// candidate machine-id file locations.
package peer

import (
	"context"
	"os"
	"strings"

	"github.com/marmos91/godbus/internal/dbusmsg"
	"github.com/marmos91/godbus/internal/dbuspipeline"
	"github.com/marmos91/godbus/internal/dbustype"
)

const interfaceName = "org.freedesktop.DBus.Peer"

// machineIDPaths is tried in order; the first file that exists wins.
var machineIDPaths = []string{"/etc/machine-id", "/var/lib/dbus/machine-id"}

// ReplySender is the subset of the Connection core a Handler needs to
// answer an inbound call.
type ReplySender interface {
	SendReply(ctx context.Context, replyTo *dbusmsg.Message, values ...dbustype.Value) error
	SendErrorReply(ctx context.Context, replyTo *dbusmsg.Message, errorName, message string) error
}

// MachineIDFunc resolves this host's D-Bus machine id.
type MachineIDFunc func() (string, error)

// Handler is an inbound pipeline handler that answers Ping and
// GetMachineId directly and forwards everything else.
type Handler struct {
	dbuspipeline.BaseHandler
	sender    ReplySender
	machineID MachineIDFunc
}

// New constructs a Handler. machineID may be nil to use
// ReadMachineIDFile against the default candidate paths.
func New(sender ReplySender, machineID MachineIDFunc) *Handler {
	if machineID == nil {
		machineID = ReadMachineIDFile
	}
	return &Handler{sender: sender, machineID: machineID}
}

func (h *Handler) Name() string { return "dbus.peer" }

func (h *Handler) HandleInbound(ctx context.Context, msg *dbusmsg.Message, next dbuspipeline.Next) error {
	if msg.Type != dbusmsg.TypeMethodCall || msg.Interface != interfaceName {
		return next(ctx, msg)
	}

	switch msg.Member {
	case "Ping":
		return h.sender.SendReply(ctx, msg)
	case "GetMachineId":
		id, err := h.machineID()
		if err != nil {
			return h.sender.SendErrorReply(ctx, msg, "org.freedesktop.DBus.Error.Failed", err.Error())
		}
		str, err := dbustype.NewString(id)
		if err != nil {
			return h.sender.SendErrorReply(ctx, msg, "org.freedesktop.DBus.Error.Failed", err.Error())
		}
		return h.sender.SendReply(ctx, msg, str)
	default:
		return next(ctx, msg)
	}
}

// ReadMachineIDFile reads the first existing file among machineIDPaths
// and returns its trimmed contents.
func ReadMachineIDFile() (string, error) {
	var lastErr error
	for _, p := range machineIDPaths {
		b, err := os.ReadFile(p)
		if err != nil {
			lastErr = err
			continue
		}
		return strings.TrimSpace(string(b)), nil
	}
	return "", lastErr
}
