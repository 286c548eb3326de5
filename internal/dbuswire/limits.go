package dbuswire

// Wire-level numeric limits enforced at decode (and mirrored at encode so
// a client never produces a frame its peer would reject).
const (
	MaxArrayBytes   = 1 << 26 // 67,108,864 bytes
	MaxMessageBytes = 1 << 27
	maxArrayBytes   = MaxArrayBytes
	maxSignatureBytes = 255
	maxStringLength   = 1 << 27

	// HeaderPrefixLength is the fixed size of the byte-order/type/flags/
	// version/body-length/serial prefix that begins every message.
	HeaderPrefixLength = 12
)
