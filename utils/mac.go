package utils

import (
	"fmt"
	"net"
	"strings"
)

// NormalizeMAC canonicalizes a client MAC to uppercase colon form, e.g.
// "aa-bb-cc-dd-ee-ff" -> "AA:BB:CC:DD:EE:FF". Rate limiting and audit
// rows key on this form so the same adapter never counts twice.
func NormalizeMAC(mac string) (string, error) {
	hw, err := net.ParseMAC(strings.TrimSpace(mac))
	if err != nil {
		return "", fmt.Errorf("invalid mac %q: %w", mac, err)
	}
	if len(hw) != 6 {
		return "", fmt.Errorf("invalid mac %q: not 48-bit", mac)
	}
	return strings.ToUpper(strings.ReplaceAll(hw.String(), "-", ":")), nil
}
