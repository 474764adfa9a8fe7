package utils

import (
	"errors"
	"fmt"
	"strings"
)

// ValidateChannelID validates that the given value looks like a Slack
// conversation ID (C..., G... or D... followed by alphanumerics).
func ValidateChannelID(id string) error {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return errors.New("channel ID is required and must be a non-empty string")
	}
	if trimmed[0] != 'C' && trimmed[0] != 'G' && trimmed[0] != 'D' {
		return fmt.Errorf("channel ID %q must start with C, G or D", trimmed)
	}
	for _, r := range trimmed[1:] {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return fmt.Errorf("channel ID %q contains invalid character %q", trimmed, r)
		}
	}
	if len(trimmed) < 2 {
		return fmt.Errorf("channel ID %q is too short", trimmed)
	}
	return nil
}

// NormalizeChannelRef extracts the channel ID from a raw command
// argument, accepting bare IDs and the <#C123|name> mention form.
func NormalizeChannelRef(ref string) string {
	ref = strings.TrimSpace(ref)
	if strings.HasPrefix(ref, "<#") {
		ref = strings.TrimPrefix(ref, "<#")
		ref = strings.TrimSuffix(ref, ">")
		if i := strings.IndexByte(ref, '|'); i >= 0 {
			ref = ref[:i]
		}
	}
	return ref
}
