package utils

import (
	"strings"

	"github.com/google/uuid"
)

const ConfirmationCodeLength = 6

// GenerateConfirmationCode returns a short uppercase code organizers share
// with attendees for check-in.
func GenerateConfirmationCode() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(raw[:ConfirmationCodeLength])
}

// NormalizeConfirmationCode makes user input comparable to a generated code.
func NormalizeConfirmationCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
