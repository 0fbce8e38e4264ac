package channel

import (
	"fmt"
	"regexp"
	"strings"
)

var loginPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

var (
	twitchURLPattern = regexp.MustCompile(`twitch\.tv/([^/?#]+)`)
	kickURLPattern   = regexp.MustCompile(`kick\.com/([^/?#]+)`)
)

// CleanLogin trims whitespace and strips a single leading @.
func CleanLogin(name string) string {
	return strings.TrimPrefix(strings.TrimSpace(name), "@")
}

// ValidateLogin checks a channel handle for direct lookups: 3-25 characters
// after stripping a leading @, letters/digits/underscore/hyphen only.
// It returns the cleaned login on success.
func ValidateLogin(name string) (string, error) {
	login := CleanLogin(name)
	if len(login) < 3 || len(login) > 25 {
		return "", fmt.Errorf("%w: %q must be 3-25 characters", ErrValidation, login)
	}
	if !loginPattern.MatchString(login) {
		return "", fmt.Errorf("%w: %q contains disallowed characters", ErrValidation, login)
	}
	return login, nil
}

// ParseURL extracts a platform and login from a pasted channel URL.
// The second return is false when the string is not a recognized channel URL.
func ParseURL(raw string) (Platform, string, bool) {
	if m := twitchURLPattern.FindStringSubmatch(raw); m != nil {
		return PlatformTwitch, m[1], true
	}
	if m := kickURLPattern.FindStringSubmatch(raw); m != nil {
		return PlatformKick, m[1], true
	}
	return "", "", false
}
