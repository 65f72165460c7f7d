package conversation

import "strings"

const (
	DefaultTitle = "New Chat"
	ImageTitle   = "Image Uploaded"

	derivedTitleLength = 30
	ellipsis           = "..."
)

// DeriveTitle picks a title from the first turn of a conversation:
// ImageTitle for image-only turns, the first 30 characters of the raw text
// (plus an ellipsis when cut) otherwise, DefaultTitle when both are empty.
// The cut happens before trimming, so leading blanks count toward the 30.
func DeriveTitle(text, imageURL string) string {
	blank := strings.TrimSpace(text) == ""

	switch {
	case blank && imageURL != "":
		return ImageTitle
	case !blank:
		return NormalizeTitle(truncate(text, derivedTitleLength, ellipsis))
	default:
		return DefaultTitle
	}
}

// NormalizeTitle trims surrounding whitespace and cuts titles longer than
// MaxTitleLength down to 97 characters plus an ellipsis.
func NormalizeTitle(title string) string {
	title = strings.TrimSpace(title)
	if len([]rune(title)) > MaxTitleLength {
		title = string([]rune(title)[:MaxTitleLength-len(ellipsis)]) + ellipsis
	}
	return title
}

func truncate(s string, n int, suffix string) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + suffix
}
