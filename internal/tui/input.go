package tui

import "unicode/utf8"

// editRune applies a single key press to text. Backspace removes the last
// rune; any other single-rune key is appended while text is under limit.
func editRune(text, key string, limit int) string {
	switch key {
	case "backspace":
		if len(text) > 0 {
			runes := []rune(text)
			return string(runes[:len(runes)-1])
		}
		return text
	default:
		if utf8.RuneCountInString(key) == 1 {
			if limit > 0 && utf8.RuneCountInString(text) >= limit {
				return text
			}
			return text + key
		}
		return text
	}
}
