package format

import "strings"

// KebabCase turns a station shortcode into the lowercase hyphenated token
// sequence used in page class names: "azuratest_radio" -> "azuratest-radio",
// "XMLHttpRadio" -> "xml-http-radio".
//
// Tokens are matched left to right, trying in order: an uppercase run of two
// or more followed by a capitalized word or a word boundary, an optionally
// capitalized lowercase word with trailing digits, a single uppercase letter,
// a digit run. Anything else separates tokens.
func KebabCase(s string) string {
	var tokens []string
	n := len(s)

	for i := 0; i < n; {
		c := s[i]

		if isUpper(c) {
			j := i
			for j < n && isUpper(s[j]) {
				j++
			}
			end := -1
			if j-i >= 2 && (j == n || !isWord(s[j])) {
				end = j
			} else if j < n && isLower(s[j]) && j-1-i >= 2 {
				// last capital starts the next word
				end = j - 1
			}
			if end > 0 {
				tokens = append(tokens, s[i:end])
				i = end
				continue
			}
		}

		k := i
		if isUpper(s[k]) {
			k++
		}
		if k < n && isLower(s[k]) {
			for k < n && isLower(s[k]) {
				k++
			}
			for k < n && isDigit(s[k]) {
				k++
			}
			tokens = append(tokens, s[i:k])
			i = k
			continue
		}

		if isUpper(c) {
			tokens = append(tokens, s[i:i+1])
			i++
			continue
		}

		if isDigit(c) {
			k = i
			for k < n && isDigit(s[k]) {
				k++
			}
			tokens = append(tokens, s[i:k])
			i = k
			continue
		}

		i++
	}

	return strings.ToLower(strings.Join(tokens, "-"))
}

func isUpper(c byte) bool { return c >= 'A' && c <= 'Z' }
func isLower(c byte) bool { return c >= 'a' && c <= 'z' }
func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isWord(c byte) bool {
	return isUpper(c) || isLower(c) || isDigit(c) || c == '_'
}
