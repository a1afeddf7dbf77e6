package logquery

import "strings"

// Interpolate replaces each {key} in message with context[key]. Unknown
// placeholders are left as written.
func Interpolate(message string, context map[string]string) string {
	if len(context) == 0 || !strings.Contains(message, "{") {
		return message
	}

	var b strings.Builder
	b.Grow(len(message))
	for {
		open := strings.IndexByte(message, '{')
		if open < 0 {
			break
		}
		end := strings.IndexByte(message[open:], '}')
		if end < 0 {
			break
		}
		end += open

		key := message[open+1 : end]
		b.WriteString(message[:open])
		if v, ok := context[key]; ok && !strings.ContainsAny(key, "{ ") {
			b.WriteString(v)
			message = message[end+1:]
			continue
		}
		// Not a placeholder: keep the brace and rescan after it.
		b.WriteByte('{')
		message = message[open+1:]
	}
	b.WriteString(message)
	return b.String()
}
