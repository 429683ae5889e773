package transfer

// SanitizeFileName maps a client-supplied file name onto the characters
// safe to embed in an on-disk path. Anything outside [A-Za-z0-9._-]
// becomes an underscore; a name that sanitizes to nothing becomes
// "file". The original name is preserved in the database and on the
// wire; only storage paths use the sanitized form.
func SanitizeFileName(name string) string {
	sanitized := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		ch := name[i]
		switch {
		case ch >= 'a' && ch <= 'z',
			ch >= 'A' && ch <= 'Z',
			ch >= '0' && ch <= '9',
			ch == '.', ch == '_', ch == '-':
			sanitized = append(sanitized, ch)
		default:
			sanitized = append(sanitized, '_')
		}
	}
	if len(sanitized) == 0 {
		return "file"
	}
	return string(sanitized)
}
