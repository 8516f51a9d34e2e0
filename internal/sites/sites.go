package sites

// Default returns the compiled-in list of pages to download. A new slice is
// returned on every call, so callers may modify it.
func Default() []string {
	return []string{
		"https://www.yahoo.com/",
		"https://www.google.com/",
		"https://www.microsoft.com/",
		"https://www.cnn.com/",
		"https://www.codeproject.com/",
		"https://www.stackoverflow.com/",
		"https://www.github.com/",
		"https://www.youtube.com/",
	}
}
