package room

import "strings"

// InferLanguage maps a file name's extension to an editor language id.
func InferLanguage(name string) string {
	ext := name
	if i := strings.LastIndex(name, "."); i >= 0 {
		ext = name[i+1:]
	}
	switch ext {
	case "ts", "tsx":
		return "typescript"
	case "js", "jsx":
		return "javascript"
	case "py":
		return "python"
	case "java":
		return "java"
	case "html":
		return "html"
	case "css":
		return "css"
	case "json":
		return "json"
	default:
		return "javascript"
	}
}
