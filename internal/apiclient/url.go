package apiclient

import "strings"

func joinBaseURL(baseURL string, path string) string {
	trimmedBaseURL := strings.TrimRight(baseURL, "/")
	if path == "" {
		return trimmedBaseURL
	}
	if trimmedBaseURL == "" {
		return path
	}
	if strings.HasPrefix(path, "?") {
		return trimmedBaseURL + path
	}
	return trimmedBaseURL + "/" + strings.TrimLeft(path, "/")
}
