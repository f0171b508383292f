package helpers

import (
	"net/http"
)

// SniffMime guesses the content type of data from its first 512 bytes
func SniffMime(data []byte) (mimetype string) {
	if len(data) > 512 {
		data = data[:512]
	}
	return http.DetectContentType(data)
}
