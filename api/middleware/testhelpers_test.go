package middleware

// errorPayload decodes the error envelope in middleware tests.
type errorPayload struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
