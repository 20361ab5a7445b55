package client

// Request describes a single invocation against a dependency.
type Request struct {
	// Method is the HTTP method (GET, POST, ...).
	Method string
	// Path is appended to the dependency's base URL.
	Path string
	// Headers are additional request headers.
	Headers map[string]string
	// Query holds query string parameters.
	Query map[string]string
	// Body is JSON-encoded when non-nil.
	Body any
}

// Response is the result of a successful invocation.
type Response struct {
	// StatusCode is the HTTP status code.
	StatusCode int
	// Headers are the response headers (first value per key).
	Headers map[string]string
	// Body is the raw response body.
	Body []byte
}
