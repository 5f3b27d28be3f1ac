package workflow

// Top-level keys of an n8n workflow document that this package reads or
// writes. Everything else is passed through untouched.
const (
	KeyName        = "name"
	KeyNodes       = "nodes"
	KeyConnections = "connections"
	KeySettings    = "settings"
	KeyActive      = "active"
)

// Definition is a workflow document read from a local file.
type Definition struct {
	// Path of the source file
	Path string

	// File is the base name of Path without its extension. It names the
	// file in results and is the fallback workflow name.
	File string

	// Checksum is the SHA-256 of the file as read
	Checksum string

	// doc holds the parsed document. Numbers are json.Number so they are
	// re-encoded exactly as written.
	doc map[string]interface{}
}

// UpdatePayload is the body accepted by PUT /api/v1/workflows/{id}. The
// remote API treats every other field, "active" included, as read-only.
type UpdatePayload struct {
	Name        string      `json:"name"`
	Nodes       interface{} `json:"nodes"`
	Connections interface{} `json:"connections"`
	Settings    interface{} `json:"settings"`
}
