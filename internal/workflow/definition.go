package workflow

import (
	"fmt"

	"github.com/deploymenttheory/n8n-workflow-deployer/internal/common/cryptoutil"
	"github.com/deploymenttheory/n8n-workflow-deployer/internal/common/errors"
	"github.com/deploymenttheory/n8n-workflow-deployer/internal/common/fsutil"
	"github.com/deploymenttheory/n8n-workflow-deployer/internal/common/jsonutil"
)

// ParseError is returned by Load when the file is not a JSON object.
type ParseError struct {
	File   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("Invalid JSON in %s: %s", e.File, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return errors.ErrInvalidJSON
}

// Load reads and parses the workflow file at path. ext is trimmed from the
// file name to form Definition.File.
func Load(path, ext string) (*Definition, error) {
	file := fsutil.BaseName(path, ext)

	data, err := fsutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errors.ErrFileReadError, err.Error())
	}

	def, err := Parse(file, data)
	if err != nil {
		return nil, err
	}

	def.Path = path
	def.Checksum = cryptoutil.SHA256(data)
	return def, nil
}

// Parse builds a Definition for file from raw JSON.
func Parse(file string, data []byte) (*Definition, error) {
	doc, err := jsonutil.Decode(data)
	if err != nil {
		reason := err.Error()
		var decodeErr *jsonutil.DecodeError
		if errors.As(err, &decodeErr) {
			reason = decodeErr.Reason
		}
		return nil, &ParseError{File: file, Reason: reason}
	}

	return &Definition{File: file, doc: doc}, nil
}

// Name is the workflow's "name" field, or File when the field is missing,
// empty or not a string.
func (d *Definition) Name() string {
	if name := jsonutil.GetString(d.doc, KeyName); name != "" {
		return name
	}
	return d.File
}

// Active reports the document's current activation flag.
func (d *Definition) Active() bool {
	active, _ := d.doc[KeyActive].(bool)
	return active
}

// ForceInactive sets the activation flag to false. Deployments never
// activate a workflow, whatever the file says.
func (d *Definition) ForceInactive() {
	_ = jsonutil.SetValue(d.doc, KeyActive, false)
}

// CreatePayload returns the full document for POST /api/v1/workflows with
// "active" forced to false. A document without a usable name is sent under
// its file name so later runs can find it again.
func (d *Definition) CreatePayload() map[string]interface{} {
	payload := make(map[string]interface{}, len(d.doc)+1)
	for k, v := range d.doc {
		payload[k] = v
	}
	payload[KeyName] = d.Name()
	payload[KeyActive] = false
	return payload
}

// UpdatePayload returns the reduced body for PUT /api/v1/workflows/{id}.
// Missing settings become an empty object.
func (d *Definition) UpdatePayload() UpdatePayload {
	settings, ok := d.doc[KeySettings]
	if !ok || settings == nil {
		settings = map[string]interface{}{}
	}

	return UpdatePayload{
		Name:        d.Name(),
		Nodes:       d.doc[KeyNodes],
		Connections: d.doc[KeyConnections],
		Settings:    settings,
	}
}
