package api

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/lexiqai/assist-gateway/internal/capability"
)

// maxBodyBytes bounds request bodies; OCR images arrive base64 encoded
const maxBodyBytes = 20 << 20

//go:embed schemas/*.json
var schemaFS embed.FS

// Request schemas, one per body shape
var (
	textSchema       = mustCompile("text.json")
	chatSchema       = mustCompile("chat.json")
	synthesizeSchema = mustCompile("synthesize.json")
	ocrSchema        = mustCompile("ocr.json")
	translateSchema  = mustCompile("translate.json")
)

func mustCompile(name string) *jsonschema.Schema {
	data, err := schemaFS.ReadFile("schemas/" + name)
	if err != nil {
		panic(fmt.Sprintf("read schema %s: %v", name, err))
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(name, bytes.NewReader(data)); err != nil {
		panic(fmt.Sprintf("schema resource %s: %v", name, err))
	}
	return c.MustCompile(name)
}

// decodeRequest reads the JSON body, checks it against schema and decodes
// it into dst. Every failure is a validation error for capabilityName.
func decodeRequest(w http.ResponseWriter, r *http.Request, capabilityName string, schema *jsonschema.Schema, dst interface{}) error {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return capability.Validation(capabilityName, "Request body too large")
		}
		return capability.Validation(capabilityName, "Failed to read request body")
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return capability.Validation(capabilityName, "No JSON body provided")
	}

	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return capability.Validation(capabilityName, "Invalid JSON body")
	}
	if err := schema.Validate(doc); err != nil {
		return capability.Validation(capabilityName, schemaMessage(err))
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return capability.Validation(capabilityName, "Invalid JSON body")
	}
	return nil
}

// schemaMessage reports the most specific failure, prefixed with the
// offending field path.
func schemaMessage(err error) string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	field := strings.TrimPrefix(ve.InstanceLocation, "/")
	if field == "" {
		return ve.Message
	}
	return fmt.Sprintf("%s: %s", field, ve.Message)
}
