// Command generate-schema writes the JSON schema of the DocFTP configuration
// file, for editor completion of config.yaml.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/invopop/jsonschema"
	"github.com/marmos91/docftp/pkg/config"
)

const defaultOutput = "config.schema.json"

func main() {
	outputFile := defaultOutput
	if len(os.Args) > 1 {
		outputFile = os.Args[1]
	}

	schemaJSON, err := generate()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating schema: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(outputFile, schemaJSON, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing schema file: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("JSON schema written to %s\n", outputFile)
}

// generate reflects config.Config using its yaml tags so property names match
// the keys written by "docftp init".
func generate() ([]byte, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		FieldNameTag:              "yaml",
	}

	schema := reflector.Reflect(&config.Config{})
	schema.Title = "DocFTP Configuration"
	schema.Description = "Configuration schema for the DocFTP gateway"
	schema.Version = "1.0.0"

	return json.MarshalIndent(schema, "", "  ")
}
