//go:build ignore

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"reflect"

	"github.com/invopop/jsonschema"

	"spell-and-sprint/client/internal/net/proto"
)

func main() {
	var outPath string
	flag.StringVar(&outPath, "out", "", "output path for the JSON schema")
	flag.Parse()

	if outPath == "" {
		log.Fatal("schema_generate: missing -out path")
	}

	schema, err := buildSchema()
	if err != nil {
		log.Fatalf("schema_generate: %v", err)
	}

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		log.Fatalf("schema_generate: marshal schema: %v", err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		log.Fatalf("schema_generate: create output dir: %v", err)
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		log.Fatalf("schema_generate: write schema: %v", err)
	}
}

func buildSchema() (*jsonschema.Schema, error) {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		DoNotReference:             true,
	}

	clientSchema := reflector.ReflectFromType(reflect.TypeOf(proto.ClientMessage{}))
	if clientSchema == nil {
		return nil, fmt.Errorf("failed to reflect client message schema")
	}
	clientSchema.Version = ""
	clientSchema.Title = "Client Message"
	clientSchema.Description = "Envelope sent from the game client to the room server."

	serverSchema := reflector.ReflectFromType(reflect.TypeOf(proto.ServerMessage{}))
	if serverSchema == nil {
		return nil, fmt.Errorf("failed to reflect server message schema")
	}
	serverSchema.Version = ""
	serverSchema.Title = "Server Message"
	serverSchema.Description = "Envelope sent from the room server to the game client."

	root := &jsonschema.Schema{
		Version:     jsonschema.Version,
		Title:       "Spell & Sprint Wire Protocol",
		Description: "Websocket message envelopes exchanged between client and room server.",
		OneOf: []*jsonschema.Schema{
			clientSchema,
			serverSchema,
		},
	}

	return root, nil
}
