package openapi

import "maps"

var errorBody = map[string]*MediaType{
	"application/json": {
		Schema: &Schema{
			Type: "object",
			Properties: map[string]*Schema{
				"error": {Type: "string", Description: "Error message"},
			},
		},
	},
}

// NewComponents creates Components with the shared error responses.
func NewComponents() *Components {
	return &Components{
		Schemas: make(map[string]*Schema),
		Responses: map[string]*Response{
			"BadRequest":      {Description: "Invalid request", Content: errorBody},
			"NotFound":        {Description: "Document not found", Content: errorBody},
			"PayloadTooLarge": {Description: "Upload exceeds the configured limit", Content: errorBody},
			"ServerError":     {Description: "Filesystem, mirror, or log failure", Content: errorBody},
		},
	}
}

// AddSchemas merges schemas into the component schemas.
func (c *Components) AddSchemas(schemas map[string]*Schema) {
	maps.Copy(c.Schemas, schemas)
}
