package workflow

import "github.com/JaimeStill/qtgreview/pkg/openapi"

var scopeParams = []*openapi.Parameter{
	openapi.QueryParam("device", "string", "Device, required in scoped mode", false),
	openapi.QueryParam("year", "string", "Year, required in scoped mode", false),
	openapi.QueryParam("set", "string", "Set, required in scoped mode", false),
}

func withScope(params ...*openapi.Parameter) []*openapi.Parameter {
	return append(append([]*openapi.Parameter{}, scopeParams...), params...)
}

var areaParam = openapi.PathParam("area", "intake, approved, rejected, or archived")

var docs = struct {
	Scopes   *openapi.Operation
	Overview *openapi.Operation
	List     *openapi.Operation
	Download *openapi.Operation
	Classify *openapi.Operation
	Retrieve *openapi.Operation
	Sign     *openapi.Operation
	Log      *openapi.Operation
	LogEntry *openapi.Operation
}{
	Scopes: &openapi.Operation{
		Tags:    []string{"Workflow"},
		Summary: "Scope mode, catalog, and PIN requirement",
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Scope info", openapi.SchemaRef("ScopeInfo")),
		},
	},
	Overview: &openapi.Operation{
		Tags:       []string{"Workflow"},
		Summary:    "Document counts per area",
		Parameters: withScope(),
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Counts", openapi.SchemaRef("Overview")),
			400: openapi.ResponseRef("BadRequest"),
		},
	},
	List: &openapi.Operation{
		Tags:    []string{"Workflow"},
		Summary: "List PDFs in an area",
		Parameters: withScope(
			areaParam,
			openapi.QueryParam("page", "integer", "Page number (1-indexed)", false),
			openapi.QueryParam("page_size", "integer", "Results per page", false),
			openapi.QueryParam("search", "string", "Case-insensitive name filter", false),
			openapi.QueryParam("sort", "string", "name, size_bytes, or modified_at; prefix - for descending", false),
		),
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Page of documents", openapi.SchemaRef("DocumentPage")),
			400: openapi.ResponseRef("BadRequest"),
		},
	},
	Download: &openapi.Operation{
		Tags:       []string{"Workflow"},
		Summary:    "Download a PDF from an area",
		Parameters: withScope(areaParam, openapi.PathParam("name", "Document file name")),
		Responses: map[int]*openapi.Response{
			200: {
				Description: "PDF content",
				Content: map[string]*openapi.MediaType{
					"application/pdf": {Schema: &openapi.Schema{Type: "string", Format: "binary"}},
				},
			},
			400: openapi.ResponseRef("BadRequest"),
			404: openapi.ResponseRef("NotFound"),
		},
	},
	Classify: &openapi.Operation{
		Tags:        []string{"Workflow"},
		Summary:     "Move an intake document to approved or rejected",
		RequestBody: openapi.RequestBodyJSON("ClassifyRequest"),
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Moved document", openapi.SchemaRef("Document")),
			400: openapi.ResponseRef("BadRequest"),
			404: openapi.ResponseRef("NotFound"),
			500: openapi.ResponseRef("ServerError"),
		},
	},
	Retrieve: &openapi.Operation{
		Tags:        []string{"Workflow"},
		Summary:     "Return approved or rejected documents to intake",
		RequestBody: openapi.RequestBodyJSON("RetrieveRequest"),
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Per-document outcome", openapi.SchemaRef("BatchResult")),
			400: openapi.ResponseRef("BadRequest"),
		},
	},
	Sign: &openapi.Operation{
		Tags:    []string{"Workflow"},
		Summary: "Stamp an approved document, archive it, and record the signature",
		RequestBody: openapi.RequestBodyForm(&openapi.Schema{
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"device":    {Type: "string"},
				"year":      {Type: "string"},
				"set":       {Type: "string"},
				"document":  {Type: "string", Description: "File name in approved"},
				"signer":    {Type: "string"},
				"remarks":   {Type: "string"},
				"pin":       {Type: "string"},
				"signature": {Type: "string", Format: "binary", Description: "PNG or JPEG"},
			},
			Required: []string{"document", "signer", "signature"},
		}),
		Responses: map[int]*openapi.Response{
			201: openapi.ResponseJSON("Signed document", openapi.SchemaRef("SignResult")),
			400: openapi.ResponseRef("BadRequest"),
			404: openapi.ResponseRef("NotFound"),
			413: openapi.ResponseRef("PayloadTooLarge"),
			500: openapi.ResponseRef("ServerError"),
		},
	},
	Log: &openapi.Operation{
		Tags:       []string{"Workflow"},
		Summary:    "Signing log entries for a scope",
		Parameters: withScope(),
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Log entries", openapi.ArrayOf("LogEntry")),
			400: openapi.ResponseRef("BadRequest"),
			500: openapi.ResponseRef("ServerError"),
		},
	},
	LogEntry: &openapi.Operation{
		Tags:       []string{"Workflow"},
		Summary:    "Signing log entry for one document",
		Parameters: withScope(openapi.PathParam("document", "File name or log key")),
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Log entry", openapi.SchemaRef("LogEntry")),
			400: openapi.ResponseRef("BadRequest"),
			404: openapi.ResponseRef("NotFound"),
			500: openapi.ResponseRef("ServerError"),
		},
	},
}

// Schemas returns the component schemas referenced by the workflow routes.
func Schemas() map[string]*openapi.Schema {
	str := func(desc string) *openapi.Schema { return &openapi.Schema{Type: "string", Description: desc} }
	names := &openapi.Schema{Type: "array", Items: &openapi.Schema{Type: "string"}}
	areaEnum := []any{string(AreaIntake), string(AreaApproved), string(AreaRejected), string(AreaArchived)}

	return map[string]*openapi.Schema{
		"Scope": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"device": str("Device"),
				"year":   str("Year"),
				"set":    str("Set"),
			},
		},
		"ScopeInfo": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"scoped": {Type: "boolean"},
				"catalog": {
					Type: "object",
					Properties: map[string]*openapi.Schema{
						"devices": names,
						"years":   names,
						"sets":    names,
					},
				},
				"pin_required": {Type: "boolean"},
			},
		},
		"Document": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"name":        str("File name"),
				"area":        {Type: "string", Enum: areaEnum},
				"size_bytes":  {Type: "integer"},
				"modified_at": {Type: "string", Format: "date-time"},
			},
		},
		"DocumentPage": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"data":        openapi.ArrayOf("Document"),
				"total":       {Type: "integer"},
				"page":        {Type: "integer"},
				"page_size":   {Type: "integer"},
				"total_pages": {Type: "integer"},
			},
		},
		"Overview": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"scope":  openapi.SchemaRef("Scope"),
				"counts": {Type: "object", Description: "Document count keyed by area"},
			},
		},
		"ClassifyRequest": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"device":   str("Device"),
				"year":     str("Year"),
				"set":      str("Set"),
				"document": str("File name in intake"),
				"decision": {Type: "string", Enum: []any{string(DecisionPass), string(DecisionFail)}},
			},
			Required: []string{"document", "decision"},
		},
		"RetrieveRequest": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"device":    str("Device"),
				"year":      str("Year"),
				"set":       str("Set"),
				"from":      {Type: "string", Enum: []any{string(AreaApproved), string(AreaRejected)}},
				"documents": names,
			},
			Required: []string{"from", "documents"},
		},
		"BatchResult": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"retrieved": openapi.ArrayOf("Document"),
				"failed": {
					Type: "array",
					Items: &openapi.Schema{
						Type: "object",
						Properties: map[string]*openapi.Schema{
							"document": str("File name"),
							"error":    str("Failure reason"),
						},
					},
				},
			},
		},
		"LogEntry": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"document_name": str("File name without .pdf"),
				"signer_name":   str("Signer"),
				"signed_at":     str("YYYY-MM-DD HH:MM:SS"),
				"remarks":       str("Optional remarks"),
			},
		},
		"SignResult": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"document":      openapi.SchemaRef("Document"),
				"signed_at":     str("YYYY-MM-DD HH:MM:SS"),
				"archived_path": str("Archive path relative to the workflow root"),
				"entry":         openapi.SchemaRef("LogEntry"),
				"created":       {Type: "boolean", Description: "False when an existing log entry was replaced"},
			},
		},
	}
}
