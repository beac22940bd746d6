package nl2mongo

import (
	"github.com/chatdb/chatdb/internal/command"
	"github.com/chatdb/chatdb/internal/dispatch"
	"github.com/chatdb/chatdb/internal/document"
	"github.com/chatdb/chatdb/internal/intent"
	"github.com/chatdb/chatdb/internal/schema"
)

type Request struct {
	UserInput      string `json:"user_input"`
	DBName         string `json:"db_name"`
	Collection     string `json:"collection,omitempty"`
	JoinCollection string `json:"join_collection,omitempty"`
}

// Response carries exactly one of Schema, Query or Modify, selected by Kind.
type Response struct {
	Kind   intent.Kind
	Schema *SchemaResponse
	Query  *QueryResponse
	Modify *ModifyResponse
}

// Body returns the payload written back to callers.
func (r Response) Body() any {
	switch r.Kind {
	case intent.KindSchema:
		return r.Schema
	case intent.KindQuery:
		return r.Query
	case intent.KindModify:
		return r.Modify
	default:
		return nil
	}
}

type SchemaResponse struct {
	Type               string                    `json:"type"`
	DB                 string                    `json:"db"`
	Collection         string                    `json:"collection,omitempty"`
	Fields             []string                  `json:"fields,omitzero"`
	FieldTypes         map[string]schema.TypeTag `json:"field_types,omitzero"`
	Samples            []document.Value          `json:"samples,omitzero"`
	Collections        []string                  `json:"collections,omitzero"`
	FieldsByCollection map[string][]string       `json:"fields_by_collection,omitzero"`
}

type QueryResponse struct {
	Result []document.Value `json:"result"`
}

type ModifyResponse struct {
	Type         string           `json:"type"`
	Action       command.Action   `json:"action"`
	Collection   string           `json:"collection"`
	Matched      *int64           `json:"matched,omitempty"`
	Modified     *int64           `json:"modified,omitempty"`
	Deleted      *int64           `json:"deleted,omitempty"`
	InsertedID   *document.Value  `json:"inserted_id,omitempty"`
	InsertedIDs  []document.Value `json:"inserted_ids,omitzero"`
	InsertedData *document.Value  `json:"inserted_data,omitempty"`
	Note         string           `json:"note,omitempty"`
}

func newModifyResponse(collection string, result dispatch.ModifyResult) *ModifyResponse {
	resp := &ModifyResponse{
		Type:        "modify",
		Action:      result.Action,
		Collection:  collection,
		Matched:     result.Matched,
		Modified:    result.Modified,
		Deleted:     result.Deleted,
		InsertedIDs: result.InsertedIDs,
		Note:        result.Note,
	}
	switch result.Action {
	case command.ActionInsertOne:
		resp.InsertedID = &result.InsertedID
		resp.InsertedData = &result.InsertedData
	case command.ActionInsertMany:
		resp.InsertedData = &result.InsertedData
	}
	return resp
}
