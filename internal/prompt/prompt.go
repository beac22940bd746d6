// Package prompt renders the instructions sent to the language model.
package prompt

import (
	"fmt"
	"strings"

	"github.com/chatdb/chatdb/internal/schema"
)

// Prompt is one system/user message pair.
type Prompt struct {
	System string
	User   string
}

const jsonOnlySystem = "You are a MongoDB expert. Each request carries the collections of one database, " +
	"their inferred field types and a natural language instruction. " +
	"Return ONLY a single strict JSON object. No markdown, no explanation, no comments."

// SchemaIntent asks the model to sub-classify a schema question.
// defaultLimit is the sample count named when the question gives none.
func SchemaIntent(userInput string, defaultLimit int) Prompt {
	if defaultLimit <= 0 {
		defaultLimit = DefaultSampleLimit
	}
	user := fmt.Sprintf(
		"Classify this MongoDB schema question into exactly ONE intent:\n"+
			"- list_collections (e.g. \"show tables\", \"which collections exist\")\n"+
			"- get_fields (e.g. \"what fields does orders have?\")\n"+
			"- get_samples (e.g. \"show 5 records from users\")\n"+
			"- get_schema_for_all (e.g. \"show every schema\")\n\n"+
			"Rules:\n"+
			"- Pick the most specific intent.\n"+
			"- Include \"collection\" only when a collection is named explicitly and the intent is get_fields or get_samples.\n"+
			"- For get_samples only, set \"limit\" to the number requested; default to %d when none is given.\n\n"+
			"Return strict JSON:\n"+
			"{\"intent\": \"<intent>\", \"collection\": \"<name>\", \"limit\": <n>}\n\n"+
			"Question:\n%s",
		defaultLimit,
		strings.TrimSpace(userInput),
	)
	return Prompt{
		System: "You are a JSON-only assistant that classifies database schema questions.",
		User:   user,
	}
}

// DefaultSampleLimit is the number of sample documents returned when a
// request does not name a count.
const DefaultSampleLimit = 3

// Query asks for a find or aggregate command grounded in the schema.
func Query(userInput string, descriptors map[string]*schema.Descriptor, relationships []schema.Relationship) Prompt {
	user := "# MongoDB query translator\n" +
		"Rules:\n" +
		"- Return only valid JSON, directly usable with a MongoDB driver.\n" +
		"- Do NOT use Mongo shell syntax (no db.collection.find(), no ObjectId(), no ISODate()).\n" +
		"- Reference identifiers as {\"$oid\": \"<24 hex chars>\"}.\n" +
		"- To project a nested field like \"a.b\", never mix \"a\": 0 with \"a.b\": 1. Alias it instead " +
		"(\"b\": \"$a.b\") and exclude the parent or \"_id\".\n" +
		"- \"sort\" is an object of field to 1 or -1, applied in key order.\n\n" +
		"Output format:\n" +
		"{\n" +
		"  \"collection\": \"<collection>\",\n" +
		"  \"command\": {\n" +
		"    \"find\": {\"filter\": {...}, \"projection\": {...}, \"sort\": {...}, \"limit\": <n>, \"skip\": <n>}\n" +
		"    OR\n" +
		"    \"aggregate\": [{\"$match\": {...}}, {\"$lookup\": {\"from\": \"<collection>\", \"localField\": \"<field>\", " +
		"\"foreignField\": \"<field>\", \"as\": \"<field>\"}}, {\"$group\": {...}}, {\"$sort\": {...}}, {\"$limit\": <n>}]\n" +
		"  }\n" +
		"}\n\n" +
		"Available collections and fields:\n" +
		FormatSchema(descriptors, relationships) + "\n" +
		"User query:\n\"\"\"" + strings.TrimSpace(userInput) + "\"\"\""
	return Prompt{System: jsonOnlySystem, User: user}
}

// Modify asks for a single insert, update or delete command.
func Modify(userInput string, descriptors map[string]*schema.Descriptor, relationships []schema.Relationship) Prompt {
	user := "# MongoDB modification translator\n" +
		"Convert the data modification request into one strict JSON command.\n\n" +
		"Output format:\n" +
		"{\n" +
		"  \"collection\": \"<collection>\",\n" +
		"  \"action\": \"insertOne\" | \"insertMany\" | \"updateOne\" | \"updateMany\" | \"deleteOne\" | \"deleteMany\",\n" +
		"  \"data\": {...} | [{...}],             (insertOne / insertMany)\n" +
		"  \"filter\": {...},                     (update* / delete*)\n" +
		"  \"update\": {\"$set\": {...}, \"$inc\": {...}, \"$unset\": {...}}   (update* only)\n" +
		"}\n\n" +
		"Available collections and fields:\n" +
		FormatSchema(descriptors, relationships) + "\n" +
		"Rules:\n" +
		"- Use insertMany, updateMany or deleteMany for batch changes.\n" +
		"- Only use fields that exist in the schema.\n" +
		"- Every deleteOne or deleteMany MUST carry a non-empty filter.\n" +
		"- Reference identifiers as {\"$oid\": \"<24 hex chars>\"}.\n" +
		"- Return ONLY the JSON object. No markdown, no prose.\n\n" +
		"User input:\n\"\"\"" + strings.TrimSpace(userInput) + "\"\"\""
	return Prompt{System: jsonOnlySystem, User: user}
}

// OracleCheck asks for a fixed JSON payload to confirm the model answers.
func OracleCheck() Prompt {
	return Prompt{
		System: jsonOnlySystem,
		User: "Return exactly this JSON and nothing else:\n" +
			"{\"message\": \"oracle is alive\"}\n" +
			"No markdown, no explanation.",
	}
}

// FormatSchema renders descriptors as "Collection:" blocks with one
// "- field: type" line per path, followed by relationship hints.
func FormatSchema(descriptors map[string]*schema.Descriptor, relationships []schema.Relationship) string {
	var b strings.Builder
	for _, name := range schema.Names(descriptors) {
		descriptor := descriptors[name]
		fmt.Fprintf(&b, "Collection: %s\n", name)
		for _, field := range descriptor.FieldNames() {
			fmt.Fprintf(&b, "- %s: %s\n", field, descriptor.Fields[field])
		}
		if len(descriptor.Indexes) > 0 {
			fmt.Fprintf(&b, "Indexes: %s\n", strings.Join(descriptor.Indexes, ", "))
		}
	}
	if len(relationships) > 0 {
		b.WriteString("Relationships:\n")
		for _, rel := range relationships {
			fmt.Fprintf(&b, "- %s -> %s\n", rel.From, rel.To)
		}
	}
	return b.String()
}
