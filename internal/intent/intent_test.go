package intent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/chatdb/chatdb/internal/command"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		text string
		want Kind
	}{
		{"Add a field called nickname to the users collection", KindModify},
		{"Update the schema of orders", KindModify},
		{"delete all inactive users", KindModify},
		{"Show my account settings", KindModify},
		{"find users where the schema is v2", KindQuery},
		{"What fields are in the orders collection?", KindSchema},
		{"show me some sample documents from users", KindSchema},
		{"Which TABLES do we have", KindSchema},
		{"list the top 5 customers by spend", KindQuery},
		{"average order amount per user", KindQuery},
		{"what is the newest order", KindQuery},
		{"How many users signed up in March", KindQuery},
		{"  WHAT ARE the orders from Bob  ", KindQuery},
		{"hello there", KindUnknown},
		{"", KindUnknown},
	}
	for _, tt := range tests {
		if got := Classify(tt.text); got != tt.want {
			t.Fatalf("Classify(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestClassifyModifyWinsOverSchema(t *testing.T) {
	if got := Classify("insert a sample document into the collection"); got != KindModify {
		t.Fatalf("Classify() = %q, want modify", got)
	}
}

func TestClassifyFindWinsOverSchema(t *testing.T) {
	if got := Classify("find the schema version"); got != KindQuery {
		t.Fatalf("Classify() = %q, want query", got)
	}
}

type fakeOracle struct {
	reply string
	err   error
	user  string
}

func (f *fakeOracle) Complete(_ context.Context, _ string, user string) (string, error) {
	f.user = user
	return f.reply, f.err
}

func TestSchemaClassifierDefaultsSampleLimit(t *testing.T) {
	oracle := &fakeOracle{reply: `{"intent": "get_samples", "collection": "orders"}`}
	got, err := SchemaClassifier{Oracle: oracle, DefaultLimit: 3, MaxLimit: 50}.Classify(context.Background(), "show me samples of orders", "")
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if got.Action != GetSamples || got.Collection != "orders" || got.Limit != 3 {
		t.Fatalf("Classify() = %+v", got)
	}
	if !strings.Contains(oracle.user, "show me samples of orders") {
		t.Fatalf("prompt did not carry user input")
	}
}

func TestSchemaClassifierCapsLimitAndHonoursHint(t *testing.T) {
	oracle := &fakeOracle{reply: `{"intent": "get_samples", "collection": "orderz", "limit": 500}`}
	got, err := SchemaClassifier{Oracle: oracle, DefaultLimit: 3, MaxLimit: 50}.Classify(context.Background(), "show 500 samples", "orders")
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if got.Collection != "orders" || got.Limit != 50 {
		t.Fatalf("Classify() = %+v", got)
	}
}

func TestSchemaClassifierLimitOnlyForSamples(t *testing.T) {
	oracle := &fakeOracle{reply: `{"intent": "get_fields", "collection": "users", "limit": 4}`}
	got, err := SchemaClassifier{Oracle: oracle}.Classify(context.Background(), "fields of users", "")
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if got.Action != GetFields || got.Limit != 0 {
		t.Fatalf("Classify() = %+v", got)
	}
}

func TestSchemaClassifierErrors(t *testing.T) {
	cause := errors.New("oracle down")
	if _, err := (SchemaClassifier{Oracle: &fakeOracle{err: cause}}).Classify(context.Background(), "x", ""); !errors.Is(err, cause) {
		t.Fatalf("Classify() error = %v, want wrapped oracle error", err)
	}

	var malformed *command.MalformedResponseError
	if _, err := (SchemaClassifier{Oracle: &fakeOracle{reply: "nope"}}).Classify(context.Background(), "x", ""); !errors.As(err, &malformed) {
		t.Fatalf("Classify() error = %v, want *MalformedResponseError", err)
	}

	var unsupported *UnsupportedSchemaRequestError
	if _, err := (SchemaClassifier{Oracle: &fakeOracle{reply: `{"intent": "drop_everything"}`}}).Classify(context.Background(), "x", ""); !errors.As(err, &unsupported) {
		t.Fatalf("Classify() error = %v, want *UnsupportedSchemaRequestError", err)
	}
}
