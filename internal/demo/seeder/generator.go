package seeder

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/chatdb/chatdb/internal/document"
)

var (
	firstNames = []string{"Ada", "Grace", "Alan", "Barbara", "Edsger", "Frances", "Ken", "Radia", "Dennis", "Margaret"}
	lastNames  = []string{"Lovelace", "Hopper", "Turing", "Liskov", "Dijkstra", "Allen", "Thompson", "Perlman", "Ritchie", "Hamilton"}
	cities     = []string{"Berlin", "London", "New York", "Tokyo", "Sao Paulo", "Bangalore"}
	statuses   = []string{"pending", "paid", "shipped", "delivered", "cancelled"}
	products   = []string{"keyboard", "monitor", "mouse", "laptop", "headset", "webcam", "dock"}
	interests  = []string{"databases", "compilers", "networking", "security", "graphics", "robotics"}
)

// Generator produces a reproducible demo data set for a given seed. Object
// identifiers are drawn from the same source so references stay stable
// between runs.
type Generator struct {
	rnd   *rand.Rand
	epoch time.Time
	users int
	order int
}

func NewGenerator(seed int64) *Generator {
	return &Generator{
		rnd:   rand.New(rand.NewSource(seed)),
		epoch: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (g *Generator) NextUser() document.Value {
	g.users++
	first := pickOne(g.rnd, firstNames)
	last := pickOne(g.rnd, lastNames)
	city := pickOne(g.rnd, cities)

	fields := []document.Field{
		document.F("_id", document.ObjectID(g.nextID())),
		document.F("name", document.String(first+" "+last)),
		document.F("email", document.String(fmt.Sprintf("%s.%s%d@example.com", strings.ToLower(first), strings.ToLower(last), g.users))),
		document.F("age", document.Int(int64(18+g.rnd.Intn(60)))),
		document.F("address", document.Object(
			document.F("city", document.String(city)),
			document.F("zip", document.String(fmt.Sprintf("%05d", g.rnd.Intn(100000)))),
		)),
		document.F("interests", document.Array(
			document.String(pickOne(g.rnd, interests)),
			document.String(pickOne(g.rnd, interests)),
		)),
		document.F("active", document.Bool(g.rnd.Intn(10) < 8)),
		document.F("signed_up_at", document.String(g.timestamp().Format(time.RFC3339))),
	}
	// Some users never set a phone so schema sampling sees an optional field.
	if g.rnd.Intn(3) == 0 {
		fields = append(fields, document.F("phone", document.Null()))
	} else {
		fields = append(fields, document.F("phone", document.String(fmt.Sprintf("+1-555-%04d", g.rnd.Intn(10000)))))
	}
	return document.Object(fields...)
}

// NextOrder references userID through the user_id field.
func (g *Generator) NextOrder(userID bson.ObjectID) document.Value {
	g.order++
	count := 1 + g.rnd.Intn(3)
	items := make([]document.Value, 0, count)
	total := 0.0
	for i := 0; i < count; i++ {
		qty := 1 + g.rnd.Intn(4)
		price := round2(5 + g.rnd.Float64()*495)
		total += float64(qty) * price
		items = append(items, document.Object(
			document.F("product", document.String(pickOne(g.rnd, products))),
			document.F("qty", document.Int(int64(qty))),
			document.F("price", document.Double(price)),
		))
	}

	return document.Object(
		document.F("_id", document.ObjectID(g.nextID())),
		document.F("order_number", document.Int(int64(g.order))),
		document.F("user_id", document.ObjectID(userID)),
		document.F("items", document.Array(items...)),
		document.F("total", document.Double(round2(total))),
		document.F("status", document.String(pickOne(g.rnd, statuses))),
		document.F("created_at", document.String(g.timestamp().Format(time.RFC3339))),
	)
}

func (g *Generator) nextID() bson.ObjectID {
	var id bson.ObjectID
	for i := range id {
		id[i] = byte(g.rnd.Intn(256))
	}
	return id
}

func (g *Generator) timestamp() time.Time {
	return g.epoch.Add(time.Duration(g.rnd.Int63n(int64(365 * 24 * time.Hour)))).Truncate(time.Second)
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}

func pickOne(r *rand.Rand, values []string) string {
	return values[r.Intn(len(values))]
}
