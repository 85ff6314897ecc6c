package schema

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mdblp/health-tracker/common"
)

// DefaultAppID namespaces every user tree in the document database
const DefaultAppID = "health-tracker-standalone"

type Collection string

const (
	HealthMetrics Collection = "health_metrics"
	Appointments  Collection = "appointments"
	Medications   Collection = "medications"
)

var Collections = []Collection{HealthMetrics, Appointments, Medications}

func (c Collection) Valid() bool {
	switch c {
	case HealthMetrics, Appointments, Medications:
		return true
	}
	return false
}

type Direction int

const (
	Ascending  Direction = 1
	Descending Direction = -1
)

// Order is the server side ordering of a subscription or a one-shot query
type Order struct {
	Field     string
	Direction Direction
}

func Asc(field string) Order  { return Order{Field: field, Direction: Ascending} }
func Desc(field string) Order { return Order{Field: field, Direction: Descending} }

func (o Order) String() string {
	if o.Direction == Descending {
		return o.Field + " desc"
	}
	return o.Field + " asc"
}

// Scope addresses one collection of one user
type Scope struct {
	AppID      string
	UserID     string
	Collection Collection
}

func NewScope(appID string, userID string, collection Collection) Scope {
	if appID == "" {
		appID = DefaultAppID
	}
	return Scope{AppID: appID, UserID: userID, Collection: collection}
}

// Path is the hierarchical location of the collection: artifacts/{app}/users/{uid}/{collection}
func (s Scope) Path() string {
	return fmt.Sprintf("artifacts/%s/users/%s/%s", s.AppID, s.UserID, s.Collection)
}

func (s Scope) Validate() error {
	if s.UserID == "" {
		return fmt.Errorf("scope %s: empty user id", s.Collection)
	}
	if !s.Collection.Valid() {
		return fmt.Errorf("unknown collection %q", s.Collection)
	}
	return nil
}

// Document is the backend agnostic shape of a stored record
type Document struct {
	ID     string
	Fields map[string]interface{}
}

func (d Document) Get(field string) interface{} {
	if d.Fields == nil {
		return nil
	}
	return d.Fields[field]
}

type serverTimestamp struct{}

func (serverTimestamp) String() string { return "ServerTimestamp" }

// ServerTimestamp is replaced by the database clock when the document is written
var ServerTimestamp interface{} = serverTimestamp{}

func IsServerTimestamp(v interface{}) bool {
	_, ok := v.(serverTimestamp)
	return ok
}

// ResolveServerTimestamps returns a copy of fields where every ServerTimestamp is set to now
func ResolveServerTimestamps(fields map[string]interface{}, now time.Time) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		if IsServerTimestamp(v) {
			out[k] = now
			continue
		}
		out[k] = v
	}
	return out
}

// SortDocuments orders docs in place, keeping the incoming order for ties
func SortDocuments(docs []Document, order Order) {
	sort.SliceStable(docs, func(i, j int) bool {
		c := CompareValues(docs[i].Get(order.Field), docs[j].Get(order.Field))
		if order.Direction == Descending {
			return c > 0
		}
		return c < 0
	})
}

// CompareValues orders field values: absent first, then numbers, strings, times
func CompareValues(a interface{}, b interface{}) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return ra - rb
	}
	switch ra {
	case 1:
		fa, _ := ToFloat(a)
		fb, _ := ToFloat(b)
		return cmpFloat(fa, fb)
	case 2:
		return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
	case 3:
		ta, _ := ToTime(a)
		tb, _ := ToTime(b)
		return ta.Compare(tb)
	}
	return 0
}

func rank(v interface{}) int {
	if v == nil {
		return 0
	}
	if _, ok := v.(string); ok {
		if _, isTime := ToTime(v); isTime {
			return 3
		}
		return 2
	}
	if _, ok := ToTime(v); ok {
		return 3
	}
	if _, ok := ToFloat(v); ok {
		return 1
	}
	return 2
}

func cmpFloat(a float64, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// ToTime reads a stored time value: time.Time, *time.Time or an RFC 3339 string
func ToTime(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, !t.IsZero()
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, !t.IsZero()
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		return parsed, err == nil
	}
	return time.Time{}, false
}

// ToTimePtr is ToTime returning nil when absent
func ToTimePtr(v interface{}) *time.Time {
	t, ok := ToTime(v)
	if !ok {
		return nil
	}
	return &t
}

// ToFloat reads the numeric encodings the backends produce
func ToFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case interface{ Float64() (float64, error) }:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// ToInt reads an integral number, rejecting fractional values
func ToInt(v interface{}) (int, bool) {
	f, ok := ToFloat(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

// ToString renders strings as is and anything else with fmt
func ToString(v interface{}) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	case int:
		return strconv.Itoa(s)
	}
	return fmt.Sprint(v)
}

// ParsePositiveInt parses a form input as a base-10 integer greater than zero
func ParsePositiveInt(field string, raw string) (int, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, common.NewValidationError(field, common.EmptyField)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, common.NewValidationError(field, common.NotANumber)
	}
	if n <= 0 {
		return 0, common.NewValidationError(field, common.NotPositive)
	}
	return n, nil
}

// RequireText rejects blank form inputs
func RequireText(field string, raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", common.NewValidationError(field, common.EmptyField)
	}
	return s, nil
}
