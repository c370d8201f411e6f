package entity

import "strings"

// Kind selects a record schema, its index and its tuned model.
type Kind string

const (
	KindProduct Kind = "product"
	KindUser    Kind = "user"
)

// Field is one rendered `name: value` pair of a record.
type Field struct {
	Name  string
	Value string
}

// Record is the common view over the typed record schemas.
type Record interface {
	Kind() Kind
	Name() string
	// Fields returns the schema fields in their fixed render order.
	Fields() []Field
	// EmbeddingText is the composite text indexed for retrieval.
	EmbeddingText() string
	// Dialogue returns the optional training pair attached to the record.
	Dialogue() (question string, answer *string)
}

// ProductRecord is one entry of the product catalog.
type ProductRecord struct {
	ProductName Scalar `json:"product_name" validate:"required"`
	Price       Scalar `json:"price"`
	Warranty    Scalar `json:"warranty"`
	Refundable  Scalar `json:"refundable"`
	Inventory   Scalar `json:"inventory"`
	Dimensions  Scalar `json:"dimensions"`
	Reviews     Scalar `json:"reviews"`
	Description Scalar `json:"description"`

	UserQuestion  Scalar  `json:"user_question,omitempty"`
	SupportAnswer *Scalar `json:"support_answer,omitempty"`
}

func (p ProductRecord) Kind() Kind   { return KindProduct }
func (p ProductRecord) Name() string { return p.ProductName.String() }

func (p ProductRecord) Fields() []Field {
	return []Field{
		{"product_name", p.ProductName.String()},
		{"price", p.Price.String()},
		{"warranty", p.Warranty.String()},
		{"refundable", p.Refundable.String()},
		{"inventory", p.Inventory.String()},
		{"dimensions", p.Dimensions.String()},
		{"reviews", p.Reviews.String()},
		{"description", p.Description.String()},
	}
}

func (p ProductRecord) EmbeddingText() string {
	return p.ProductName.String() + " " + p.Description.String()
}

func (p ProductRecord) Dialogue() (string, *string) {
	return p.UserQuestion.String(), answerText(p.SupportAnswer)
}

// Clone returns a copy that shares no memory with p.
func (p ProductRecord) Clone() ProductRecord {
	p.SupportAnswer = cloneScalar(p.SupportAnswer)
	return p
}

// UserRecord is one order placed by the signed-in user.
type UserRecord struct {
	ProductName  Scalar `json:"product_name" validate:"required"`
	Price        Scalar `json:"price"`
	DeliveryDate Scalar `json:"delivery_date"`
	OrderStatus  Scalar `json:"order_status"`
	Location     Scalar `json:"location"`
	Refundable   Scalar `json:"refundable"`

	UserQuestion  Scalar  `json:"user_question,omitempty"`
	SupportAnswer *Scalar `json:"support_answer,omitempty"`
}

func (u UserRecord) Kind() Kind   { return KindUser }
func (u UserRecord) Name() string { return u.ProductName.String() }

func (u UserRecord) Fields() []Field {
	return []Field{
		{"product_name", u.ProductName.String()},
		{"price", u.Price.String()},
		{"delivery_date", u.DeliveryDate.String()},
		{"order_status", u.OrderStatus.String()},
		{"location", u.Location.String()},
		{"refundable", u.Refundable.String()},
	}
}

func (u UserRecord) EmbeddingText() string { return u.ProductName.String() }

func (u UserRecord) Dialogue() (string, *string) {
	return u.UserQuestion.String(), answerText(u.SupportAnswer)
}

// Clone returns a copy that shares no memory with u.
func (u UserRecord) Clone() UserRecord {
	u.SupportAnswer = cloneScalar(u.SupportAnswer)
	return u
}

// Owned is a record kind that can hand out copies independent of the
// collection it was read from.
type Owned[R any] interface {
	Record
	Clone() R
}

func answerText(s *Scalar) *string {
	if s == nil {
		return nil
	}
	text := s.String()
	return &text
}

func cloneScalar(s *Scalar) *Scalar {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// PageSlug converts a product name to the page identifier the UI links to.
func PageSlug(name string) string {
	return strings.ReplaceAll(name, " ", "_")
}
