package models

// PaymentType is the payment classification of a content item.
type PaymentType string

const (
	PaymentFree PaymentType = "free"
	PaymentPaid PaymentType = "paid"
)

// ContentType discriminates the two kinds of gated content.
type ContentType string

const (
	ContentArticle ContentType = "article"
	ContentMedia   ContentType = "media"
)

// ContentRef identifies a single content item across both content tables.
type ContentRef struct {
	Type ContentType
	ID   uint
}

// ContentInfo is the slice of a content item the access gate needs: who owns
// it and whether it is paid.
type ContentInfo struct {
	Ref     ContentRef
	OwnerID uint
	Payment PaymentType
	Price   *float64
}

// IsPaid reports whether viewing the item may require an access grant.
func (c ContentInfo) IsPaid() bool {
	return c.Payment == PaymentPaid
}
