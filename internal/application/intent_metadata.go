package application

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/parkadmin/service-payment/internal/domain/booking"
	"github.com/parkadmin/service-payment/internal/domain/discount"
)

// Payment intent metadata keys. The metadata is the only durable record of the
// discount calculation behind a charge.
const (
	metaEntityKind        = "entity_kind"
	metaEntityID          = "entity_id"
	metaEntityTitle       = "entity_title"
	metaCustomerName      = "customer_name"
	metaCustomerEmail     = "customer_email"
	metaCustomerPhone     = "customer_phone"
	metaOriginalAmount    = "original_amount"
	metaFinalAmount       = "final_amount"
	metaDiscountBreakdown = "discount_breakdown"
	metaTotalDiscount     = "total_discount_percentage"
)

var (
	errMissingEntity      = errors.New("payment intent metadata does not name an entity")
	errMalformedBreakdown = errors.New("payment intent discount breakdown is malformed")
)

// intentMetadata is the typed view of the audit trail attached to an intent.
type intentMetadata struct {
	Kind            booking.Kind
	EntityID        int64
	EntityTitle     string
	Customer        booking.Customer
	OriginalCents   int64
	FinalCents      int64
	Breakdown       map[string]float64
	TotalPercentage float64
}

func (m intentMetadata) encode() (map[string]string, error) {
	breakdown, err := json.Marshal(m.Breakdown)
	if err != nil {
		return nil, fmt.Errorf("encode discount breakdown: %w", err)
	}
	md := map[string]string{
		metaEntityKind:        string(m.Kind),
		metaEntityID:          strconv.FormatInt(m.EntityID, 10),
		metaEntityTitle:       m.EntityTitle,
		metaCustomerName:      m.Customer.FullName,
		metaCustomerEmail:     m.Customer.Email,
		metaOriginalAmount:    formatAmount(m.OriginalCents),
		metaFinalAmount:       formatAmount(m.FinalCents),
		metaDiscountBreakdown: string(breakdown),
		metaTotalDiscount:     strconv.FormatFloat(m.TotalPercentage, 'f', -1, 64),
	}
	if m.Customer.Phone != "" {
		md[metaCustomerPhone] = m.Customer.Phone
	}
	return md, nil
}

// decodeIntentMetadata requires the entity reference; amounts and breakdown are
// best effort since they only feed accounting. A breakdown that does not parse
// is reported as errMalformedBreakdown alongside the otherwise usable metadata.
func decodeIntentMetadata(md map[string]string) (intentMetadata, error) {
	kind, err := booking.ParseKind(md[metaEntityKind])
	if err != nil {
		return intentMetadata{}, errMissingEntity
	}
	entityID, err := strconv.ParseInt(md[metaEntityID], 10, 64)
	if err != nil {
		return intentMetadata{}, errMissingEntity
	}

	m := intentMetadata{
		Kind:        kind,
		EntityID:    entityID,
		EntityTitle: md[metaEntityTitle],
		Customer: booking.Customer{
			FullName: md[metaCustomerName],
			Email:    md[metaCustomerEmail],
			Phone:    md[metaCustomerPhone],
		},
		OriginalCents: parseAmount(md[metaOriginalAmount]),
		FinalCents:    parseAmount(md[metaFinalAmount]),
		Breakdown:     map[string]float64{},
	}
	if pct, err := strconv.ParseFloat(md[metaTotalDiscount], 64); err == nil {
		m.TotalPercentage = pct
	}
	if raw := md[metaDiscountBreakdown]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &m.Breakdown); err != nil {
			m.Breakdown = map[string]float64{}
			return m, fmt.Errorf("%w: %v", errMalformedBreakdown, err)
		}
	}
	return m, nil
}

func formatAmount(cents int64) string {
	return strconv.FormatFloat(discount.FromCents(cents), 'f', 2, 64)
}

func parseAmount(s string) int64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return discount.ToCents(v)
}
