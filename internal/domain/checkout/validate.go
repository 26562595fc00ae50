package checkout

import (
	"strings"
	"time"
)

// DeliveryMethod selects how the order reaches the customer.
type DeliveryMethod string

const (
	DeliveryPickup  DeliveryMethod = "pickup"
	DeliveryCourier DeliveryMethod = "delivery"
)

// PaymentMethod selects how the order is paid.
type PaymentMethod string

const (
	// PaymentCard is processed locally and requires card fields.
	PaymentCard PaymentMethod = "card"
	// PaymentExternal is an external redirect placeholder with no local
	// field requirements.
	PaymentExternal PaymentMethod = "external"
)

// ContactInfo is the customer contact block collected on the delivery step.
type ContactInfo struct {
	Name  string
	Email string
	Phone string
}

// DeliveryInfo is everything the delivery step collects.
type DeliveryInfo struct {
	Contact ContactInfo
	Method  DeliveryMethod
	Address string
	City    string
	Zip     string
}

// PaymentInfo is everything the payment step collects. Card fields are only
// required for PaymentCard.
type PaymentInfo struct {
	Method     PaymentMethod
	CardNumber string
	CardHolder string
	CardExpiry string // MM/YY
	CardCVC    string
	CouponCode string
}

// FieldErrors maps field names to validation messages. Validation failures
// are inline UI state tied 1:1 to the invalid field, not errors; an empty map
// means the step may advance.
type FieldErrors map[string]string

func (fe FieldErrors) add(field, msg string) {
	if _, exists := fe[field]; !exists {
		fe[field] = msg
	}
}

// Valid reports whether no field failed.
func (fe FieldErrors) Valid() bool { return len(fe) == 0 }

// ValidateDelivery checks the delivery step's required fields: contact
// name/email/phone always, address/city/zip only when a courier delivery was
// selected.
func ValidateDelivery(info DeliveryInfo) FieldErrors {
	fe := make(FieldErrors)

	if strings.TrimSpace(info.Contact.Name) == "" {
		fe.add("name", "name is required")
	}
	if strings.TrimSpace(info.Contact.Email) == "" {
		fe.add("email", "email is required")
	} else if !validEmail(info.Contact.Email) {
		fe.add("email", "email is invalid")
	}
	if strings.TrimSpace(info.Contact.Phone) == "" {
		fe.add("phone", "phone is required")
	}

	switch info.Method {
	case DeliveryPickup:
	case DeliveryCourier:
		if strings.TrimSpace(info.Address) == "" {
			fe.add("address", "address is required for delivery")
		}
		if strings.TrimSpace(info.City) == "" {
			fe.add("city", "city is required for delivery")
		}
		if strings.TrimSpace(info.Zip) == "" {
			fe.add("zip", "zip is required for delivery")
		}
	default:
		fe.add("method", "delivery method must be pickup or delivery")
	}

	return fe
}

// ValidatePayment checks the payment step's fields. Non-card methods have no
// local requirements.
func ValidatePayment(info PaymentInfo, now time.Time) FieldErrors {
	fe := make(FieldErrors)

	switch info.Method {
	case PaymentExternal:
		return fe
	case PaymentCard:
	default:
		fe.add("method", "payment method must be card or external")
		return fe
	}

	number := strings.ReplaceAll(strings.ReplaceAll(info.CardNumber, " ", ""), "-", "")
	switch {
	case number == "":
		fe.add("cardNumber", "card number is required")
	case !allDigits(number) || len(number) < 13 || len(number) > 19:
		fe.add("cardNumber", "card number format is invalid")
	case !luhnValid(number):
		fe.add("cardNumber", "card number failed verification")
	}

	if strings.TrimSpace(info.CardHolder) == "" {
		fe.add("cardHolder", "cardholder name is required")
	}

	if month, year, ok := parseExpiry(info.CardExpiry); !ok {
		fe.add("cardExpiry", "expiry must be MM/YY")
	} else if expired(month, year, now) {
		fe.add("cardExpiry", "card is expired")
	}

	if cvc := strings.TrimSpace(info.CardCVC); !allDigits(cvc) || len(cvc) < 3 || len(cvc) > 4 {
		fe.add("cardCVC", "security code is invalid")
	}

	return fe
}

// validEmail applies the same lightweight shape check the storefront form
// does: one "@" with a dot somewhere after it.
func validEmail(email string) bool {
	at := strings.Index(email, "@")
	if at <= 0 || at != strings.LastIndex(email, "@") {
		return false
	}
	domain := email[at+1:]
	dot := strings.Index(domain, ".")
	return dot > 0 && dot < len(domain)-1
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := range len(s) {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// luhnValid implements the standard Luhn checksum over an all-digit string.
func luhnValid(number string) bool {
	sum := 0
	double := false
	for i := len(number) - 1; i >= 0; i-- {
		d := int(number[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

func parseExpiry(s string) (month, year int, ok bool) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return 0, 0, false
	}
	if !allDigits(parts[0]) || !allDigits(parts[1]) {
		return 0, 0, false
	}
	month = int(parts[0][0]-'0')*10 + int(parts[0][1]-'0')
	year = 2000 + int(parts[1][0]-'0')*10 + int(parts[1][1]-'0')
	if month < 1 || month > 12 {
		return 0, 0, false
	}
	return month, year, true
}

// expired reports whether the card expiry (valid through the end of its
// month) is in the past.
func expired(month, year int, now time.Time) bool {
	endOfMonth := time.Date(year, time.Month(month)+1, 1, 0, 0, 0, 0, time.UTC)
	return !now.Before(endOfMonth)
}
