package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/emberroast/brewcart/internal/domain/checkout"
)

func (h *Handler) getCheckout(w http.ResponseWriter, r *http.Request) {
	s := h.resolveSession(w, r)
	h.writeCheckout(w, s.Wizard())
}

func (h *Handler) proceedCheckout(w http.ResponseWriter, r *http.Request) {
	s := h.resolveSession(w, r)
	wiz := s.Wizard()
	if err := wiz.ProceedToDelivery(); err != nil {
		respondError(w, r, err)
		return
	}
	h.writeCheckout(w, wiz)
}

func (h *Handler) submitDelivery(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		respondError(w, r, errors.Wrap(errMalformedBody, err.Error()))
		return
	}
	info, err := decodeDeliveryInfo(body)
	if err != nil {
		respondError(w, r, err)
		return
	}

	s := h.resolveSession(w, r)
	wiz := s.Wizard()
	fe, err := wiz.SubmitDelivery(info)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if !fe.Valid() {
		writeFieldErrors(w, fe)
		return
	}
	h.writeCheckout(w, wiz)
}

func (h *Handler) submitPayment(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		respondError(w, r, errors.Wrap(errMalformedBody, err.Error()))
		return
	}
	info, err := decodePaymentInfo(body)
	if err != nil {
		respondError(w, r, err)
		return
	}

	s := h.resolveSession(w, r)
	wiz := s.Wizard()
	fe, err := wiz.SubmitPayment(r.Context(), info)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if !fe.Valid() {
		writeFieldErrors(w, fe)
		return
	}
	// Declined and confirmed outcomes both land here; the stage tells them
	// apart.
	h.writeCheckout(w, wiz)
}

func (h *Handler) backCheckout(w http.ResponseWriter, r *http.Request) {
	s := h.resolveSession(w, r)
	wiz := s.Wizard()
	if err := wiz.Back(); err != nil {
		respondError(w, r, err)
		return
	}
	h.writeCheckout(w, wiz)
}

func (h *Handler) retryCheckout(w http.ResponseWriter, r *http.Request) {
	s := h.resolveSession(w, r)
	wiz := s.Wizard()
	if err := wiz.Retry(); err != nil {
		respondError(w, r, err)
		return
	}
	h.writeCheckout(w, wiz)
}

// resetCheckout discards the session's wizard and starts a fresh one in
// Review. Used to begin a new checkout after a confirmed order.
func (h *Handler) resetCheckout(w http.ResponseWriter, r *http.Request) {
	s := h.resolveSession(w, r)
	h.writeCheckout(w, s.ResetWizard())
}

func (h *Handler) writeCheckout(w http.ResponseWriter, wiz *checkout.Wizard) {
	stage := wiz.Stage()

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("stage")
	e.Str(string(stage))
	if d := wiz.Delivery(); d.Contact.Name != "" || d.Method != "" {
		e.FieldStart("delivery")
		e.ObjStart()
		e.FieldStart("name")
		e.Str(d.Contact.Name)
		e.FieldStart("email")
		e.Str(d.Contact.Email)
		e.FieldStart("phone")
		e.Str(d.Contact.Phone)
		e.FieldStart("method")
		e.Str(string(d.Method))
		if d.Method == checkout.DeliveryCourier {
			e.FieldStart("address")
			e.Str(d.Address)
			e.FieldStart("city")
			e.Str(d.City)
			e.FieldStart("zip")
			e.Str(d.Zip)
		}
		e.ObjEnd()
	}
	if reason := wiz.DeclineReason(); stage == checkout.StageDeclined && reason != "" {
		e.FieldStart("declineReason")
		e.Str(reason)
	}
	if orderID := wiz.OrderID(); orderID != "" {
		e.FieldStart("orderId")
		e.Str(orderID)
	}
	e.ObjEnd()
	writeJSON(w, http.StatusOK, &e)
}

func decodeDeliveryInfo(body []byte) (checkout.DeliveryInfo, error) {
	var info checkout.DeliveryInfo
	d := jx.DecodeBytes(body)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var target *string
		switch key {
		case "name":
			target = &info.Contact.Name
		case "email":
			target = &info.Contact.Email
		case "phone":
			target = &info.Contact.Phone
		case "method":
			v, err := d.Str()
			info.Method = checkout.DeliveryMethod(v)
			return err
		case "address":
			target = &info.Address
		case "city":
			target = &info.City
		case "zip":
			target = &info.Zip
		default:
			return d.Skip()
		}
		v, err := d.Str()
		*target = v
		return err
	})
	if err != nil {
		return checkout.DeliveryInfo{}, errors.Wrap(errMalformedBody, err.Error())
	}
	return info, nil
}

func decodePaymentInfo(body []byte) (checkout.PaymentInfo, error) {
	var info checkout.PaymentInfo
	d := jx.DecodeBytes(body)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var target *string
		switch key {
		case "method":
			v, err := d.Str()
			info.Method = checkout.PaymentMethod(v)
			return err
		case "cardNumber":
			target = &info.CardNumber
		case "cardHolder":
			target = &info.CardHolder
		case "cardExpiry":
			target = &info.CardExpiry
		case "cardCvc":
			target = &info.CardCVC
		case "couponCode":
			target = &info.CouponCode
		default:
			return d.Skip()
		}
		v, err := d.Str()
		*target = v
		return err
	})
	if err != nil {
		return checkout.PaymentInfo{}, errors.Wrap(errMalformedBody, err.Error())
	}
	return info, nil
}
