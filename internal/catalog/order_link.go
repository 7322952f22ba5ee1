package catalog

import (
	"net/url"
	"strconv"
	"strings"

	"storefront-catalog-service/internal/domain"
)

// Translator resolves a dotted message key for a locale.
type Translator interface {
	Translate(key string, locale domain.Locale) string
}

// FormatPrice renders a price the way the storefront displays it, e.g. "25000F".
func FormatPrice(price float64) string {
	return strconv.FormatFloat(price, 'f', -1, 64) + "F"
}

// OrderMessage builds the pre-filled WhatsApp order message for p.
func OrderMessage(tr Translator, locale domain.Locale, p domain.Product, productURL string) string {
	msg := tr.Translate("products.whatsapp.message", locale)
	msg = strings.Replace(msg, "{name}", p.Name, 1)
	if p.Description != "" {
		msg = strings.Replace(msg, "{description}", p.Description, 1)
	} else {
		msg = strings.Replace(msg, " {description}", "", 1)
		msg = strings.Replace(msg, "{description}", "", 1)
	}
	msg = strings.Replace(msg, "{price}", FormatPrice(p.Price), 1)
	if productURL != "" {
		msg += "\n\n" + tr.Translate("products.whatsapp.productLink", locale) + ": " + productURL
	}
	return msg
}

// WhatsAppLink returns the click-to-chat URL for phone with message pre-filled.
func WhatsAppLink(phone, message string) string {
	q := url.Values{}
	q.Set("phone", phone)
	if message != "" {
		q.Set("text", message)
	}
	return "https://api.whatsapp.com/send?" + q.Encode()
}
