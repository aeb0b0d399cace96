package engine

import (
	"net/mail"
	"strings"

	"github.com/ttacon/libphonenumber"

	"reunite/internal/demographics"
	"reunite/internal/notify/models"
)

// defaultRegion requires contact numbers to carry a country code.
const defaultRegion = "ZZ"

// route picks a channel and normalized recipient for c. Phone numbers are
// stored in E.164 so the same person reached twice dedupes to one key.
func (e *Engine) route(c demographics.Contact, typ models.Type) (models.Channel, string, bool) {
	phone, phoneOK := normalizePhone(c.Phone, e.region)
	email, emailOK := normalizeEmail(c.Email)

	if typ.DefaultChannel() == models.ChannelEmail && emailOK {
		return models.ChannelEmail, email, true
	}
	switch {
	case phoneOK:
		return models.ChannelSMS, phone, true
	case emailOK:
		return models.ChannelEmail, email, true
	}
	return "", "", false
}

func normalizePhone(raw, region string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	num, err := libphonenumber.Parse(raw, region)
	if err != nil || !libphonenumber.IsValidNumber(num) {
		return "", false
	}
	return libphonenumber.Format(num, libphonenumber.E164), true
}

func normalizeEmail(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	addr, err := mail.ParseAddress(raw)
	if err != nil {
		return "", false
	}
	return strings.ToLower(addr.Address), true
}
