package twikey

import (
	"net/url"
	"strconv"
	"strings"
)

// Customer identifies the local party in invite, sign and invoice payloads.
// Number is the local party identifier and doubles as the remote
// customerNumber, which is how feed documents are linked back.
type Customer struct {
	Number      int64
	Email       string
	Name        string
	CompanyName string
	VAT         string
	Address     string
	City        string
	Zip         string
	Country     string
	Mobile      string
	Locale      string
}

// Values renders the customer as the flat form fields the remote expects.
// Companies send companyName and coc; persons split Name on the first
// space into firstname and lastname. Email is only sent when present.
func (c Customer) Values() url.Values {
	v := url.Values{}
	v.Set("customerNumber", strconv.FormatInt(c.Number, 10))
	v.Set("l", c.locale())
	v.Set("address", c.Address)
	v.Set("city", c.City)
	v.Set("zip", c.Zip)
	v.Set("country", c.Country)
	if c.Mobile != "" {
		v.Set("mobile", c.Mobile)
	}
	if c.Email != "" {
		v.Set("email", c.Email)
	}
	if c.CompanyName != "" {
		v.Set("companyName", c.CompanyName)
		v.Set("coc", c.VAT)
		return v
	}
	first, last := splitName(c.Name)
	v.Set("firstname", first)
	if last != "" {
		v.Set("lastname", last)
	}
	return v
}

// JSON renders the customer as the nested object the invoice create
// endpoint expects.
func (c Customer) JSON() map[string]any {
	m := map[string]any{
		"customerNumber": strconv.FormatInt(c.Number, 10),
		"locale":         c.locale(),
		"address":        c.Address,
		"city":           c.City,
		"zip":            c.Zip,
		"country":        c.Country,
		"mobile":         c.Mobile,
	}
	if c.Email != "" {
		m["email"] = c.Email
	}
	if c.CompanyName != "" {
		m["companyName"] = c.CompanyName
		m["coc"] = c.VAT
		return m
	}
	first, last := splitName(c.Name)
	m["firstname"] = first
	if last != "" {
		m["lastname"] = last
	}
	return m
}

func (c Customer) locale() string {
	if c.Locale == "" {
		return "en"
	}
	return c.Locale
}

func splitName(name string) (first, last string) {
	parts := strings.Fields(name)
	if len(parts) == 0 {
		return "", ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}
