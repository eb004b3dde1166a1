package payment

import (
	"strings"

	"github.com/frahmantamala/hyperswitch-gateway/internal/gateway"
)

// toGatewayAddress maps a host address onto the gateway's address shape.
func toGatewayAddress(addr *AddressDTO) *gateway.BillingDetails {
	if addr == nil {
		return nil
	}
	return &gateway.BillingDetails{
		Address: &gateway.Address{
			FirstName: addr.FirstName,
			LastName:  addr.LastName,
			City:      addr.City,
			Country:   strings.ToUpper(addr.CountryCode),
			Line1:     addr.Address1,
			Line2:     addr.Address2,
			Zip:       addr.PostalCode,
			State:     addr.Province,
		},
	}
}

// customerName builds a display name, falling back to the shipping address
// when the customer record carries no name.
func customerName(customer *CustomerDTO, shipping *AddressDTO) string {
	if customer != nil {
		if name := joinName(customer.FirstName, customer.LastName); name != "" {
			return name
		}
	}
	if shipping != nil {
		return joinName(shipping.FirstName, shipping.LastName)
	}
	return ""
}

func joinName(first, last string) string {
	return strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
}

// toGatewayCustomer maps host customer details, using the shipping address
// for the name fallback and the checkout email when the customer has none.
func toGatewayCustomer(customer *CustomerDTO, shipping *AddressDTO, email string) *gateway.CustomerDetails {
	if customer == nil && shipping == nil && email == "" {
		return nil
	}
	details := &gateway.CustomerDetails{
		Name:  customerName(customer, shipping),
		Email: email,
	}
	if customer != nil {
		details.ID = customer.ID
		details.Phone = customer.Phone
		if customer.Email != "" {
			details.Email = customer.Email
		}
	}
	return details
}
