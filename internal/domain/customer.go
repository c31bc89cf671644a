package domain

import "time"

// ProviderCustomer links a platform user to the customer record a payment
// provider knows them by, so an inbound webhook keyed on a provider id (a
// Stripe customer, a PayPal billing agreement) can be resolved back to a
// user, and so a checkout-session deferral can find or create that mirror
// up front (§4.8, §12).
type ProviderCustomer struct {
	ID                 string    `bson:"_id"`
	UserID             string    `bson:"user_id"`
	Provider           Provider  `bson:"provider"`
	ExternalCustomerID string    `bson:"external_customer_id"`
	CreatedAt          time.Time `bson:"created_at"`
}
