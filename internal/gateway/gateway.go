// internal/gateway/gateway.go
package gateway

import "context"

// Account is one sending account registered with the messaging gateway.
type Account struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Connected bool   `json:"connected"`
}

// Client isolates all calls to the external messaging provider. An empty
// account list is a valid result and means "no capacity right now", not an
// error. SendText reports every transport or protocol failure as *Error;
// the dispatcher only distinguishes success from failure.
type Client interface {
	ListActiveAccounts(ctx context.Context) ([]Account, error)
	SendText(ctx context.Context, accountID, recipient, body string) error
}
