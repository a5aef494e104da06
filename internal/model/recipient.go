// internal/model/recipient.go
package model

type DeliveryStatus string

const (
	DeliveryPending DeliveryStatus = "pending"
	DeliverySent    DeliveryStatus = "sent"
	DeliveryFailed  DeliveryStatus = "failed"
)

type Recipient struct {
	Number         string         `json:"number"`
	DeliveryStatus DeliveryStatus `json:"delivery_status"`
}
