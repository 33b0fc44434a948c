// Package gateway defines the payment/telco collaborator contracts the
// handlers call before booking a ledger transaction, plus an HTTP
// implementation. The ledger engine itself never performs network
// calls.
package gateway

import "context"

// Resolver looks up the account name behind a bank code and number.
type Resolver interface {
	ResolveAccount(ctx context.Context, bankCode, accountNumber string) (string, error)
}

// TransferRecord is the gateway's view of an initiated transfer; its
// Reference becomes the ledger transaction's reference id.
type TransferRecord struct {
	Reference string `json:"reference"`
	Amount    int64  `json:"amount"`
	Status    string `json:"status"`
}

// Transferer initiates an outbound bank transfer.
type Transferer interface {
	InitiateTransfer(ctx context.Context, amount int64, recipientRef, reason string) (*TransferRecord, error)
}

// AirtimeDispatcher pushes an airtime-to-cash request to the telco
// side; the webhook on callbackURL later confirms it.
type AirtimeDispatcher interface {
	DispatchAirtime(ctx context.Context, amount int64, network, phone, ref, callbackURL string) error
}

// bankCodes maps bank names to their gateway codes.
var bankCodes = map[string]string{
	"Access Bank Nigeria":              "044",
	"Ecobank Nigeria PLC":              "050",
	"Fidelity Bank PLC":                "070",
	"First Bank PLC":                   "011",
	"First City Monument Bank (FCMB)":  "214",
	"GTBank PLC":                       "058",
	"Polaris Bank PLC":                 "076",
	"Providus Bank PLC":                "101",
	"Stanbic IBTC Bank PLC":            "221",
	"Sterling Bank PLC":                "232",
	"Union Bank of Nigeria PLC":        "032",
	"United Bank for Africa PLC (UBA)": "033",
	"Zenith Bank PLC":                  "057",
	"Wema Bank PLC":                    "035",
}

// BankCode returns the gateway code for a bank name.
func BankCode(bankName string) (string, bool) {
	code, ok := bankCodes[bankName]
	return code, ok
}
