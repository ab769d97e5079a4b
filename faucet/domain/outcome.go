package domain

import "time"

// Outcome é o resultado de uma tentativa de crédito. Não é persistido;
// serve para moldar a resposta e os logs.
type Outcome struct {
	OK        bool
	TxHash    string
	Recipient string
	At        time.Time
	Err       error
}
