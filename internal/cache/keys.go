package cache

import (
	"fmt"
	"time"
)

const (
	// Идемпотентность создания счёта: idem:invoice:create:{user_id}:{key} -> invoice_id
	keyIdemInvoiceCreate = "idem:invoice:create:%d:%s"

	// Отозванные сессии: session:revoked:{jti} -> 1
	keyRevokedSession = "session:revoked:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
)

func idemInvoiceKey(userID int64, key string) string {
	return fmt.Sprintf(keyIdemInvoiceCreate, userID, key)
}

func revokedSessionKey(jti string) string {
	return fmt.Sprintf(keyRevokedSession, jti)
}
