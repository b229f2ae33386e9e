package discount

import "time"

// AuditAction names what happened to a code.
type AuditAction string

const (
	AuditCreated           AuditAction = "CREATED"
	AuditCheckoutInitiated AuditAction = "CHECKOUT_INITIATED"
	AuditImported          AuditAction = "IMPORTED"
)

// ActorType classifies who performed an audited action.
type ActorType string

const (
	ActorAdmin  ActorType = "ADMIN"
	ActorUser   ActorType = "USER"
	ActorGuest  ActorType = "GUEST"
	ActorSystem ActorType = "SYSTEM"
)

// Actor identifies the caller of an audited operation.
type Actor struct {
	ID        string
	Type      ActorType
	IP        string
	UserAgent string
}

// AuditEntry is an append-only audit log row. It is never updated.
type AuditEntry struct {
	ID        string
	CodeID    string
	Action    AuditAction
	Actor     Actor
	Reason    string
	CreatedAt time.Time
}
