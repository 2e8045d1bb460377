package dynamo

// DynamoDB attribute names used in keys and expressions across the stores.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	attrUserID      = "user_id"
	attrKey         = "key"
	attrName        = "name"
	attrValue       = "value"
	attrUsername    = "username"
	attrEmail       = "email"
	attrIsActive    = "is_active"
	attrUpdatedAt   = "updated_at"
	attrCode        = "code"
	attrIsUsed      = "is_used"
	attrExpiresAtMs = "expires_at_ms"
	attrTTL         = "ttl"
)

// userIDCounter is the counters row that hands out numeric user ids.
const userIDCounter = "user_id"
