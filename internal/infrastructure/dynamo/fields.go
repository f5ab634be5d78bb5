package dynamo

// DynamoDB attribute names used in update expressions across all repos.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	fieldState      = "state"
	fieldTelegramID = "telegram_id"
	fieldName       = "name"
	fieldPhone      = "phone"
	fieldUsername   = "username"
	fieldPhoto      = "photo"
	fieldTGUsername = "telegram_username"
)
