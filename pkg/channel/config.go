package channel

// EmailConfig configures the Postmark sender. The server token is optional so
// that environments without email delivery can still start.
type EmailConfig struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	MessageStream        string `env:"POSTMARK_MESSAGE_STREAM" envDefault:"outbound"`
	SenderEmail          string `env:"SENDER_EMAIL" envDefault:"notifications@localhost"`
	SupportEmail         string `env:"SUPPORT_EMAIL"`
	ProductName          string `env:"PRODUCT_NAME" envDefault:"Courier"`
}

// SMSConfig configures the SNS sender. Static credentials are required;
// without them every send fails.
type SMSConfig struct {
	Region          string `env:"AWS_REGION" envDefault:"us-east-1"`
	AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	SenderID        string `env:"SMS_SENDER_ID"`
	SMSType         string `env:"SMS_TYPE" envDefault:"Transactional"`
}

// PushConfig configures the FCM sender. Either CredentialsJSON or
// CredentialsFile holds a Google service account key.
type PushConfig struct {
	ProjectID        string `env:"FCM_PROJECT_ID"`
	CredentialsJSON  string `env:"FCM_CREDENTIALS_JSON"`
	CredentialsFile  string `env:"FCM_CREDENTIALS_FILE"`
	BatchConcurrency int    `env:"PUSH_BATCH_CONCURRENCY" envDefault:"10"`
}

// Config groups the configuration of all channels.
type Config struct {
	Email EmailConfig
	SMS   SMSConfig
	Push  PushConfig
}
