package intake

// Config configures the AMQP consumer. An empty URL disables intake.
type Config struct {
	URL        string `env:"AMQP_URL"`
	Exchange   string `env:"AMQP_EXCHANGE" envDefault:"events"`
	Queue      string `env:"AMQP_QUEUE" envDefault:"courier.notifications"`
	RoutingKey string `env:"AMQP_ROUTING_KEY" envDefault:"notification.created"`
	Prefetch   int    `env:"AMQP_PREFETCH" envDefault:"10"`
	Consumer   string `env:"AMQP_CONSUMER_TAG" envDefault:"courier"`
}
