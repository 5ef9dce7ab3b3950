// Package rabbitmq содержит подключение к RabbitMQ, объявление топологии,
// публикацию и потребление JSON сообщений.
package rabbitmq

// MailExchange обменник для почтовых заданий.
const MailExchange = "mail"

// RoutingFeedback ключ маршрутизации сообщений обратной связи.
const RoutingFeedback = "feedback"

// QueueConfig очередь и ключ, которым она привязана к обменнику.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// GetMailQueues возвращает очереди почтовых заданий.
func GetMailQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: "mail.feedback", RoutingKey: RoutingFeedback},
	}
}
