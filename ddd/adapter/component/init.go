package component

import "sermon-publisher/pkg/manager"

func init() {
	// 按 dispatch.driver 决定实际启用哪个消费者
	manager.RegisterComponentPlugin(&KafkaJobConsumerPlugin{})
	manager.RegisterComponentPlugin(&RabbitMQJobConsumerPlugin{})
}
