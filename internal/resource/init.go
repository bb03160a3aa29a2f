package resource

import "sermon-publisher/pkg/manager"

func init() {
	// 注册资源插件，按配置决定是否实际打开
	manager.RegisterResourcePlugin(&MySqlResourcePlugin{})
	manager.RegisterResourcePlugin(&RedisResourcePlugin{})
	manager.RegisterResourcePlugin(&KafkaResourcePlugin{})
	manager.RegisterResourcePlugin(&RabbitMQResourcePlugin{})
	manager.RegisterResourcePlugin(&MinioResourcePlugin{})
}
