package resource

import (
	"sermon-publisher/pkg/config"
	"sermon-publisher/pkg/kafka"
	"sermon-publisher/pkg/logger"
	"sermon-publisher/pkg/manager"
)

// KafkaResource dispatch.driver=kafka 时打开客户端并确保任务 topic 存在
type KafkaResource struct {
	topic             string
	partitions        int
	replicationFactor int
}

type KafkaResourcePlugin struct{}

func (p *KafkaResourcePlugin) Name() string { return "kafkaResource" }

func (p *KafkaResourcePlugin) MustCreateResource() manager.Resource {
	cfg := config.GetGlobalConfig()
	if cfg == nil || cfg.Dispatch.Driver != "kafka" {
		return nil
	}
	return &KafkaResource{
		topic:             cfg.Kafka.Topics.VideoJobs,
		partitions:        cfg.Kafka.Partitions,
		replicationFactor: cfg.Kafka.ReplicationFactor,
	}
}

func (r *KafkaResource) MustOpen() {
	client := kafka.DefaultClient()
	client.MustOpen()
	// topic 可能由运维预先创建或 broker 禁止自动创建，失败只告警
	if err := client.EnsureTopic(r.topic, r.partitions, r.replicationFactor); err != nil {
		logger.Warnf("Kafka topic ensure failed topic=%s error=%v", r.topic, err)
	}
}

func (r *KafkaResource) Close() { kafka.DefaultClient().Close() }
