package resource

import (
	"sermon-publisher/pkg/config"
	"sermon-publisher/pkg/manager"
	"sermon-publisher/pkg/rabbitmq"
)

type RabbitMQResource struct{}

type RabbitMQResourcePlugin struct{}

func (p *RabbitMQResourcePlugin) Name() string { return "rabbitmq" }

func (p *RabbitMQResourcePlugin) MustCreateResource() manager.Resource {
	cfg := config.GetGlobalConfig()
	if cfg == nil || cfg.Dispatch.Driver != "rabbitmq" {
		return nil
	}
	return &RabbitMQResource{}
}

func (r *RabbitMQResource) MustOpen() { rabbitmq.DefaultClient().MustOpen() }

func (r *RabbitMQResource) Close() { rabbitmq.DefaultClient().Close() }
