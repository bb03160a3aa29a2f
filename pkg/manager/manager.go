package manager

import (
	"context"
	"fmt"
	"sync"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"sermon-publisher/pkg/config"
	"sermon-publisher/pkg/logger"
	"sermon-publisher/pkg/task"
)

// Resource 需要在启动时打开、退出时关闭的共享资源
type Resource interface {
	MustOpen()
	Close()
}

type ResourcePlugin interface {
	Name() string
	MustCreateResource() Resource
}

// Component 长生命周期组件（消费者、Worker 等）
type Component interface {
	Start() error
	Stop() error
	GetName() string
}

type ComponentPlugin interface {
	Name() string
	MustCreateComponent(deps *Dependencies) Component
}

// Controller 注册 HTTP 路由
type Controller interface {
	RegisterRoutes(router gin.IRouter)
}

type ControllerPlugin interface {
	Name() string
	MustCreateController() Controller
}

// Dependencies 依赖注入容器，应用服务以 interface{} 持有以避免包循环
type Dependencies struct {
	DB          *gorm.DB
	Config      *config.Config
	BatchApp    interface{}
	BulkApp     interface{}
	IngestApp   interface{}
	Pipeline    interface{}
	Maintenance interface{}
}

type registry struct {
	mu                sync.Mutex
	resourcePlugins   []ResourcePlugin
	componentPlugins  []ComponentPlugin
	controllerPlugins []ControllerPlugin
	resources         []Resource
	components        []Component
}

var reg = &registry{}

func RegisterResourcePlugin(p ResourcePlugin) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.resourcePlugins = append(reg.resourcePlugins, p)
}

func RegisterComponentPlugin(p ComponentPlugin) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.componentPlugins = append(reg.componentPlugins, p)
}

func RegisterControllerPlugin(p ControllerPlugin) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.controllerPlugins = append(reg.controllerPlugins, p)
}

// MustInitResources 按注册顺序打开所有资源，失败直接 panic
func MustInitResources() {
	reg.mu.Lock()
	plugins := append([]ResourcePlugin(nil), reg.resourcePlugins...)
	reg.mu.Unlock()

	for _, p := range plugins {
		res := p.MustCreateResource()
		if res == nil {
			continue
		}
		res.MustOpen()
		reg.mu.Lock()
		reg.resources = append(reg.resources, res)
		reg.mu.Unlock()
		logger.Infof("Resource opened name=%s", p.Name())
	}
}

// CloseResources 逆序关闭资源
func CloseResources() {
	reg.mu.Lock()
	resources := reg.resources
	reg.resources = nil
	reg.mu.Unlock()

	for i := len(resources) - 1; i >= 0; i-- {
		resources[i].Close()
	}
}

// MustInitComponents 创建并启动所有组件，然后启动组件注册的后台任务
func MustInitComponents(deps *Dependencies) {
	reg.mu.Lock()
	plugins := append([]ComponentPlugin(nil), reg.componentPlugins...)
	reg.mu.Unlock()

	for _, p := range plugins {
		c := p.MustCreateComponent(deps)
		if c == nil {
			logger.Infof("Component skipped name=%s", p.Name())
			continue
		}
		if err := c.Start(); err != nil {
			panic(fmt.Sprintf("failed to start component %s: %v", c.GetName(), err))
		}
		reg.mu.Lock()
		reg.components = append(reg.components, c)
		reg.mu.Unlock()
		logger.Infof("Component started name=%s", c.GetName())
	}

	if err := task.StartAll(context.Background()); err != nil {
		panic(fmt.Sprintf("failed to start background tasks: %v", err))
	}
}

// RegisterAllRoutes 注册所有控制器路由
func RegisterAllRoutes(router gin.IRouter) {
	reg.mu.Lock()
	plugins := append([]ControllerPlugin(nil), reg.controllerPlugins...)
	reg.mu.Unlock()

	for _, p := range plugins {
		ctrl := p.MustCreateController()
		if ctrl == nil {
			continue
		}
		ctrl.RegisterRoutes(router)
		logger.Debug("Controller routes registered", map[string]interface{}{"controller": p.Name()})
	}
}

// Shutdown 停止后台任务和组件
func Shutdown() {
	task.StopAll()

	reg.mu.Lock()
	components := reg.components
	reg.components = nil
	reg.mu.Unlock()

	for i := len(components) - 1; i >= 0; i-- {
		if err := components[i].Stop(); err != nil {
			logger.Warnf("Component stop failed name=%s error=%v", components[i].GetName(), err)
		}
	}
}
