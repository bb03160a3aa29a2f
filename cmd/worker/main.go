package main

import "sermon-publisher/app"

// 只运行任务消费者、Worker 和维护任务
func main() {
	app.Run(app.Options{Name: "sermon-publisher-worker", WorkerOnly: true})
}
