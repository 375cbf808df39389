package common

const (
	ComponentPipeline    = "pipeline"
	ComponentSource      = "source"
	ComponentCheckpoint  = "checkpoint"
	ComponentExecutor    = "executor"
	ComponentResolver    = "resolver"
	ComponentTasks       = "tasks"
	ComponentDex         = "dex"
	ComponentStore       = "store"
	ComponentMaintenance = "maintenance"
	ComponentAPI         = "api"
)

var AllComponents = map[string]struct{}{
	ComponentPipeline:    {},
	ComponentSource:      {},
	ComponentCheckpoint:  {},
	ComponentExecutor:    {},
	ComponentResolver:    {},
	ComponentTasks:       {},
	ComponentDex:         {},
	ComponentStore:       {},
	ComponentMaintenance: {},
	ComponentAPI:         {},
}
