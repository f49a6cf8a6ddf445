package natsplugin

const (
	TableTopic   = "device.table"
	RefreshTopic = "device.refresh"
	FindAllTopic = "device.findAll"
)
