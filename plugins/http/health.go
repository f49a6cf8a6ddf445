package httpplugin

import (
	"encoding/json"
	"net/http"

	"github.com/cdwhistler/netscan/device"
	"github.com/cdwhistler/netscan/plugins"
)

type Health struct {
	Status  string
	Devices int
}

func healthHandler(ctl plugins.Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := Health{Status: "UP", Devices: len(ctl.Snapshot())}
		writeJSON(w, health)
	}
}

func devicesHandler(ctl plugins.Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		devices := ctl.Snapshot()
		if devices == nil {
			devices = []device.Device{}
		}
		writeJSON(w, devices)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	response, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err = w.Write(response); err != nil {
		log.Debugf("write response: %v", err)
	}
}
