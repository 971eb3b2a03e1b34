package instance

import (
	"os"

	"github.com/josima5/venda-projetos-sub001/pkg/env"
)

// ID identifies this process in logs. VENDA_INSTANCE_ID wins, then the
// platform dyno name, then the host name, then "<kind>-0".
func ID(kind string) string {
	if id := env.First("", "VENDA_INSTANCE_ID", "DYNO"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	if kind == "" {
		kind = "venda"
	}
	return kind + "-0"
}
