package api

import (
	"github.com/ekaya-inc/ekaya-insights/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-insights/pkg/models"
)

func init() {
	datasource.Register(datasource.Registration{
		Info: datasource.AdapterInfo{
			Type:        models.DataSourceAPI,
			DisplayName: "JSON API",
			Description: "Any HTTP endpoint returning a JSON array or object",
			Icon:        "api",
		},
		Factory: func(deps datasource.Deps) datasource.Adapter {
			return NewAdapter(deps.HTTPClient, nil, deps.Logger)
		},
	})
}
