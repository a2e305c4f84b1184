package csv

import (
	"github.com/ekaya-inc/ekaya-insights/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-insights/pkg/models"
)

func init() {
	datasource.Register(datasource.Registration{
		Info: datasource.AdapterInfo{
			Type:        models.DataSourceCSV,
			DisplayName: "CSV File",
			Description: "Delimited text file on the server's local disk",
			Icon:        "csv",
		},
		Factory: func(deps datasource.Deps) datasource.Adapter {
			return NewAdapter(deps.Logger)
		},
	})
}
