package mssql

import (
	"github.com/ekaya-inc/ekaya-insights/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-insights/pkg/models"
)

func init() {
	datasource.Register(datasource.Registration{
		Info: datasource.AdapterInfo{
			Type:        models.DataSourceSQLServer,
			DisplayName: "Microsoft SQL Server",
			Description: "Connect to SQL Server 2016+, Azure SQL Database",
			Icon:        "mssql",
		},
		Factory: func(deps datasource.Deps) datasource.Adapter {
			return NewAdapter(deps.Pools, deps.Logger)
		},
	})
}
