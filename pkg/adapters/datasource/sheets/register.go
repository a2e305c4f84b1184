package sheets

import (
	"github.com/ekaya-inc/ekaya-insights/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-insights/pkg/models"
)

func init() {
	datasource.Register(datasource.Registration{
		Info: datasource.AdapterInfo{
			Type:        models.DataSourceGoogleSheets,
			DisplayName: "Google Sheets",
			Description: "Read a spreadsheet range with an API key or service account",
			Icon:        "google-sheets",
		},
		Factory: func(deps datasource.Deps) datasource.Adapter {
			return NewAdapter(NewGoogleClient(deps.HTTPClient, ""), deps.Logger)
		},
	})
}
