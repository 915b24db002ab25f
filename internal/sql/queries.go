package sql

import (
	"embed"
)

//go:embed migrations/*.sql
var Migrations embed.FS

//go:embed queries/lookup_master_import.sql
var LookupMasterImport string

//go:embed queries/register_master_import.sql
var RegisterMasterImport string

//go:embed queries/update_import_status.sql
var UpdateImportStatus string

//go:embed queries/supersede_imports.sql
var SupersedeImports string

//go:embed queries/upsert_service_codes.sql
var UpsertServiceCodes string

//go:embed queries/delete_stage_batch.sql
var DeleteStageBatch string

//go:embed queries/resolve_service_codes.sql
var ResolveServiceCodes string

//go:embed queries/analyze_service_codes.sql
var AnalyzeServiceCodes string
