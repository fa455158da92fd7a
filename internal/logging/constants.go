package logging

// Standardized field names for structured logging.
const (
	FieldFile       = "file_path"
	FieldFormat     = "format"
	FieldParser     = "parser"
	FieldLine       = "line"
	FieldProvider   = "provider"
	FieldItemID     = "item_id"
	FieldAccountID  = "account_id"
	FieldExternalID = "external_id"
	FieldDocNo      = "doc_no"
	FieldPage       = "page"
	FieldOperation  = "operation"
	FieldStatus     = "status"
	FieldError      = "error"
	FieldDuration   = "duration_ms"
	FieldCount      = "count"
	FieldDelimiter  = "delimiter"
	FieldBatchStart = "batch_start"
	FieldBatchSize  = "batch_size"
	FieldInputFile  = "input_file"
	FieldOutputFile = "output_file"
	FieldStorage    = "storage"
)
