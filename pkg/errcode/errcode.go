package errcode

import (
	"github.com/gnames/gn"
)

const (
	UnknownError gn.ErrorCode = iota

	// File System errors
	CreateDirError
	WriteFileError
	ReadFileError

	// Logging errors
	CreateLogFileError

	// Configuration errors
	ConfigNoCentralURLError

	// Database errors
	DBConnectionError
	DBTableCheckError
	DBNotConnectedError
	DBTableExistsCheckError
	DBQueryTablesError
	DBScanTableError
	DBDropTableError

	// Schema errors
	SchemaGORMConnectionError
	SchemaCreateError
	SchemaMigrateError
	SchemaSeedError

	// Protocol errors
	ProtocolDecodeError
	ProtocolShapeError
	ProtocolStatusError

	// Store errors
	StoreQueryError
	StoreInsertError
	StoreAllocateError
	StoreColumnError

	// Resolver errors
	ResolveUpstreamError
	ResolveNotFoundError
	ResolveOwnerError
	ResolveUnknownInstrumentError

	// Ingest errors
	IngestUnknownCodeError
	IngestPersistError

	// Transport errors
	TransportRequestError
	TransportStatusError
	TransportRejectedError
	TransportBreakerOpenError

	// Spool errors
	SpoolOpenError
	SpoolWriteError
	SpoolReadError

	// Plugin errors
	PluginDirError
	PluginRegisterError
	PluginRunError
	PluginUnknownError

	// Agent errors
	AgentSiteIDError
	AgentNoPluginsError

	// Event-Manager errors
	ManagerListenError
)
