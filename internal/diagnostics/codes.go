package diagnostics

// Stable diagnostic codes. Callers match on these, so never rename one.
const (
	// Source-format parser.
	CodeHeaderMissing    = "ISF_HEADER_MISSING"
	CodeHeaderJSON       = "ISF_HEADER_JSON"
	CodeHeaderAmbiguous  = "ISF_HEADER_AMBIGUOUS"
	CodeHeaderField      = "ISF_HEADER_FIELD"
	CodeInputInvalid     = "ISF_INPUT_INVALID"
	CodeUnknownInputType = "ISF_UNKNOWN_INPUT_TYPE"
	CodeInvalidDefault   = "ISF_INVALID_DEFAULT"
	CodeInvalidRange     = "ISF_INVALID_RANGE"
	CodeBoundIgnored     = "ISF_BOUND_IGNORED"
	CodeMultipass        = "ISF_MULTIPASS"
	CodeInputInferred    = "INPUT_INFERRED"
	CodeUnsupportedDecl  = "UNSUPPORTED_DECLARATION"
	CodePreservedUniform = "UNIFORM_PRESERVED"
	CodeBuiltinAlias     = "BUILTIN_ALIAS"
	CodeEmptySource      = "EMPTY_SOURCE"
	CodeUnknownFormat    = "UNKNOWN_FORMAT"

	// Symbol and type mapper.
	CodeUnmappedKind = "UNMAPPED_INPUT_KIND"
	CodeCollision    = "IDENTIFIER_COLLISION"
	CodeRenamed      = "IDENTIFIER_RENAMED"

	// Body rewriter.
	CodeStageDefaulted      = "STAGE_DEFAULTED"
	CodeEntryPointMissing   = "ENTRY_POINT_MISSING"
	CodeUnsupportedBuiltin  = "UNSUPPORTED_BUILTIN"
	CodeUnsupportedSyntax   = "UNSUPPORTED_SYNTAX"
	CodeUnknownTexture      = "UNKNOWN_TEXTURE"
	CodeDirectiveDropped    = "DIRECTIVE_DROPPED"
	CodeOutParameter        = "OUT_PARAMETER"
	CodeUnbalancedDelimiter = "UNBALANCED_DELIMITER"

	// Preprocessor.
	CodeUnknownCondition = "PREPROCESSOR_UNKNOWN_CONDITION"
	CodeBadCondition     = "PREPROCESSOR_BAD_CONDITION"
	CodeUnbalanced       = "PREPROCESSOR_UNBALANCED"
	CodeImportError      = "WESL_IMPORT_ERROR"
	CodeImportDepth      = "PREPROCESSOR_IMPORT_DEPTH"
	CodeImportCycle      = "PREPROCESSOR_IMPORT_CYCLE"
	CodeImportDuplicate  = "PREPROCESSOR_IMPORT_DUPLICATE"
	CodeDefine           = "WESL_DEFINE_INFO"
	CodeMacroUnsupported = "PREPROCESSOR_MACRO_UNSUPPORTED"

	// Output validation.
	CodeValidationFailed = "WGSL_VALIDATION_FAILED"
	CodeEntryPointDrift  = "WGSL_ENTRY_POINT_MISMATCH"

	// Node graphs.
	CodeGraphSchema = "GRAPH_SCHEMA"
	CodeGraphEdge   = "GRAPH_EDGE"

	// Service requests.
	CodeInvalidRequest = "INVALID_REQUEST"
)
