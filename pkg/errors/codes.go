package errors

import "strings"

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common Error Codes
const (
	ErrCodeInternal       ErrorCode = "COMMON_001"
	ErrCodeInvalidParam   ErrorCode = "COMMON_002"
	ErrCodeNotFound       ErrorCode = "COMMON_003"
	ErrCodeConflict       ErrorCode = "COMMON_004"
	ErrCodeTimeout        ErrorCode = "COMMON_005"
	ErrCodeValidation     ErrorCode = "COMMON_006"
	ErrCodeSerialization  ErrorCode = "COMMON_007"
	ErrCodeDatabaseError  ErrorCode = "COMMON_008"
	ErrCodeCacheError     ErrorCode = "COMMON_009"
	ErrCodeMessageQueue   ErrorCode = "COMMON_010"
	ErrCodeStorageError   ErrorCode = "COMMON_011"
	ErrCodeNotImplemented ErrorCode = "COMMON_012"

	ErrCodeServiceUnavailable ErrorCode = "COMMON_013"
)

// Aliases kept short for the most frequent call sites.
const (
	CodeInternal     = ErrCodeInternal
	CodeInvalidParam = ErrCodeInvalidParam
	CodeNotFound     = ErrCodeNotFound
	CodeConflict     = ErrCodeConflict
	CodeOK           = ErrorCode("OK")
	CodeUnknown      = ErrorCode("UNKNOWN")
)

// Molecule Module Error Codes
const (
	ErrCodeMoleculeInvalidSMILES ErrorCode = "MOL_001"
	ErrCodeMoleculeDecodeFailed  ErrorCode = "MOL_002"
	ErrCodeMoleculeSanitization  ErrorCode = "MOL_003"
	ErrCodeFingerprintFailed     ErrorCode = "MOL_004"
	ErrCodeDescriptorFailed      ErrorCode = "MOL_005"
)

// Search Engine Error Codes
const (
	ErrCodeInvalidToken        ErrorCode = "SEARCH_001"
	ErrCodeTerminalState       ErrorCode = "SEARCH_002"
	ErrCodeSelectionStall      ErrorCode = "SEARCH_003"
	ErrCodeExpansionExhausted  ErrorCode = "SEARCH_004"
	ErrCodeTreeInconsistent    ErrorCode = "SEARCH_005"
	ErrCodeBudgetMisconfigured ErrorCode = "SEARCH_006"
	ErrCodeRolloutFailed       ErrorCode = "SEARCH_007"
)

// Checkpoint Module Error Codes
const (
	ErrCodeCheckpointCorrupt  ErrorCode = "CKPT_001"
	ErrCodeCheckpointNotFound ErrorCode = "CKPT_002"
	ErrCodeCheckpointWrite    ErrorCode = "CKPT_003"
)

// Sequence Model Error Codes
const (
	ErrCodeModelNotLoaded     ErrorCode = "MODEL_001"
	ErrCodeModelInference     ErrorCode = "MODEL_002"
	ErrCodeVocabularyInvalid  ErrorCode = "MODEL_003"
	ErrCodeModelShapeMismatch ErrorCode = "MODEL_004"
)

// Reward Pipeline Error Codes
const (
	ErrCodeRewardUndefined     ErrorCode = "RWD_001"
	ErrCodeRewardConfigInvalid ErrorCode = "RWD_002"
	ErrCodeObjectiveFailed     ErrorCode = "RWD_003"
)

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:       "internal error",
	ErrCodeInvalidParam:   "invalid parameter",
	ErrCodeNotFound:       "resource not found",
	ErrCodeConflict:       "resource conflict",
	ErrCodeTimeout:        "operation timed out",
	ErrCodeValidation:     "validation failed",
	ErrCodeSerialization:  "serialization failed",
	ErrCodeDatabaseError:  "database error",
	ErrCodeCacheError:     "cache error",
	ErrCodeMessageQueue:   "message queue error",
	ErrCodeStorageError:   "object storage error",
	ErrCodeNotImplemented: "not implemented",

	ErrCodeServiceUnavailable: "service unavailable",

	ErrCodeMoleculeInvalidSMILES: "invalid SMILES format",
	ErrCodeMoleculeDecodeFailed:  "failed to decode token sequence into a molecule",
	ErrCodeMoleculeSanitization:  "molecule sanitization failed",
	ErrCodeFingerprintFailed:     "failed to generate fingerprint",
	ErrCodeDescriptorFailed:      "descriptor computation failed",

	ErrCodeInvalidToken:        "token is not part of the vocabulary",
	ErrCodeTerminalState:       "state is terminal and cannot be extended",
	ErrCodeSelectionStall:      "tree selection stalled",
	ErrCodeExpansionExhausted:  "node expansion exhausted",
	ErrCodeTreeInconsistent:    "search tree structural invariants violated",
	ErrCodeBudgetMisconfigured: "budget configuration invalid",
	ErrCodeRolloutFailed:       "rollout execution failed",

	ErrCodeCheckpointCorrupt:  "checkpoint is structurally inconsistent",
	ErrCodeCheckpointNotFound: "checkpoint file not found",
	ErrCodeCheckpointWrite:    "failed to write checkpoint",

	ErrCodeModelNotLoaded:     "sequence model not loaded",
	ErrCodeModelInference:     "sequence model inference failed",
	ErrCodeVocabularyInvalid:  "token vocabulary invalid",
	ErrCodeModelShapeMismatch: "model output shape does not match vocabulary",

	ErrCodeRewardUndefined:     "reward undefined for candidate",
	ErrCodeRewardConfigInvalid: "reward configuration invalid",
	ErrCodeObjectiveFailed:     "sub-objective evaluation failed",
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// ModuleForCode returns the module prefix of an ErrorCode.
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 0 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}
