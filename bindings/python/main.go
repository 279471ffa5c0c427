package main

/*
#include <stdlib.h>
*/
import "C"
import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"unsafe"

	"github.com/trustrail/trustrail-core/pkg/receipt"
	"github.com/trustrail/trustrail-core/pkg/scoring"
)

// VerifyReceipt verifies a trust receipt JSON string offline.
// publicKeyHex is the hex-encoded Ed25519 public key of the signing key
// version; previousHash, if non-empty, enables the chain continuity
// check. Returns a JSON string containing the VerificationResult.
// The returned string must be freed using FreeString.
//
//export VerifyReceipt
func VerifyReceipt(jsonStr, publicKeyHex, previousHash *C.char) *C.char {
	goStr := C.GoString(jsonStr)

	var r receipt.TrustReceipt
	if err := json.Unmarshal([]byte(goStr), &r); err != nil {
		return C.CString(fmtError("JSON_PARSE_ERROR", err.Error()))
	}

	pub, err := hex.DecodeString(C.GoString(publicKeyHex))
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return C.CString(fmtError("KEY_ERROR", "public key must be 32 hex-encoded bytes"))
	}

	validator := receipt.NewValidator(nil)
	result, err := validator.Verify(&r, receipt.VerifyOptions{
		PublicKey:    pub,
		PreviousHash: C.GoString(previousHash),
	})
	if err != nil {
		return C.CString(fmtError("VERIFY_ERROR", err.Error()))
	}

	resBytes, err := json.Marshal(result)
	if err != nil {
		return C.CString(fmtError("JSON_MARSHAL_ERROR", err.Error()))
	}

	return C.CString(string(resBytes))
}

// EvaluateScores evaluates principle scores under a named weight policy
// (empty string selects the default policy). scoresJSON maps principle
// names to integer scores 0-10. Returns a JSON string containing the
// Evaluation. The returned string must be freed using FreeString.
//
//export EvaluateScores
func EvaluateScores(scoresJSON, policyName *C.char) *C.char {
	var scores scoring.Scores
	if err := json.Unmarshal([]byte(C.GoString(scoresJSON)), &scores); err != nil {
		return C.CString(fmtError("JSON_PARSE_ERROR", err.Error()))
	}

	engine := scoring.NewEngine()
	eval, err := engine.Evaluate(scores, C.GoString(policyName))
	if err != nil {
		return C.CString(fmtError("SCORING_ERROR", err.Error()))
	}

	resBytes, err := json.Marshal(eval)
	if err != nil {
		return C.CString(fmtError("JSON_MARSHAL_ERROR", err.Error()))
	}

	return C.CString(string(resBytes))
}

// FreeString frees the memory allocated for a C string by Go.
//
//export FreeString
func FreeString(str *C.char) {
	C.free(unsafe.Pointer(str))
}

func fmtError(code, msg string) string {
	res := struct {
		Valid bool   `json:"valid"`
		Code  string `json:"code"`
		Error string `json:"error"`
	}{false, code, msg}
	bytes, _ := json.Marshal(res)
	return string(bytes)
}

func main() {}
