package utils

import (
	"bytes"
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
)

// ErrorSelector is the 4-byte selector of the standard Error(string) revert payload.
var ErrorSelector = crypto.Keccak256([]byte("Error(string)"))[:4]

var stringArgs = func() abi.Arguments {
	ty, _ := abi.NewType("string", "", nil)
	return abi.Arguments{{Type: ty}}
}()

// DecodeRevertReason returns the human-readable reason embedded in a revert
// payload, or the raw payload as hex when it carries no string. It never fails.
func DecodeRevertReason(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	if reason, ok := UnpackRevertString(data); ok {
		return reason
	}
	return hexutil.Encode(data)
}

// UnpackRevertString decodes Error(string) and Panic(uint256) payloads, and any
// custom error whose only argument is a string, such as Unauthorized(string).
func UnpackRevertString(data []byte) (string, bool) {
	if len(data) < 4 {
		return "", false
	}
	if reason, err := abi.UnpackRevert(data); err == nil {
		return reason, true
	}
	if bytes.Equal(data[:4], ErrorSelector) {
		return "", false
	}
	return unpackStringArg(data[4:])
}

// unpackStringArg accepts body only when it is exactly the ABI encoding of one
// string, so arbitrary custom-error arguments are not misread as text.
func unpackStringArg(body []byte) (string, bool) {
	values, err := stringArgs.Unpack(body)
	if err != nil || len(values) != 1 {
		return "", false
	}
	reason, ok := values[0].(string)
	if !ok {
		return "", false
	}
	packed, err := stringArgs.Pack(reason)
	if err != nil || !bytes.Equal(packed, body) {
		return "", false
	}
	return reason, true
}

// EncodeRevertReason builds an Error(string) payload, the inverse of DecodeRevertReason.
func EncodeRevertReason(reason string) []byte {
	packed, err := stringArgs.Pack(reason)
	if err != nil {
		// a plain string always packs
		panic(err)
	}
	return append(common.CopyBytes(ErrorSelector), packed...)
}

// RevertDataFromError extracts revert data from JSON-RPC errors such as the ones
// returned by eth_call and eth_estimateGas for a reverting call.
func RevertDataFromError(err error) []byte {
	var dataErr rpc.DataError
	if !errors.As(err, &dataErr) {
		return nil
	}
	switch data := dataErr.ErrorData().(type) {
	case string:
		if !strings.HasPrefix(data, "0x") {
			return nil
		}
		decoded, decodeErr := hexutil.Decode(data)
		if decodeErr != nil {
			return nil
		}
		return decoded
	case []byte:
		return data
	default:
		return nil
	}
}
