package contracts

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Artifact is a compiled contract in hardhat's artifact format.
type Artifact struct {
	ContractName string
	ABI          abi.ABI
	Bytecode     []byte
}

type artifactJSON struct {
	ContractName string          `json:"contractName"`
	ABI          json.RawMessage `json:"abi"`
	Bytecode     string          `json:"bytecode"`
}

// ParseArtifact decodes a hardhat artifact document.
func ParseArtifact(data []byte) (*Artifact, error) {
	var raw artifactJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	if len(raw.ABI) == 0 {
		return nil, fmt.Errorf("artifact %q has no abi", raw.ContractName)
	}
	parsed, err := abi.JSON(strings.NewReader(string(raw.ABI)))
	if err != nil {
		return nil, fmt.Errorf("parse abi of %q: %w", raw.ContractName, err)
	}

	code := strings.TrimSpace(raw.Bytecode)
	if code == "" || code == "0x" {
		return nil, fmt.Errorf("artifact %q has no bytecode (abstract contract or interface?)", raw.ContractName)
	}
	if !strings.HasPrefix(code, "0x") {
		code = "0x" + code
	}
	bytecode, err := hexutil.Decode(code)
	if err != nil {
		return nil, fmt.Errorf("decode bytecode of %q: %w", raw.ContractName, err)
	}

	return &Artifact{ContractName: raw.ContractName, ABI: parsed, Bytecode: bytecode}, nil
}

// LoadArtifact reads and parses one artifact file.
func LoadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", path, err)
	}
	return ParseArtifact(data)
}

// DeployData is the contract-creation payload: bytecode followed by the
// ABI-encoded constructor arguments.
func (a *Artifact) DeployData(args ...interface{}) ([]byte, error) {
	ctor, err := a.ABI.Pack("", args...)
	if err != nil {
		return nil, fmt.Errorf("encode %s constructor args: %w", a.ContractName, err)
	}
	data := make([]byte, 0, len(a.Bytecode)+len(ctor))
	data = append(data, a.Bytecode...)
	return append(data, ctor...), nil
}

// ArtifactStore resolves contract names against a hardhat artifacts directory.
type ArtifactStore struct {
	Dir string
}

// NewArtifactStore creates a store rooted at dir (usually ./artifacts).
func NewArtifactStore(dir string) *ArtifactStore {
	return &ArtifactStore{Dir: dir}
}

// Load finds the artifact for name. Both hardhat's nested layout
// (contracts/<Name>.sol/<Name>.json) and a flat <Name>.json are accepted.
func (s *ArtifactStore) Load(name string) (*Artifact, error) {
	if strings.HasSuffix(name, ".json") {
		return LoadArtifact(name)
	}
	candidates := []string{
		filepath.Join(s.Dir, "contracts", name+".sol", name+".json"),
		filepath.Join(s.Dir, name+".sol", name+".json"),
		filepath.Join(s.Dir, name+".json"),
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return LoadArtifact(path)
		}
	}
	return nil, fmt.Errorf("artifact %q not found under %s", name, s.Dir)
}
